// Package pattern parses relay route patterns and URL templates.
//
// A pattern is a path string containing static text, named parameters and
// wildcards:
//
//	/users/{id:int}/posts/{slug}
//	/files/{*}
//
// Parameters may carry an optional type annotation after a colon. The same
// syntax doubles as the redirect URL template language, where Expand
// substitutes parameter placeholders with values taken from an action result.
package pattern

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// SegmentKind discriminates the parts of a parsed pattern.
type SegmentKind int

const (
	// Static is literal path text.
	Static SegmentKind = iota
	// Parameter is a named placeholder such as {id} or {id:int}.
	Parameter
	// Wildcard is the catch-all placeholder {*}.
	Wildcard
)

// Segment is one parsed part of a pattern.
type Segment struct {
	Kind SegmentKind
	// Value holds the literal text for Static segments and the parameter
	// name for Parameter segments.
	Value string
	// Type is the optional type annotation of a Parameter segment,
	// e.g. "int" in {id:int}. Empty for untyped parameters.
	Type string
}

var patternLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Star", Pattern: `\*`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Text", Pattern: `[^{}:*a-zA-Z_]+`},
})

type astPattern struct {
	Parts []astPart `parser:"@@*"`
}

type astPart struct {
	Param *astParam `parser:"@@"`
	Text  string    `parser:"| @(Ident | Text | Colon | Star)"`
}

type astParam struct {
	Wildcard bool   `parser:"LBrace ( @Star"`
	Name     string `parser:"| @Ident"`
	Type     string `parser:"( Colon @Ident )? ) RBrace"`
}

var parser = participle.MustBuild[astPattern](
	participle.Lexer(patternLexer),
	participle.UseLookahead(2),
)

// Parse parses a pattern string into segments. Adjacent static text is
// merged into a single segment.
func Parse(input string) ([]Segment, error) {
	if input == "" {
		return nil, fmt.Errorf("pattern: empty pattern")
	}

	ast, err := parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("pattern: parse %q: %w", input, err)
	}

	var segments []Segment
	var static strings.Builder
	flush := func() {
		if static.Len() > 0 {
			segments = append(segments, Segment{Kind: Static, Value: static.String()})
			static.Reset()
		}
	}

	for _, part := range ast.Parts {
		if part.Param == nil {
			static.WriteString(part.Text)
			continue
		}
		flush()
		if part.Param.Wildcard {
			segments = append(segments, Segment{Kind: Wildcard, Value: "*"})
		} else {
			segments = append(segments, Segment{
				Kind:  Parameter,
				Value: part.Param.Name,
				Type:  part.Param.Type,
			})
		}
	}
	flush()

	return segments, nil
}

// ParamNames returns the parameter names of a parsed pattern in order.
func ParamNames(segments []Segment) []string {
	var names []string
	for _, s := range segments {
		if s.Kind == Parameter {
			names = append(names, s.Value)
		}
	}
	return names
}

// Expand substitutes the parameter placeholders of a URL template with the
// matching entries of values. A placeholder without a matching value is an
// error; wildcards are not allowed in templates.
func Expand(template string, values map[string]any) (string, error) {
	segments, err := Parse(template)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, s := range segments {
		switch s.Kind {
		case Static:
			out.WriteString(s.Value)
		case Parameter:
			v, ok := values[s.Value]
			if !ok {
				return "", fmt.Errorf("pattern: template %q: no value for parameter %q", template, s.Value)
			}
			out.WriteString(fmt.Sprintf("%v", v))
		case Wildcard:
			return "", fmt.Errorf("pattern: template %q: wildcard is not allowed in templates", template)
		}
	}
	return out.String(), nil
}

package relay

import (
	"strings"

	"github.com/toyz/relay/internal/pattern"
)

// PathPartType represents the type of path part
type PathPartType int

const (
	StaticPart PathPartType = iota
	ParameterPart
	WildcardPart
)

// PathPart represents a single part of a relay path
type PathPart struct {
	Type      PathPartType
	Value     string // For static parts: the literal text, for parameters: the parameter name
	ParamType string // For parameters: the type (e.g., "int", "uuid"), empty for untyped
}

// Path represents a route path in relay format, e.g. "/users/{id:int}".
type Path string

// Raw returns the original path string.
func (p Path) Raw() string {
	return string(p)
}

// Parts parses the path and returns its individual parts. A path that does
// not parse is treated as a single static part; builders validate patterns
// up front, so this only happens for paths handed directly to a Driver.
func (p Path) Parts() []PathPart {
	segments, err := pattern.Parse(string(p))
	if err != nil {
		return []PathPart{{Type: StaticPart, Value: string(p)}}
	}

	parts := make([]PathPart, 0, len(segments))
	for _, s := range segments {
		switch s.Kind {
		case pattern.Parameter:
			parts = append(parts, PathPart{Type: ParameterPart, Value: s.Value, ParamType: s.Type})
		case pattern.Wildcard:
			parts = append(parts, PathPart{Type: WildcardPart, Value: "*"})
		default:
			parts = append(parts, PathPart{Type: StaticPart, Value: s.Value})
		}
	}
	return parts
}

// ParamNames returns the parameter names declared in the path, in order.
func (p Path) ParamNames() []string {
	var names []string
	for _, part := range p.Parts() {
		if part.Type == ParameterPart {
			names = append(names, part.Value)
		}
	}
	return names
}

// normalizePath strips the trailing slash from non-root paths. Host routers
// may treat "/users/" and "/users" as distinct routes.
func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

// joinPath joins a controller prefix and an action path.
func joinPath(prefix, path string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if path == "" || path == "/" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return prefix + path
}

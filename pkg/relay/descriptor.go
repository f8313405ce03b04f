package relay

import (
	"fmt"
	"strings"

	"github.com/toyz/relay/internal/pattern"
)

// ParamKind selects the extraction strategy for one action parameter.
// Exactly one strategy applies per kind; unknown kinds are a configuration
// error and are rejected when the action is built.
type ParamKind int

const (
	// KindBody injects the whole parsed request body.
	KindBody ParamKind = iota + 1
	// KindBodyField injects a named field of the parsed body.
	KindBodyField
	// KindPathParam injects a named path parameter.
	KindPathParam
	// KindPathParams injects all path parameters.
	KindPathParams
	// KindSession injects the whole session object.
	KindSession
	// KindSessionField injects a named field of the session object.
	KindSessionField
	// KindState injects the whole state bag, or a named state value.
	KindState
	// KindQuery injects a named query-string value.
	KindQuery
	// KindQueries injects all query-string values.
	KindQueries
	// KindFile injects a single uploaded file.
	KindFile
	// KindFiles injects all uploaded files for a field.
	KindFiles
	// KindHeader injects a named request header.
	KindHeader
	// KindHeaders injects all request headers.
	KindHeaders
	// KindCookie injects a named cookie value.
	KindCookie
	// KindCookies injects all cookie values.
	KindCookies
)

var paramKindNames = map[ParamKind]string{
	KindBody:         "body",
	KindBodyField:    "body-field",
	KindPathParam:    "path",
	KindPathParams:   "paths",
	KindSession:      "session",
	KindSessionField: "session-field",
	KindState:        "state",
	KindQuery:        "query",
	KindQueries:      "queries",
	KindFile:         "file",
	KindFiles:        "files",
	KindHeader:       "header",
	KindHeaders:      "headers",
	KindCookie:       "cookie",
	KindCookies:      "cookies",
}

func (k ParamKind) String() string {
	if name, ok := paramKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ParamKind(%d)", int(k))
}

func (k ParamKind) valid() bool {
	_, ok := paramKindNames[k]
	return ok
}

// UploadOptions configures the upload middleware created for file and files
// parameters.
type UploadOptions struct {
	// MaxSize rejects files larger than this many bytes. Zero means no limit.
	MaxSize int64
	// MaxFiles limits how many files a multi-file field accepts. Zero means
	// no limit.
	MaxFiles int
}

// ParamOptions carries per-parameter extraction options.
type ParamOptions struct {
	// Required makes the dispatcher reject the request with 400 when the
	// extracted value is absent.
	Required bool
	// Validate runs struct validation on a typed body after binding.
	Validate bool
	// Transform is applied to the extracted value before injection.
	Transform func(any) (any, error)
	// New builds the binding target for typed body parameters.
	New func() any
	// Type converts string values for path and query parameters. One of
	// "string", "int", "int64", "float64", "float32", "bool", "uuid".
	// Usually inferred from the route pattern, e.g. {id:int}.
	Type string
	// Upload configures the upload middleware for file parameters.
	Upload UploadOptions
}

// Param describes one action parameter: where its value comes from and how
// it is prepared before the handler runs.
type Param struct {
	Kind    ParamKind
	Name    string
	Options ParamOptions
}

// ParamOption mutates ParamOptions in a constructor call.
type ParamOption func(*ParamOptions)

// WithRequired overrides the required flag of a parameter.
func WithRequired(required bool) ParamOption {
	return func(o *ParamOptions) { o.Required = required }
}

// WithValidation enables struct validation for a typed body parameter.
func WithValidation() ParamOption {
	return func(o *ParamOptions) { o.Validate = true }
}

// WithTransform applies fn to the extracted value before injection.
func WithTransform(fn func(any) (any, error)) ParamOption {
	return func(o *ParamOptions) { o.Transform = fn }
}

// WithBodyType makes Body bind into the value produced by fn instead of a
// generic map.
func WithBodyType(fn func() any) ParamOption {
	return func(o *ParamOptions) { o.New = fn }
}

// WithType sets the string conversion type for a path or query parameter.
func WithType(typeName string) ParamOption {
	return func(o *ParamOptions) { o.Type = typeName }
}

// WithUploadLimit caps the accepted size of an uploaded file.
func WithUploadLimit(maxSize int64) ParamOption {
	return func(o *ParamOptions) { o.Upload.MaxSize = maxSize }
}

// WithMaxFiles caps how many files a multi-file field accepts.
func WithMaxFiles(n int) ParamOption {
	return func(o *ParamOptions) { o.Upload.MaxFiles = n }
}

func buildParam(kind ParamKind, name string, required bool, opts []ParamOption) Param {
	p := Param{Kind: kind, Name: name}
	p.Options.Required = required
	for _, opt := range opts {
		opt(&p.Options)
	}
	return p
}

// Body injects the whole parsed request body.
func Body(opts ...ParamOption) Param { return buildParam(KindBody, "", false, opts) }

// BodyField injects a named field of the parsed request body.
func BodyField(name string, opts ...ParamOption) Param {
	return buildParam(KindBodyField, name, false, opts)
}

// PathParam injects a named path parameter. Its conversion type is taken
// from the route pattern unless overridden with WithType.
func PathParam(name string, opts ...ParamOption) Param {
	return buildParam(KindPathParam, name, false, opts)
}

// PathParams injects all path parameters as a map.
func PathParams() Param { return buildParam(KindPathParams, "", false, nil) }

// Session injects the session object stored under SessionKey. Sessions are
// required by default and are never JSON-parsed.
func Session(opts ...ParamOption) Param { return buildParam(KindSession, "", true, opts) }

// SessionField injects a named field of the session object.
func SessionField(name string, opts ...ParamOption) Param {
	return buildParam(KindSessionField, name, true, opts)
}

// State injects a named state value, or the whole state bag when name is
// empty.
func State(name string, opts ...ParamOption) Param {
	return buildParam(KindState, name, false, opts)
}

// Query injects a named query-string value.
func Query(name string, opts ...ParamOption) Param {
	return buildParam(KindQuery, name, false, opts)
}

// Queries injects all query-string values as a QueryMap.
func Queries() Param { return buildParam(KindQueries, "", false, nil) }

// File injects a single uploaded file for the named field.
func File(name string, opts ...ParamOption) Param { return buildParam(KindFile, name, false, opts) }

// Files injects all uploaded files for the named field.
func Files(name string, opts ...ParamOption) Param { return buildParam(KindFiles, name, false, opts) }

// Header injects a named request header. Lookup is case-insensitive.
func Header(name string, opts ...ParamOption) Param {
	return buildParam(KindHeader, name, false, opts)
}

// Headers injects all request headers.
func Headers() Param { return buildParam(KindHeaders, "", false, nil) }

// Cookie injects a named cookie value.
func Cookie(name string, opts ...ParamOption) Param {
	return buildParam(KindCookie, name, false, opts)
}

// Cookies injects all cookie values.
func Cookies() Param { return buildParam(KindCookies, "", false, nil) }

// Action is the immutable descriptor of one HTTP action: a method and path,
// the handler, its parameters and the response configuration. Actions are
// produced by ActionBuilder and must be treated as read-only afterwards.
type Action struct {
	// Name identifies the action in logs and the route table,
	// e.g. "UserController.Get".
	Name string

	Method string
	Path   Path

	Handler ActionHandler
	Params  []Param

	// SuccessCode overrides the status code for successful results.
	SuccessCode int

	// RedirectTo issues a redirect instead of a body. It may contain
	// {field} placeholders filled from the action result.
	RedirectTo string

	// RenderView renders a template with the action result as context.
	RenderView string

	// Headers are applied to every response of this action.
	Headers map[string]string

	// JSON selects the JSON renderer for results and errors. Text actions
	// render strings and error messages as plain text.
	JSON bool

	// Authorize requires the configured AuthorizationChecker to admit the
	// request, optionally checking Roles.
	Authorize bool
	Roles     []string

	// Nil and Null result handling. A nil result produces a 404 by default;
	// AllowNil suppresses that, NilError replaces it. Null results produce
	// a null body with NullCode (204 by default); NullError replaces it.
	AllowNil  bool
	NilCode   int
	NilError  error
	NullCode  int
	NullError error

	// Transform is applied to the action result before translation.
	Transform func(any) (any, error)

	// Before and After name registered middlewares to run around the
	// action, in declaration order.
	Before []string
	After  []string

	parts []PathPart
}

// ActionBuilder assembles an Action. Configuration errors are collected and
// reported by Handle so call sites can chain freely.
type ActionBuilder struct {
	action Action
	errs   []error
}

// NewAction starts building an action for the given HTTP method and path.
func NewAction(method, path string) *ActionBuilder {
	return &ActionBuilder{
		action: Action{
			Method: strings.ToUpper(method),
			Path:   Path(path),
			JSON:   true,
		},
	}
}

// Named sets the action name used in logs and the route table.
func (b *ActionBuilder) Named(name string) *ActionBuilder {
	b.action.Name = name
	return b
}

// Param declares the next handler parameter.
func (b *ActionBuilder) Param(p Param) *ActionBuilder {
	if !p.Kind.valid() {
		b.errs = append(b.errs, errUnknownParamKind(p.Kind))
		return b
	}
	b.action.Params = append(b.action.Params, p)
	return b
}

// Authorized requires the authorization checker to admit requests, with the
// given required roles.
func (b *ActionBuilder) Authorized(roles ...string) *ActionBuilder {
	b.action.Authorize = true
	b.action.Roles = roles
	return b
}

// Success sets the status code for successful results.
func (b *ActionBuilder) Success(code int) *ActionBuilder {
	b.action.SuccessCode = code
	return b
}

// Redirect makes the action respond with a redirect. The target may contain
// {field} placeholders filled from the action result.
func (b *ActionBuilder) Redirect(target string) *ActionBuilder {
	b.action.RedirectTo = target
	return b
}

// Render makes the action render the named template with its result.
func (b *ActionBuilder) Render(view string) *ActionBuilder {
	b.action.RenderView = view
	return b
}

// Header adds a response header applied to every response of this action.
func (b *ActionBuilder) Header(name, value string) *ActionBuilder {
	if b.action.Headers == nil {
		b.action.Headers = make(map[string]string)
	}
	b.action.Headers[name] = value
	return b
}

// Text switches the action to the plain-text renderer.
func (b *ActionBuilder) Text() *ActionBuilder {
	b.action.JSON = false
	return b
}

// Use appends named middlewares to run before the action.
func (b *ActionBuilder) Use(names ...string) *ActionBuilder {
	b.action.Before = append(b.action.Before, names...)
	return b
}

// UseAfter appends named middlewares to run after the action.
func (b *ActionBuilder) UseAfter(names ...string) *ActionBuilder {
	b.action.After = append(b.action.After, names...)
	return b
}

// Transform applies fn to the action result before translation.
func (b *ActionBuilder) Transform(fn func(any) (any, error)) *ActionBuilder {
	b.action.Transform = fn
	return b
}

// AllowNil suppresses the default not-found response for nil results.
func (b *ActionBuilder) AllowNil() *ActionBuilder {
	b.action.AllowNil = true
	return b
}

// OnNil sets the status code for nil results and implies AllowNil.
func (b *ActionBuilder) OnNil(code int) *ActionBuilder {
	b.action.AllowNil = true
	b.action.NilCode = code
	return b
}

// OnNilError replaces the default not-found error for nil results.
func (b *ActionBuilder) OnNilError(err error) *ActionBuilder {
	b.action.NilError = err
	return b
}

// OnNull sets the status code for Null results.
func (b *ActionBuilder) OnNull(code int) *ActionBuilder {
	b.action.NullCode = code
	return b
}

// OnNullError replaces the null body with an error response.
func (b *ActionBuilder) OnNullError(err error) *ActionBuilder {
	b.action.NullError = err
	return b
}

var knownParamTypes = map[string]bool{
	"":        true,
	"string":  true,
	"int":     true,
	"int64":   true,
	"float64": true,
	"float32": true,
	"bool":    true,
	"uuid":    true,
}

// Handle finishes the build with the user handler, validating the route
// pattern and parameter declarations.
func (b *ActionBuilder) Handle(h ActionHandler) (*Action, error) {
	a := b.action
	a.Handler = h

	if a.Method == "" {
		b.errs = append(b.errs, fmt.Errorf("relay: action %q has no HTTP method", a.Name))
	}
	if h == nil {
		b.errs = append(b.errs, fmt.Errorf("relay: action %s %s has no handler", a.Method, a.Path))
	}
	if a.RedirectTo != "" && a.RenderView != "" {
		b.errs = append(b.errs, fmt.Errorf("relay: action %s %s declares both redirect and render", a.Method, a.Path))
	}
	if a.SuccessCode != 0 && (a.SuccessCode < 100 || a.SuccessCode > 599) {
		b.errs = append(b.errs, fmt.Errorf("relay: action %s %s has invalid status code %d", a.Method, a.Path, a.SuccessCode))
	}

	// A malformed pattern is a configuration error, not a literal route.
	if _, err := pattern.Parse(string(a.Path)); err != nil {
		b.errs = append(b.errs, fmt.Errorf("relay: action %s %s: invalid route pattern: %w", a.Method, a.Path, err))
	}

	a.parts = a.Path.Parts()
	declared := make(map[string]string) // path param name -> pattern type
	for _, part := range a.parts {
		if part.Type != ParameterPart {
			continue
		}
		if !knownParamTypes[part.ParamType] {
			b.errs = append(b.errs, fmt.Errorf("relay: action %s %s: unknown type %q for path parameter %q",
				a.Method, a.Path, part.ParamType, part.Value))
		}
		declared[part.Value] = part.ParamType
	}

	for i, p := range a.Params {
		if !knownParamTypes[p.Options.Type] {
			b.errs = append(b.errs, fmt.Errorf("relay: action %s %s: unknown conversion type %q for parameter %q",
				a.Method, a.Path, p.Options.Type, p.Name))
		}
		if p.Kind != KindPathParam {
			continue
		}
		patternType, ok := declared[p.Name]
		if !ok {
			b.errs = append(b.errs, fmt.Errorf("relay: action %s %s: path parameter %q is not declared in the pattern",
				a.Method, a.Path, p.Name))
			continue
		}
		if p.Options.Type == "" {
			a.Params[i].Options.Type = patternType
		}
	}

	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	return &a, nil
}

// MustHandle is Handle but panics on configuration errors. Intended for
// process initialization, where a broken descriptor should stop startup.
func (b *ActionBuilder) MustHandle(h ActionHandler) *Action {
	a, err := b.Handle(h)
	if err != nil {
		panic(err)
	}
	return a
}

// ControllerBuilder groups actions under a shared path prefix and shared
// middleware.
type ControllerBuilder struct {
	name   string
	prefix string
	before []string
	after  []string
	acts   []*Action
}

// NewController starts building a controller with the given path prefix.
func NewController(prefix string) *ControllerBuilder {
	return &ControllerBuilder{prefix: prefix}
}

// Named sets the controller name, used to prefix action names.
func (cb *ControllerBuilder) Named(name string) *ControllerBuilder {
	cb.name = name
	return cb
}

// Use appends named middlewares to run before every action of the controller.
func (cb *ControllerBuilder) Use(names ...string) *ControllerBuilder {
	cb.before = append(cb.before, names...)
	return cb
}

// UseAfter appends named middlewares to run after every action of the controller.
func (cb *ControllerBuilder) UseAfter(names ...string) *ControllerBuilder {
	cb.after = append(cb.after, names...)
	return cb
}

// Add attaches a built action to the controller.
func (cb *ControllerBuilder) Add(a *Action) *ControllerBuilder {
	cb.acts = append(cb.acts, a)
	return cb
}

// Build produces the controller's actions with prefixed paths and combined
// middleware lists. The attached actions are not modified.
func (cb *ControllerBuilder) Build() ([]*Action, error) {
	actions := make([]*Action, 0, len(cb.acts))
	for _, src := range cb.acts {
		a := *src
		a.Path = Path(joinPath(cb.prefix, string(src.Path)))
		a.parts = a.Path.Parts()
		a.Before = append(append([]string(nil), cb.before...), src.Before...)
		a.After = append(append([]string(nil), src.After...), cb.after...)
		if cb.name != "" && a.Name != "" && !strings.Contains(a.Name, ".") {
			a.Name = cb.name + "." + a.Name
		}
		actions = append(actions, &a)
	}
	return actions, nil
}

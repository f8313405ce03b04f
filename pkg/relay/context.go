// Package relay is a descriptor-driven routing layer for Go web frameworks.
//
// Controllers and actions are declared through a builder API, collected in a
// Registry, and mounted onto a framework-specific Driver (Echo, Gin or
// Fiber). relay resolves action parameters from the request, runs the
// declared middleware chain and translates the action's outcome into a
// framework response.
package relay

import (
	"context"
	"mime/multipart"
	"net/http"
)

// Reserved context keys. Values stored under these keys are shared between
// relay and user middleware.
const (
	// SessionKey is where session middleware is expected to store the
	// per-request session object.
	SessionKey = "relay.session"

	// StateKey holds the per-request state bag shared across middleware.
	StateKey = "relay.state"

	// RequestIDKey holds the identifier assigned by the RequestID middleware.
	RequestIDKey = "relay.request_id"

	dispatchedKey = "relay.dispatched"
	parsedBodyKey = "relay.parsed_body"
	filePrefix    = "relay.file."
)

// Context provides a framework-agnostic view of one HTTP request. A Context
// is created by a Driver, lives for a single request and must not be
// retained after the response is finalized.
type Context interface {
	// Request data
	Method() string
	Path() string
	RealIP() string
	ContentLength() int64

	// Path parameters
	Param(name string) string
	Params() map[string]string

	// Query parameters
	QueryParam(name string) string
	QueryParams() map[string][]string

	// Request headers. Lookup is case-insensitive.
	Header(name string) string
	Headers() map[string][]string

	// Cookies, parsed from the Cookie header on demand. Cookie reports
	// ok=false when the cookie is absent; Cookies returns an empty map
	// when the header is missing.
	Cookie(name string) (value string, ok bool)
	Cookies() map[string]string

	// Body and form handling
	Bind(v any) error
	FormValue(name string) string
	FormFile(name string) (*multipart.FileHeader, error)
	FormFiles(name string) ([]*multipart.FileHeader, error)

	// Per-request storage. Set mirrors values into the state bag so that
	// State exposes everything written during the request.
	Get(key string) any
	Set(key string, value any)
	State() map[string]any

	// Response returns the response side of the request.
	Response() ResponseWriter

	// Native returns the underlying framework context (echo.Context,
	// *gin.Context or *fiber.Ctx).
	Native() any
}

// ResponseWriter provides response writing capabilities.
type ResponseWriter interface {
	Status() int
	SetStatus(code int)

	Header(name string) string
	SetHeader(name, value string)

	JSON(code int, v any) error
	String(code int, s string) error
	HTML(code int, html string) error
	Blob(code int, contentType string, b []byte) error
	NoContent(code int) error
	Render(code int, name string, data any) error
	Redirect(code int, url string) error

	SetCookie(cookie *http.Cookie)

	Written() bool
	Writer() any
}

// HandlerFunc is a step in a request chain.
type HandlerFunc func(Context) error

// Middleware wraps a HandlerFunc with additional behavior.
type Middleware func(HandlerFunc) HandlerFunc

// ActionHandler is a user action. It receives the request context and the
// values resolved for the action's declared parameters, in declaration
// order, and returns the result to translate into a response.
type ActionHandler func(c Context, args []any) (any, error)

// Driver binds relay to one host framework. Implementations register
// pre-composed handler chains and own the server lifecycle.
type Driver interface {
	RegisterRoute(method string, path Path, handler HandlerFunc)
	Use(middleware Middleware)

	Start(addr string) error
	Stop(ctx context.Context) error

	Name() string
}

// SetSession stores the session object for the current request. Session
// middleware should call this (or write to SessionKey directly) before the
// action chain runs.
func SetSession(c Context, session any) {
	c.Set(SessionKey, session)
}

// CurrentSession returns the session object for the current request, or nil
// when no session middleware has run.
func CurrentSession(c Context) any {
	return c.Get(SessionKey)
}

func fileKey(field string) string {
	return filePrefix + field
}

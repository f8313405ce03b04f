// Package adapters binds relay to specific host frameworks: Echo, Gin and
// Fiber. Each driver translates route registrations, wraps the framework
// context behind relay.Context and maps escaped errors onto HTTP responses.
package adapters

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/toyz/relay/pkg/relay"
)

// EchoDriver implements relay.Driver for Echo v4.
type EchoDriver struct {
	engine *echo.Echo
}

// NewEchoDriver creates an Echo driver over an existing Echo instance.
func NewEchoDriver(e *echo.Echo) *EchoDriver {
	return &EchoDriver{engine: e}
}

// NewDefaultEchoDriver creates an Echo driver with a fresh Echo instance and
// the recover and CORS middleware installed.
func NewDefaultEchoDriver() *EchoDriver {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	return &EchoDriver{engine: e}
}

// convertPathToEcho converts a relay path to Echo syntax:
// /users/{id:int} -> /users/:id, {*} -> *.
func convertPathToEcho(path relay.Path) string {
	var sb strings.Builder
	for _, part := range path.Parts() {
		switch part.Type {
		case relay.ParameterPart:
			sb.WriteString(":" + part.Value)
		case relay.WildcardPart:
			sb.WriteString("*")
		default:
			sb.WriteString(part.Value)
		}
	}
	return sb.String()
}

// RegisterRoute registers a composed handler chain with Echo.
func (ed *EchoDriver) RegisterRoute(method string, path relay.Path, handler relay.HandlerFunc) {
	ed.engine.Add(method, convertPathToEcho(path), ed.convertHandler(handler))
}

// Use adds a global middleware.
func (ed *EchoDriver) Use(mw relay.Middleware) {
	ed.engine.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			relayNext := func(relay.Context) error { return next(c) }
			return mw(relayNext)(newEchoContext(c))
		}
	})
}

// Start starts the server.
func (ed *EchoDriver) Start(addr string) error {
	return ed.engine.Start(addr)
}

// Stop stops the server gracefully.
func (ed *EchoDriver) Stop(ctx context.Context) error {
	return ed.engine.Shutdown(ctx)
}

// Name returns the driver name.
func (ed *EchoDriver) Name() string {
	return "Echo"
}

// Engine returns the underlying Echo instance.
func (ed *EchoDriver) Engine() *echo.Echo {
	return ed.engine
}

func (ed *EchoDriver) convertHandler(handler relay.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := handler(newEchoContext(c))
		// Errors escaping the chain (middleware failures, write errors)
		// fall through to Echo's error handler with their status intact.
		var httpErr *relay.HttpError
		if errors.As(err, &httpErr) {
			return echo.NewHTTPError(httpErr.StatusCode, httpErr.Message)
		}
		return err
	}
}

// echoContext implements relay.Context for Echo.
type echoContext struct {
	ctx echo.Context
}

func newEchoContext(c echo.Context) *echoContext {
	return &echoContext{ctx: c}
}

func (ec *echoContext) Method() string {
	return ec.ctx.Request().Method
}

func (ec *echoContext) Path() string {
	return ec.ctx.Request().URL.Path
}

func (ec *echoContext) RealIP() string {
	return ec.ctx.RealIP()
}

func (ec *echoContext) ContentLength() int64 {
	return ec.ctx.Request().ContentLength
}

func (ec *echoContext) Param(name string) string {
	return ec.ctx.Param(name)
}

func (ec *echoContext) Params() map[string]string {
	names := ec.ctx.ParamNames()
	values := ec.ctx.ParamValues()
	params := make(map[string]string, len(names))
	for i, name := range names {
		if i < len(values) {
			params[name] = values[i]
		}
	}
	return params
}

func (ec *echoContext) QueryParam(name string) string {
	return ec.ctx.QueryParam(name)
}

func (ec *echoContext) QueryParams() map[string][]string {
	return ec.ctx.QueryParams()
}

func (ec *echoContext) Header(name string) string {
	return ec.ctx.Request().Header.Get(name)
}

func (ec *echoContext) Headers() map[string][]string {
	return ec.ctx.Request().Header
}

func (ec *echoContext) Cookie(name string) (string, bool) {
	cookie, err := ec.ctx.Request().Cookie(name)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func (ec *echoContext) Cookies() map[string]string {
	cookies := ec.ctx.Request().Cookies()
	result := make(map[string]string, len(cookies))
	for _, c := range cookies {
		result[c.Name] = c.Value
	}
	return result
}

func (ec *echoContext) Bind(v any) error {
	return ec.ctx.Bind(v)
}

func (ec *echoContext) FormValue(name string) string {
	return ec.ctx.FormValue(name)
}

func (ec *echoContext) FormFile(name string) (*multipart.FileHeader, error) {
	return ec.ctx.FormFile(name)
}

func (ec *echoContext) FormFiles(name string) ([]*multipart.FileHeader, error) {
	form, err := ec.ctx.MultipartForm()
	if err != nil {
		return nil, err
	}
	return form.File[name], nil
}

func (ec *echoContext) Get(key string) any {
	return ec.ctx.Get(key)
}

func (ec *echoContext) Set(key string, value any) {
	ec.ctx.Set(key, value)
	if key != relay.StateKey {
		ec.State()[key] = value
	}
}

// State returns the per-request state bag. The bag itself lives in the Echo
// context store so every relay.Context wrapper of the same request shares it.
func (ec *echoContext) State() map[string]any {
	if bag, ok := ec.ctx.Get(relay.StateKey).(map[string]any); ok {
		return bag
	}
	bag := make(map[string]any)
	ec.ctx.Set(relay.StateKey, bag)
	return bag
}

func (ec *echoContext) Response() relay.ResponseWriter {
	return &echoResponse{ctx: ec.ctx}
}

func (ec *echoContext) Native() any {
	return ec.ctx
}

// echoResponse implements relay.ResponseWriter for Echo.
type echoResponse struct {
	ctx echo.Context
}

func (er *echoResponse) Status() int {
	return er.ctx.Response().Status
}

func (er *echoResponse) SetStatus(code int) {
	er.ctx.Response().Status = code
}

func (er *echoResponse) Header(name string) string {
	return er.ctx.Response().Header().Get(name)
}

func (er *echoResponse) SetHeader(name, value string) {
	er.ctx.Response().Header().Set(name, value)
}

func (er *echoResponse) JSON(code int, v any) error {
	return er.ctx.JSON(code, v)
}

func (er *echoResponse) String(code int, s string) error {
	return er.ctx.String(code, s)
}

func (er *echoResponse) HTML(code int, html string) error {
	return er.ctx.HTML(code, html)
}

func (er *echoResponse) Blob(code int, contentType string, b []byte) error {
	return er.ctx.Blob(code, contentType, b)
}

func (er *echoResponse) NoContent(code int) error {
	return er.ctx.NoContent(code)
}

func (er *echoResponse) Render(code int, name string, data any) error {
	return er.ctx.Render(code, name, data)
}

func (er *echoResponse) Redirect(code int, url string) error {
	return er.ctx.Redirect(code, url)
}

func (er *echoResponse) SetCookie(cookie *http.Cookie) {
	er.ctx.SetCookie(cookie)
}

func (er *echoResponse) Written() bool {
	return er.ctx.Response().Committed
}

func (er *echoResponse) Writer() any {
	return er.ctx.Response().Writer
}

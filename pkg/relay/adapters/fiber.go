package adapters

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/toyz/relay/pkg/relay"
)

// fiberWrittenKey marks a request whose response body has been produced.
// Fasthttp reports a 200 status before anything is written, so the flag is
// tracked explicitly.
const fiberWrittenKey = "relay.fiber.written"

// FiberDriver implements relay.Driver for Fiber v2.
type FiberDriver struct {
	app *fiber.App
}

// NewFiberDriver creates a Fiber driver with an error handler that preserves
// relay error status codes.
func NewFiberDriver() *FiberDriver {
	app := fiber.New(fiber.Config{
		ErrorHandler: fiberErrorHandler,
	})
	return &FiberDriver{app: app}
}

// NewDefaultFiberDriver creates a Fiber driver with recovery and CORS
// installed.
func NewDefaultFiberDriver() *FiberDriver {
	fd := NewFiberDriver()
	fd.app.Use(recover.New())
	fd.app.Use(cors.New())
	return fd
}

func fiberErrorHandler(c *fiber.Ctx, err error) error {
	var httpErr *relay.HttpError
	if errors.As(err, &httpErr) {
		return c.Status(httpErr.StatusCode).JSON(httpErr)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// convertPathToFiber converts a relay path to Fiber syntax:
// /users/{id:int} -> /users/:id, {*} -> *.
func convertPathToFiber(path relay.Path) string {
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

// RegisterRoute registers a composed handler chain with Fiber.
func (fd *FiberDriver) RegisterRoute(method string, path relay.Path, handler relay.HandlerFunc) {
	fd.app.Add(strings.ToUpper(method), convertPathToFiber(path), func(c *fiber.Ctx) error {
		return handler(newFiberContext(c))
	})
}

// Use adds a global middleware.
func (fd *FiberDriver) Use(mw relay.Middleware) {
	fd.app.Use(func(c *fiber.Ctx) error {
		relayNext := func(relay.Context) error { return c.Next() }
		return mw(relayNext)(newFiberContext(c))
	})
}

// Start starts the server.
func (fd *FiberDriver) Start(addr string) error {
	return fd.app.Listen(addr)
}

// Stop stops the server gracefully.
func (fd *FiberDriver) Stop(ctx context.Context) error {
	return fd.app.ShutdownWithContext(ctx)
}

// Name returns the driver name.
func (fd *FiberDriver) Name() string {
	return "Fiber"
}

// App returns the underlying Fiber app.
func (fd *FiberDriver) App() *fiber.App {
	return fd.app
}

// fiberContext implements relay.Context for Fiber.
type fiberContext struct {
	ctx *fiber.Ctx
}

func newFiberContext(c *fiber.Ctx) *fiberContext {
	return &fiberContext{ctx: c}
}

func (fc *fiberContext) Method() string {
	return fc.ctx.Method()
}

func (fc *fiberContext) Path() string {
	return fc.ctx.Path()
}

func (fc *fiberContext) RealIP() string {
	return fc.ctx.IP()
}

func (fc *fiberContext) ContentLength() int64 {
	return int64(fc.ctx.Request().Header.ContentLength())
}

func (fc *fiberContext) Param(name string) string {
	return fc.ctx.Params(name)
}

func (fc *fiberContext) Params() map[string]string {
	params := make(map[string]string)
	for _, name := range fc.ctx.Route().Params {
		key := name
		// Fiber numbers anonymous wildcards (*1, *2).
		if strings.HasPrefix(key, "*") {
			key = "*"
		}
		params[key] = fc.ctx.Params(name)
	}
	return params
}

func (fc *fiberContext) QueryParam(name string) string {
	return fc.ctx.Query(name)
}

func (fc *fiberContext) QueryParams() map[string][]string {
	result := make(map[string][]string)
	fc.ctx.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		result[string(key)] = append(result[string(key)], string(value))
	})
	return result
}

func (fc *fiberContext) Header(name string) string {
	return fc.ctx.Get(name)
}

func (fc *fiberContext) Headers() map[string][]string {
	return fc.ctx.GetReqHeaders()
}

func (fc *fiberContext) Cookie(name string) (string, bool) {
	raw := fc.ctx.Request().Header.Cookie(name)
	if raw == nil {
		return "", false
	}
	return string(raw), true
}

func (fc *fiberContext) Cookies() map[string]string {
	result := make(map[string]string)
	fc.ctx.Request().Header.VisitAllCookie(func(key, value []byte) {
		result[string(key)] = string(value)
	})
	return result
}

func (fc *fiberContext) Bind(v any) error {
	return fc.ctx.BodyParser(v)
}

func (fc *fiberContext) FormValue(name string) string {
	return fc.ctx.FormValue(name)
}

func (fc *fiberContext) FormFile(name string) (*multipart.FileHeader, error) {
	return fc.ctx.FormFile(name)
}

func (fc *fiberContext) FormFiles(name string) ([]*multipart.FileHeader, error) {
	form, err := fc.ctx.MultipartForm()
	if err != nil {
		return nil, err
	}
	return form.File[name], nil
}

func (fc *fiberContext) Get(key string) any {
	return fc.ctx.Locals(key)
}

func (fc *fiberContext) Set(key string, value any) {
	fc.ctx.Locals(key, value)
	if key != relay.StateKey {
		fc.State()[key] = value
	}
}

// State returns the per-request state bag, held in Locals so every wrapper
// of the same request shares it.
func (fc *fiberContext) State() map[string]any {
	if bag, ok := fc.ctx.Locals(relay.StateKey).(map[string]any); ok {
		return bag
	}
	bag := make(map[string]any)
	fc.ctx.Locals(relay.StateKey, bag)
	return bag
}

func (fc *fiberContext) Response() relay.ResponseWriter {
	return &fiberResponse{ctx: fc.ctx}
}

func (fc *fiberContext) Native() any {
	return fc.ctx
}

// fiberResponse implements relay.ResponseWriter for Fiber.
type fiberResponse struct {
	ctx *fiber.Ctx
}

func (fr *fiberResponse) markWritten() {
	fr.ctx.Locals(fiberWrittenKey, true)
}

func (fr *fiberResponse) Status() int {
	return fr.ctx.Response().StatusCode()
}

func (fr *fiberResponse) SetStatus(code int) {
	fr.ctx.Status(code)
}

func (fr *fiberResponse) Header(name string) string {
	return string(fr.ctx.Response().Header.Peek(name))
}

func (fr *fiberResponse) SetHeader(name, value string) {
	fr.ctx.Set(name, value)
}

func (fr *fiberResponse) JSON(code int, v any) error {
	fr.markWritten()
	return fr.ctx.Status(code).JSON(v)
}

func (fr *fiberResponse) String(code int, s string) error {
	fr.markWritten()
	return fr.ctx.Status(code).SendString(s)
}

func (fr *fiberResponse) HTML(code int, html string) error {
	fr.markWritten()
	fr.ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return fr.ctx.Status(code).SendString(html)
}

func (fr *fiberResponse) Blob(code int, contentType string, b []byte) error {
	fr.markWritten()
	fr.ctx.Set(fiber.HeaderContentType, contentType)
	return fr.ctx.Status(code).Send(b)
}

func (fr *fiberResponse) NoContent(code int) error {
	fr.markWritten()
	fr.ctx.Status(code)
	return nil
}

func (fr *fiberResponse) Render(code int, name string, data any) error {
	fr.markWritten()
	fr.ctx.Status(code)
	return fr.ctx.Render(name, data)
}

func (fr *fiberResponse) Redirect(code int, url string) error {
	fr.markWritten()
	return fr.ctx.Redirect(url, code)
}

func (fr *fiberResponse) SetCookie(cookie *http.Cookie) {
	fc := &fiber.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		Domain:   cookie.Domain,
		MaxAge:   cookie.MaxAge,
		Expires:  cookie.Expires,
		Secure:   cookie.Secure,
		HTTPOnly: cookie.HttpOnly,
	}
	switch cookie.SameSite {
	case http.SameSiteStrictMode:
		fc.SameSite = fiber.CookieSameSiteStrictMode
	case http.SameSiteNoneMode:
		fc.SameSite = fiber.CookieSameSiteNoneMode
	default:
		fc.SameSite = fiber.CookieSameSiteLaxMode
	}
	fr.ctx.Cookie(fc)
}

func (fr *fiberResponse) Written() bool {
	written, _ := fr.ctx.Locals(fiberWrittenKey).(bool)
	return written
}

func (fr *fiberResponse) Writer() any {
	return fr.ctx.Response().BodyWriter()
}

package adapters

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/toyz/relay/pkg/relay"
)

// GinDriver implements relay.Driver for Gin. The engine is served through
// an http.Server so Stop can shut it down gracefully.
type GinDriver struct {
	engine *gin.Engine
	server *http.Server
}

// NewGinDriver creates a Gin driver over an existing engine.
func NewGinDriver(g *gin.Engine) *GinDriver {
	return &GinDriver{engine: g}
}

// NewDefaultGinDriver creates a Gin driver with recovery and permissive
// CORS installed.
func NewDefaultGinDriver() *GinDriver {
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(corsMiddleware(cors.AllowAll()))
	return &GinDriver{engine: g}
}

// corsMiddleware adapts an rs/cors instance to Gin. Preflight requests are
// answered directly; everything else continues down the chain with the CORS
// headers applied.
func corsMiddleware(c *cors.Cors) gin.HandlerFunc {
	return func(gc *gin.Context) {
		c.HandlerFunc(gc.Writer, gc.Request)
		if gc.Request.Method == http.MethodOptions &&
			gc.GetHeader("Access-Control-Request-Method") != "" {
			gc.AbortWithStatus(http.StatusNoContent)
			return
		}
		gc.Next()
	}
}

// convertPathToGin converts a relay path to Gin syntax:
// /users/{id:int} -> /users/:id, {*} -> *path.
func convertPathToGin(path relay.Path) string {
	var sb strings.Builder
	for _, part := range path.Parts() {
		switch part.Type {
		case relay.ParameterPart:
			sb.WriteString(":" + part.Value)
		case relay.WildcardPart:
			if !strings.HasSuffix(sb.String(), "/") {
				sb.WriteString("/")
			}
			sb.WriteString("*path")
		default:
			sb.WriteString(part.Value)
		}
	}
	return sb.String()
}

// RegisterRoute registers a composed handler chain with Gin.
func (gd *GinDriver) RegisterRoute(method string, path relay.Path, handler relay.HandlerFunc) {
	gd.engine.Handle(method, convertPathToGin(path), gd.convertHandler(handler))
}

// Use adds a global middleware.
func (gd *GinDriver) Use(mw relay.Middleware) {
	gd.engine.Use(func(c *gin.Context) {
		relayNext := func(relay.Context) error {
			c.Next()
			return nil
		}
		if err := mw(relayNext)(newGinContext(c)); err != nil {
			abortWithError(c, err)
		}
	})
}

// Start serves the engine.
func (gd *GinDriver) Start(addr string) error {
	gd.server = &http.Server{Addr: addr, Handler: gd.engine}
	return gd.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (gd *GinDriver) Stop(ctx context.Context) error {
	if gd.server == nil {
		return nil
	}
	return gd.server.Shutdown(ctx)
}

// Name returns the driver name.
func (gd *GinDriver) Name() string {
	return "Gin"
}

// Engine returns the underlying Gin engine.
func (gd *GinDriver) Engine() *gin.Engine {
	return gd.engine
}

func (gd *GinDriver) convertHandler(handler relay.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := handler(newGinContext(c)); err != nil {
			abortWithError(c, err)
		}
	}
}

// abortWithError maps errors escaping a chain onto a JSON error response.
func abortWithError(c *gin.Context, err error) {
	var httpErr *relay.HttpError
	if errors.As(err, &httpErr) {
		c.AbortWithStatusJSON(httpErr.StatusCode, httpErr)
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// ginContext implements relay.Context for Gin.
type ginContext struct {
	ctx *gin.Context
}

func newGinContext(c *gin.Context) *ginContext {
	return &ginContext{ctx: c}
}

func (gc *ginContext) Method() string {
	return gc.ctx.Request.Method
}

func (gc *ginContext) Path() string {
	return gc.ctx.Request.URL.Path
}

func (gc *ginContext) RealIP() string {
	return gc.ctx.ClientIP()
}

func (gc *ginContext) ContentLength() int64 {
	return gc.ctx.Request.ContentLength
}

func (gc *ginContext) Param(name string) string {
	if name == "*" || name == "path" {
		// Gin exposes the catch-all segment as *path, with a leading slash.
		return strings.TrimPrefix(gc.ctx.Param("path"), "/")
	}
	return gc.ctx.Param(name)
}

func (gc *ginContext) Params() map[string]string {
	params := make(map[string]string, len(gc.ctx.Params))
	for _, p := range gc.ctx.Params {
		params[p.Key] = p.Value
	}
	return params
}

func (gc *ginContext) QueryParam(name string) string {
	return gc.ctx.Query(name)
}

func (gc *ginContext) QueryParams() map[string][]string {
	return gc.ctx.Request.URL.Query()
}

func (gc *ginContext) Header(name string) string {
	return gc.ctx.GetHeader(name)
}

func (gc *ginContext) Headers() map[string][]string {
	return gc.ctx.Request.Header
}

func (gc *ginContext) Cookie(name string) (string, bool) {
	cookie, err := gc.ctx.Request.Cookie(name)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func (gc *ginContext) Cookies() map[string]string {
	cookies := gc.ctx.Request.Cookies()
	result := make(map[string]string, len(cookies))
	for _, c := range cookies {
		result[c.Name] = c.Value
	}
	return result
}

// Bind negotiates the binder from the Content-Type header, matching the
// Echo and Fiber drivers.
func (gc *ginContext) Bind(v any) error {
	return gc.ctx.ShouldBind(v)
}

func (gc *ginContext) FormValue(name string) string {
	return gc.ctx.PostForm(name)
}

func (gc *ginContext) FormFile(name string) (*multipart.FileHeader, error) {
	return gc.ctx.FormFile(name)
}

func (gc *ginContext) FormFiles(name string) ([]*multipart.FileHeader, error) {
	form, err := gc.ctx.MultipartForm()
	if err != nil {
		return nil, err
	}
	return form.File[name], nil
}

func (gc *ginContext) Get(key string) any {
	value, _ := gc.ctx.Get(key)
	return value
}

func (gc *ginContext) Set(key string, value any) {
	gc.ctx.Set(key, value)
	if key != relay.StateKey {
		gc.State()[key] = value
	}
}

// State returns the per-request state bag shared by all wrappers of this
// request.
func (gc *ginContext) State() map[string]any {
	if bag, ok := gc.Get(relay.StateKey).(map[string]any); ok {
		return bag
	}
	bag := make(map[string]any)
	gc.ctx.Set(relay.StateKey, bag)
	return bag
}

func (gc *ginContext) Response() relay.ResponseWriter {
	return &ginResponse{ctx: gc.ctx}
}

func (gc *ginContext) Native() any {
	return gc.ctx
}

// ginResponse implements relay.ResponseWriter for Gin.
type ginResponse struct {
	ctx *gin.Context
}

func (gr *ginResponse) Status() int {
	return gr.ctx.Writer.Status()
}

func (gr *ginResponse) SetStatus(code int) {
	gr.ctx.Status(code)
}

func (gr *ginResponse) Header(name string) string {
	return gr.ctx.Writer.Header().Get(name)
}

func (gr *ginResponse) SetHeader(name, value string) {
	gr.ctx.Header(name, value)
}

func (gr *ginResponse) JSON(code int, v any) error {
	gr.ctx.JSON(code, v)
	return nil
}

func (gr *ginResponse) String(code int, s string) error {
	gr.ctx.String(code, "%s", s)
	return nil
}

func (gr *ginResponse) HTML(code int, html string) error {
	gr.ctx.Data(code, "text/html; charset=utf-8", []byte(html))
	return nil
}

func (gr *ginResponse) Blob(code int, contentType string, b []byte) error {
	gr.ctx.Data(code, contentType, b)
	return nil
}

func (gr *ginResponse) NoContent(code int) error {
	gr.ctx.Status(code)
	return nil
}

func (gr *ginResponse) Render(code int, name string, data any) error {
	gr.ctx.HTML(code, name, data)
	return nil
}

func (gr *ginResponse) Redirect(code int, url string) error {
	gr.ctx.Redirect(code, url)
	return nil
}

func (gr *ginResponse) SetCookie(cookie *http.Cookie) {
	http.SetCookie(gr.ctx.Writer, cookie)
}

func (gr *ginResponse) Written() bool {
	return gr.ctx.Writer.Written()
}

func (gr *ginResponse) Writer() any {
	return gr.ctx.Writer
}

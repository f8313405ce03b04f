package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// fakeContext is an in-memory Context for exercising extraction, dispatch
// and translation without a host framework.
type fakeContext struct {
	method string
	path   string
	ip     string

	params  map[string]string
	query   url.Values
	headers http.Header
	cookies map[string]string
	forms   map[string]string
	files   map[string][]*multipart.FileHeader

	body []byte

	store map[string]any
	resp  *fakeResponse
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		method:  "GET",
		path:    "/",
		params:  map[string]string{},
		query:   url.Values{},
		headers: http.Header{},
		cookies: map[string]string{},
		forms:   map[string]string{},
		files:   map[string][]*multipart.FileHeader{},
		store:   map[string]any{},
		resp:    &fakeResponse{header: http.Header{}},
	}
}

func (f *fakeContext) withBody(v any) *fakeContext {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.body = raw
	return f
}

func (f *fakeContext) Method() string        { return f.method }
func (f *fakeContext) Path() string          { return f.path }
func (f *fakeContext) RealIP() string        { return f.ip }
func (f *fakeContext) ContentLength() int64  { return int64(len(f.body)) }
func (f *fakeContext) Param(n string) string { return f.params[n] }

func (f *fakeContext) Params() map[string]string { return f.params }

func (f *fakeContext) QueryParam(n string) string        { return f.query.Get(n) }
func (f *fakeContext) QueryParams() map[string][]string  { return f.query }
func (f *fakeContext) Header(n string) string            { return f.headers.Get(n) }
func (f *fakeContext) Headers() map[string][]string      { return f.headers }

func (f *fakeContext) Cookie(n string) (string, bool) {
	v, ok := f.cookies[n]
	return v, ok
}

func (f *fakeContext) Cookies() map[string]string { return f.cookies }

func (f *fakeContext) Bind(v any) error {
	if len(f.body) == 0 {
		return io.EOF
	}
	return json.Unmarshal(f.body, v)
}

func (f *fakeContext) FormValue(n string) string { return f.forms[n] }

func (f *fakeContext) FormFile(n string) (*multipart.FileHeader, error) {
	fhs := f.files[n]
	if len(fhs) == 0 {
		return nil, fmt.Errorf("no file %q", n)
	}
	return fhs[0], nil
}

func (f *fakeContext) FormFiles(n string) ([]*multipart.FileHeader, error) {
	return f.files[n], nil
}

func (f *fakeContext) Get(key string) any { return f.store[key] }

func (f *fakeContext) Set(key string, value any) {
	f.store[key] = value
	if key != StateKey {
		f.State()[key] = value
	}
}

func (f *fakeContext) State() map[string]any {
	if bag, ok := f.store[StateKey].(map[string]any); ok {
		return bag
	}
	bag := make(map[string]any)
	f.store[StateKey] = bag
	return bag
}

func (f *fakeContext) Response() ResponseWriter { return f.resp }
func (f *fakeContext) Native() any              { return nil }

// fakeResponse records everything written to it.
type fakeResponse struct {
	status int
	header http.Header

	jsonBody    any
	textBody    string
	blob        []byte
	contentType string

	redirectedTo string
	renderedView string
	renderedData any
	noContent    bool

	cookies []*http.Cookie
	written bool
}

func (r *fakeResponse) Status() int               { return r.status }
func (r *fakeResponse) SetStatus(code int)        { r.status = code }
func (r *fakeResponse) Header(n string) string    { return r.header.Get(n) }
func (r *fakeResponse) SetHeader(n, v string)     { r.header.Set(n, v) }
func (r *fakeResponse) Written() bool             { return r.written }
func (r *fakeResponse) Writer() any               { return nil }
func (r *fakeResponse) SetCookie(c *http.Cookie)  { r.cookies = append(r.cookies, c) }

func (r *fakeResponse) JSON(code int, v any) error {
	r.status, r.jsonBody, r.written = code, v, true
	return nil
}

func (r *fakeResponse) String(code int, s string) error {
	r.status, r.textBody, r.written = code, s, true
	return nil
}

func (r *fakeResponse) HTML(code int, html string) error {
	r.status, r.textBody, r.contentType, r.written = code, html, "text/html", true
	return nil
}

func (r *fakeResponse) Blob(code int, contentType string, b []byte) error {
	r.status, r.blob, r.contentType, r.written = code, b, contentType, true
	return nil
}

func (r *fakeResponse) NoContent(code int) error {
	r.status, r.noContent, r.written = code, true, true
	return nil
}

func (r *fakeResponse) Render(code int, name string, data any) error {
	r.status, r.renderedView, r.renderedData, r.written = code, name, data, true
	return nil
}

func (r *fakeResponse) Redirect(code int, url string) error {
	r.status, r.redirectedTo, r.written = code, url, true
	return nil
}

// fakeDriver records registered routes for mount tests.
type fakeDriver struct {
	routes []fakeRoute
	mws    []Middleware
}

type fakeRoute struct {
	method  string
	path    string
	handler HandlerFunc
}

func (d *fakeDriver) RegisterRoute(method string, path Path, handler HandlerFunc) {
	d.routes = append(d.routes, fakeRoute{method: method, path: path.Raw(), handler: handler})
}

func (d *fakeDriver) Use(mw Middleware)         { d.mws = append(d.mws, mw) }
func (d *fakeDriver) Start(string) error        { return nil }
func (d *fakeDriver) Stop(context.Context) error { return nil }
func (d *fakeDriver) Name() string              { return "Fake" }

// route finds a registered route by method and path.
func (d *fakeDriver) route(method, path string) (fakeRoute, bool) {
	for _, r := range d.routes {
		if r.method == method && r.path == path {
			return r, true
		}
	}
	return fakeRoute{}, false
}

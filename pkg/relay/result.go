package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/toyz/relay/internal/pattern"
)

// Null is the sentinel an action returns to respond with an explicit null
// body. A plain nil result means "no result" and triggers the not-found
// default instead.
var Null = &nullBody{}

type nullBody struct{}

// Translator maps action results and errors into response mutations. It
// never terminates the chain itself: the continuation is always invoked so
// declared after-middlewares still run.
type Translator struct {
	handleErrors bool
	logger       *zap.Logger
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithoutErrorHandling makes Failure propagate errors upward instead of
// writing a response, so an external error handler can take over.
func WithoutErrorHandling() TranslatorOption {
	return func(t *Translator) { t.handleErrors = false }
}

// WithTranslatorLogger sets the logger used for translated errors.
func WithTranslatorLogger(logger *zap.Logger) TranslatorOption {
	return func(t *Translator) { t.logger = logger }
}

// NewTranslator creates a translator with default error handling enabled.
func NewTranslator(opts ...TranslatorOption) *Translator {
	t := &Translator{
		handleErrors: true,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Success translates a successful action result into a response, then
// invokes next.
func (t *Translator) Success(c Context, a *Action, result any, next HandlerFunc) error {
	if next == nil {
		next = func(Context) error { return nil }
	}
	res := c.Response()

	// The handler already wrote the response itself. Drivers may hand out a
	// fresh ResponseWriter wrapper per call, so the writer is detected by
	// type rather than identity.
	if _, ok := result.(ResponseWriter); ok {
		return next(c)
	}
	if result == any(c) || (c.Native() != nil && result == c.Native()) {
		return next(c)
	}

	if a.Transform != nil {
		transformed, err := a.Transform(result)
		if err != nil {
			return t.Failure(c, a, err, next)
		}
		result = transformed
	}

	applyActionHeaders(res, a)

	if a.RedirectTo != "" {
		target, err := redirectTarget(a, result)
		if err != nil {
			return t.Failure(c, a, err, next)
		}
		code := a.SuccessCode
		if code < http.StatusMultipleChoices || code >= http.StatusBadRequest {
			code = http.StatusFound
		}
		if err := res.Redirect(code, target); err != nil {
			return err
		}
		return next(c)
	}

	if a.RenderView != "" {
		if err := res.Render(successCode(a, http.StatusOK), a.RenderView, renderData(result)); err != nil {
			return err
		}
		return next(c)
	}

	if err := t.writeBody(c, a, result); err != nil {
		return err
	}
	return next(c)
}

func (t *Translator) writeBody(c Context, a *Action, result any) error {
	res := c.Response()

	if result == nil {
		if a.NilError != nil {
			return t.failureBody(c, a, a.NilError)
		}
		if !a.AllowNil {
			return t.failureBody(c, a, ErrNotFound("Not Found"))
		}
		code := a.NilCode
		if code == 0 {
			code = successCode(a, http.StatusNoContent)
		}
		return res.NoContent(code)
	}

	if result == Null {
		if a.NullError != nil {
			return t.failureBody(c, a, a.NullError)
		}
		code := a.NullCode
		if code == 0 {
			code = successCode(a, http.StatusNoContent)
		}
		if code == http.StatusNoContent {
			return res.NoContent(code)
		}
		return res.JSON(code, nil)
	}

	code := successCode(a, http.StatusOK)
	switch v := result.(type) {
	case []byte:
		contentType := "application/octet-stream"
		if a.JSON {
			contentType = "application/json"
		}
		return res.Blob(code, contentType, v)
	case string:
		if a.JSON {
			return res.JSON(code, v)
		}
		return res.String(code, v)
	default:
		if a.JSON {
			return res.JSON(code, v)
		}
		return res.String(code, fmt.Sprintf("%v", v))
	}
}

// Failure translates an error into a response, then invokes next. When
// default error handling is disabled the error is returned unwritten so an
// outer handler can deal with it.
func (t *Translator) Failure(c Context, a *Action, err error, next HandlerFunc) error {
	if !t.handleErrors {
		return err
	}
	if writeErr := t.failureBody(c, a, err); writeErr != nil {
		return writeErr
	}
	if next != nil {
		return next(c)
	}
	return nil
}

func (t *Translator) failureBody(c Context, a *Action, err error) error {
	res := c.Response()
	if a != nil {
		applyActionHeaders(res, a)
	}

	var httpErr *HttpError
	if !errors.As(err, &httpErr) {
		httpErr = ErrInternalServerError(err.Error())
		t.logger.Error("unhandled action error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}

	if a == nil || a.JSON {
		return res.JSON(httpErr.StatusCode, httpErr)
	}
	return res.String(httpErr.StatusCode, httpErr.Error())
}

func successCode(a *Action, fallback int) int {
	if a.SuccessCode > 0 {
		return a.SuccessCode
	}
	return fallback
}

func applyActionHeaders(res ResponseWriter, a *Action) {
	for name, value := range a.Headers {
		res.SetHeader(name, value)
	}
}

// redirectTarget resolves the redirect location from the action result: a
// string result is used directly, a structured result is interpolated into
// the configured template, anything else falls back to the static target.
func redirectTarget(a *Action, result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return a.RedirectTo, nil
	case string:
		return v, nil
	default:
		values, err := toFieldMap(v)
		if err != nil {
			return a.RedirectTo, nil
		}
		return pattern.Expand(a.RedirectTo, values)
	}
}

// renderData normalizes an action result into a template context. Results
// that are not objects render with an empty context.
func renderData(result any) map[string]any {
	if m, ok := result.(map[string]any); ok {
		return m
	}
	m, err := toFieldMap(result)
	if err != nil {
		return map[string]any{}
	}
	return m
}

// toFieldMap flattens a struct or map result into a name/value map through
// its JSON representation, honoring json tags.
func toFieldMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

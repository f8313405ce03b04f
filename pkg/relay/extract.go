package relay

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// bodyValidator validates typed bodies bound with WithValidation.
var bodyValidator = validator.New(validator.WithRequiredStructEnabled())

// Extract resolves the value for one parameter descriptor from the request
// context. It does not mutate the request. Absent optional values yield nil
// (or an empty map for the all-of-a-kind variants) rather than an error;
// required-ness is enforced by the dispatcher after extraction.
func Extract(c Context, p Param) (any, error) {
	value, err := extractRaw(c, p)
	if err != nil {
		return nil, err
	}
	if value != nil && p.Options.Transform != nil {
		value, err = p.Options.Transform(value)
		if err != nil {
			return nil, fmt.Errorf("relay: transform %s parameter %q: %w", p.Kind, p.Name, err)
		}
	}
	return value, nil
}

func extractRaw(c Context, p Param) (any, error) {
	switch p.Kind {
	case KindBody:
		if p.Options.New != nil {
			return bindTypedBody(c, p)
		}
		return parsedBody(c)

	case KindBodyField:
		body, err := parsedBody(c)
		if err != nil {
			return nil, err
		}
		fields, ok := body.(map[string]any)
		if !ok {
			return nil, nil
		}
		return fields[p.Name], nil

	case KindPathParam:
		raw := c.Param(p.Name)
		if raw == "" {
			return nil, nil
		}
		return convertParam(raw, p.Options.Type)

	case KindPathParams:
		return c.Params(), nil

	case KindSession:
		return c.Get(SessionKey), nil

	case KindSessionField:
		session, ok := c.Get(SessionKey).(map[string]any)
		if !ok {
			return nil, nil
		}
		return session[p.Name], nil

	case KindState:
		if p.Name == "" {
			return c.State(), nil
		}
		return c.Get(p.Name), nil

	case KindQuery:
		raw := c.QueryParam(p.Name)
		if raw == "" {
			return nil, nil
		}
		return convertParam(raw, p.Options.Type)

	case KindQueries:
		return NewQueryMap(c), nil

	case KindFile:
		if fh := c.Get(fileKey(p.Name)); fh != nil {
			return fh, nil
		}
		fh, err := c.FormFile(p.Name)
		if err != nil {
			return nil, nil
		}
		return fh, nil

	case KindFiles:
		if fhs := c.Get(fileKey(p.Name)); fhs != nil {
			return fhs, nil
		}
		fhs, err := c.FormFiles(p.Name)
		if err != nil || len(fhs) == 0 {
			return nil, nil
		}
		return fhs, nil

	case KindHeader:
		raw := c.Header(p.Name)
		if raw == "" {
			return nil, nil
		}
		return raw, nil

	case KindHeaders:
		return c.Headers(), nil

	case KindCookie:
		value, ok := c.Cookie(p.Name)
		if !ok {
			return nil, nil
		}
		return value, nil

	case KindCookies:
		return c.Cookies(), nil

	default:
		// Builders reject unknown kinds, so this only fires for descriptors
		// constructed by hand.
		return nil, errUnknownParamKind(p.Kind)
	}
}

// parsedBody decodes the request body once per request and caches the
// result in the context store. An absent body yields nil.
func parsedBody(c Context) (any, error) {
	if cached := c.Get(parsedBodyKey); cached != nil {
		return cached, nil
	}
	if c.ContentLength() == 0 {
		return nil, nil
	}

	var body any
	if err := c.Bind(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, ErrBadRequest(fmt.Sprintf("cannot parse request body: %v", err))
	}
	if body != nil {
		c.Set(parsedBodyKey, body)
	}
	return body, nil
}

func bindTypedBody(c Context, p Param) (any, error) {
	if c.ContentLength() == 0 {
		return nil, nil
	}
	target := p.Options.New()
	if err := c.Bind(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, ErrBadRequest(fmt.Sprintf("cannot parse request body: %v", err))
	}
	if p.Options.Validate {
		if err := bodyValidator.Struct(target); err != nil {
			return nil, ErrUnprocessableEntityWithDetails("body validation failed", err.Error())
		}
	}
	return target, nil
}

// convertParam converts a raw string parameter according to its declared
// type. Untyped and string parameters pass through unchanged.
func convertParam(raw, typeName string) (any, error) {
	switch typeName {
	case "", "string":
		return raw, nil
	case "int":
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, ErrBadRequest(fmt.Sprintf("invalid int parameter %q", raw))
		}
		return v, nil
	case "int64":
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, ErrBadRequest(fmt.Sprintf("invalid int64 parameter %q", raw))
		}
		return v, nil
	case "float64":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, ErrBadRequest(fmt.Sprintf("invalid float64 parameter %q", raw))
		}
		return v, nil
	case "float32":
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, ErrBadRequest(fmt.Sprintf("invalid float32 parameter %q", raw))
		}
		return float32(v), nil
	case "bool":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, ErrBadRequest(fmt.Sprintf("invalid bool parameter %q", raw))
		}
		return v, nil
	case "uuid":
		v, err := uuid.Parse(raw)
		if err != nil {
			return nil, ErrBadRequest(fmt.Sprintf("invalid uuid parameter %q", raw))
		}
		return v, nil
	default:
		return nil, fmt.Errorf("relay: unknown parameter type %q", typeName)
	}
}

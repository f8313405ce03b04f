package relay

import (
	"fmt"

	"go.uber.org/zap"
)

// AuthorizationChecker decides whether the current request may run an
// authorized action. roles is the action's declared required-roles list,
// possibly empty.
type AuthorizationChecker func(c Context, roles []string) (bool, error)

// UploadFactory builds the upload middleware instances attached to actions
// with file parameters.
type UploadFactory interface {
	Single(field string, opts UploadOptions) Middleware
	Multi(field string, opts UploadOptions) Middleware
}

// Dispatcher turns registered action descriptors into framework routes. For
// each action it composes the fixed middleware chain
//
//	guard -> before -> authorization -> uploads -> invoke -> after
//
// and registers the composed handler with a Driver. The after-middlewares
// run as the translator's continuation, so they execute for error responses
// too.
type Dispatcher struct {
	registry   *Registry
	translator *Translator
	auth       AuthorizationChecker
	uploads    UploadFactory
	logger     *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAuthorizationChecker installs the predicate consulted for authorized
// actions. Mounting an authorized action without a checker makes every
// request to it fail with a configuration error.
func WithAuthorizationChecker(fn AuthorizationChecker) DispatcherOption {
	return func(d *Dispatcher) { d.auth = fn }
}

// WithUploadFactory replaces the default multipart upload middleware.
func WithUploadFactory(f UploadFactory) DispatcherOption {
	return func(d *Dispatcher) { d.uploads = f }
}

// WithTranslator replaces the default translator.
func WithTranslator(t *Translator) DispatcherOption {
	return func(d *Dispatcher) { d.translator = t }
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
		if d.translator != nil {
			d.translator.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher over the given registry. A nil
// registry selects DefaultRegistry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	if registry == nil {
		registry = DefaultRegistry
	}
	d := &Dispatcher{
		registry:   registry,
		translator: NewTranslator(),
		uploads:    multipartUploads{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mount freezes the registry and registers every action with the driver.
// Unknown middleware names are configuration errors and abort the mount.
func (d *Dispatcher) Mount(drv Driver) error {
	d.registry.Freeze()

	for _, a := range d.registry.Actions() {
		chain, err := d.buildChain(a)
		if err != nil {
			return err
		}
		path := Path(normalizePath(string(a.Path)))
		drv.RegisterRoute(a.Method, path, chain)
		d.logger.Info("route mounted",
			zap.String("driver", drv.Name()),
			zap.String("method", a.Method),
			zap.String("path", path.Raw()),
			zap.String("action", a.Name))
	}
	return nil
}

func (d *Dispatcher) buildChain(a *Action) (HandlerFunc, error) {
	before, err := d.resolveMiddlewares(a, a.Before)
	if err != nil {
		return nil, err
	}
	after, err := d.resolveMiddlewares(a, a.After)
	if err != nil {
		return nil, err
	}

	// After-middlewares become the continuation the translator invokes once
	// the response is settled.
	tail := compose(after, func(Context) error { return nil })

	h := d.invokeHandler(a, tail)
	h = compose(d.uploadMiddlewares(a), h)
	if a.Authorize {
		h = d.authorizeHandler(a, tail, h)
	}
	h = compose(before, h)
	return dispatchGuard(h), nil
}

func (d *Dispatcher) resolveMiddlewares(a *Action, names []string) ([]Middleware, error) {
	if len(names) == 0 {
		return nil, nil
	}
	mws := make([]Middleware, 0, len(names))
	for _, name := range names {
		mw, ok := d.registry.Middleware(name)
		if !ok {
			return nil, fmt.Errorf("action %s %s: %w", a.Method, a.Path, errUnknownMiddleware(name))
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

func (d *Dispatcher) uploadMiddlewares(a *Action) []Middleware {
	var mws []Middleware
	for _, p := range a.Params {
		switch p.Kind {
		case KindFile:
			mws = append(mws, d.uploads.Single(p.Name, p.Options.Upload))
		case KindFiles:
			mws = append(mws, d.uploads.Multi(p.Name, p.Options.Upload))
		}
	}
	return mws
}

// invokeHandler resolves the action parameters, calls the user handler and
// routes its outcome through the translator.
func (d *Dispatcher) invokeHandler(a *Action, tail HandlerFunc) HandlerFunc {
	return func(c Context) error {
		args, err := d.resolveParams(c, a)
		if err != nil {
			return d.translator.Failure(c, a, err, tail)
		}

		result, err := a.Handler(c, args)
		if err != nil {
			return d.translator.Failure(c, a, err, tail)
		}
		return d.translator.Success(c, a, result, tail)
	}
}

func (d *Dispatcher) resolveParams(c Context, a *Action) ([]any, error) {
	if len(a.Params) == 0 {
		return nil, nil
	}
	args := make([]any, len(a.Params))
	for i, p := range a.Params {
		value, err := Extract(c, p)
		if err != nil {
			return nil, err
		}
		if value == nil && p.Options.Required {
			return nil, ErrBadRequest(fmt.Sprintf("missing required %s parameter %q", p.Kind, p.Name))
		}
		args[i] = value
	}
	return args, nil
}

// authorizeHandler runs the authorization check before the wrapped handler.
// Denials and checker failures are routed through the translator; the
// action never runs. A missing checker is a configuration error surfaced on
// every request rather than a silent allow.
func (d *Dispatcher) authorizeHandler(a *Action, tail, next HandlerFunc) HandlerFunc {
	return func(c Context) error {
		if d.auth == nil {
			return d.translator.Failure(c, a, ErrAuthorizationCheckerMissing, tail)
		}

		allowed, err := d.auth(c, a.Roles)
		if err != nil {
			return d.translator.Failure(c, a, err, tail)
		}
		if !allowed {
			if len(a.Roles) == 0 {
				return d.translator.Failure(c, a, authorizationRequired(), tail)
			}
			return d.translator.Failure(c, a, accessDenied(), tail)
		}
		return next(c)
	}
}

// dispatchGuard ensures at most one action executes per physical request
// when several registered routes match it. The flag travels on the request
// context and is set exactly once.
func dispatchGuard(next HandlerFunc) HandlerFunc {
	return func(c Context) error {
		if started, _ := c.Get(dispatchedKey).(bool); started {
			return nil
		}
		c.Set(dispatchedKey, true)
		return next(c)
	}
}

// compose wraps h with mws so that mws[0] runs first.
func compose(mws []Middleware, h HandlerFunc) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// multipartUploads is the default UploadFactory. It reads files from the
// request's multipart form and stashes them in the context store for the
// extractor, enforcing the declared size limits.
type multipartUploads struct{}

func (multipartUploads) Single(field string, opts UploadOptions) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			fh, err := c.FormFile(field)
			if err != nil {
				return next(c)
			}
			if opts.MaxSize > 0 && fh.Size > opts.MaxSize {
				return ErrPayloadTooLarge(fmt.Sprintf("file %q exceeds the %d byte limit", field, opts.MaxSize))
			}
			c.Set(fileKey(field), fh)
			return next(c)
		}
	}
}

func (multipartUploads) Multi(field string, opts UploadOptions) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			fhs, err := c.FormFiles(field)
			if err != nil || len(fhs) == 0 {
				return next(c)
			}
			if opts.MaxFiles > 0 && len(fhs) > opts.MaxFiles {
				return ErrBadRequest(fmt.Sprintf("field %q accepts at most %d files", field, opts.MaxFiles))
			}
			for _, fh := range fhs {
				if opts.MaxSize > 0 && fh.Size > opts.MaxSize {
					return ErrPayloadTooLarge(fmt.Sprintf("file %q exceeds the %d byte limit", field, opts.MaxSize))
				}
			}
			c.Set(fileKey(field), fhs)
			return next(c)
		}
	}
}

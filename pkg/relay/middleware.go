package relay

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request an identifier, honoring one supplied by
// the client. The identifier is stored under RequestIDKey and echoed in the
// response headers.
func RequestID() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			id := c.Header(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(RequestIDKey, id)
			c.Response().SetHeader(requestIDHeader, id)
			return next(c)
		}
	}
}

// RequestLogger logs one line per request with method, path, status and
// duration. Pairs with RequestID when both are installed.
func RequestLogger(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			err := next(c)

			fields := []zap.Field{
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", c.RealIP()),
			}
			if id, ok := c.Get(RequestIDKey).(string); ok {
				fields = append(fields, zap.String("request_id", id))
			}
			if err != nil {
				logger.Error("request failed", append(fields, zap.Error(err))...)
			} else {
				logger.Info("request handled", fields...)
			}
			return err
		}
	}
}

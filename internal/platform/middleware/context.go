// Package middleware provides context-key helpers and Echo middleware,
// adapted from go-core/middleware/context.go and null_to_empty.go.
package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	// ScanIdKey is the context key for the scan a request is scoped to.
	ScanIdKey contextKey = "scan_id"
	// RequestIDKey is the context key for the inbound request id.
	RequestIDKey contextKey = "request_id"

	requestIDHeader = "X-Request-Id"
)

// WithScanId returns a new context carrying the scan id.
func WithScanId(ctx context.Context, scanId string) context.Context {
	return context.WithValue(ctx, ScanIdKey, scanId)
}

// GetScanId extracts the scan id from the context.
func GetScanId(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ScanIdKey).(string)
	return v, ok
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts the request id from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(RequestIDKey).(string)
	return v, ok
}

// RequestScope is an Echo middleware that stamps every request's context
// with a request id (reusing an inbound X-Request-Id header when present)
// and, for routes with a :scanId path parameter, the scan it's scoped to.
// Handlers and loggers downstream read both back via GetRequestID/GetScanId
// instead of re-parsing the echo.Context.
func RequestScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Response().Header().Set(requestIDHeader, reqID)

			ctx := withRequestID(c.Request().Context(), reqID)
			if scanId := c.Param("scanId"); scanId != "" {
				ctx = WithScanId(ctx, scanId)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

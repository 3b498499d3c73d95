package middleware

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ltfawg/subscribe-api/internal/clientip"
)

// ClientAddress resolves the originating client address once per request and
// stores it under key for the rate limiter, the handler and the audit log.
func ClientAddress(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, span := tracer.Start(c.Request().Context(), "ClientAddress")

			addr := clientip.Resolve(c.Request())
			c.Set(key, addr)

			span.SetAttributes(attribute.String("client.address", addr))
			span.SetStatus(codes.Ok, "resolved client address")
			span.End()
			return next(c)
		}
	}
}

// GetClientAddress returns the address stored by ClientAddress, resolving it
// directly when the middleware did not run.
func GetClientAddress(c echo.Context) string {
	if addr, ok := c.Get(KeyClientAddress).(string); ok {
		return addr
	}
	return clientip.Resolve(c.Request())
}

package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Received stamps each request with its arrival time so later stages can
// report how long a signup took.
func Received() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(KeyReceived, time.Now())
			return next(c)
		}
	}
}

// Elapsed is the time since Received ran, or zero when it did not.
func Elapsed(c echo.Context) time.Duration {
	received, ok := c.Get(KeyReceived).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(received)
}

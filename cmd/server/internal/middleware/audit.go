package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/ltfawg/subscribe-api/internal/audit"
	"github.com/ltfawg/subscribe-api/internal/types"
)

// SetOutcome records the terminal outcome of a signup for Audit.
func SetOutcome(c echo.Context, kind types.SignupErrorKind) {
	c.Set(KeyOutcome, kind)
}

// Audit emits one audit event after the handler chain has produced a response
// carrying an outcome. Requests without an outcome are not audited.
func Audit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			kind, ok := c.Get(KeyOutcome).(types.SignupErrorKind)
			if !ok {
				return err
			}

			redirect, _ := c.Get(KeyRedirect).(string)
			audit.LogSignup(kind, c.Response().Status, GetClientAddress(c), redirect, Elapsed(c))

			return err
		}
	}
}

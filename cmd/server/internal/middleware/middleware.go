package middleware

import (
	"go.opentelemetry.io/otel"
)

const name string = "github.com/ltfawg/subscribe-api/server/middleware"

var tracer = otel.Tracer(name)

// Context keys shared between middleware and handlers.
const (
	KeyReceived      = "received"
	KeyClientAddress = "client_address"
	KeyOutcome       = "signup.outcome"
	KeyRedirect      = "signup.redirect"
)

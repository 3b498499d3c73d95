package sendy

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/ltfawg/subscribe-api/internal/types"
)

var tracer = otel.Tracer("github.com/ltfawg/subscribe-api/internal/sendy")

//go:generate mockgen -destination ./mock/mock.go -package mock . Subscriber

// Subscriber adds one address to the configured mailing list.
type Subscriber interface {
	Subscribe(ctx context.Context, req Request) (types.SubscriptionOutcome, error)
}

// Request is everything taken from the inbound submission. The list identifier
// is deliberately absent: it only ever comes from server config.
type Request struct {
	Email        string
	Name         string
	CaptchaToken string
	IPAddress    string
	Referrer     string
}

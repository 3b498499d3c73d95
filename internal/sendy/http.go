package sendy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ltfawg/subscribe-api/internal/types"
)

// Ensure HTTPSubscriber implements Subscriber interface.
var _ Subscriber = (*HTTPSubscriber)(nil)

const maxResponseBytes = 1 << 20

type HTTPSubscriber struct {
	client    *http.Client
	endpoint  string
	listID    string
	apiKey    string
	userAgent string
}

type Options struct {
	Endpoint     string
	ListID       string
	APIKey       string
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
}

// NewHTTPClient builds the client used for the subscribe call: bounded by
// timeout, following at most maxRedirects hops, with default TLS verification.
func NewHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone()),
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

func NewHTTPSubscriber(opts Options) *HTTPSubscriber {
	return NewHTTPSubscriberFromClient(NewHTTPClient(opts.Timeout, opts.MaxRedirects), opts)
}

func NewHTTPSubscriberFromClient(client *http.Client, opts Options) *HTTPSubscriber {
	return &HTTPSubscriber{
		client:    client,
		endpoint:  opts.Endpoint,
		listID:    opts.ListID,
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
	}
}

func (s *HTTPSubscriber) form(req Request) url.Values {
	form := url.Values{}
	form.Set("email", req.Email)
	form.Set("name", req.Name)
	form.Set("list", s.listID)
	form.Set("subform", "yes")
	if req.CaptchaToken != "" {
		form.Set("h-captcha-response", req.CaptchaToken)
	}
	form.Set("ipaddress", req.IPAddress)
	form.Set("referrer", req.Referrer)
	if s.apiKey != "" {
		form.Set("api_key", s.apiKey)
	}
	return form
}

// Subscribe makes exactly one POST to the mailing-list endpoint. Any transport
// error is wrapped in types.ErrTransport and is never retried.
func (s *HTTPSubscriber) Subscribe(
	ctx context.Context,
	req Request,
) (types.SubscriptionOutcome, error) {
	ctx, span := tracer.Start(ctx, "HTTPSubscriber.Subscribe", trace.WithAttributes(
		attribute.String("endpoint", s.endpoint),
		attribute.String("list", s.listID),
	))
	defer span.End()

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.endpoint,
		strings.NewReader(s.form(req).Encode()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct request")
		return types.SubscriptionOutcome{}, fmt.Errorf("%w: %w", types.ErrTransport, err)
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set("Accept", "text/plain,*/*;q=0.8")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Pragma", "no-cache")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach mailing list")
		return types.SubscriptionOutcome{}, fmt.Errorf("%w: %w", types.ErrTransport, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read response body")
		return types.SubscriptionOutcome{}, fmt.Errorf("%w: %w", types.ErrTransport, err)
	}

	outcome := types.ParseSubscriptionOutcome(string(body))
	span.SetAttributes(
		attribute.Bool("success", outcome.IsSuccess),
		attribute.Bool("already_subscribed", outcome.IsAlreadySubscribed),
		attribute.Bool("html", outcome.IsHTMLError),
	)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "mailing list responded")
	return outcome, nil
}

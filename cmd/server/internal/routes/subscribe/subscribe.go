package subscribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	servermiddleware "github.com/ltfawg/subscribe-api/cmd/server/internal/middleware"
	"github.com/ltfawg/subscribe-api/cmd/server/internal/response"
	"github.com/ltfawg/subscribe-api/internal/config"
	"github.com/ltfawg/subscribe-api/internal/hcaptcha"
	"github.com/ltfawg/subscribe-api/internal/sendy"
	"github.com/ltfawg/subscribe-api/internal/types"
	"github.com/ltfawg/subscribe-api/internal/validator"
)

const name = "github.com/ltfawg/subscribe-api/server/routes/subscribe"

const (
	// maxBodySize bounds signup posts; the form is a handful of short fields.
	maxBodySize   = "64K"
	maxFormMemory = 64 << 10
)

var (
	tracer = otel.Tracer(name)
	meter  = otel.Meter(name)
)

type Handler struct {
	subscriber sendy.Subscriber
	// nil unless hcaptcha.verify is enabled
	verifier  hcaptcha.Verifier
	redirects RedirectPolicy
	validate  validator.CustomValidator
	outcomes  metric.Int64Counter
}

func NewHandler(
	cfg *config.Config,
	subscriber sendy.Subscriber,
	verifier hcaptcha.Verifier,
) (*Handler, error) {
	outcomes, err := meter.Int64Counter(
		"signup.outcomes",
		metric.WithDescription("Terminal outcomes of signup requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outcome counter: %w", err)
	}

	return &Handler{
		subscriber: subscriber,
		verifier:   verifier,
		redirects: RedirectPolicy{
			Default: cfg.Redirects.Default,
			Allowed: cfg.Redirects.Allowed,
		},
		validate: validator.Create(),
		outcomes: outcomes,
	}, nil
}

// AddRoutes mounts the signup endpoint. Every method is routed to the handler
// so that it answers non-POST requests itself; the body limit applies to POST only.
func (h *Handler) AddRoutes(e *echo.Echo, mws ...echo.MiddlewareFunc) {
	mws = append([]echo.MiddlewareFunc{
		servermiddleware.Audit(),
		middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
			Skipper: func(c echo.Context) bool { return c.Request().Method != http.MethodPost },
			Limit:   maxBodySize,
		}),
	}, mws...)
	e.Any("/subscribe/", h.Subscribe, mws...)
}

func (h *Handler) record(ctx context.Context, c echo.Context, kind types.SignupErrorKind) {
	servermiddleware.SetOutcome(c, kind)
	h.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

// reject turns a signup error into its terminal response.
func (h *Handler) reject(ctx context.Context, c echo.Context, err *types.SignupError) error {
	h.record(ctx, c, err.Kind)

	switch err.Kind {
	case types.KindMethodNotAllowed:
		return response.MethodNotAllowed(c)
	case types.KindSpamDetected:
		return response.BadRequest(c)
	case types.KindInvalidEmail:
		return response.ErrorPage(c, response.MsgInvalidEmail)
	case types.KindMissingCaptcha:
		return response.ErrorPage(c, response.MsgMissingCaptcha)
	case types.KindCaptchaRejected:
		return response.ErrorPage(c, response.MsgCaptchaRejected)
	case types.KindTransportFailure:
		return response.ErrorPage(c, response.MsgNetworkError)
	default:
		return response.BadRequest(c)
	}
}

func (h *Handler) Subscribe(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Subscribe")
	defer span.End()

	fail := func(err *types.SignupError, msg string) error {
		span.SetAttributes(attribute.String("signup.outcome", string(err.Kind)))
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return h.reject(ctx, c, err)
	}

	if c.Request().Method != http.MethodPost {
		return fail(types.NewSignupError(types.KindMethodNotAllowed, nil), "method not allowed")
	}

	// only urlencoded and multipart bodies populate PostForm; the query string
	// and any other body type are never read
	req := c.Request()
	if err := req.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		span.AddEvent("failed to parse form body", trace.WithAttributes(attribute.String("error", err.Error())))
	}

	for _, field := range types.HoneypotFields {
		if req.PostForm.Get(field) != "" {
			return fail(types.NewSignupError(types.KindSpamDetected, nil), "honeypot field set")
		}
	}

	sub := types.SubmissionFromForm(req.PostForm)
	sub.Normalize()

	if err := h.validate.Var(sub.Email, "required,email"); err != nil {
		return fail(types.NewSignupError(types.KindInvalidEmail, err), "invalid email")
	}

	if sub.CaptchaToken == "" {
		return fail(types.NewSignupError(types.KindMissingCaptcha, nil), "missing captcha token")
	}

	sub.ClientAddress = servermiddleware.GetClientAddress(c)
	sub.Referrer = c.Request().Referer()

	span.SetAttributes(
		attribute.String("client.address", sub.ClientAddress),
		attribute.Bool("captcha.verify", h.verifier != nil),
	)

	// tokens are single use, so a token spent on siteverify is not forwarded
	forwardToken := sub.CaptchaToken
	if h.verifier != nil {
		forwardToken = ""
		if err := h.verifier.Verify(ctx, sub.CaptchaToken, sub.ClientAddress); err != nil {
			kind := types.KindCaptchaRejected
			if !errors.Is(err, hcaptcha.ErrRejected) {
				kind = types.KindTransportFailure
			}
			return fail(types.NewSignupError(kind, err), "captcha verification failed")
		}
	}

	outcome, err := h.subscriber.Subscribe(ctx, sendy.Request{
		Email:        sub.Email,
		Name:         sub.DisplayName(),
		CaptchaToken: forwardToken,
		IPAddress:    sub.ClientAddress,
		Referrer:     sub.Referrer,
	})
	if err != nil {
		return fail(types.NewSignupError(types.KindTransportFailure, err), "mailing list unreachable")
	}

	target := h.redirects.Sanitize(sub.Redirect)
	c.Set(servermiddleware.KeyRedirect, target)
	span.SetAttributes(attribute.String("redirect", target))

	switch {
	case outcome.IsSuccess:
		h.record(ctx, c, types.OutcomeSubscribed)
		span.SetStatus(codes.Ok, "subscribed")
		return response.SeeOther(c, target)
	case outcome.IsAlreadySubscribed:
		h.record(ctx, c, types.OutcomeAlreadySubscribed)
		span.SetStatus(codes.Ok, "already subscribed")
		return response.SeeOther(c, target+alreadySubscribedQuery)
	case outcome.IsHTMLError:
		h.record(ctx, c, types.KindUpstreamRejected)
		span.SetStatus(codes.Error, "mailing list returned html error")
		return response.PassthroughHTML(c, outcome.RawResponseBody)
	default:
		h.record(ctx, c, types.KindUpstreamRejected)
		span.SetStatus(codes.Error, "mailing list rejected subscription")
		return response.SubscriptionFailed(c, outcome.RawResponseBody)
	}
}

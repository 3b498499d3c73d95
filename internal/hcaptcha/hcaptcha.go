// Package hcaptcha verifies captcha tokens against the hCaptcha siteverify API.
//
// The signup handler only uses it when hcaptcha.verify is enabled; otherwise the
// token is forwarded to the mailing-list API untouched.
package hcaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ltfawg/subscribe-api/internal/logger"
)

var tracer = otel.Tracer("github.com/ltfawg/subscribe-api/internal/hcaptcha")

var ErrRejected = errors.New("captcha token rejected")

type Verifier interface {
	Verify(ctx context.Context, token string, remoteIP string) error
}

type siteverifyResponse struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Ensure Client implements Verifier interface.
var _ Verifier = (*Client)(nil)

type Client struct {
	client    *retryablehttp.Client
	verifyURL string
	secret    string
}

func NewClient(verifyURL, secret string, retryMax int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.HTTPClient.Transport = otelhttp.NewTransport(rc.HTTPClient.Transport)
	rc.Logger = logger.Logger
	rc.CheckRetry = retryUnanswered

	return &Client{
		client:    rc,
		verifyURL: verifyURL,
		secret:    secret,
	}
}

// retryUnanswered retries only requests that got no response. Once siteverify
// has answered, the token is spent and a retry would be rejected.
func retryUnanswered(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *Client) Verify(ctx context.Context, token string, remoteIP string) error {
	ctx, span := tracer.Start(ctx, "Client.Verify")
	defer span.End()

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := retryablehttp.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.verifyURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct request")
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to call siteverify")
		return fmt.Errorf("siteverify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("invalid status code: %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid status code")
		return err
	}

	var result siteverifyResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode siteverify response")
		return fmt.Errorf("failed to decode siteverify response: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.StringSlice("error_codes", result.ErrorCodes),
	)

	if !result.Success {
		err = fmt.Errorf("%w: %s", ErrRejected, strings.Join(result.ErrorCodes, ","))
		span.RecordError(err)
		span.SetStatus(codes.Error, "token rejected")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "token verified")
	return nil
}

package sendy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ltfawg/subscribe-api/internal/sendy"
	"github.com/ltfawg/subscribe-api/internal/types"
)

func options(endpoint string) sendy.Options {
	return sendy.Options{
		Endpoint:     endpoint,
		ListID:       "configured-list",
		APIKey:       "key",
		UserAgent:    "LTFAGW-Subscribe-Handler",
		Timeout:      2 * time.Second,
		MaxRedirects: 5,
	}
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	var form url.Values
	var header http.Header
	body := "true"

	e := echo.New()
	e.POST("/subscribe", func(c echo.Context) error {
		header = c.Request().Header.Clone()
		params, err := c.FormParams()
		if err != nil {
			return err
		}
		form = params
		return c.String(http.StatusOK, body)
	})
	server := httptest.NewServer(e)
	defer server.Close()

	subscriber := sendy.NewHTTPSubscriber(options(server.URL + "/subscribe"))

	t.Run("FormFields", func(t *testing.T) {
		outcome, err := subscriber.Subscribe(ctx, sendy.Request{
			Email:        "someone@example.com",
			Name:         "Some One",
			CaptchaToken: "token",
			IPAddress:    "203.0.113.9",
			Referrer:     "https://example.com/page",
		})
		require.NoError(t, err)
		assert.True(t, outcome.IsSuccess)

		assert.Equal(t, "someone@example.com", form.Get("email"))
		assert.Equal(t, "Some One", form.Get("name"))
		assert.Equal(t, "configured-list", form.Get("list"))
		assert.Equal(t, "yes", form.Get("subform"))
		assert.Equal(t, "token", form.Get("h-captcha-response"))
		assert.Equal(t, "203.0.113.9", form.Get("ipaddress"))
		assert.Equal(t, "https://example.com/page", form.Get("referrer"))
		assert.Equal(t, "key", form.Get("api_key"))
	})

	t.Run("NoCaptchaToken", func(t *testing.T) {
		_, err := subscriber.Subscribe(ctx, sendy.Request{Email: "a@example.com"})
		require.NoError(t, err)

		assert.False(t, form.Has("h-captcha-response"))
		assert.Equal(t, "a@example.com", form.Get("email"))
	})

	t.Run("Headers", func(t *testing.T) {
		_, err := subscriber.Subscribe(ctx, sendy.Request{Email: "a@example.com"})
		require.NoError(t, err)

		assert.Equal(t, "application/x-www-form-urlencoded", header.Get("Content-Type"))
		assert.Equal(t, "LTFAGW-Subscribe-Handler", header.Get("User-Agent"))
		assert.Equal(t, "text/plain,*/*;q=0.8", header.Get("Accept"))
		assert.Equal(t, "no-cache", header.Get("Cache-Control"))
		assert.Equal(t, "no-cache", header.Get("Pragma"))
	})

	t.Run("AlreadySubscribed", func(t *testing.T) {
		body = "  Already Subscribed.\n"
		outcome, err := subscriber.Subscribe(ctx, sendy.Request{Email: "a@example.com"})
		require.NoError(t, err)

		assert.False(t, outcome.IsSuccess)
		assert.True(t, outcome.IsAlreadySubscribed)
		assert.Equal(t, "Already Subscribed.", outcome.RawResponseBody)
	})
}

func TestSubscribeNonOKStatusIsInterpreted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html><body>broken</body></html>"))
	}))
	defer server.Close()

	subscriber := sendy.NewHTTPSubscriber(options(server.URL))
	outcome, err := subscriber.Subscribe(context.Background(), sendy.Request{Email: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, outcome.IsHTMLError)
}

func TestSubscribeTransportFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	opts := options(server.URL)
	opts.Timeout = 50 * time.Millisecond
	subscriber := sendy.NewHTTPSubscriber(opts)

	_, err := subscriber.Subscribe(context.Background(), sendy.Request{Email: "a@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTransport))
	assert.Equal(t, int32(1), calls.Load(), "must not retry")
}

func TestSubscribeRedirectLimit(t *testing.T) {
	var hops atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		hops.Add(1)
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/done", http.StatusSeeOther)
	})
	mux.HandleFunc("/done", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("1"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	t.Run("Followed", func(t *testing.T) {
		subscriber := sendy.NewHTTPSubscriber(options(server.URL + "/short"))
		outcome, err := subscriber.Subscribe(context.Background(), sendy.Request{})
		require.NoError(t, err)
		assert.True(t, outcome.IsSuccess)
	})

	t.Run("TooMany", func(t *testing.T) {
		subscriber := sendy.NewHTTPSubscriber(options(server.URL + "/loop"))
		_, err := subscriber.Subscribe(context.Background(), sendy.Request{})
		require.ErrorIs(t, err, types.ErrTransport)
		assert.Equal(t, int32(6), hops.Load(), "first request plus five redirects")
	})
}

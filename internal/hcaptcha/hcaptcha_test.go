package hcaptcha_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ltfawg/subscribe-api/internal/hcaptcha"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()

	e := echo.New()
	e.POST("/siteverify", func(c echo.Context) error {
		if c.FormValue("secret") != "s3cret" {
			return c.JSON(http.StatusOK, map[string]any{
				"success":     false,
				"error-codes": []string{"invalid-input-secret"},
			})
		}
		if c.FormValue("response") != "good-token" {
			return c.JSON(http.StatusOK, map[string]any{
				"success":     false,
				"error-codes": []string{"invalid-input-response"},
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "hostname": "example.com"})
	})
	server := httptest.NewServer(e)
	defer server.Close()

	t.Run("Valid", func(t *testing.T) {
		client := hcaptcha.NewClient(server.URL+"/siteverify", "s3cret", 0)
		require.NoError(t, client.Verify(ctx, "good-token", "203.0.113.4"))
	})

	t.Run("BadToken", func(t *testing.T) {
		client := hcaptcha.NewClient(server.URL+"/siteverify", "s3cret", 0)
		err := client.Verify(ctx, "bad-token", "")
		require.ErrorIs(t, err, hcaptcha.ErrRejected)
		assert.Contains(t, err.Error(), "invalid-input-response")
	})

	t.Run("BadSecret", func(t *testing.T) {
		client := hcaptcha.NewClient(server.URL+"/siteverify", "wrong", 0)
		require.ErrorIs(t, client.Verify(ctx, "good-token", ""), hcaptcha.ErrRejected)
	})
}

func TestVerifyDoesNotRetryAnswered(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := hcaptcha.NewClient(server.URL, "s3cret", 2)
	err := client.Verify(context.Background(), "tok", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, hcaptcha.ErrRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestVerifyRetriesDroppedConnections(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := hcaptcha.NewClient(server.URL, "s3cret", 2)
	require.NoError(t, client.Verify(context.Background(), "tok", ""))
	assert.Equal(t, int32(2), calls.Load())
}

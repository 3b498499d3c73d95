package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ltfawg/subscribe-api/internal/audit"
	"github.com/ltfawg/subscribe-api/internal/types"
)

func TestClientAddress(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Real-IP", "192.0.2.44")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	h := ClientAddress(KeyClientAddress)(func(c echo.Context) error {
		got = GetClientAddress(c)
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, "192.0.2.44", got)
}

func TestGetClientAddressWithoutMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, req.RemoteAddr, GetClientAddress(c))
}

func TestReceived(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Zero(t, Elapsed(c), "no stamp before the middleware runs")

	before := time.Now()
	h := Received()(func(c echo.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, h(c))

	received, ok := c.Get(KeyReceived).(time.Time)
	require.True(t, ok)
	assert.False(t, received.Before(before))
	assert.GreaterOrEqual(t, Elapsed(c), 5*time.Millisecond)
}

func TestAudit(t *testing.T) {
	orig := audit.Output
	var buf bytes.Buffer
	audit.Output = &buf
	defer func() { audit.Output = orig }()

	e := echo.New()

	t.Run("WithOutcome", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodPost, "/subscribe/", nil)
		req.Header.Set("CF-Connecting-IP", "203.0.113.8")
		c := e.NewContext(req, httptest.NewRecorder())

		h := Audit()(func(c echo.Context) error {
			SetOutcome(c, types.OutcomeSubscribed)
			c.Set(KeyRedirect, "/thanks/")
			return c.Redirect(http.StatusSeeOther, "/thanks/")
		})
		require.NoError(t, h(c))

		var evt audit.Signup
		require.NoError(t, json.Unmarshal(buf.Bytes(), &evt))
		assert.Equal(t, types.OutcomeSubscribed, evt.Event.Outcome)
		assert.Equal(t, http.StatusSeeOther, evt.Event.Status)
		assert.Equal(t, "203.0.113.8", evt.Event.ClientAddress)
		assert.Equal(t, "/thanks/", evt.Event.Redirect)
	})

	t.Run("WithoutOutcome", func(t *testing.T) {
		buf.Reset()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/", nil), httptest.NewRecorder())

		h := Audit()(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
		require.NoError(t, h(c))
		assert.Empty(t, buf.String())
	})
}

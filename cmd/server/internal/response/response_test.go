package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponses(t *testing.T) {
	e := echo.New()

	run := func(fn func(c echo.Context) error) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		require.NoError(t, fn(c))
		return rec
	}

	t.Run("ErrorPage", func(t *testing.T) {
		rec := run(func(c echo.Context) error { return ErrorPage(c, MsgInvalidEmail) })
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, echo.MIMETextHTMLCharsetUTF8, rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, `Invalid email address. <a href="javascript:history.back()">Go back</a>`, rec.Body.String())
	})

	t.Run("SubscriptionFailedEscapes", func(t *testing.T) {
		rec := run(func(c echo.Context) error { return SubscriptionFailed(c, `bad <b>"list"</b> & 'id'`) })
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, echo.MIMETextPlainCharsetUTF8, rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, "Subscription failed: bad &lt;b&gt;&#34;list&#34;&lt;/b&gt; &amp; &#39;id&#39;", rec.Body.String())
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		rec := run(MethodNotAllowed)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "Method Not Allowed", rec.Body.String())
	})

	t.Run("SeeOther", func(t *testing.T) {
		rec := run(func(c echo.Context) error { return SeeOther(c, "/thanks/") })
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/thanks/", rec.Header().Get(echo.HeaderLocation))
	})
}

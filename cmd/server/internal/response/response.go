package response

import (
	"html"
	"net/http"

	"github.com/labstack/echo/v4"
)

// User-facing messages. Security-sensitive rejections stay generic.
const (
	MsgMethodNotAllowed   = "Method Not Allowed"
	MsgBadRequest         = "Bad request"
	MsgTooManyRequests    = "Too many requests"
	MsgInvalidEmail       = "Invalid email address."
	MsgMissingCaptcha     = "Please complete the captcha."
	MsgCaptchaRejected    = "Captcha verification failed."
	MsgNetworkError       = "Network error during subscription."
	MsgSubscriptionFailed = "Subscription failed: "
)

const backLink = ` <a href="javascript:history.back()">Go back</a>`

func MethodNotAllowed(c echo.Context) error {
	return c.String(http.StatusMethodNotAllowed, MsgMethodNotAllowed)
}

func BadRequest(c echo.Context) error {
	return c.String(http.StatusBadRequest, MsgBadRequest)
}

func TooManyRequests(c echo.Context) error {
	return c.String(http.StatusTooManyRequests, MsgTooManyRequests)
}

// ErrorPage is a user-correctable failure: the message plus a link back to the form.
func ErrorPage(c echo.Context, msg string) error {
	return c.HTML(http.StatusOK, msg+backLink)
}

// PassthroughHTML returns an upstream HTML error page verbatim.
func PassthroughHTML(c echo.Context, body string) error {
	return c.HTML(http.StatusOK, body)
}

// SubscriptionFailed shows an upstream plain-text failure, escaped.
func SubscriptionFailed(c echo.Context, body string) error {
	return c.String(http.StatusOK, MsgSubscriptionFailed+html.EscapeString(body))
}

func SeeOther(c echo.Context, location string) error {
	return c.Redirect(http.StatusSeeOther, location)
}

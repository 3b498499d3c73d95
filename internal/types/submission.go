package types

import (
	"net/url"
	"strings"
)

// Honeypot form fields. Humans never see them, so any value marks a bot.
var HoneypotFields = []string{"website", "hp"}

type (
	// Submission holds the trimmed fields of one signup form post.
	Submission struct {
		Email        string `form:"email"              validate:"required,email"`
		FirstName    string `form:"fname"`
		LastName     string `form:"lname"`
		CaptchaToken string `form:"h-captcha-response" validate:"required"`

		// Redirect is kept raw; it is only ever compared against an allow-list.
		Redirect string `form:"redirect"`

		ClientAddress string `form:"-"`
		Referrer      string `form:"-"`
	}

	// SubscriptionOutcome is the interpreted body returned by the mailing-list API.
	SubscriptionOutcome struct {
		RawResponseBody     string
		IsAlreadySubscribed bool
		IsSuccess           bool
		IsHTMLError         bool
	}
)

// SubmissionFromForm reads a submission from decoded form-body values. Nothing
// else on the request is consulted.
func SubmissionFromForm(form url.Values) Submission {
	return Submission{
		Email:        form.Get("email"),
		FirstName:    form.Get("fname"),
		LastName:     form.Get("lname"),
		CaptchaToken: form.Get("h-captcha-response"),
		Redirect:     form.Get("redirect"),
	}
}

// Normalize trims the text fields in place. Redirect is left alone.
func (s *Submission) Normalize() {
	s.Email = strings.TrimSpace(s.Email)
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.CaptchaToken = strings.TrimSpace(s.CaptchaToken)
}

// DisplayName joins first and last name with a space, dropping the space when either is empty.
func (s *Submission) DisplayName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

const alreadySubscribedMarker = "already subscribed"

// ParseSubscriptionOutcome classifies a raw mailing-list API response body.
func ParseSubscriptionOutcome(body string) SubscriptionOutcome {
	resp := strings.TrimSpace(body)
	lower := strings.ToLower(resp)

	return SubscriptionOutcome{
		RawResponseBody:     resp,
		IsSuccess:           resp == "true" || resp == "1",
		IsAlreadySubscribed: strings.Contains(lower, alreadySubscribedMarker),
		IsHTMLError:         strings.Contains(lower, "<html"),
	}
}

package types

import (
	"errors"
	"fmt"
)

type SignupErrorKind string

const (
	KindMethodNotAllowed SignupErrorKind = "method_not_allowed"
	KindSpamDetected     SignupErrorKind = "spam_detected"
	KindInvalidEmail     SignupErrorKind = "invalid_email"
	KindMissingCaptcha   SignupErrorKind = "missing_captcha"
	KindCaptchaRejected  SignupErrorKind = "captcha_rejected"
	KindTransportFailure SignupErrorKind = "transport_failure"
	KindUpstreamRejected SignupErrorKind = "upstream_rejected"
	KindRateLimited      SignupErrorKind = "rate_limited"
)

// Terminal outcomes that are not errors.
const (
	OutcomeSubscribed        SignupErrorKind = "subscribed"
	OutcomeAlreadySubscribed SignupErrorKind = "already_subscribed"
)

var ErrTransport = errors.New("mailing list request failed")

// SignupError carries the kind of a rejected signup along with what caused it.
type SignupError struct {
	Kind SignupErrorKind
	Err  error
}

func (e *SignupError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *SignupError) Unwrap() error {
	return e.Err
}

func NewSignupError(kind SignupErrorKind, err error) *SignupError {
	return &SignupError{Kind: kind, Err: err}
}

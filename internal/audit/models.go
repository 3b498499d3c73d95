package audit

import (
	"github.com/google/uuid"

	"github.com/ltfawg/subscribe-api/internal/types"
)

var schemaVersion = "0.1.0"
var logContext = "audit"

type Disposition string

const (
	DispositionNeutral Disposition = "neutral"
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
)

type EventType string

const (
	EvtSignup EventType = "signup"
)

type Message struct {
	ID            uuid.UUID   `json:"id"          validate:"required"`
	LogContext    string      `json:"log_context" validate:"required"`
	SchemaVersion string      `json:"version"     validate:"required"`
	Disposition   Disposition `json:"disposition" validate:"required"`
	Type          EventType   `json:"event_type"  validate:"required"`

	Timestamp types.UnixMilli `json:"timestamp" validate:"required"`
}

// SignupEvent never carries the submitted email or name.
type SignupEvent struct {
	Outcome       types.SignupErrorKind `json:"outcome"        validate:"required"`
	ClientAddress string                `json:"client_address"`
	Redirect      string                `json:"redirect,omitempty"`
	Status        int                   `json:"status"         validate:"required"`
	ElapsedMillis int64                 `json:"elapsed_ms"`
}

type Signup struct {
	Event SignupEvent `json:"event" validate:"required"`
	Message
}

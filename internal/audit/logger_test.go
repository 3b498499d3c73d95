package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ltfawg/subscribe-api/internal/types"
)

func capture(t *testing.T, fn func()) Signup {
	t.Helper()

	orig := Output
	var buf bytes.Buffer
	Output = &buf
	defer func() { Output = orig }()

	fn()

	var got Signup
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	return got
}

func TestLogSignup(t *testing.T) {
	got := capture(t, func() {
		LogSignup(types.OutcomeSubscribed, http.StatusSeeOther, "203.0.113.5", "/thanks/", 1500*time.Millisecond)
	})

	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, EvtSignup, got.Type)
	assert.Equal(t, "audit", got.LogContext)
	assert.Equal(t, DispositionGood, got.Disposition)
	assert.Equal(t, types.OutcomeSubscribed, got.Event.Outcome)
	assert.Equal(t, http.StatusSeeOther, got.Event.Status)
	assert.Equal(t, "203.0.113.5", got.Event.ClientAddress)
	assert.Equal(t, "/thanks/", got.Event.Redirect)
	assert.Equal(t, int64(1500), got.Event.ElapsedMillis)
	assert.NotZero(t, got.Timestamp)
}

func TestDispositions(t *testing.T) {
	assert.Equal(t, DispositionBad, dispForOutcome(types.KindSpamDetected))
	assert.Equal(t, DispositionBad, dispForOutcome(types.KindTransportFailure))
	assert.Equal(t, DispositionGood, dispForOutcome(types.OutcomeAlreadySubscribed))
	assert.Equal(t, DispositionNeutral, dispForOutcome(types.KindInvalidEmail))
	assert.Equal(t, DispositionNeutral, dispForOutcome(types.KindMethodNotAllowed))
}

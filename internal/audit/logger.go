package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ltfawg/subscribe-api/internal/logger"
	"github.com/ltfawg/subscribe-api/internal/types"
)

// Output receives one JSON document per line. Tests may swap it.
var Output io.Writer = os.Stdout

func dispForOutcome(kind types.SignupErrorKind) Disposition {
	switch kind {
	case types.OutcomeSubscribed, types.OutcomeAlreadySubscribed:
		return DispositionGood
	case types.KindSpamDetected, types.KindCaptchaRejected, types.KindRateLimited:
		return DispositionBad
	case types.KindTransportFailure, types.KindUpstreamRejected:
		return DispositionBad
	default:
		return DispositionNeutral
	}
}

func LogSignup(
	kind types.SignupErrorKind,
	status int,
	clientAddress string,
	redirect string,
	elapsed time.Duration,
) {
	event := Signup{}
	event.Type = EvtSignup
	event.ID = uuid.New()

	event.LogContext = logContext
	event.SchemaVersion = schemaVersion

	event.Timestamp = types.UnixMilli(time.Now().UTC().UnixMilli())

	event.Disposition = dispForOutcome(kind)

	event.Event.Outcome = kind
	event.Event.Status = status
	event.Event.ClientAddress = clientAddress
	event.Event.Redirect = redirect
	event.Event.ElapsedMillis = elapsed.Milliseconds()

	evtStr, err := json.Marshal(event)
	if err != nil {
		logger.Logger.Error(
			"could not serialize Signup event",
			"outcome",
			kind,
			"status",
			status,
			"error",
			err,
		)
		return
	}

	fmt.Fprintln(Output, string(evtStr))
}

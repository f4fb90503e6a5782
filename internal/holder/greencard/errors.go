package greencard

import (
	"fmt"

	"healthwallet/internal/holder/errorcode"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
)

// ErrorKind classifies a signing failure.
type ErrorKind string

const (
	KindNoInternet        ErrorKind = "no_internet"
	KindDidNotEvaluate    ErrorKind = "did_not_evaluate"
	KindNoSignedEvents    ErrorKind = "no_signed_events"
	KindCustomError       ErrorKind = "custom_error"
	KindServerError       ErrorKind = "server_error"
	KindCommitmentFailed  ErrorKind = "commitment_failed"
	KindFailedToSaveCards ErrorKind = "failed_to_save_green_cards"
)

// Error is the failure of SignEventsIntoGreenCards.
//
// Response is set for KindDidNotEvaluate so the caller can still classify what the signer
// returned. Title and Message are set for KindCustomError.
type Error struct {
	Kind     ErrorKind
	Step     errorcode.Step
	Server   *network.ServerError
	Response *models.GreenCardResponse
	Title    string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("greencard %s: %v", e.Kind, e.Err)
	}
	return "greencard " + string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e.Server != nil {
		return e.Server
	}
	return e.Err
}

// Code returns the support code for the failure in flow. KindNoInternet and
// KindDidNotEvaluate are not reported with a code and yield false.
func (e *Error) Code(flow errorcode.Flow) (errorcode.Code, bool) {
	switch e.Kind {
	case KindServerError:
		return errorcode.FromError(flow, e.Step, errorcode.NoProvider, e.Server), true
	case KindCommitmentFailed:
		return errorcode.New(flow, e.Step, errorcode.CommitmentFailed), true
	case KindNoSignedEvents:
		return errorcode.New(flow, e.Step, errorcode.NoSignedEvents), true
	case KindFailedToSaveCards:
		return errorcode.New(flow, e.Step, errorcode.FailedToSaveGreenCards), true
	case KindCustomError:
		if e.Server == nil {
			return errorcode.Code{}, false
		}
		return errorcode.FromError(flow, e.Step, errorcode.NoProvider, e.Server), true
	default:
		return errorcode.Code{}, false
	}
}

// Package errorcode formats the support codes shown to users when a flow fails.
//
// A code reads "i <flow><step> <provider> <client code>[ <detail>]", for example
// "i 220 000 004" for a vaccination flow whose access-token call timed out.
package errorcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
)

// Flow identifies the user flow in which an error occurred.
type Flow string

const (
	FlowTest                  Flow = "1"
	FlowVaccination           Flow = "2"
	FlowRecovery              Flow = "3"
	FlowPaperflow             Flow = "4"
	FlowPositiveTest          Flow = "5"
	FlowVaccinationAssessment Flow = "7"
)

// FlowFor maps an event mode onto its flow digit.
func FlowFor(mode models.EventMode) Flow {
	switch mode {
	case models.ModeTest:
		return FlowTest
	case models.ModeRecovery:
		return FlowRecovery
	case models.ModePaperflow:
		return FlowPaperflow
	case models.ModeVaccinationAndPositiveTest:
		return FlowPositiveTest
	case models.ModeVaccinationAssessment:
		return FlowVaccinationAssessment
	default:
		return FlowVaccination
	}
}

// Step identifies the call or stage within the flow.
type Step string

const (
	StepAccessTokens Step = "20"
	StepProviders    Step = "30"
	StepUnomi        Step = "40"
	StepEvents       Step = "50"
	StepStoring      Step = "60"
	StepPrepareIssue Step = "70"
	StepSigner       Step = "80"
)

// ClientCode is the cause part of a code.
type ClientCode string

const (
	InvalidRequest    ClientCode = "001"
	InvalidHost       ClientCode = "002"
	InvalidResponse   ClientCode = "003"
	TimedOut          ClientCode = "004"
	ConnectionLost    ClientCode = "005"
	NoInternet        ClientCode = "010"
	InvalidSignature  ClientCode = "020"
	CannotDeserialize ClientCode = "030"
	CannotSerialize   ClientCode = "031"
	ServerBusy        ClientCode = "429"

	StoringEvents          ClientCode = "053"
	CommitmentFailed       ClientCode = "054"
	FailedToSaveGreenCards ClientCode = "055"
	NoSignedEvents         ClientCode = "056"
	UnhandledCredential    ClientCode = "057"
	OriginMismatch         ClientCode = "058"
)

// NoProvider fills the provider slot for calls that are not provider specific.
const NoProvider = "000"

// Separator joins several codes in one message.
const Separator = "<br />"

// Code is one formatted support code.
type Code struct {
	Flow       Flow
	Step       Step
	Provider   string
	ClientCode ClientCode
	Detail     string
}

// New builds a code outside any provider.
func New(flow Flow, step Step, code ClientCode) Code {
	return Code{Flow: flow, Step: step, Provider: NoProvider, ClientCode: code}
}

func (c Code) String() string {
	provider := c.Provider
	if provider == "" {
		provider = NoProvider
	}
	s := fmt.Sprintf("i %s%s %s %s", c.Flow, c.Step, provider, c.ClientCode)
	if c.Detail != "" {
		s += " " + c.Detail
	}
	return s
}

// WithDetail returns a copy carrying detail.
func (c Code) WithDetail(detail string) Code {
	c.Detail = detail
	return c
}

// FromError derives the code for a failed upstream call. A server error uses the HTTP
// status as client code and the body code, when present, as detail.
func FromError(flow Flow, step Step, provider string, err error) Code {
	if provider == "" {
		provider = NoProvider
	}
	code := Code{Flow: flow, Step: step, Provider: provider}

	var se *network.ServerError
	if !errors.As(err, &se) {
		code.ClientCode = InvalidResponse
		return code
	}

	switch se.Kind {
	case network.ErrorInvalidRequest:
		code.ClientCode = InvalidRequest
	case network.ErrorNoInternetConnection:
		code.ClientCode = NoInternet
	case network.ErrorServerUnreachableTimedOut:
		code.ClientCode = TimedOut
	case network.ErrorServerUnreachableInvalidHost:
		code.ClientCode = InvalidHost
	case network.ErrorServerUnreachableConnectionLost:
		code.ClientCode = ConnectionLost
	case network.ErrorServerBusy:
		code.ClientCode = ServerBusy
	case network.ErrorInvalidSignature:
		code.ClientCode = InvalidSignature
	case network.ErrorCannotSerialize:
		code.ClientCode = CannotSerialize
	case network.ErrorCannotDeserialize:
		code.ClientCode = CannotDeserialize
	case network.ErrorServerError:
		code.ClientCode = ClientCode(strconv.Itoa(se.StatusCode))
		if se.Response != nil && se.Response.Code != 0 {
			code.Detail = strconv.Itoa(se.Response.Code)
		}
	default:
		code.ClientCode = InvalidResponse
	}
	return code
}

// Join formats codes in the given order.
func Join(codes []Code) string {
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, Separator)
}

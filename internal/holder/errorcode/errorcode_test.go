package errorcode

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &network.ServerError{Kind: network.ErrorServerUnreachableTimedOut}, "i 220 000 004"},
		{"invalid host", &network.ServerError{Kind: network.ErrorServerUnreachableInvalidHost}, "i 220 000 002"},
		{"connection lost", &network.ServerError{Kind: network.ErrorServerUnreachableConnectionLost}, "i 220 000 005"},
		{"no internet", &network.ServerError{Kind: network.ErrorNoInternetConnection}, "i 220 000 010"},
		{"busy", &network.ServerError{Kind: network.ErrorServerBusy, StatusCode: http.StatusTooManyRequests}, "i 220 000 429"},
		{"signature", &network.ServerError{Kind: network.ErrorInvalidSignature}, "i 220 000 020"},
		{"deserialize", &network.ServerError{Kind: network.ErrorCannotDeserialize}, "i 220 000 030"},
		{"server error with body code", &network.ServerError{
			Kind:       network.ErrorServerError,
			StatusCode: http.StatusInternalServerError,
			Response:   &models.ServerResponse{Status: "error", Code: 99702},
		}, "i 220 000 500 99702"},
		{"server error without body", &network.ServerError{Kind: network.ErrorServerError, StatusCode: http.StatusBadGateway}, "i 220 000 502"},
		{"foreign error", errors.New("boom"), "i 220 000 003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(FlowVaccination, StepAccessTokens, "", tt.err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestJoinKeepsOrder(t *testing.T) {
	timeout := &network.ServerError{Kind: network.ErrorServerUnreachableTimedOut}
	codes := []Code{
		FromError(FlowVaccination, StepAccessTokens, "", timeout),
		FromError(FlowVaccination, StepProviders, "", timeout),
	}
	assert.Equal(t, "i 220 000 004<br />i 230 000 004", Join(codes))
}

func TestFlowFor(t *testing.T) {
	assert.Equal(t, FlowTest, FlowFor(models.ModeTest))
	assert.Equal(t, FlowPositiveTest, FlowFor(models.ModeVaccinationAndPositiveTest))
	assert.Equal(t, "i 560 000 053", New(FlowFor(models.ModeVaccinationAndPositiveTest), StepStoring, StoringEvents).String())
	assert.Equal(t, "i 450 GGD 030", Code{Flow: FlowPaperflow, Step: StepEvents, Provider: "GGD", ClientCode: CannotDeserialize}.String())
}

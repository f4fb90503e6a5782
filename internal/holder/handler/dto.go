package handler

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"healthwallet/internal/holder/models"
	dErrors "healthwallet/pkg/domain-errors"
)

type startRequest struct {
	Mode      string `json:"mode"`
	AuthToken string `json:"auth_token"`

	mode models.EventMode
}

func (r *startRequest) Normalize() {
	r.AuthToken = strings.TrimSpace(r.AuthToken)
}

func (r *startRequest) Validate() error {
	mode, err := models.ParseEventMode(r.Mode)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown event mode")
	}
	if r.AuthToken == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "auth_token is required")
	}
	r.mode = mode
	return nil
}

type paperflowRequest struct {
	Credential   string `json:"credential"`
	CouplingCode string `json:"coupling_code"`
}

func (r *paperflowRequest) Normalize() {
	r.CouplingCode = strings.ToUpper(strings.TrimSpace(r.CouplingCode))
}

func (r *paperflowRequest) Validate() error {
	if strings.TrimSpace(r.Credential) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	}
	if r.CouplingCode == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "coupling_code is required")
	}
	return nil
}

type testResultRequest struct {
	Token            string `json:"token"`
	VerificationCode string `json:"verification_code"`
}

func (r *testResultRequest) Normalize() {
	r.Token = strings.TrimSpace(r.Token)
	r.VerificationCode = strings.TrimSpace(r.VerificationCode)
}

func (r *testResultRequest) Validate() error {
	if r.Token == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "token is required")
	}
	return nil
}

// eventGroupResponse describes a stored group without its signed payload.
type eventGroupResponse struct {
	ID                 uuid.UUID        `json:"id"`
	Type               models.EventMode `json:"type"`
	ProviderIdentifier string           `json:"provider_identifier"`
	MaxIssuedAt        time.Time        `json:"max_issued_at"`
	ExpiryDate         *time.Time       `json:"expiry_date,omitempty"`
	IsDraft            bool             `json:"is_draft"`
}

type eventGroupsResponse struct {
	EventGroups []eventGroupResponse `json:"event_groups"`
}

func toEventGroupsResponse(groups []models.EventGroup) eventGroupsResponse {
	out := make([]eventGroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, eventGroupResponse{
			ID:                 g.ID,
			Type:               g.Type,
			ProviderIdentifier: g.ProviderIdentifier,
			MaxIssuedAt:        g.MaxIssuedAt,
			ExpiryDate:         g.ExpiryDate,
			IsDraft:            g.IsDraft,
		})
	}
	return eventGroupsResponse{EventGroups: out}
}

package models

import (
	"encoding/json"
	"strings"
)

// EventStatus is the provider's verdict on the returned batch.
type EventStatus string

const (
	StatusComplete             EventStatus = "complete"
	StatusPending              EventStatus = "pending"
	StatusVerificationRequired EventStatus = "verification_required"
	StatusInvalid              EventStatus = "invalid"
	StatusUnknown              EventStatus = "unknown"
)

// UnmarshalJSON maps unrecognised values to StatusUnknown instead of failing the batch.
func (s *EventStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch candidate := EventStatus(strings.ToLower(raw)); candidate {
	case StatusComplete, StatusPending, StatusVerificationRequired, StatusInvalid:
		*s = candidate
	default:
		*s = StatusUnknown
	}
	return nil
}

// Identity is the holder as reported by a provider.
type Identity struct {
	FirstName string `json:"firstName"`
	Infix     string `json:"infix,omitempty"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
}

// FullName joins the name parts the way they are displayed.
func (i Identity) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{i.FirstName, i.Infix, i.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// EventWrapper is the decoded payload of one provider's events response.
type EventWrapper struct {
	ProtocolVersion    string      `json:"protocolVersion"`
	ProviderIdentifier string      `json:"providerIdentifier"`
	Status             EventStatus `json:"status"`
	Identity           *Identity   `json:"holder,omitempty"`
	Events             []Event     `json:"events"`
}

// SignedResponse is the wire envelope: base64 payload plus base64 signature.
type SignedResponse struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// RemoteEvent is one provider's successful response within a retrieval session.
type RemoteEvent struct {
	Wrapper        EventWrapper
	SignedResponse *SignedResponse
}

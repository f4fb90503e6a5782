package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DCCProviderIdentifier is the provider identifier under which paper-flow events are stored.
const DCCProviderIdentifier = "DCC"

// EventGroup is a persisted provider response.
type EventGroup struct {
	ID                 uuid.UUID
	Type               EventMode
	ProviderIdentifier string
	MaxIssuedAt        time.Time
	ExpiryDate         *time.Time
	JSONData           []byte
	IsDraft            bool
}

// EncodeSignedResponse produces the JSON stored in an EventGroup. Locally created remote events
// (paper flow) carry no signature; their wrapper is embedded unsigned.
func EncodeSignedResponse(remote RemoteEvent) ([]byte, error) {
	if remote.SignedResponse != nil {
		return json.Marshal(remote.SignedResponse)
	}
	wrapper, err := json.Marshal(remote.Wrapper)
	if err != nil {
		return nil, fmt.Errorf("encode event wrapper: %w", err)
	}
	return json.Marshal(SignedResponse{Payload: base64.StdEncoding.EncodeToString(wrapper)})
}

// RemoteEvent reconstructs the provider response an EventGroup was created from.
func (g EventGroup) RemoteEvent() (RemoteEvent, error) {
	var signed SignedResponse
	if err := json.Unmarshal(g.JSONData, &signed); err != nil {
		return RemoteEvent{}, fmt.Errorf("decode stored envelope: %w", err)
	}
	payload, err := base64.StdEncoding.DecodeString(signed.Payload)
	if err != nil {
		return RemoteEvent{}, fmt.Errorf("decode stored payload: %w", err)
	}
	var wrapper EventWrapper
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return RemoteEvent{}, fmt.Errorf("decode stored wrapper: %w", err)
	}
	remote := RemoteEvent{Wrapper: wrapper}
	if signed.Signature != "" {
		remote.SignedResponse = &signed
	}
	return remote, nil
}

// MaxIssuedAt is the latest event date in the wrapper, used for supersession ordering.
func MaxIssuedAt(wrapper EventWrapper, fallback time.Time) time.Time {
	var latest time.Time
	for _, e := range wrapper.Events {
		if d, ok := e.Date(); ok && d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return fallback
	}
	return latest
}

// Package store persists the wallet: event groups received from providers and the green
// cards the signer issued for them.
//
// Error contract:
//   - ErrNotFound when the addressed entity does not exist
//   - wrapped infrastructure errors otherwise
package store

import (
	"errors"
	"strings"

	"healthwallet/internal/holder/models"
)

// ErrNotFound is returned when an event group or green card does not exist.
var ErrNotFound = errors.New("not found")

// EventGroupFilter narrows RemoveExistingEventGroups. Zero fields match everything, so the
// zero filter removes every stored group.
type EventGroupFilter struct {
	Mode               models.EventMode
	ProviderIdentifier string
}

func (f EventGroupFilter) matches(g models.EventGroup) bool {
	if f.Mode != "" && g.Type != f.Mode {
		return false
	}
	if f.ProviderIdentifier != "" && !strings.EqualFold(g.ProviderIdentifier, f.ProviderIdentifier) {
		return false
	}
	return true
}

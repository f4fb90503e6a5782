// Package models holds the holder domain types shared by the retrieval, reconciliation and
// issuance components.
package models

import (
	"fmt"
	"strings"
)

// EventMode is the certificate category a retrieval session targets.
type EventMode string

const (
	ModeVaccination                EventMode = "vaccination"
	ModeTest                       EventMode = "test"
	ModeRecovery                   EventMode = "recovery"
	ModeVaccinationAndPositiveTest EventMode = "positivetest"
	ModeVaccinationAssessment      EventMode = "vaccinationassessment"
	ModePaperflow                  EventMode = "paperflow"
)

var allModes = []EventMode{
	ModeVaccination,
	ModeTest,
	ModeRecovery,
	ModeVaccinationAndPositiveTest,
	ModeVaccinationAssessment,
	ModePaperflow,
}

// ParseEventMode validates a mode received at a trust boundary.
func ParseEventMode(s string) (EventMode, error) {
	candidate := EventMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range allModes {
		if m == candidate {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown event mode %q", s)
}

func (m EventMode) String() string { return string(m) }

// ProviderUsage returns the usage code a provider advertises when it can serve this mode.
// Paper-flow events never come from a provider.
func (m EventMode) ProviderUsage() string {
	switch m {
	case ModeVaccination:
		return "v"
	case ModeTest:
		return "nt"
	case ModeRecovery:
		return "r"
	case ModeVaccinationAndPositiveTest:
		return "pt"
	case ModeVaccinationAssessment:
		return "va"
	default:
		return ""
	}
}

// Accepts reports whether an event of type t belongs in a session of this mode.
func (m EventMode) Accepts(t EventType) bool {
	switch m {
	case ModeVaccination:
		return t == EventTypeVaccination
	case ModeTest:
		return t == EventTypeNegativeTest
	case ModeRecovery:
		return t == EventTypeRecovery || t == EventTypePositiveTest
	case ModeVaccinationAndPositiveTest:
		return t == EventTypePositiveTest || t == EventTypeVaccination || t == EventTypeRecovery
	case ModeVaccinationAssessment:
		return t == EventTypeVaccinationAssessment
	case ModePaperflow:
		return t == EventTypeDCC
	default:
		return false
	}
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType discriminates the Event variants.
type EventType string

const (
	EventTypeVaccination           EventType = "vaccination"
	EventTypeNegativeTest          EventType = "negativetest"
	EventTypePositiveTest          EventType = "positivetest"
	EventTypeRecovery              EventType = "recovery"
	EventTypeVaccinationAssessment EventType = "vaccinationassessment"
	EventTypeDCC                   EventType = "dcc"
)

// ErrInvalidEvent is returned when an event does not carry exactly one variant.
var ErrInvalidEvent = errors.New("event must carry exactly one variant")

// Payload is implemented by every Event variant. The set is closed.
type Payload interface {
	EventType() EventType
	isPayload()
}

// Event is one provider-reported health event.
type Event struct {
	Unique     string
	IsSpecimen bool
	Payload    Payload
}

// Type returns the variant discriminator.
func (e Event) Type() EventType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventType()
}

// IsTest reports whether the event is a negative or positive test.
func (e Event) IsTest() bool {
	t := e.Type()
	return t == EventTypeNegativeTest || t == EventTypePositiveTest
}

// Date returns the event's own date. DCC events carry their date inside the credential and
// report false here.
func (e Event) Date() (time.Time, bool) {
	switch p := e.Payload.(type) {
	case *Vaccination:
		return ParseISODate(p.Date)
	case *NegativeTest:
		return ParseISODate(p.SampleDate)
	case *PositiveTest:
		return ParseISODate(p.SampleDate)
	case *Recovery:
		return ParseISODate(p.SampleDate)
	case *VaccinationAssessment:
		return ParseISODate(p.AssessmentDate)
	default:
		return time.Time{}, false
	}
}

type Vaccination struct {
	Date                         string `json:"date"`
	HpkCode                      string `json:"hpkCode,omitempty"`
	Type                         string `json:"type,omitempty"`
	Manufacturer                 string `json:"manufacturer,omitempty"`
	Brand                        string `json:"brand,omitempty"`
	DoseNumber                   int    `json:"doseNumber,omitempty"`
	TotalDoses                   int    `json:"totalDoses,omitempty"`
	Country                      string `json:"country,omitempty"`
	CompletedByMedicalStatement  *bool  `json:"completedByMedicalStatement,omitempty"`
	CompletedByPersonalStatement *bool  `json:"completedByPersonalStatement,omitempty"`
}

// ProductCode is the hpk code when present, the brand otherwise.
func (v *Vaccination) ProductCode() string {
	if v.HpkCode != "" {
		return v.HpkCode
	}
	return v.Brand
}

type NegativeTest struct {
	SampleDate     string `json:"sampleDate"`
	NegativeResult bool   `json:"negativeResult"`
	Facility       string `json:"facility,omitempty"`
	Type           string `json:"type,omitempty"`
	Name           string `json:"name,omitempty"`
	Manufacturer   string `json:"manufacturer,omitempty"`
	Country        string `json:"country,omitempty"`
}

type PositiveTest struct {
	SampleDate     string `json:"sampleDate"`
	PositiveResult bool   `json:"positiveResult"`
	Facility       string `json:"facility,omitempty"`
	Type           string `json:"type,omitempty"`
	Name           string `json:"name,omitempty"`
	Manufacturer   string `json:"manufacturer,omitempty"`
	Country        string `json:"country,omitempty"`
}

type Recovery struct {
	SampleDate string `json:"sampleDate"`
	ValidFrom  string `json:"validFrom,omitempty"`
	ValidUntil string `json:"validUntil,omitempty"`
	Country    string `json:"country,omitempty"`
}

type VaccinationAssessment struct {
	AssessmentDate      string `json:"assessmentDate"`
	DigitalVerification bool   `json:"digitalVerification"`
	Country             string `json:"country,omitempty"`
}

// DCC is a paper-flow Digital COVID Certificate; its category is only known after decoding.
type DCC struct {
	Credential   string `json:"credential"`
	CouplingCode string `json:"couplingCode,omitempty"`
}

func (*Vaccination) EventType() EventType           { return EventTypeVaccination }
func (*NegativeTest) EventType() EventType          { return EventTypeNegativeTest }
func (*PositiveTest) EventType() EventType          { return EventTypePositiveTest }
func (*Recovery) EventType() EventType              { return EventTypeRecovery }
func (*VaccinationAssessment) EventType() EventType { return EventTypeVaccinationAssessment }
func (*DCC) EventType() EventType                   { return EventTypeDCC }

func (*Vaccination) isPayload()           {}
func (*NegativeTest) isPayload()          {}
func (*PositiveTest) isPayload()          {}
func (*Recovery) isPayload()              {}
func (*VaccinationAssessment) isPayload() {}
func (*DCC) isPayload()                   {}

// eventJSON is the wire shape: one object per variant, all optional.
type eventJSON struct {
	Type                  EventType              `json:"type"`
	Unique                string                 `json:"unique,omitempty"`
	IsSpecimen            bool                   `json:"isSpecimen"`
	Vaccination           *Vaccination           `json:"vaccination,omitempty"`
	NegativeTest          *NegativeTest          `json:"negativetest,omitempty"`
	PositiveTest          *PositiveTest          `json:"positivetest,omitempty"`
	Recovery              *Recovery              `json:"recovery,omitempty"`
	VaccinationAssessment *VaccinationAssessment `json:"vaccinationassessment,omitempty"`
	DCC                   *DCC                   `json:"dccEvent,omitempty"`
}

// UnmarshalJSON rejects events that carry zero or several variants.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var payloads []Payload
	if raw.Vaccination != nil {
		payloads = append(payloads, raw.Vaccination)
	}
	if raw.NegativeTest != nil {
		payloads = append(payloads, raw.NegativeTest)
	}
	if raw.PositiveTest != nil {
		payloads = append(payloads, raw.PositiveTest)
	}
	if raw.Recovery != nil {
		payloads = append(payloads, raw.Recovery)
	}
	if raw.VaccinationAssessment != nil {
		payloads = append(payloads, raw.VaccinationAssessment)
	}
	if raw.DCC != nil {
		payloads = append(payloads, raw.DCC)
	}
	if len(payloads) != 1 {
		return fmt.Errorf("%w: found %d", ErrInvalidEvent, len(payloads))
	}

	*e = Event{Unique: raw.Unique, IsSpecimen: raw.IsSpecimen, Payload: payloads[0]}
	return nil
}

// MarshalJSON writes the wire shape back with the single variant set.
func (e Event) MarshalJSON() ([]byte, error) {
	raw := eventJSON{Type: e.Type(), Unique: e.Unique, IsSpecimen: e.IsSpecimen}
	switch p := e.Payload.(type) {
	case *Vaccination:
		raw.Vaccination = p
	case *NegativeTest:
		raw.NegativeTest = p
	case *PositiveTest:
		raw.PositiveTest = p
	case *Recovery:
		raw.Recovery = p
	case *VaccinationAssessment:
		raw.VaccinationAssessment = p
	case *DCC:
		raw.DCC = p
	default:
		return nil, ErrInvalidEvent
	}
	return json.Marshal(raw)
}

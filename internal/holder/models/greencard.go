package models

import (
	"time"

	"github.com/google/uuid"
)

// OriginType is the entitlement category of an origin.
type OriginType string

const (
	OriginVaccination           OriginType = "vaccination"
	OriginRecovery              OriginType = "recovery"
	OriginTest                  OriginType = "test"
	OriginVaccinationAssessment OriginType = "vaccinationassessment"
)

// Origin is one entitlement returned by the signer.
type Origin struct {
	Type           OriginType `json:"type"`
	EventTime      time.Time  `json:"eventTime"`
	ExpirationTime time.Time  `json:"expirationTime"`
	ValidFrom      time.Time  `json:"validFrom"`
	DoseNumber     *int       `json:"doseNumber,omitempty"`
}

// ValidAt reports whether the origin has not expired at now.
func (o Origin) ValidAt(now time.Time) bool {
	return o.ExpirationTime.After(now)
}

type DomesticGreenCard struct {
	Origins                  []Origin `json:"origins"`
	CreateCredentialMessages string   `json:"createCredentialMessages"`
}

type EuGreenCard struct {
	Origins    []Origin `json:"origins"`
	Credential string   `json:"credential"`
}

// GreenCardResponse is the signer's result.
type GreenCardResponse struct {
	Domestic *DomesticGreenCard `json:"domesticGreencard"`
	EU       []EuGreenCard      `json:"euGreencards"`
}

// HasDomesticOrigin reports a valid domestic origin of type t.
func (r *GreenCardResponse) HasDomesticOrigin(t OriginType, now time.Time) bool {
	if r == nil || r.Domestic == nil {
		return false
	}
	return hasValidOrigin(r.Domestic.Origins, t, now)
}

// HasInternationalOrigin reports a valid international origin of type t.
func (r *GreenCardResponse) HasInternationalOrigin(t OriginType, now time.Time) bool {
	if r == nil {
		return false
	}
	for _, card := range r.EU {
		if hasValidOrigin(card.Origins, t, now) {
			return true
		}
	}
	return false
}

// HasOrigin reports a valid origin of type t in either scope.
func (r *GreenCardResponse) HasOrigin(t OriginType, now time.Time) bool {
	return r.HasDomesticOrigin(t, now) || r.HasInternationalOrigin(t, now)
}

// EarliestEventTime returns the earliest event time among valid origins of type t.
func (r *GreenCardResponse) EarliestEventTime(t OriginType, now time.Time) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	var all []Origin
	if r.Domestic != nil {
		all = append(all, r.Domestic.Origins...)
	}
	for _, card := range r.EU {
		all = append(all, card.Origins...)
	}
	var earliest time.Time
	found := false
	for _, o := range all {
		if o.Type != t || !o.ValidAt(now) {
			continue
		}
		if !found || o.EventTime.Before(earliest) {
			earliest = o.EventTime
			found = true
		}
	}
	return earliest, found
}

// LatestExpiration returns the latest expiration among valid origins of type t.
func (r *GreenCardResponse) LatestExpiration(t OriginType, now time.Time) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	var latest time.Time
	found := false
	visit := func(origins []Origin) {
		for _, o := range origins {
			if o.Type == t && o.ValidAt(now) && o.ExpirationTime.After(latest) {
				latest = o.ExpirationTime
				found = true
			}
		}
	}
	if r.Domestic != nil {
		visit(r.Domestic.Origins)
	}
	for _, card := range r.EU {
		visit(card.Origins)
	}
	return latest, found
}

func hasValidOrigin(origins []Origin, t OriginType, now time.Time) bool {
	for _, o := range origins {
		if o.Type == t && o.ValidAt(now) {
			return true
		}
	}
	return false
}

// GreenCardKind distinguishes the domestic card from the international ones.
type GreenCardKind string

const (
	GreenCardDomestic GreenCardKind = "domestic"
	GreenCardEU       GreenCardKind = "eu"
)

// GreenCard is a persisted signer result.
type GreenCard struct {
	ID         uuid.UUID
	Kind       GreenCardKind
	Origins    []Origin
	Credential string
}

// ExpiredAt reports whether every origin of the card has expired.
func (g GreenCard) ExpiredAt(now time.Time) bool {
	for _, o := range g.Origins {
		if o.ValidAt(now) {
			return false
		}
	}
	return true
}

// HasValidOrigin reports a valid origin of type t on the card.
func (g GreenCard) HasValidOrigin(t OriginType, now time.Time) bool {
	return hasValidOrigin(g.Origins, t, now)
}

// GreenCardsFromResponse flattens a signer response into storable cards.
func GreenCardsFromResponse(r *GreenCardResponse) []GreenCard {
	if r == nil {
		return nil
	}
	var cards []GreenCard
	if r.Domestic != nil {
		cards = append(cards, GreenCard{
			ID:         uuid.New(),
			Kind:       GreenCardDomestic,
			Origins:    r.Domestic.Origins,
			Credential: r.Domestic.CreateCredentialMessages,
		})
	}
	for _, eu := range r.EU {
		cards = append(cards, GreenCard{
			ID:         uuid.New(),
			Kind:       GreenCardEU,
			Origins:    eu.Origins,
			Credential: eu.Credential,
		})
	}
	return cards
}

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventUnmarshal(t *testing.T) {
	t.Run("single variant decodes into typed payload", func(t *testing.T) {
		var e Event
		err := json.Unmarshal([]byte(`{"type":"vaccination","unique":"u1","vaccination":{"date":"2021-06-01","hpkCode":"2924528","manufacturer":"ORG-100030215"}}`), &e)
		require.NoError(t, err)

		v, ok := e.Payload.(*Vaccination)
		require.True(t, ok)
		assert.Equal(t, EventTypeVaccination, e.Type())
		assert.Equal(t, "2924528", v.ProductCode())
		assert.Equal(t, "u1", e.Unique)
	})

	t.Run("no variant is rejected", func(t *testing.T) {
		var e Event
		err := json.Unmarshal([]byte(`{"type":"vaccination","unique":"u1"}`), &e)
		require.ErrorIs(t, err, ErrInvalidEvent)
	})

	t.Run("two variants are rejected", func(t *testing.T) {
		var e Event
		err := json.Unmarshal([]byte(`{"vaccination":{"date":"2021-06-01"},"recovery":{"sampleDate":"2021-01-01"}}`), &e)
		require.ErrorIs(t, err, ErrInvalidEvent)
	})

	t.Run("marshal keeps the single variant", func(t *testing.T) {
		e := Event{Unique: "t1", Payload: &NegativeTest{SampleDate: "2021-07-01T10:00:00Z", NegativeResult: true}}
		raw, err := json.Marshal(e)
		require.NoError(t, err)

		var back Event
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, e, back)
		assert.True(t, back.IsTest())
	})
}

func TestEventDate(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  time.Time
		ok    bool
	}{
		{"date only", Event{Payload: &Vaccination{Date: "2021-06-01"}}, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"rfc3339", Event{Payload: &NegativeTest{SampleDate: "2021-07-01T10:00:00+02:00"}}, time.Date(2021, 7, 1, 8, 0, 0, 0, time.UTC), true},
		{"local without zone", Event{Payload: &Recovery{SampleDate: "2021-07-01T10:00"}}, time.Date(2021, 7, 1, 10, 0, 0, 0, time.UTC), true},
		{"garbage", Event{Payload: &Vaccination{Date: "yesterday"}}, time.Time{}, false},
		{"dcc has no own date", Event{Payload: &DCC{Credential: "x"}}, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.event.Date()
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestModeAccepts(t *testing.T) {
	assert.True(t, ModeTest.Accepts(EventTypeNegativeTest))
	assert.False(t, ModeTest.Accepts(EventTypePositiveTest))
	assert.True(t, ModeVaccinationAndPositiveTest.Accepts(EventTypeRecovery))
	assert.True(t, ModeVaccinationAndPositiveTest.Accepts(EventTypeVaccination))
	assert.False(t, ModeVaccination.Accepts(EventTypeRecovery))
	assert.True(t, ModePaperflow.Accepts(EventTypeDCC))

	_, err := ParseEventMode("booster")
	require.Error(t, err)
	m, err := ParseEventMode(" Vaccination ")
	require.NoError(t, err)
	assert.Equal(t, ModeVaccination, m)
}

func TestEventStatusIsTolerant(t *testing.T) {
	var w EventWrapper
	require.NoError(t, json.Unmarshal([]byte(`{"providerIdentifier":"GGD","status":"weird","events":[]}`), &w))
	assert.Equal(t, StatusUnknown, w.Status)

	require.NoError(t, json.Unmarshal([]byte(`{"status":"PENDING"}`), &w))
	assert.Equal(t, StatusPending, w.Status)
}

func TestEventGroupRoundTrip(t *testing.T) {
	remote := RemoteEvent{Wrapper: EventWrapper{
		ProviderIdentifier: DCCProviderIdentifier,
		Status:             StatusComplete,
		Identity:           &Identity{FirstName: "Rolus", LastName: "Check", BirthDate: "1960-01-01"},
		Events:             []Event{{Unique: "dcc", Payload: &DCC{Credential: "HC1:abc", CouplingCode: "ZKGBKH"}}},
	}}

	raw, err := EncodeSignedResponse(remote)
	require.NoError(t, err)

	back, err := EventGroup{JSONData: raw}.RemoteEvent()
	require.NoError(t, err)
	assert.Nil(t, back.SignedResponse)
	assert.Equal(t, remote.Wrapper, back.Wrapper)
	assert.Equal(t, "Rolus Check", back.Wrapper.Identity.FullName())
}

func TestGreenCardResponseHelpers(t *testing.T) {
	now := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	response := &GreenCardResponse{
		Domestic: &DomesticGreenCard{Origins: []Origin{
			{Type: OriginVaccination, EventTime: now.AddDate(0, -2, 0), ExpirationTime: now.AddDate(0, 6, 0)},
			{Type: OriginRecovery, EventTime: now.AddDate(0, -3, 0), ExpirationTime: now},
		}},
		EU: []EuGreenCard{{Origins: []Origin{
			{Type: OriginRecovery, EventTime: now.AddDate(0, -1, 0), ExpirationTime: now.AddDate(0, 1, 0)},
		}}},
	}

	assert.True(t, response.HasDomesticOrigin(OriginVaccination, now))
	assert.False(t, response.HasDomesticOrigin(OriginRecovery, now), "expiring exactly at now is not valid")
	assert.True(t, response.HasInternationalOrigin(OriginRecovery, now))
	assert.False(t, response.HasOrigin(OriginTest, now))

	earliest, ok := response.EarliestEventTime(OriginRecovery, now)
	require.True(t, ok)
	assert.Equal(t, now.AddDate(0, -1, 0), earliest)

	cards := GreenCardsFromResponse(response)
	require.Len(t, cards, 2)
	assert.Equal(t, GreenCardDomestic, cards[0].Kind)
	assert.False(t, cards[0].ExpiredAt(now))
	assert.True(t, cards[1].ExpiredAt(now.AddDate(0, 2, 0)))

	var nilResponse *GreenCardResponse
	assert.False(t, nilResponse.HasOrigin(OriginVaccination, now))
}

func TestProviderSupports(t *testing.T) {
	p := Provider{Identifier: "GGD", Usages: []string{"V", "r"}}
	assert.True(t, p.Supports(ModeVaccination))
	assert.True(t, p.Supports(ModeRecovery))
	assert.False(t, p.Supports(ModeTest))
	assert.False(t, p.Supports(ModePaperflow))
	assert.True(t, p.MatchesToken(AccessToken{ProviderIdentifier: "ggd"}))
}

package dcc

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthwallet/internal/holder/models"
)

const vaccinationHcert = `{"credentialVersion":1,"issuer":"NL","issuedAt":1627294308,"expirationTime":1661508708,
"dcc":{"ver":"1.3.0","dob":"1960-01-01","nam":{"fn":"Bouwer","fnt":"BOUWER","gn":"Bob","gnt":"BOB"},
"v":[{"tg":"840539006","vp":"1119349007","mp":"EU/1/20/1528","ma":"ORG-100030215","dn":2,"sd":2,"dt":"2021-07-18","co":"NL","is":"Ministry","ci":"URN:UCI:01:NL:ABC"}]}}`

const foreignTestHcert = `{"issuer":"DE","dcc":{"dob":"1970-05-05","nam":{"fn":"Muster","gn":"Erika"},
"t":[{"tg":"840539006","tt":"LP6464-4","sc":"2021-07-01T10:00:00Z","tr":"260415000","co":"DE","is":"RKI","ci":"URN:UCI:01:DE:XYZ"}]}}`

func TestReadAndExpand(t *testing.T) {
	reader := NewJSONReader()

	t.Run("domestic vaccination", func(t *testing.T) {
		c, err := reader.ReadEuCredential([]byte(vaccinationHcert))
		require.NoError(t, err)

		mode, err := ModeFor(c)
		require.NoError(t, err)
		assert.Equal(t, models.ModeVaccination, mode)
		assert.False(t, c.IsForeign())
		id := c.Identity()
		assert.Equal(t, "Bob Bouwer", id.FullName())

		date, ok := c.EventDate()
		require.True(t, ok)
		assert.Equal(t, time.Date(2021, 7, 18, 0, 0, 0, 0, time.UTC), date)
	})

	t.Run("base64 foreign test", func(t *testing.T) {
		raw := []byte(base64.StdEncoding.EncodeToString([]byte(foreignTestHcert)))
		c, err := reader.ReadEuCredential(raw)
		require.NoError(t, err)

		mode, err := ModeFor(c)
		require.NoError(t, err)
		assert.Equal(t, models.ModeTest, mode)
		assert.True(t, reader.IsForeignDCC(raw))
	})

	t.Run("unreadable", func(t *testing.T) {
		_, err := reader.ReadEuCredential([]byte("HC1:not-json"))
		assert.ErrorIs(t, err, ErrUnreadable)
		assert.False(t, reader.IsForeignDCC([]byte("garbage")))
	})
}

func TestModeForIsTotal(t *testing.T) {
	tests := []struct {
		name string
		cert Certificate
		want models.EventMode
		err  error
	}{
		{"vaccination", Certificate{Vaccinations: []Vaccination{{}}}, models.ModeVaccination, nil},
		{"recovery", Certificate{Recoveries: []Recovery{{}}}, models.ModeRecovery, nil},
		{"test", Certificate{Tests: []Test{{}}}, models.ModeTest, nil},
		{"empty", Certificate{}, "", ErrUnknownType},
		{"mixed", Certificate{Tests: []Test{{}}, Recoveries: []Recovery{{}}}, "", ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ModeFor(&Credential{Certificate: tt.cert})
			assert.Equal(t, tt.want, got)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := ModeFor(nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRemoteEventFor(t *testing.T) {
	remote, c, err := RemoteEventFor(NewJSONReader(), vaccinationHcert, "ZKGBKH")
	require.NoError(t, err)

	assert.Nil(t, remote.SignedResponse)
	assert.Equal(t, models.DCCProviderIdentifier, remote.Wrapper.ProviderIdentifier)
	assert.Equal(t, models.StatusComplete, remote.Wrapper.Status)
	require.Len(t, remote.Wrapper.Events, 1)
	assert.Equal(t, models.EventTypeDCC, remote.Wrapper.Events[0].Type())
	assert.Equal(t, "URN:UCI:01:NL:ABC", remote.Wrapper.Events[0].Unique)
	assert.Equal(t, "1960-01-01", c.Identity().BirthDate)
}

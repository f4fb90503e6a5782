package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthwallet/internal/holder/models"
)

func remote(id models.Identity) models.RemoteEvent {
	return models.RemoteEvent{Wrapper: models.EventWrapper{ProviderIdentifier: "GGD", Status: models.StatusComplete, Identity: &id}}
}

func stored(t *testing.T, id models.Identity) models.EventGroup {
	t.Helper()
	raw, err := models.EncodeSignedResponse(remote(id))
	require.NoError(t, err)
	return models.EventGroup{Type: models.ModeVaccination, ProviderIdentifier: "GGD", JSONData: raw}
}

func TestCompare(t *testing.T) {
	bob := models.Identity{FirstName: "Bob", LastName: "Bouwer", BirthDate: "1960-01-01"}
	c := NewComparator()

	tests := []struct {
		name      string
		existing  []models.EventGroup
		incoming  []models.RemoteEvent
		match     bool
		conflicts []string
	}{
		{
			name:     "nothing stored",
			incoming: []models.RemoteEvent{remote(bob)},
			match:    true,
		},
		{
			name:     "same person with diacritics and case",
			existing: []models.EventGroup{stored(t, models.Identity{FirstName: "bób", LastName: "bouwer", BirthDate: "1960-01-01T00:00:00Z"})},
			incoming: []models.RemoteEvent{remote(bob)},
			match:    true,
		},
		{
			name:      "two incoming with different birth dates",
			incoming:  []models.RemoteEvent{remote(bob), remote(models.Identity{FirstName: "Bob", LastName: "Bouwer", BirthDate: "1961-01-01"})},
			match:     false,
			conflicts: []string{FieldBirthDate},
		},
		{
			name:      "stored person differs by name",
			existing:  []models.EventGroup{stored(t, models.Identity{FirstName: "Alice", LastName: "Check", BirthDate: "1960-01-01"})},
			incoming:  []models.RemoteEvent{remote(bob)},
			match:     false,
			conflicts: []string{FieldFirstInitial, FieldLastInitial},
		},
		{
			name:     "undecodable stored group is ignored",
			existing: []models.EventGroup{{JSONData: []byte("{")}},
			incoming: []models.RemoteEvent{remote(bob)},
			match:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, c.Compare(tt.existing, tt.incoming))
			assert.Equal(t, tt.conflicts, c.Conflicts(tt.existing, tt.incoming))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "EMILE ZOLA", Normalize(" Émile Zolá "))
	assert.Equal(t, "", initial("  "))
	assert.Equal(t, "T", initial("'t Hooft"))
}

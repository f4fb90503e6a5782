// Package identity detects when newly retrieved events belong to a different person than
// the events already stored.
package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"healthwallet/internal/holder/models"
)

// Conflicting fields reported by Conflicts.
const (
	FieldBirthDate    = "birth_date"
	FieldFirstInitial = "first_name_initial"
	FieldLastInitial  = "last_name_initial"
)

// Comparator compares identities by birth date and name initials. Initials are compared
// after stripping diacritics and case, so "Émile" and "emile" agree.
type Comparator struct{}

func NewComparator() *Comparator {
	return &Comparator{}
}

// Compare reports whether every identity in remote agrees with every identity already
// stored. Stored groups that cannot be decoded are ignored.
func (c *Comparator) Compare(existing []models.EventGroup, remote []models.RemoteEvent) bool {
	return len(c.Conflicts(existing, remote)) == 0
}

// Conflicts returns the fields on which the identities disagree.
func (c *Comparator) Conflicts(existing []models.EventGroup, remote []models.RemoteEvent) []string {
	var stored []models.Identity
	for _, group := range existing {
		r, err := group.RemoteEvent()
		if err != nil || r.Wrapper.Identity == nil {
			continue
		}
		stored = append(stored, *r.Wrapper.Identity)
	}

	var incoming []models.Identity
	for _, r := range remote {
		if r.Wrapper.Identity != nil {
			incoming = append(incoming, *r.Wrapper.Identity)
		}
	}

	all := append(stored, incoming...)
	if len(all) < 2 || len(incoming) == 0 {
		return nil
	}

	var conflicts []string
	if distinct(all, birthDateOf) > 1 {
		conflicts = append(conflicts, FieldBirthDate)
	}
	if distinct(all, func(i models.Identity) string { return initial(i.FirstName) }) > 1 {
		conflicts = append(conflicts, FieldFirstInitial)
	}
	if distinct(all, func(i models.Identity) string { return initial(i.LastName) }) > 1 {
		conflicts = append(conflicts, FieldLastInitial)
	}
	return conflicts
}

func distinct(ids []models.Identity, field func(models.Identity) string) int {
	values := map[string]bool{}
	for _, id := range ids {
		if v := field(id); v != "" {
			values[v] = true
		}
	}
	return len(values)
}

func birthDateOf(i models.Identity) string {
	if t, ok := models.ParseISODate(i.BirthDate); ok {
		return t.Format("2006-01-02")
	}
	return strings.TrimSpace(i.BirthDate)
}

// initial returns the first letter of the normalized name.
func initial(name string) string {
	for _, r := range Normalize(name) {
		if unicode.IsLetter(r) {
			return string(r)
		}
	}
	return ""
}

// Normalize strips diacritics and upper-cases name.
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, name)
	if err != nil {
		out = name
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

// Package reconcile merges the events of all providers of a retrieval session into the
// ordered list the holder reviews before issuance.
package reconcile

import (
	"sort"
	"time"

	"healthwallet/internal/holder/models"
)

// Tuple is one event with the identity and provider it was reported with.
type Tuple struct {
	Identity           *models.Identity
	Event              models.Event
	ProviderIdentifier string
}

// Date is the event date; events without one sort last.
func (t Tuple) Date() time.Time {
	d, _ := t.Event.Date()
	return d
}

// Item is one list entry. Coalesced vaccinations carry one tuple per reporting provider.
type Item struct {
	Tuples []Tuple
}

// Primary is the tuple the item is displayed with.
func (i Item) Primary() Tuple {
	return i.Tuples[0]
}

// Providers lists the distinct reporting providers in reporting order.
func (i Item) Providers() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range i.Tuples {
		if !seen[t.ProviderIdentifier] {
			seen[t.ProviderIdentifier] = true
			out = append(out, t.ProviderIdentifier)
		}
	}
	return out
}

// Outcome is the kind of result Build produced.
type Outcome string

const (
	OutcomeList     Outcome = "list"
	OutcomePending  Outcome = "pending"
	OutcomeNoEvents Outcome = "no_events"
)

// Result is the reconciled session.
type Result struct {
	Outcome Outcome
	Mode    models.EventMode
	Items   []Item
}

// Build reconciles remote events for mode.
func Build(remote []models.RemoteEvent, mode models.EventMode) Result {
	if isPending(remote) {
		return Result{Outcome: OutcomePending, Mode: mode}
	}

	tuples := Flatten(remote, mode)
	if len(tuples) == 0 {
		return Result{Outcome: OutcomeNoEvents, Mode: mode}
	}

	Sort(tuples)
	items := make([]Item, 0, len(tuples))
	for _, t := range tuples {
		items = append(items, Item{Tuples: []Tuple{t}})
	}
	items = CoalesceVaccinations(items)
	items = DedupeTests(items)

	return Result{Outcome: OutcomeList, Mode: mode, Items: items}
}

// isPending reports a single pending wrapper whose sole event is a test.
func isPending(remote []models.RemoteEvent) bool {
	if len(remote) != 1 {
		return false
	}
	w := remote[0].Wrapper
	return w.Status == models.StatusPending && len(w.Events) == 1 && w.Events[0].IsTest()
}

// Flatten keeps the events of complete wrappers that mode accepts.
func Flatten(remote []models.RemoteEvent, mode models.EventMode) []Tuple {
	var out []Tuple
	for _, r := range remote {
		if r.Wrapper.Status != models.StatusComplete {
			continue
		}
		for _, e := range r.Wrapper.Events {
			if !mode.Accepts(e.Type()) {
				continue
			}
			out = append(out, Tuple{
				Identity:           r.Wrapper.Identity,
				Event:              e,
				ProviderIdentifier: r.Wrapper.ProviderIdentifier,
			})
		}
	}
	return out
}

// Sort orders tuples by date descending, then provider identifier ascending.
func Sort(tuples []Tuple) {
	sort.SliceStable(tuples, func(i, j int) bool {
		di, dj := tuples[i].Date(), tuples[j].Date()
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return tuples[i].ProviderIdentifier < tuples[j].ProviderIdentifier
	})
}

type vaccinationKey struct {
	day          string
	productCode  string
	manufacturer string
}

func keyOf(t Tuple) (vaccinationKey, bool) {
	v, ok := t.Event.Payload.(*models.Vaccination)
	if !ok {
		return vaccinationKey{}, false
	}
	day := v.Date
	if d, ok := models.ParseISODate(v.Date); ok {
		day = d.Format(time.DateOnly)
	}
	return vaccinationKey{day: day, productCode: v.ProductCode(), manufacturer: v.Manufacturer}, true
}

// CoalesceVaccinations merges adjacent vaccination items that describe the same shot as
// reported by different providers. Items sharing a provider are never merged. Running it
// on its own output changes nothing.
func CoalesceVaccinations(items []Item) []Item {
	if len(items) < 2 {
		return items
	}
	out := make([]Item, 0, len(items))
	current := cloneItem(items[0])
	for _, next := range items[1:] {
		if canCoalesce(current, next) {
			current.Tuples = append(current.Tuples, next.Tuples...)
			continue
		}
		out = append(out, current)
		current = cloneItem(next)
	}
	return append(out, current)
}

func canCoalesce(a, b Item) bool {
	ka, ok := keyOf(a.Primary())
	if !ok {
		return false
	}
	kb, ok := keyOf(b.Primary())
	if !ok || ka != kb {
		return false
	}
	providers := map[string]bool{}
	for _, p := range a.Providers() {
		providers[p] = true
	}
	for _, p := range b.Providers() {
		if providers[p] {
			return false
		}
	}
	return true
}

func cloneItem(i Item) Item {
	return Item{Tuples: append([]Tuple(nil), i.Tuples...)}
}

// DedupeTests drops test items whose unique fingerprint was already seen, keeping the
// first occurrence regardless of provider.
func DedupeTests(items []Item) []Item {
	seen := map[string]bool{}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		primary := item.Primary()
		if primary.Event.IsTest() && primary.Event.Unique != "" {
			if seen[primary.Event.Unique] {
				continue
			}
			seen[primary.Event.Unique] = true
		}
		out = append(out, item)
	}
	return out
}

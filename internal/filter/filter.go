// Package filter implements the declarative match predicate a subscription
// declares against incoming events. A filter matches an event iff every
// present predicate category matches (AND across categories, OR within a
// category's set); an absent category imposes no constraint.
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/chorus-relay/chorus/internal/event"
)

// Filter is one subscription's predicate set. Tag queries are keyed by the
// single-letter tag name ("e", "p", ...) taken from the wire form "#e".
// Limit is not a match predicate; it bounds historical replay only.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []uint32
	Since   *uint64
	Until   *uint64
	Tags    map[string][]string
	Limit   *int
}

type wireFilter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []uint32 `json:"kinds,omitempty"`
	Since   *uint64  `json:"since,omitempty"`
	Until   *uint64  `json:"until,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
}

// UnmarshalJSON decodes the wire filter object. Keys of the form "#<letter>"
// become tag queries; unrecognized keys are ignored for forward
// compatibility, but a recognized key with the wrong JSON type is an error
// and the whole filter is rejected.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("filter is not a JSON object: %w", err)
	}

	var wf wireFilter
	if err := json.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("decode filter: %w", err)
	}
	*f = Filter{
		IDs:     wf.IDs,
		Authors: wf.Authors,
		Kinds:   wf.Kinds,
		Since:   wf.Since,
		Until:   wf.Until,
		Limit:   wf.Limit,
	}

	for key, val := range raw {
		if len(key) != 2 || key[0] != '#' {
			continue
		}
		var values []string
		if err := json.Unmarshal(val, &values); err != nil {
			return fmt.Errorf("decode tag query %q: %w", key, err)
		}
		if f.Tags == nil {
			f.Tags = make(map[string][]string)
		}
		f.Tags[key[1:]] = values
	}
	return nil
}

// MarshalJSON emits the wire filter object, including "#<letter>" tag keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any)
	if len(f.IDs) > 0 {
		obj["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		obj["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		obj["kinds"] = f.Kinds
	}
	if f.Since != nil {
		obj["since"] = *f.Since
	}
	if f.Until != nil {
		obj["until"] = *f.Until
	}
	if f.Limit != nil {
		obj["limit"] = *f.Limit
	}
	for letter, values := range f.Tags {
		obj["#"+letter] = values
	}
	return json.Marshal(obj)
}

// Matches reports whether ev satisfies every present predicate category.
// Both timestamp bounds are inclusive: since <= created_at <= until.
func (f *Filter) Matches(ev *event.Event) bool {
	if len(f.IDs) > 0 && !containsString(f.IDs, ev.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, ev.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	for letter, values := range f.Tags {
		if !hasMatchingTag(ev.Tags, letter, values) {
			return false
		}
	}
	return true
}

// hasMatchingTag reports whether the event carries at least one tag whose
// first element is letter and whose second element is in values.
func hasMatchingTag(tags [][]string, letter string, values []string) bool {
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != letter {
			continue
		}
		if containsString(values, tag[1]) {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsKind(set []uint32, k uint32) bool {
	for _, s := range set {
		if s == k {
			return true
		}
	}
	return false
}

// Package vocab holds the per-document controlled vocabulary: for every
// attribute, the set of values already seen while extracting metadata.
package vocab

import (
	"encoding/json"
	"sort"
	"strings"
)

// Vocabulary maps attribute names to sets of known values. Values are only
// ever added; a document's vocabulary shrinks only by deleting it.
// A Vocabulary is not safe for concurrent mutation.
type Vocabulary struct {
	sets map[string]map[string]struct{}
}

// New returns an empty vocabulary.
func New() *Vocabulary {
	return &Vocabulary{sets: make(map[string]map[string]struct{})}
}

// FromMap builds a vocabulary from attribute lists.
func FromMap(m map[string][]string) *Vocabulary {
	v := New()
	v.Merge(m)
	return v
}

// Add inserts values under attr and returns how many were new. Values are
// trimmed; blanks are skipped. An attribute named with no new values is
// still recorded so it shows up in Attributes.
func (v *Vocabulary) Add(attr string, values ...string) int {
	set, ok := v.sets[attr]
	if !ok {
		set = make(map[string]struct{})
		v.sets[attr] = set
	}
	added := 0
	for _, val := range values {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		if _, dup := set[val]; !dup {
			set[val] = struct{}{}
			added++
		}
	}
	return added
}

// Merge adds every attribute list in m and returns the number of new values.
func (v *Vocabulary) Merge(m map[string][]string) int {
	added := 0
	for attr, values := range m {
		added += v.Add(attr, values...)
	}
	return added
}

// Values returns the sorted values of attr.
func (v *Vocabulary) Values(attr string) []string {
	set := v.sets[attr]
	out := make([]string, 0, len(set))
	for val := range set {
		out = append(out, val)
	}
	sort.Strings(out)
	return out
}

// Has reports whether attr contains value.
func (v *Vocabulary) Has(attr, value string) bool {
	_, ok := v.sets[attr][value]
	return ok
}

// Attributes returns the sorted attribute names.
func (v *Vocabulary) Attributes() []string {
	out := make([]string, 0, len(v.sets))
	for attr := range v.sets {
		out = append(out, attr)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of values across attributes.
func (v *Vocabulary) Len() int {
	n := 0
	for _, set := range v.sets {
		n += len(set)
	}
	return n
}

// Snapshot returns a copy as sorted attribute lists.
func (v *Vocabulary) Snapshot() map[string][]string {
	out := make(map[string][]string, len(v.sets))
	for attr := range v.sets {
		out[attr] = v.Values(attr)
	}
	return out
}

// Clone returns an independent copy.
func (v *Vocabulary) Clone() *Vocabulary {
	return FromMap(v.Snapshot())
}

// MarshalJSON writes the vocabulary as {"attr": ["value", ...]}.
func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Snapshot())
}

// UnmarshalJSON reads {"attr": ["value", ...]}, collapsing duplicates.
func (v *Vocabulary) UnmarshalJSON(data []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*v = *FromMap(m)
	return nil
}

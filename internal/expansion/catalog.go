// Package expansion tracks which catalog entries ("expansions") each bot slot
// has confirmed to have no battle left, and persists that record across
// sessions in a single JSON document shared by all slots.
package expansion

import (
	"fmt"
	"sort"
	"strings"
)

// MaxSlots is the number of bot slots a document can hold.
const MaxSlots = 4

// Series identifies one of the two catalogs.
type Series string

const (
	SeriesA Series = "A"
	SeriesB Series = "B"
)

// Lower returns the series letter in lower case, as used in template paths.
func (s Series) Lower() string {
	return strings.ToLower(string(s))
}

// Valid reports whether s is a known series.
func (s Series) Valid() bool {
	return s == SeriesA || s == SeriesB
}

// Key identifies one catalog entry.
type Key struct {
	Series Series
	Name   string
}

// String returns the persisted form, e.g. "A_GA".
func (k Key) String() string {
	return string(k.Series) + "_" + k.Name
}

// ParseKey parses the persisted form produced by Key.String.
func ParseKey(s string) (Key, error) {
	series, name, ok := strings.Cut(s, "_")
	if !ok || name == "" || !Series(series).Valid() {
		return Key{}, fmt.Errorf("invalid expansion key %q", s)
	}
	return Key{Series: Series(series), Name: name}, nil
}

// Catalog is the ordered list of entries of one series. Order decides the
// scan order.
type Catalog struct {
	Series  Series
	Entries []string
}

// Keys returns the catalog entries as keys, in catalog order.
func (c Catalog) Keys() []Key {
	keys := make([]Key, len(c.Entries))
	for i, name := range c.Entries {
		keys[i] = Key{Series: c.Series, Name: name}
	}
	return keys
}

// Default catalog contents.
var (
	DefaultSeriesA = []string{"GA", "MI", "STS", "TL", "SR", "CG", "EC", "EG", "WSS", "SS", "DPex"}
	DefaultSeriesB = []string{"CB", "MR"}
)

// DefaultCatalogs returns fresh copies of the built-in catalogs.
func DefaultCatalogs() []Catalog {
	return []Catalog{
		{Series: SeriesA, Entries: append([]string(nil), DefaultSeriesA...)},
		{Series: SeriesB, Entries: append([]string(nil), DefaultSeriesB...)},
	}
}

// CompletionSet is the set of entries one slot has exhausted.
type CompletionSet map[Key]struct{}

// NewCompletionSet returns a set holding keys.
func NewCompletionSet(keys ...Key) CompletionSet {
	s := make(CompletionSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Add inserts k. Adding a present key is a no-op.
func (s CompletionSet) Add(k Key) {
	s[k] = struct{}{}
}

// Contains reports whether k is in the set.
func (s CompletionSet) Contains(k Key) bool {
	_, ok := s[k]
	return ok
}

// Len returns the number of keys.
func (s CompletionSet) Len() int {
	return len(s)
}

// Keys returns the keys sorted by their persisted form.
func (s CompletionSet) Keys() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Strings returns the sorted persisted forms.
func (s CompletionSet) Strings() []string {
	keys := s.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// Clone returns an independent copy.
func (s CompletionSet) Clone() CompletionSet {
	c := make(CompletionSet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// ValidSlot reports whether slot is a 0-indexed slot id a document can hold.
func ValidSlot(slot int) bool {
	return slot >= 0 && slot < MaxSlots
}

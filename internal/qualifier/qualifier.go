// Package qualifier normalises qualifying annotations into comparable metadata.
package qualifier

import (
	"slices"
	"strings"
)

// A Qualifier disambiguates injectables of the same type.
type Qualifier string

const (
	// Default is implied by an empty qualifier set.
	Default Qualifier = "Default"
	// New forces a fresh instance at an injection site. It never forms part of [Metadata].
	New Qualifier = "New"
)

// Metadata is an order-independent set of qualifiers.
//
// The zero value is the default metadata.
type Metadata struct {
	qualifiers []Qualifier
	key        string
}

var defaultMetadata = Metadata{}

// DefaultMetadata returns the canonical default metadata.
func DefaultMetadata() Metadata { return defaultMetadata }

// Qualifiers in the set, sorted.
func (m Metadata) Qualifiers() []Qualifier { return slices.Clone(m.qualifiers) }

// Names of the qualifiers in the set, sorted.
func (m Metadata) Names() []string {
	out := make([]string, len(m.qualifiers))
	for i, q := range m.qualifiers {
		out[i] = string(q)
	}
	return out
}

// IsDefault returns true if this is the default metadata.
func (m Metadata) IsDefault() bool { return len(m.qualifiers) == 0 }

// Key is a stable string identifying the set, suitable for map keys.
func (m Metadata) Key() string { return m.key }

// Equal returns true if both sets contain the same qualifiers.
func (m Metadata) Equal(other Metadata) bool { return m.key == other.key }

// Satisfies returns true if this metadata carries every qualifier in required.
//
// Default metadata is only satisfied by default metadata.
func (m Metadata) Satisfies(required Metadata) bool {
	if required.IsDefault() {
		return m.IsDefault()
	}
	for _, q := range required.qualifiers {
		if _, ok := slices.BinarySearch(m.qualifiers, q); !ok {
			return false
		}
	}
	return true
}

func (m Metadata) String() string {
	if m.IsDefault() {
		return "@" + string(Default)
	}
	return m.key
}

// Factory creates qualifying metadata.
type Factory interface {
	CreateFrom(qualifiers ...Qualifier) Metadata
	CreateDefault() Metadata
}

// DefaultFactory is the built-in [Factory].
type DefaultFactory struct{}

var _ Factory = DefaultFactory{}

func (DefaultFactory) CreateDefault() Metadata { return defaultMetadata }

// CreateFrom builds metadata from qualifiers, eliminating duplicates.
//
// [Default] is dropped and [New] is ignored, so an empty result is the default metadata.
func (DefaultFactory) CreateFrom(qualifiers ...Qualifier) Metadata {
	set := make([]Qualifier, 0, len(qualifiers))
	for _, q := range qualifiers {
		if q == "" || q == Default || q == New {
			continue
		}
		set = append(set, q)
	}
	if len(set) == 0 {
		return defaultMetadata
	}
	slices.Sort(set)
	set = slices.Compact(set)
	parts := make([]string, len(set))
	for i, q := range set {
		parts[i] = "@" + string(q)
	}
	return Metadata{qualifiers: set, key: strings.Join(parts, " ")}
}

// Resolve merges the declared qualifiers of a type or injection site with any additional
// qualifiers supplied by the call site.
func Resolve(factory Factory, declared, additional []Qualifier) Metadata {
	merged := make([]Qualifier, 0, len(declared)+len(additional))
	merged = append(merged, declared...)
	merged = append(merged, additional...)
	if len(merged) == 0 {
		return factory.CreateDefault()
	}
	return factory.CreateFrom(merged...)
}

// HasNew returns true if qualifiers includes [New].
func HasNew(qualifiers []Qualifier) bool {
	return slices.Contains(qualifiers, New)
}

// FromStrings converts raw annotation names to qualifiers.
func FromStrings(names []string) []Qualifier {
	out := make([]Qualifier, len(names))
	for i, name := range names {
		out[i] = Qualifier(name)
	}
	return out
}

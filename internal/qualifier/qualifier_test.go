package qualifier

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestMetadataOrderIndependent(t *testing.T) {
	factory := DefaultFactory{}
	xy := factory.CreateFrom("X", "Y")
	yx := factory.CreateFrom("Y", "X")
	assert.True(t, xy.Equal(yx))
	assert.Equal(t, xy.Key(), yx.Key())
	assert.Equal(t, []string{"X", "Y"}, yx.Names())
}

func TestMetadataDefault(t *testing.T) {
	factory := DefaultFactory{}
	tests := []struct {
		name       string
		qualifiers []Qualifier
	}{
		{"Empty", nil},
		{"ExplicitDefault", []Qualifier{Default}},
		{"OnlyNew", []Qualifier{New}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := factory.CreateFrom(tt.qualifiers...)
			assert.True(t, md.IsDefault())
			assert.True(t, md.Equal(factory.CreateDefault()))
			assert.True(t, md.Equal(DefaultMetadata()))
		})
	}
}

func TestMetadataDuplicates(t *testing.T) {
	md := DefaultFactory{}.CreateFrom("X", "X", "Y", "X")
	assert.Equal(t, []Qualifier{"X", "Y"}, md.Qualifiers())
	assert.Equal(t, "@X @Y", md.String())
}

func TestResolve(t *testing.T) {
	factory := DefaultFactory{}
	assert.True(t, Resolve(factory, nil, nil).IsDefault())
	md := Resolve(factory, []Qualifier{"B"}, []Qualifier{"A", "B"})
	assert.True(t, md.Equal(factory.CreateFrom("A", "B")))
	assert.True(t, Resolve(factory, nil, []Qualifier{New}).IsDefault())
}

func TestSatisfies(t *testing.T) {
	factory := DefaultFactory{}
	tests := []struct {
		name     string
		bean     Metadata
		required Metadata
		expected bool
	}{
		{"DefaultDefault", factory.CreateDefault(), factory.CreateDefault(), true},
		{"QualifiedBeanDefaultSite", factory.CreateFrom("A"), factory.CreateDefault(), false},
		{"DefaultBeanQualifiedSite", factory.CreateDefault(), factory.CreateFrom("A"), false},
		{"Exact", factory.CreateFrom("A", "B"), factory.CreateFrom("B", "A"), true},
		{"Superset", factory.CreateFrom("A", "B"), factory.CreateFrom("A"), true},
		{"Subset", factory.CreateFrom("A"), factory.CreateFrom("A", "B"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.bean.Satisfies(tt.required))
		})
	}
}

func TestHasNew(t *testing.T) {
	assert.True(t, HasNew([]Qualifier{"A", New}))
	assert.False(t, HasNew([]Qualifier{"A"}))
}

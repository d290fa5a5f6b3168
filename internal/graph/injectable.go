package graph

import (
	"fmt"
	"go/token"
	"go/types"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/alecthomas/ioc/internal/codewriter"
	"github.com/alecthomas/ioc/internal/meta"
	"github.com/alecthomas/ioc/internal/qualifier"
)

// Handle identifies an injectable by type and qualifying metadata.
type Handle struct {
	Type      types.Type
	Qualifier qualifier.Metadata
}

// Key is a stable string identifying the handle.
func (h Handle) Key() string {
	key := types.TypeString(h.Type, nil)
	if !h.Qualifier.IsDefault() {
		key += " " + h.Qualifier.Key()
	}
	return key
}

func (h Handle) String() string { return h.Key() }

// Kind of an injectable.
type Kind int

const (
	// KindType is an annotated type constructed by its constructor or composite literal.
	KindType Kind = iota
	// KindProducer is the result of a provider function.
	KindProducer
	// KindExtensionProvided is supplied by an extension's [InjectableProvider].
	KindExtensionProvided
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindProducer:
		return "producer"
	case KindExtensionProvided:
		return "extension"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// WiringElementType flags describe how an injectable participates in wiring.
type WiringElementType int

const (
	SingletonBean WiringElementType = 1 << iota
	DependentBean
	AlternativeBean
	TestMockBean
)

// Has returns true if all flags in other are set.
func (w WiringElementType) Has(other WiringElementType) bool { return w&other == other }

func (w WiringElementType) String() string {
	var out []string
	for flag, name := range map[WiringElementType]string{
		SingletonBean:   "singleton",
		DependentBean:   "dependent",
		AlternativeBean: "alternative",
		TestMockBean:    "mock",
	} {
		if w.Has(flag) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return strings.Join(out, ",")
}

// A BodyGenerator emits the statements that create an extension-provided instance.
//
// The statements must assign the instance to the variable named by value and may assign
// err, which is checked by the caller.
type BodyGenerator interface {
	CreateInstance(w *codewriter.Writer, inj *Injectable, value string) error
}

// Injectable is a resolvable (type, qualifier) pair and how to construct it.
type Injectable struct {
	Handle
	Kind     Kind
	Wiring   WiringElementType
	Position token.Position
	// Name is stable across generation runs.
	Name string
	// Bean is set for KindType.
	Bean *meta.Type
	// Producer is set for KindProducer.
	Producer *meta.Func
	// Body is set for KindExtensionProvided.
	Body  BodyGenerator
	Sites []*Site
}

// Singleton returns true if a single instance is shared by all consumers.
func (i *Injectable) Singleton() bool { return i.Wiring.Has(SingletonBean) }

// Proxyable returns true if a forward reference to the injectable can be handed out
// before it is constructed.
//
// Only singletons that are pointers to structs qualify, as a placeholder can be allocated
// for them and patched once the real instance exists.
func (i *Injectable) Proxyable() bool {
	if !i.Singleton() {
		return false
	}
	ptr, ok := i.Type.(*types.Pointer)
	if !ok {
		return false
	}
	_, ok = ptr.Elem().Underlying().(*types.Struct)
	return ok
}

// Ref is the reference used to pick this injectable on the command line.
//
// This is the full function name for producers and the type for everything else.
func (i *Injectable) Ref() string {
	if i.Producer != nil {
		return i.Producer.Func.FullName()
	}
	return types.TypeString(i.Type, nil)
}

func (i *Injectable) String() string {
	if i.Producer != nil {
		return fmt.Sprintf("%s (%s)", i.Key(), i.Producer.Func.FullName())
	}
	return i.Key()
}

// SiteKind is the kind of injection point.
type SiteKind int

const (
	SiteConstructorParam SiteKind = iota
	SiteProducerParam
	SiteField
	SiteSetterParam
)

func (k SiteKind) String() string {
	switch k {
	case SiteConstructorParam:
		return "constructor parameter"
	case SiteProducerParam:
		return "provider parameter"
	case SiteField:
		return "field"
	case SiteSetterParam:
		return "setter parameter"
	}
	return fmt.Sprintf("SiteKind(%d)", int(k))
}

// Site is an injection point requesting an injectable.
type Site struct {
	Owner *Injectable
	Kind  SiteKind
	Name  string
	// Index of the parameter for parameter sites.
	Index int
	// Setter is set for SiteSetterParam.
	Setter *meta.Func
	Handle Handle
	// New forces a fresh instance, bypassing singleton caching.
	New bool
}

func (s *Site) String() string {
	owner := "<root>"
	if s.Owner != nil {
		owner = s.Owner.Key()
	}
	if s.Setter != nil {
		return fmt.Sprintf("%s %q of %s.%s", s.Kind, s.Name, owner, s.Setter.Func.Name())
	}
	return fmt.Sprintf("%s %q of %s", s.Kind, s.Name, owner)
}

// A NameGenerator derives stable generated names for injectables.
type NameGenerator interface {
	GenerateFor(t types.Type, md qualifier.Metadata, kind Kind) string
}

// HashNameGenerator names injectables from a hash of their type, qualifiers and kind.
type HashNameGenerator struct{}

var _ NameGenerator = HashNameGenerator{}

func (HashNameGenerator) GenerateFor(t types.Type, md qualifier.Metadata, kind Kind) string {
	h := xxhash.New()
	_, _ = h.WriteString(types.TypeString(t, nil))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(md.Key())
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(kind.String())
	return fmt.Sprintf("%s_%s_%08x", kind, SimpleName(t), uint32(h.Sum64())) //nolint:gosec
}

// SimpleName returns a short identifier-safe name for a type.
//
// eg. *github.com/example/app.Service becomes Service, []string becomes string.
func SimpleName(t types.Type) string {
	for {
		switch tt := t.(type) {
		case *types.Pointer:
			t = tt.Elem()
			continue
		case *types.Slice:
			t = tt.Elem()
			continue
		case *types.Array:
			t = tt.Elem()
			continue
		case *types.Map:
			t = tt.Elem()
			continue
		case *types.Named:
			return tt.Obj().Name()
		case *types.Alias:
			return tt.Obj().Name()
		case *types.Basic:
			return tt.Name()
		}
		break
	}
	out := strings.Map(func(r rune) rune {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, types.TypeString(t, func(*types.Package) string { return "" }))
	if out == "" {
		return "value"
	}
	return out
}

package graph

import (
	"fmt"
	"go/types"
	"log/slog"
	"slices"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/ioc/internal/directiveparser"
	"github.com/alecthomas/ioc/internal/meta"
	"github.com/alecthomas/ioc/internal/qualifier"
)

// An InjectableProvider lazily supplies an injectable for an injection site.
//
// Providers must not have side effects beyond constructing the injectable, as they are
// invoked at most once per handle, and not at all if the handle is never referenced.
type InjectableProvider interface {
	Injectable(site *Site, names NameGenerator) (*Injectable, error)
}

// InjectableProviderFunc adapts a function to [InjectableProvider].
type InjectableProviderFunc func(site *Site, names NameGenerator) (*Injectable, error)

func (f InjectableProviderFunc) Injectable(site *Site, names NameGenerator) (*Injectable, error) {
	return f(site, names)
}

// ProviderKind selects how an [InjectableProvider] is matched against injection sites.
type ProviderKind int

const (
	// ExactTypeProvider matches sites whose type is identical to the handle type.
	ExactTypeProvider ProviderKind = iota
	// AssignableTypeProvider matches sites whose type is assignable to the handle type.
	AssignableTypeProvider
)

type registeredProvider struct {
	kind     ProviderKind
	handle   Handle
	provider InjectableProvider
}

// An ExtensionTypeCallback is invoked once per discovered type after initialisation.
type ExtensionTypeCallback func(registry *Registry, t *meta.Type) error

type registryOptions struct {
	factory      qualifier.Factory
	names        NameGenerator
	logger       *slog.Logger
	picks        []string
	alternatives []string
	mocks        bool
}

// Option configures a [Registry].
type Option func(*registryOptions)

// WithQualifierFactory overrides the qualifying metadata factory.
func WithQualifierFactory(factory qualifier.Factory) Option {
	return func(o *registryOptions) { o.factory = factory }
}

// WithNameGenerator overrides how stable injectable names are generated.
func WithNameGenerator(names NameGenerator) Option {
	return func(o *registryOptions) { o.names = names }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *registryOptions) { o.logger = logger }
}

// WithPicks selects injectables to resolve ambiguous injection sites.
//
// Each pick is either a full function name for providers, or a type reference.
func WithPicks(picks ...string) Option {
	return func(o *registryOptions) { o.picks = append(o.picks, picks...) }
}

// WithAlternatives enables alternative beans by reference.
func WithAlternatives(refs ...string) Option {
	return func(o *registryOptions) { o.alternatives = append(o.alternatives, refs...) }
}

// WithTestMocks enables test mock beans.
func WithTestMocks(enable bool) Option {
	return func(o *registryOptions) { o.mocks = enable }
}

// Registry holds every known injectable and resolves injection sites to them.
//
// A Registry is owned by a single generation pass and is not safe for concurrent use.
type Registry struct {
	opts        registryOptions
	injectables []*Injectable
	byType      map[string][]*Injectable
	providers   []*registeredProvider
	// Injectables computed by providers, keyed by provider handle.
	cache     map[string]*Injectable
	provided  []*Injectable
	callbacks []ExtensionTypeCallback
	resolved  map[*Site]*Injectable
}

// NewRegistry creates an empty Registry.
func NewRegistry(options ...Option) *Registry {
	opts := registryOptions{
		factory: qualifier.DefaultFactory{},
		names:   HashNameGenerator{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(&opts)
	}
	return &Registry{
		opts:     opts,
		byType:   map[string][]*Injectable{},
		cache:    map[string]*Injectable{},
		resolved: map[*Site]*Injectable{},
	}
}

// QualifierFactory returns the qualifying metadata factory used by the registry.
func (r *Registry) QualifierFactory() qualifier.Factory { return r.opts.factory }

// Names returns the name generator used by the registry.
func (r *Registry) Names() NameGenerator { return r.opts.names }

// Logger returns the registry's logger.
func (r *Registry) Logger() *slog.Logger { return r.opts.logger }

// Injectables returns all explicitly registered injectables, in registration order.
func (r *Registry) Injectables() []*Injectable { return slices.Clone(r.injectables) }

// Provided returns injectables computed by providers so far.
func (r *Registry) Provided() []*Injectable { return slices.Clone(r.provided) }

// Register an injectable.
//
// Returns false if the injectable was skipped because it is a disabled alternative or test mock.
func (r *Registry) Register(inj *Injectable) bool {
	if inj.Wiring.Has(TestMockBean) && !r.opts.mocks {
		r.opts.logger.Debug("Skipping disabled test mock", "injectable", inj)
		return false
	}
	if inj.Wiring.Has(AlternativeBean) && !slices.Contains(r.opts.alternatives, inj.Ref()) {
		r.opts.logger.Debug("Skipping disabled alternative", "injectable", inj)
		return false
	}
	r.injectables = append(r.injectables, inj)
	key := types.TypeString(inj.Type, nil)
	r.byType[key] = append(r.byType[key], inj)
	return true
}

// RegisterType creates and registers the injectable for an annotated type.
//
// Returns nil if the type has no bean directive or was skipped.
func (r *Registry) RegisterType(t *meta.Type) (*Injectable, error) {
	bean, ok := t.Bean()
	if !ok {
		return nil, nil
	}
	md := qualifier.Resolve(r.opts.factory, t.Qualifiers(), nil)
	inj := &Injectable{
		Handle:   Handle{Type: t.Type, Qualifier: md},
		Kind:     KindType,
		Wiring:   wiring(bean.Singleton(), bean.Alternative, bean.Mock),
		Position: t.Position,
		Name:     r.opts.names.GenerateFor(t.Type, md, KindType),
		Bean:     t,
	}
	if t.Constructor != nil {
		if !types.Identical(t.Constructor.Returns, t.Type) {
			return nil, errors.Errorf("%s: constructor %s returns %s, expected %s", t.Constructor.Position,
				t.Constructor.Func.Name(), types.TypeString(t.Constructor.Returns, nil), t)
		}
		for i, param := range t.Constructor.Params {
			inj.Sites = append(inj.Sites, r.newSite(inj, SiteConstructorParam, param.Name, i, nil, param.Type, param.Qualifiers))
		}
	}
	for _, field := range t.Fields {
		inj.Sites = append(inj.Sites, r.newSite(inj, SiteField, field.Name, 0, nil, field.Type, field.Qualifiers))
	}
	for _, setter := range t.Setters {
		var setterQualifiers []qualifier.Qualifier
		if directive, ok := setter.Directive.(*directiveparser.DirectiveInject); ok {
			setterQualifiers = qualifier.FromStrings(directive.Qualifiers)
			if directive.New {
				setterQualifiers = append(setterQualifiers, qualifier.New)
			}
		}
		for i, param := range setter.Params {
			qualifiers := append(slices.Clone(setterQualifiers), param.Qualifiers...)
			inj.Sites = append(inj.Sites, r.newSite(inj, SiteSetterParam, param.Name, i, setter, param.Type, qualifiers))
		}
	}
	if !r.Register(inj) {
		return nil, nil
	}
	return inj, nil
}

// RegisterProducer creates and registers the injectable for a provider function.
//
// Returns nil if the provider was skipped.
func (r *Registry) RegisterProducer(fn *meta.Func) (*Injectable, error) {
	directive, ok := fn.Provider()
	if !ok {
		return nil, errors.Errorf("%s: %s is not a provider", fn.Position, fn)
	}
	md := qualifier.Resolve(r.opts.factory, qualifier.FromStrings(directive.Qualifiers), nil)
	inj := &Injectable{
		Handle:   Handle{Type: fn.Returns, Qualifier: md},
		Kind:     KindProducer,
		Wiring:   wiring(directive.Singleton(), directive.Alternative, directive.Mock),
		Position: fn.Position,
		Name:     r.opts.names.GenerateFor(fn.Returns, md, KindProducer),
		Producer: fn,
	}
	for i, param := range fn.Params {
		inj.Sites = append(inj.Sites, r.newSite(inj, SiteProducerParam, param.Name, i, nil, param.Type, param.Qualifiers))
	}
	if !r.Register(inj) {
		return nil, nil
	}
	return inj, nil
}

// newSite creates an injection site owned by owner.
//
// A [qualifier.New] qualifier is lifted onto the site rather than its metadata.
func (r *Registry) newSite(owner *Injectable, kind SiteKind, name string, index int, setter *meta.Func, t types.Type, qualifiers []qualifier.Qualifier) *Site {
	return &Site{
		Owner:  owner,
		Kind:   kind,
		Name:   name,
		Index:  index,
		Setter: setter,
		Handle: Handle{Type: t, Qualifier: qualifier.Resolve(r.opts.factory, qualifiers, nil)},
		New:    qualifier.HasNew(qualifiers),
	}
}

// RegisterExactTypeInjectableProvider registers a provider for sites whose type is
// identical to the handle's type and whose qualifiers the handle satisfies.
func (r *Registry) RegisterExactTypeInjectableProvider(handle Handle, provider InjectableProvider) {
	r.providers = append(r.providers, &registeredProvider{kind: ExactTypeProvider, handle: handle, provider: provider})
}

// RegisterAssignableTypeInjectableProvider registers a provider for sites whose type is
// assignable to the handle's type.
func (r *Registry) RegisterAssignableTypeInjectableProvider(handle Handle, provider InjectableProvider) {
	r.providers = append(r.providers, &registeredProvider{kind: AssignableTypeProvider, handle: handle, provider: provider})
}

// RegisterExtensionTypeCallback registers a callback invoked for every discovered type by
// [Registry.SweepExtensionTypes].
func (r *Registry) RegisterExtensionTypeCallback(callback ExtensionTypeCallback) {
	r.callbacks = append(r.callbacks, callback)
}

// SweepExtensionTypes invokes every registered extension type callback once per type.
func (r *Registry) SweepExtensionTypes(discovered []*meta.Type) error {
	for _, t := range discovered {
		for _, callback := range r.callbacks {
			if err := callback(r, t); err != nil {
				return errors.WithStack(err)
			}
		}
	}
	return nil
}

// Resolve the injectable satisfying an injection site.
//
// Injectables of exactly the requested type are preferred over those merely assignable
// to it. Among the remaining candidates enabled test mocks win over enabled alternatives,
// which win over ordinary beans. Any remaining ambiguity is settled by picks, then by an
// exact qualifier match.
func (r *Registry) Resolve(site *Site) (*Injectable, error) {
	if inj, ok := r.resolved[site]; ok {
		return inj, nil
	}
	candidates, err := r.candidates(site)
	if err != nil {
		return nil, err
	}
	inj, err := r.choose(site, candidates)
	if err != nil {
		return nil, err
	}
	r.opts.logger.Debug("Resolved injection site", "site", site, "injectable", inj)
	r.resolved[site] = inj
	return inj, nil
}

func (r *Registry) candidates(site *Site) ([]*Injectable, error) {
	required := site.Handle
	var exact []*Injectable
	for _, inj := range r.byType[types.TypeString(required.Type, nil)] {
		if inj.Qualifier.Satisfies(required.Qualifier) {
			exact = append(exact, inj)
		}
	}
	for _, p := range r.providers {
		if p.kind != ExactTypeProvider || !types.Identical(p.handle.Type, required.Type) ||
			!p.handle.Qualifier.Satisfies(required.Qualifier) {
			continue
		}
		inj, err := r.provide(p, p.handle.Key(), site)
		if err != nil {
			return nil, err
		}
		exact = append(exact, inj)
	}
	if len(exact) > 0 {
		return exact, nil
	}

	var assignable []*Injectable
	if types.IsInterface(required.Type) {
		for _, inj := range r.injectables {
			if types.AssignableTo(inj.Type, required.Type) && inj.Qualifier.Satisfies(required.Qualifier) {
				assignable = append(assignable, inj)
			}
		}
	}
	for i, p := range r.providers {
		if p.kind != AssignableTypeProvider || !types.AssignableTo(required.Type, p.handle.Type) ||
			!p.handle.Qualifier.Satisfies(required.Qualifier) {
			continue
		}
		key := fmt.Sprintf("%d:%s", i, Handle{Type: required.Type, Qualifier: p.handle.Qualifier}.Key())
		inj, err := r.provide(p, key, site)
		if err != nil {
			return nil, err
		}
		assignable = append(assignable, inj)
	}
	return assignable, nil
}

// provide returns the memoised injectable for a provider, invoking it on first use.
func (r *Registry) provide(p *registeredProvider, key string, site *Site) (*Injectable, error) {
	if inj, ok := r.cache[key]; ok {
		return inj, nil
	}
	inj, err := p.provider.Injectable(site, r.opts.names)
	if err != nil {
		return nil, errors.Errorf("%s: %w", p.handle, err)
	}
	if inj == nil {
		return nil, errors.Errorf("%s: provider returned no injectable", p.handle)
	}
	r.opts.logger.Debug("Provider supplied injectable", "handle", p.handle, "injectable", inj)
	r.cache[key] = inj
	r.provided = append(r.provided, inj)
	return inj, nil
}

func (r *Registry) choose(site *Site, candidates []*Injectable) (*Injectable, error) {
	if len(candidates) == 0 {
		return nil, &UnresolvableError{Site: site}
	}
	for _, flag := range []WiringElementType{TestMockBean, AlternativeBean} {
		if preferred := filter(candidates, func(inj *Injectable) bool { return inj.Wiring.Has(flag) }); len(preferred) > 0 {
			candidates = preferred
			break
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if picked := filter(candidates, func(inj *Injectable) bool { return slices.Contains(r.opts.picks, inj.Ref()) }); len(picked) == 1 {
		return picked[0], nil
	}
	if matched := filter(candidates, func(inj *Injectable) bool { return inj.Qualifier.Equal(site.Handle.Qualifier) }); len(matched) == 1 {
		return matched[0], nil
	}
	return nil, &AmbiguousError{Site: site, Candidates: candidates}
}

func filter(injectables []*Injectable, predicate func(*Injectable) bool) []*Injectable {
	var out []*Injectable
	for _, inj := range injectables {
		if predicate(inj) {
			out = append(out, inj)
		}
	}
	return out
}

func wiring(singleton, alternative, mock bool) WiringElementType {
	out := DependentBean
	if singleton {
		out = SingletonBean
	}
	if alternative {
		out |= AlternativeBean
	}
	if mock {
		out |= TestMockBean
	}
	return out
}

package ioc

import (
	"context"
	"reflect"
	"sync"

	"github.com/alecthomas/errors"
)

// ErrBeanNotFound is returned when no bean matches a lookup.
var ErrBeanNotFound = errors.New("bean not found")

type bean struct {
	ref      BeanRef
	scope    Scope
	callback func(cctx *CreationalContext) (any, error)
	instance any
	created  bool
}

// BeanManager holds every bean registered during bootstrap.
//
// It is safe for concurrent use.
type BeanManager struct {
	cctx  *CreationalContext
	lock  sync.RWMutex
	beans map[BeanRef]*bean
	order []BeanRef
}

func newBeanManager(cctx *CreationalContext) *BeanManager {
	return &BeanManager{cctx: cctx, beans: map[BeanRef]*bean{}}
}

func (m *BeanManager) entry(ref BeanRef) *bean {
	b, ok := m.beans[ref]
	if !ok {
		b = &bean{ref: ref}
		m.beans[ref] = b
		m.order = append(m.order, ref)
	}
	return b
}

// addBean records instance as the current instance of ref.
//
// A singleton is recorded once. Later instances, created for sites that force a new
// instance, never replace it.
func (m *BeanManager) addBean(ref BeanRef, instance any) {
	m.lock.Lock()
	defer m.lock.Unlock()
	b := m.entry(ref)
	if b.scope == Singleton && b.created {
		return
	}
	b.instance = instance
	b.created = true
}

func (m *BeanManager) addCallback(ref BeanRef, scope Scope, callback func(cctx *CreationalContext) (any, error)) {
	m.lock.Lock()
	defer m.lock.Unlock()
	b := m.entry(ref)
	b.scope = scope
	b.callback = callback
}

// Beans returns references to every registered bean, in registration order.
func (m *BeanManager) Beans() []BeanRef {
	m.lock.RLock()
	defer m.lock.RUnlock()
	out := make([]BeanRef, len(m.order))
	copy(out, m.order)
	return out
}

// resolve returns an instance of a bean, creating a new one for dependent beans.
func (m *BeanManager) resolve(ctx context.Context, ref BeanRef) (any, error) {
	m.lock.RLock()
	b, ok := m.beans[ref]
	var (
		scope    Scope
		callback func(cctx *CreationalContext) (any, error)
		instance any
		created  bool
	)
	if ok {
		scope, callback, instance, created = b.scope, b.callback, b.instance, b.created
	}
	m.lock.RUnlock()
	if !ok {
		return nil, errors.Errorf("%s: %w", ref, ErrBeanNotFound)
	}
	if scope == Singleton && created {
		return instance, nil
	}
	if callback == nil {
		if created {
			return instance, nil
		}
		return nil, errors.Errorf("%s: %w", ref, ErrBeanNotFound)
	}
	m.cctx.Logger().Debug("Creating bean", "bean", ref, "scope", scope)
	out, err := callback(m.cctx.withContext(ctx))
	if err != nil {
		return nil, errors.Errorf("%s: %w", ref, err)
	}
	return out, nil
}

// Lookup returns an instance of the bean of type T with exactly the given qualifiers.
//
// Singletons are shared, while each lookup of a dependent bean creates a new instance.
func Lookup[T any](ctx context.Context, m *BeanManager, qualifiers ...string) (out T, err error) {
	ref := NewBeanRef(reflect.TypeFor[T](), qualifiers)
	instance, err := m.resolve(ctx, ref)
	if err != nil {
		return out, err
	}
	out, ok := instance.(T)
	if !ok {
		return out, errors.Errorf("%s: bean is a %T", ref, instance)
	}
	return out, nil
}

// LookupAll returns an instance of every bean assignable to T, regardless of qualifiers,
// in registration order.
func LookupAll[T any](ctx context.Context, m *BeanManager) ([]T, error) {
	target := reflect.TypeFor[T]()
	var out []T
	for _, ref := range m.Beans() {
		if !ref.Type.AssignableTo(target) {
			continue
		}
		instance, err := m.resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, instance.(T)) //nolint:forcetypeassert
	}
	return out, nil
}

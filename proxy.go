package ioc

import "sync"

// Proxy is a forward reference to a singleton that is part of a dependency cycle.
//
// Members of the cycle constructed before the singleton receive the placeholder returned
// by [Proxy.Instance]. As soon as the singleton is constructed, [Proxy.Bind] copies it into
// the placeholder and the placeholder becomes the singleton. Binding happens before any
// field or setter injection, so nothing ever observes the discarded copy.
type Proxy[T any] struct {
	cctx        *CreationalContext
	ref         BeanRef
	lock        sync.Mutex
	placeholder *T
	bound       bool
}

// NewProxy creates an unbound proxy for the bean identified by ref.
func NewProxy[T any](cctx *CreationalContext, ref BeanRef) *Proxy[T] {
	return &Proxy[T]{cctx: cctx, ref: ref, placeholder: new(T)}
}

// Instance returns the placeholder.
//
// The placeholder holds the zero value of T until the proxy is bound.
func (p *Proxy[T]) Instance() *T { return p.placeholder }

// Bound returns true once the proxy has been bound.
func (p *Proxy[T]) Bound() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.bound
}

// Bind the proxy to instance, returning the placeholder that replaces it.
//
// Only the first call binds. Subsequent calls return instance unchanged.
func (p *Proxy[T]) Bind(instance *T) *T {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.bound {
		return instance
	}
	p.bound = true
	if instance != p.placeholder {
		*p.placeholder = *instance
	}
	p.cctx.Logger().Debug("Bound proxy", "bean", p.ref)
	return p.placeholder
}

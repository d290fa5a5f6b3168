// Package ioc contains the runtime used by code generated by iocgen.
//
// Generated bootstrap code creates a [CreationalContext], registers a creational
// callback for every bean, instantiates singletons, and returns the populated
// [BeanManager].
package ioc

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
)

// Scope of a bean.
type Scope int

const (
	// Dependent beans are created for every injection point and lookup.
	Dependent Scope = iota
	// Singleton beans are created once at bootstrap and shared.
	Singleton
)

func (s Scope) String() string {
	if s == Singleton {
		return "singleton"
	}
	return "dependent"
}

// DefaultQualifier is implied when no qualifiers are given.
const DefaultQualifier = "Default"

// Option configures the runtime.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	document Document
}

// WithLogger sets the logger used by the runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDocument sets the document used to create element beans.
func WithDocument(document Document) Option {
	return func(o *options) { o.document = document }
}

// BeanRef identifies a bean by type and qualifiers.
type BeanRef struct {
	Type reflect.Type
	// Qualifiers is the sorted, comma separated set of qualifiers.
	Qualifiers string
}

func (r BeanRef) String() string {
	if r.Qualifiers == "" {
		return r.Type.String()
	}
	return fmt.Sprintf("%s[%s]", r.Type, r.Qualifiers)
}

// NewBeanRef creates a BeanRef, normalising qualifiers.
func NewBeanRef(t reflect.Type, qualifiers []string) BeanRef {
	normalised := make([]string, 0, len(qualifiers))
	for _, q := range qualifiers {
		if q != "" && q != DefaultQualifier {
			normalised = append(normalised, q)
		}
	}
	slices.Sort(normalised)
	normalised = slices.Compact(normalised)
	return BeanRef{Type: t, Qualifiers: strings.Join(normalised, ",")}
}

// CreationalContext is passed to every creational callback.
type CreationalContext struct {
	ctx     context.Context
	manager *BeanManager
	opts    options
}

// NewCreationalContext creates the context for a bootstrap run, along with an empty
// [BeanManager].
func NewCreationalContext(ctx context.Context, opts ...Option) *CreationalContext {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	cctx := &CreationalContext{ctx: ctx, opts: o}
	cctx.manager = newBeanManager(cctx)
	return cctx
}

// withContext returns a copy of the CreationalContext sharing its bean manager.
func (c *CreationalContext) withContext(ctx context.Context) *CreationalContext {
	out := *c
	out.ctx = ctx
	return &out
}

// Context returns the context of the current bootstrap or lookup.
func (c *CreationalContext) Context() context.Context { return c.ctx }

// Logger returns the runtime logger.
func (c *CreationalContext) Logger() *slog.Logger { return c.opts.logger }

// BeanManager returns the bean manager populated by this context.
func (c *CreationalContext) BeanManager() *BeanManager { return c.manager }

// GetBeanReference returns the reference for a bean type and qualifiers.
func (c *CreationalContext) GetBeanReference(t reflect.Type, qualifiers []string) BeanRef {
	return NewBeanRef(t, qualifiers)
}

// AddBean records the most recently created instance of a bean.
//
// Once a singleton has been recorded, further instances are ignored.
func (c *CreationalContext) AddBean(ref BeanRef, instance any) {
	c.manager.addBean(ref, instance)
}

// AddCallback registers the creational callback for a bean.
func (c *CreationalContext) AddCallback(ref BeanRef, scope Scope, callback func(cctx *CreationalContext) (any, error)) {
	c.manager.addCallback(ref, scope, callback)
}

// CreationalCallback creates an instance of a bean.
type CreationalCallback[T any] func(cctx *CreationalContext) (T, error)

// GetInstance invokes the callback.
func (cb CreationalCallback[T]) GetInstance(cctx *CreationalContext) (T, error) {
	return cb(cctx)
}

// Any adapts the callback to return an untyped instance.
func (cb CreationalCallback[T]) Any() func(cctx *CreationalContext) (any, error) {
	return func(cctx *CreationalContext) (any, error) {
		return cb(cctx)
	}
}

package ioc

import (
	"context"

	"github.com/alecthomas/errors"
)

// ErrNoDocument is returned when an element bean is created without a [Document].
var ErrNoDocument = errors.New("no document configured, use ioc.WithDocument")

// Document creates elements for beans declared with //ioc:element.
type Document interface {
	CreateElement(ctx context.Context, tag string) (any, error)
}

// DocumentFunc adapts a function to [Document].
type DocumentFunc func(ctx context.Context, tag string) (any, error)

func (f DocumentFunc) CreateElement(ctx context.Context, tag string) (any, error) { return f(ctx, tag) }

// CreateElement creates an element with the given tag and casts it to T.
func CreateElement[T any](cctx *CreationalContext, tag string) (out T, err error) {
	if cctx.opts.document == nil {
		return out, errors.Errorf("<%s>: %w", tag, ErrNoDocument)
	}
	element, err := cctx.opts.document.CreateElement(cctx.Context(), tag)
	if err != nil {
		return out, errors.Errorf("<%s>: %w", tag, err)
	}
	out, ok := element.(T)
	if !ok {
		return out, errors.Errorf("<%s>: document created a %T, not a %T", tag, element, out)
	}
	return out, nil
}

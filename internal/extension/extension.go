// Package extension lets framework modules participate in graph construction.
//
// Extensions register injectable providers and type callbacks with the registry. Type
// callbacks are invoked once per discovered type after every extension has initialised.
package extension

import (
	"github.com/alecthomas/errors"

	"github.com/alecthomas/ioc/internal/graph"
	"github.com/alecthomas/ioc/internal/meta"
)

// A Configurator is an extension of the generator.
type Configurator interface {
	// Configure is called before any injectables are registered.
	Configure(registry *graph.Registry) error
	// AfterInitialization is called once all scanned injectables have been registered.
	AfterInitialization(registry *graph.Registry) error
}

// Configure all extensions.
func Configure(registry *graph.Registry, extensions ...Configurator) error {
	for _, extension := range extensions {
		if err := extension.Configure(registry); err != nil {
			return errors.Wrap(err, "extension configuration failed")
		}
	}
	return nil
}

// Initialise runs the post-initialisation hooks of all extensions, then sweeps every
// discovered type through the registered type callbacks.
func Initialise(registry *graph.Registry, discovered []*meta.Type, extensions ...Configurator) error {
	for _, extension := range extensions {
		if err := extension.AfterInitialization(registry); err != nil {
			return errors.Wrap(err, "extension initialisation failed")
		}
	}
	return errors.WithStack(registry.SweepExtensionTypes(discovered))
}

// Package graph maintains the universe of injectables for a generation pass, resolves
// injection sites to them, and builds the dependency graph the injectors emit code from.
//
// The rules applied when resolving an injection site are:
//
//  1. Injectables whose type is identical to the site's type are candidates, as are
//     exact-type providers registered for that type. Qualifiers on the site must all be
//     carried by the candidate; a site without qualifiers only matches default injectables.
//  2. Only if there are no exact candidates, injectables assignable to an interface-typed
//     site are candidates, as are assignable-type providers.
//  3. Enabled test mocks are preferred over enabled alternatives, which are preferred over
//     ordinary beans. Disabled mocks and alternatives are never registered.
//  4. A candidate picked by the user wins, then a candidate whose qualifiers exactly match.
//  5. Anything else is ambiguous.
//
// Providers are invoked lazily, at most once per handle, and their result is cached by the
// registry.
//
// Cycles are allowed if every cycle contains a proxyable member: a singleton that is a
// pointer to a struct. Consumers inside the cycle receive a placeholder for the proxy
// target which is patched once the target is constructed.
package graph

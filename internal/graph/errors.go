package graph

import (
	"fmt"
	"go/token"
	"strings"
)

// UnresolvableError is returned when no injectable matches an injection site.
type UnresolvableError struct {
	Site *Site
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("%sno injectable matches %s, which is required by %s", position(e.Site.Owner), e.Site.Handle, e.Site)
}

// AmbiguousError is returned when more than one injectable matches an injection site.
type AmbiguousError struct {
	Site       *Site
	Candidates []*Injectable
}

func (e *AmbiguousError) Error() string {
	candidates := make([]string, len(e.Candidates))
	for i, candidate := range e.Candidates {
		candidates[i] = candidate.Ref()
	}
	return fmt.Sprintf("%sambiguous injectables for %s required by %s: %s (use --resolve to pick one)",
		position(e.Site.Owner), e.Site.Handle, e.Site, strings.Join(candidates, ", "))
}

// CycleError is returned when a dependency cycle has no member that can be proxied.
type CycleError struct {
	// Path of the cycle, with the first member repeated at the end.
	Path []*Injectable
}

func (e *CycleError) Error() string {
	members := make([]string, len(e.Path))
	for i, inj := range e.Path {
		members[i] = inj.Key()
	}
	return fmt.Sprintf("circular dependency with no proxyable singleton: %s", strings.Join(members, " -> "))
}

// ExtensionError is returned when an extension's contract is violated.
type ExtensionError struct {
	Position token.Position
	Type     string
	Contract string
}

func (e *ExtensionError) Error() string {
	pos := ""
	if e.Position.IsValid() {
		pos = e.Position.String() + ": "
	}
	return fmt.Sprintf("%sinvalid extension usage on %s: %s", pos, e.Type, e.Contract)
}

func position(inj *Injectable) string {
	if inj == nil || !inj.Position.IsValid() {
		return ""
	}
	return inj.Position.String() + ": "
}

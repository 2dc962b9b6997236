package scribeflow

import "strings"

// Route is a label emitted by a Router and mapped by a conditional edge to
// a successor node.
type Route string

const (
	// RouteTranslate directs the run to the translation node.
	RouteTranslate Route = "translate"

	// RouteTerminal directs the run straight to termination.
	RouteTerminal Route = "terminal"
)

// String returns the string representation of the Route.
func (r Route) String() string {
	return string(r)
}

// Router inspects a state snapshot and picks the next route. Routers must
// be pure: no state mutation, no I/O, no dependence on anything but the
// snapshot. The executor calls a router at most once per conditional edge
// traversal.
type Router func(state *BlogState) Route

// TranslationRouter routes to translation when a target language is
// requested. Whitespace-only languages do not count as a request.
func TranslationRouter(state *BlogState) Route {
	if strings.TrimSpace(state.TargetLanguage) != "" {
		return RouteTranslate
	}
	return RouteTerminal
}

package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/dragonhub/internal/normalize"
)

// Registry is a directory of routes looked up by name at dispatch time.
// It is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	routes map[string]Descriptor

	// Stats
	statsMu         sync.Mutex
	dispatched      int64
	unknownRoutes   int64
	unexpectedVerbs int64
	handlerErrors   int64
}

// NewRegistry creates an empty route registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger: logger,
		routes: make(map[string]Descriptor),
	}
}

// Register adds d, replacing any route already registered under the same
// name. The handler map must cover exactly the declared verbs.
func (r *Registry) Register(d Descriptor) error {
	if err := validate(d); err != nil {
		return err
	}

	// Copy so later mutation of the caller's slices and maps has no effect.
	stored := Descriptor{
		Name:       d.Name,
		ValidVerbs: append([]string(nil), d.ValidVerbs...),
		Handlers:   make(map[string]VerbFunc, len(d.Handlers)),
	}
	for verb, fn := range d.Handlers {
		stored.Handlers[verb] = fn
	}

	r.mu.Lock()
	_, replaced := r.routes[d.Name]
	r.routes[d.Name] = stored
	r.mu.Unlock()

	r.logger.Debug("route registered",
		"route", d.Name,
		"verbs", d.ValidVerbs,
		"replaced", replaced,
	)
	return nil
}

// MustRegister is like Register but panics on an invalid descriptor.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

func validate(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: route name is required", ErrIncompleteRoute)
	}
	if len(d.ValidVerbs) == 0 {
		return fmt.Errorf("%w: route %q declares no verbs", ErrIncompleteRoute, d.Name)
	}

	seen := make(map[string]struct{}, len(d.ValidVerbs))
	for _, verb := range d.ValidVerbs {
		if verb == "" {
			return fmt.Errorf("%w: route %q declares an empty verb", ErrIncompleteRoute, d.Name)
		}
		if _, dup := seen[verb]; dup {
			return fmt.Errorf("%w: route %q declares verb %q twice", ErrIncompleteRoute, d.Name, verb)
		}
		seen[verb] = struct{}{}
		if d.Handlers[verb] == nil {
			return fmt.Errorf("%w: route %q has no handler for verb %q", ErrIncompleteRoute, d.Name, verb)
		}
	}
	for verb := range d.Handlers {
		if _, ok := seen[verb]; !ok {
			return fmt.Errorf("%w: route %q has a handler for undeclared verb %q", ErrIncompleteRoute, d.Name, verb)
		}
	}
	return nil
}

// Unregister removes the route registered under name, if any.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, name)
}

// Resolve returns the route registered under name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.routes[name]
	if !ok {
		return Descriptor{}, &UnknownRouteError{Route: name}
	}
	return d, nil
}

// Routes returns the registered route names, sorted.
func (r *Registry) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch resolves the message's route, validates its verb and invokes
// the matching handler with the remaining keys as arguments.
//
// It returns *UnknownRouteError or *UnexpectedVerbError for protocol
// violations (see IsFatal) and otherwise whatever the handler returns.
func (r *Registry) Dispatch(ctx context.Context, c Caller, msg map[string]any) error {
	routeName := normalize.String(msg, RouteKey)
	verb := normalize.String(msg, VerbKey)

	d, err := r.Resolve(routeName)
	if err != nil {
		r.count(&r.unknownRoutes)
		return err
	}

	if !d.HasVerb(verb) {
		r.count(&r.unexpectedVerbs)
		return &UnexpectedVerbError{Route: routeName, Verb: verb}
	}

	args := make(Args, len(msg))
	for k, v := range msg {
		if k == RouteKey || k == VerbKey {
			continue
		}
		args[k] = v
	}

	r.count(&r.dispatched)
	if err := d.Handlers[verb](ctx, c, args); err != nil {
		r.count(&r.handlerErrors)
		return fmt.Errorf("%s.%s: %w", routeName, verb, err)
	}
	return nil
}

func (r *Registry) count(n *int64) {
	r.statsMu.Lock()
	*n++
	r.statsMu.Unlock()
}

// Stats returns current statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	routes := len(r.routes)
	r.mu.RUnlock()

	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	return Stats{
		Routes:          routes,
		Dispatched:      r.dispatched,
		UnknownRoutes:   r.unknownRoutes,
		UnexpectedVerbs: r.unexpectedVerbs,
		HandlerErrors:   r.handlerErrors,
	}
}

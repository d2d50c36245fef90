package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeCaller is a minimal Caller for exercising dispatch.
type fakeCaller struct {
	mu     sync.Mutex
	sent   []any
	values map[string]any
	closed bool
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{values: make(map[string]any)}
}

func (f *fakeCaller) ID() string { return "fake" }

func (f *fakeCaller) Send(message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeCaller) Subscribe(channels ...string)            {}
func (f *fakeCaller) Unsubscribe(channels ...string)          {}
func (f *fakeCaller) Publish(channel string, message any) int { return 0 }

func (f *fakeCaller) Set(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func (f *fakeCaller) Get(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeCaller) Close() error {
	f.closed = true
	return nil
}

func helloRoute(calls *[]Args) Descriptor {
	return Descriptor{
		Name:       "test-router",
		ValidVerbs: []string{"say_hello", "say_bye"},
		Handlers: map[string]VerbFunc{
			"say_hello": func(ctx context.Context, c Caller, args Args) error {
				*calls = append(*calls, args)
				c.Set("hello_said", true)
				return nil
			},
			"say_bye": func(ctx context.Context, c Caller, args Args) error {
				return errors.New("not today")
			},
		},
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry(nil)
	var calls []Args

	if err := r.Register(helloRoute(&calls)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	d, err := r.Resolve("test-router")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.Name != "test-router" {
		t.Errorf("Name = %q, want %q", d.Name, "test-router")
	}
	if !d.HasVerb("say_hello") {
		t.Error("expected say_hello to be a valid verb")
	}
	if d.HasVerb("invalid_verb") {
		t.Error("expected invalid_verb to be rejected")
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Resolve("missing")
	if !errors.Is(err, ErrUnknownRoute) {
		t.Fatalf("Resolve error = %v, want ErrUnknownRoute", err)
	}

	var routeErr *UnknownRouteError
	if !errors.As(err, &routeErr) {
		t.Fatalf("expected *UnknownRouteError, got %T", err)
	}
	if routeErr.Route != "missing" {
		t.Errorf("Route = %q, want %q", routeErr.Route, "missing")
	}
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := NewRegistry(nil)
	var calls []Args

	r.MustRegister(helloRoute(&calls))
	r.MustRegister(Descriptor{
		Name:       "test-router",
		ValidVerbs: []string{"only"},
		Handlers: map[string]VerbFunc{
			"only": func(ctx context.Context, c Caller, args Args) error { return nil },
		},
	})

	d, err := r.Resolve("test-router")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if diff := cmp.Diff([]string{"only"}, d.ValidVerbs); diff != "" {
		t.Errorf("ValidVerbs mismatch (-want +got):\n%s", diff)
	}
	if got := r.Stats().Routes; got != 1 {
		t.Errorf("Routes = %d, want 1", got)
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	noop := func(ctx context.Context, c Caller, args Args) error { return nil }

	tests := []struct {
		name    string
		d       Descriptor
		wantErr string
	}{
		{
			name:    "missing name",
			d:       Descriptor{ValidVerbs: []string{"a"}, Handlers: map[string]VerbFunc{"a": noop}},
			wantErr: "route name is required",
		},
		{
			name:    "no verbs",
			d:       Descriptor{Name: "r"},
			wantErr: `route "r" declares no verbs`,
		},
		{
			name:    "missing handler",
			d:       Descriptor{Name: "r", ValidVerbs: []string{"a", "b"}, Handlers: map[string]VerbFunc{"a": noop}},
			wantErr: `route "r" has no handler for verb "b"`,
		},
		{
			name:    "undeclared handler",
			d:       Descriptor{Name: "r", ValidVerbs: []string{"a"}, Handlers: map[string]VerbFunc{"a": noop, "x": noop}},
			wantErr: `route "r" has a handler for undeclared verb "x"`,
		},
		{
			name:    "duplicate verb",
			d:       Descriptor{Name: "r", ValidVerbs: []string{"a", "a"}, Handlers: map[string]VerbFunc{"a": noop}},
			wantErr: `route "r" declares verb "a" twice`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil)
			err := r.Register(tt.d)
			if !errors.Is(err, ErrIncompleteRoute) {
				t.Fatalf("Register error = %v, want ErrIncompleteRoute", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Register error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
			if len(r.Routes()) != 0 {
				t.Errorf("Routes() = %v, want none after failed register", r.Routes())
			}
		})
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry(nil)
	var calls []Args
	r.MustRegister(helloRoute(&calls))

	c := newFakeCaller()
	msg := map[string]any{
		"route":        "test-router",
		"verb":         "say_hello",
		"name":         "ada",
		"callbackname": "cb1",
	}

	if err := r.Dispatch(context.Background(), c, msg); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("handler called %d times, want 1", len(calls))
	}
	want := Args{"name": "ada", "callbackname": "cb1"}
	if diff := cmp.Diff(want, calls[0]); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if v, _ := c.Get("hello_said"); v != true {
		t.Error("expected hello_said to be set on the caller")
	}
}

func TestRegistry_DispatchErrors(t *testing.T) {
	r := NewRegistry(nil)
	var calls []Args
	r.MustRegister(helloRoute(&calls))
	ctx := context.Background()

	err := r.Dispatch(ctx, newFakeCaller(), map[string]any{"route": "nope", "verb": "say_hello"})
	if !errors.Is(err, ErrUnknownRoute) || !IsFatal(err) {
		t.Errorf("unknown route error = %v, want fatal ErrUnknownRoute", err)
	}

	err = r.Dispatch(ctx, newFakeCaller(), map[string]any{"route": "test-router", "verb": "invalid_verb"})
	var verbErr *UnexpectedVerbError
	if !errors.As(err, &verbErr) || !IsFatal(err) {
		t.Fatalf("invalid verb error = %v, want fatal *UnexpectedVerbError", err)
	}
	if verbErr.Verb != "invalid_verb" || verbErr.Route != "test-router" {
		t.Errorf("UnexpectedVerbError = %+v", verbErr)
	}

	err = r.Dispatch(ctx, newFakeCaller(), map[string]any{"message": "hello"})
	if !errors.Is(err, ErrUnknownRoute) {
		t.Errorf("plain text error = %v, want ErrUnknownRoute", err)
	}

	err = r.Dispatch(ctx, newFakeCaller(), map[string]any{"route": "test-router", "verb": "say_bye"})
	if err == nil || IsFatal(err) {
		t.Errorf("handler error = %v, want non-fatal error", err)
	}
	if !strings.Contains(err.Error(), "not today") {
		t.Errorf("handler error = %q, want wrapped handler message", err.Error())
	}

	if len(calls) != 0 {
		t.Errorf("say_hello called %d times, want 0", len(calls))
	}

	stats := r.Stats()
	if stats.UnknownRoutes != 2 || stats.UnexpectedVerbs != 1 || stats.HandlerErrors != 1 || stats.Dispatched != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(nil)
	var calls []Args
	r.MustRegister(helloRoute(&calls))

	r.Unregister("test-router")
	if _, err := r.Resolve("test-router"); !errors.Is(err, ErrUnknownRoute) {
		t.Errorf("Resolve after Unregister error = %v, want ErrUnknownRoute", err)
	}
}

func TestRespond(t *testing.T) {
	c := newFakeCaller()
	args := Args{"callbackname": "cb7"}

	if err := Respond(c, args, "ok"); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if err := RespondError(c, Args{}, "bad"); err != nil {
		t.Fatalf("RespondError failed: %v", err)
	}

	want := []any{
		Reply{Context: ReplyContext{ClientCallbackName: "cb7", State: StateSuccess}, Data: "ok"},
		Reply{Context: ReplyContext{State: StateError}, Data: "bad"},
	}
	if diff := cmp.Diff(want, c.sent); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

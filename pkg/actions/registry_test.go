package actions

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hark-assistant/hark/pkg/engine"
)

type stubHandler struct {
	kind    engine.ActionKind
	outcome string
	err     error
}

func (h *stubHandler) Kind() engine.ActionKind { return h.kind }

func (h *stubHandler) Execute(context.Context, engine.ActionStep) (string, error) {
	return h.outcome, h.err
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	if err := registry.Register(&stubHandler{kind: engine.ActionGetTime, outcome: "It is noon"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	outcome, err := registry.Dispatch(context.Background(), engine.ActionStep{
		Index: 0,
		Kind:  engine.ActionGetTime,
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if outcome != "It is noon" {
		t.Errorf("Unexpected outcome: %q", outcome)
	}
}

func TestRegistryDispatch_UnknownKind(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	_, err := registry.Dispatch(context.Background(), engine.ActionStep{
		Index: 0,
		Kind:  engine.ActionLaunchApp,
	})
	if err == nil {
		t.Fatal("Expected error for unregistered kind")
	}
	if !engine.IsFatal(err) {
		t.Errorf("Expected fatal error, got %v", err)
	}
}

func TestRegistryRegister_Duplicate(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	h := &stubHandler{kind: engine.ActionGetTime}
	if err := registry.Register(h); err != nil {
		t.Fatalf("First Register failed: %v", err)
	}
	if err := registry.Register(h); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestRegistryRegister_InvalidKind(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	if err := registry.Register(&stubHandler{kind: engine.ActionKind("Juggle")}); err == nil {
		t.Error("Expected invalid kind to fail registration")
	}
}

func TestNewDefaultRegistry_CoversAllKinds(t *testing.T) {
	registry, err := NewDefaultRegistry(DefaultConfig{
		NotesDir: t.TempDir(),
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewDefaultRegistry failed: %v", err)
	}

	for _, kind := range engine.AllActionKinds {
		if _, ok := registry.Handler(kind); !ok {
			t.Errorf("No handler registered for %s", kind)
		}
	}

	if got, want := len(registry.Kinds()), len(engine.AllActionKinds); got != want {
		t.Errorf("Registry has %d kinds, want %d", got, want)
	}
}

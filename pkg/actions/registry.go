// Package actions implements the capability registry and the reference
// handlers the engine dispatches plan steps to.
package actions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hark-assistant/hark/pkg/engine"
)

// Handler executes steps of a single action kind. Implementations must be
// safe for concurrent use: parallel groups dispatch from multiple goroutines.
type Handler interface {
	// Kind returns the action kind this handler serves.
	Kind() engine.ActionKind

	// Execute runs the step and returns a human-readable outcome. Errors
	// should be classified engine errors; anything else is treated as fatal.
	Execute(ctx context.Context, step engine.ActionStep) (string, error)
}

// Registry maps action kinds to handlers and implements engine.Dispatcher.
type Registry struct {
	mu       sync.RWMutex
	handlers map[engine.ActionKind]Handler
	logger   zerolog.Logger
}

// NewRegistry creates an empty handler registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[engine.ActionKind]Handler),
		logger:   logger.With().Str("component", "actions").Logger(),
	}
}

// Register adds a handler. Registering a second handler for the same kind is
// an error; capability bindings are fixed at startup.
func (r *Registry) Register(h Handler) error {
	if err := h.Kind().Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Kind()]; exists {
		return fmt.Errorf("handler for %s already registered", h.Kind())
	}
	r.handlers[h.Kind()] = h
	return nil
}

// Handler returns the handler registered for the kind, if any.
func (r *Registry) Handler(kind engine.ActionKind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered action kinds in sorted order.
func (r *Registry) Kinds() []engine.ActionKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]engine.ActionKind, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Dispatch implements engine.Dispatcher by routing the step to its handler.
// A step whose kind has no registered handler fails fatally: the planner
// emitted a capability this installation does not provide.
func (r *Registry) Dispatch(ctx context.Context, step engine.ActionStep) (string, error) {
	handler, ok := r.Handler(step.Kind)
	if !ok {
		return "", engine.NewFatalError(
			fmt.Sprintf("no handler registered for %s", step.Kind), nil)
	}

	r.logger.Debug().
		Int("step_index", step.Index).
		Str("action", string(step.Kind)).
		Msg("Dispatching step")

	return handler.Execute(ctx, step)
}

// DefaultConfig configures the default handler set.
type DefaultConfig struct {
	// NotesDir is where TakeNote and CreateReminder persist their output.
	// Defaults to the user home directory under .hark.
	NotesDir string

	// SearchRoots are the directories FindFile scans. Defaults to the user
	// home directory.
	SearchRoots []string

	// Logger is the structured logger shared by all handlers.
	Logger zerolog.Logger
}

// NewDefaultRegistry builds a registry with every reference handler
// registered, covering the full closed set of action kinds.
func NewDefaultRegistry(cfg DefaultConfig) (*Registry, error) {
	registry := NewRegistry(cfg.Logger)

	handlers := []Handler{
		&WaitHandler{},
		&GetTimeHandler{},
		&GetDateHandler{},
		&AnswerQuestionHandler{},
		NewTakeNoteHandler(cfg.NotesDir),
		NewCreateReminderHandler(cfg.NotesDir),
		&LaunchAppHandler{},
		&CloseAppHandler{},
		&OpenFolderHandler{},
		&SearchWebHandler{},
		NewFindFileHandler(cfg.SearchRoots),
		&SystemControlHandler{},
		&VolumeControlHandler{},
		&MediaControlHandler{},
		&WindowManagementHandler{},
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/hark-assistant/hark/pkg/engine"
)

// commandTable maps runtime.GOOS to the argv that implements an operation on
// that platform.
type commandTable map[string][]string

// resolve picks the argv for the current platform.
func (t commandTable) resolve(op string) ([]string, error) {
	argv, ok := t[runtime.GOOS]
	if !ok {
		return nil, engine.NewFatalError(
			fmt.Sprintf("%s is not supported on %s", op, runtime.GOOS), nil)
	}
	return argv, nil
}

// runCommand executes argv and classifies the failure modes: a missing binary
// is fatal (the capability is absent from this host), a non-zero exit is
// recoverable (the tool exists but the attempt failed).
func runCommand(ctx context.Context, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", engine.NewFatalError(
				fmt.Sprintf("command %s not found", argv[0]), err)
		}
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return "", engine.NewRecoverableError(
			fmt.Sprintf("%s failed: %s", argv[0], msg), err)
	}
	return stdout.String(), nil
}

// startDetached launches argv without waiting for it to exit, used for
// applications that should outlive the plan.
func startDetached(_ context.Context, argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return engine.NewFatalError(
				fmt.Sprintf("command %s not found", argv[0]), err)
		}
		return engine.NewRecoverableError(
			fmt.Sprintf("failed to start %s", argv[0]), err)
	}
	// Reap the child in the background so it never zombies.
	go func() { _ = cmd.Wait() }()
	return nil
}

func requireString(step engine.ActionStep, name string) (string, error) {
	p, ok := step.Param(name)
	if !ok || p.String() == "" {
		return "", engine.NewFatalError(
			fmt.Sprintf("%s requires a %s parameter", step.Kind, name), nil)
	}
	return p.String(), nil
}

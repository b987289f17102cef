package actions

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hark-assistant/hark/pkg/engine"
)

// maxFindResults caps how many matches a single FindFile step reports.
const maxFindResults = 10

// FindFileHandler searches the configured roots for files whose name contains
// the query, case-insensitively. The walk is bounded by the step context, so
// a slow filesystem hits the step timeout rather than hanging the plan.
type FindFileHandler struct {
	roots []string
}

// NewFindFileHandler creates the handler. Empty roots default to the user
// home directory.
func NewFindFileHandler(roots []string) *FindFileHandler {
	if len(roots) == 0 {
		if home, err := os.UserHomeDir(); err == nil {
			roots = []string{home}
		}
	}
	return &FindFileHandler{roots: roots}
}

func (h *FindFileHandler) Kind() engine.ActionKind { return engine.ActionFindFile }

func (h *FindFileHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	name, err := requireString(step, "name")
	if err != nil {
		return "", err
	}
	if len(h.roots) == 0 {
		return "", engine.NewFatalError("no search roots configured", nil)
	}

	query := strings.ToLower(name)
	var matches []string

	for _, root := range h.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable subtrees are skipped, not fatal.
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.Contains(strings.ToLower(d.Name()), query) {
				matches = append(matches, path)
				if len(matches) >= maxFindResults {
					return fs.SkipAll
				}
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", engine.NewRecoverableError(
				fmt.Sprintf("search under %s failed", root), err)
		}
		if len(matches) >= maxFindResults {
			break
		}
	}

	switch len(matches) {
	case 0:
		return fmt.Sprintf("No files matching %q found", name), nil
	case 1:
		return fmt.Sprintf("Found %s", matches[0]), nil
	default:
		return fmt.Sprintf("Found %d files matching %q: %s",
			len(matches), name, strings.Join(matches, ", ")), nil
	}
}

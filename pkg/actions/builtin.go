package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hark-assistant/hark/pkg/engine"
)

// WaitHandler pauses execution for the requested duration. The sleep honors
// context cancellation, so a plan timeout interrupts it.
type WaitHandler struct{}

func (h *WaitHandler) Kind() engine.ActionKind { return engine.ActionWait }

func (h *WaitHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	duration, err := waitDuration(step)
	if err != nil {
		return "", err
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	secs := int(duration.Round(time.Second).Seconds())
	if secs == 1 {
		return "Waited 1 second", nil
	}
	return fmt.Sprintf("Waited %d seconds", secs), nil
}

func waitDuration(step engine.ActionStep) (time.Duration, error) {
	if p, ok := step.Param("duration"); ok && p.Kind == engine.ParamDuration {
		if p.Duration <= 0 {
			return 0, engine.NewFatalError("wait duration must be positive", nil)
		}
		return p.Duration, nil
	}
	if p, ok := step.Param("seconds"); ok && p.Kind == engine.ParamInt {
		if p.Int <= 0 {
			return 0, engine.NewFatalError("wait duration must be positive", nil)
		}
		return time.Duration(p.Int) * time.Second, nil
	}
	return 0, engine.NewFatalError("wait requires a duration or seconds parameter", nil)
}

// GetTimeHandler reports the current local time.
type GetTimeHandler struct{}

func (h *GetTimeHandler) Kind() engine.ActionKind { return engine.ActionGetTime }

func (h *GetTimeHandler) Execute(_ context.Context, _ engine.ActionStep) (string, error) {
	return fmt.Sprintf("It is %s", time.Now().Format("3:04 PM")), nil
}

// GetDateHandler reports the current date.
type GetDateHandler struct{}

func (h *GetDateHandler) Kind() engine.ActionKind { return engine.ActionGetDate }

func (h *GetDateHandler) Execute(_ context.Context, _ engine.ActionStep) (string, error) {
	return fmt.Sprintf("Today is %s", time.Now().Format("Monday, January 2, 2006")), nil
}

// AnswerQuestionHandler relays an answer the planner resolved upstream. The
// execution layer has no knowledge source of its own; a step of this kind
// without a resolved answer is a planning defect.
type AnswerQuestionHandler struct{}

func (h *AnswerQuestionHandler) Kind() engine.ActionKind { return engine.ActionAnswerQuestion }

func (h *AnswerQuestionHandler) Execute(_ context.Context, step engine.ActionStep) (string, error) {
	answer, ok := step.Param("answer")
	if !ok || answer.String() == "" {
		return "", engine.NewFatalError("answer question step carries no resolved answer", nil)
	}
	return answer.String(), nil
}

// TakeNoteHandler appends the note text to a dated file under the notes
// directory.
type TakeNoteHandler struct {
	dir string
}

// NewTakeNoteHandler creates the handler. An empty dir defaults to
// ~/.hark/notes.
func NewTakeNoteHandler(dir string) *TakeNoteHandler {
	return &TakeNoteHandler{dir: defaultNotesDir(dir)}
}

func (h *TakeNoteHandler) Kind() engine.ActionKind { return engine.ActionTakeNote }

func (h *TakeNoteHandler) Execute(_ context.Context, step engine.ActionStep) (string, error) {
	text, ok := step.Param("text")
	if !ok || text.String() == "" {
		return "", engine.NewFatalError("take note requires a text parameter", nil)
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return "", engine.NewRecoverableError("failed to create notes directory", err)
	}

	path := filepath.Join(h.dir, time.Now().Format("2006-01-02")+".md")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", engine.NewRecoverableError("failed to open notes file", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("- %s %s\n", time.Now().Format("15:04"), text.String())
	if _, err := f.WriteString(entry); err != nil {
		return "", engine.NewRecoverableError("failed to write note", err)
	}

	return fmt.Sprintf("Noted: %s", text.String()), nil
}

// CreateReminderHandler appends a reminder record to the reminders journal.
// Delivery is a notification daemon's job; this handler only persists.
type CreateReminderHandler struct {
	dir string
}

// NewCreateReminderHandler creates the handler. An empty dir defaults to
// ~/.hark/notes.
func NewCreateReminderHandler(dir string) *CreateReminderHandler {
	return &CreateReminderHandler{dir: defaultNotesDir(dir)}
}

func (h *CreateReminderHandler) Kind() engine.ActionKind { return engine.ActionCreateReminder }

type reminderRecord struct {
	Text      string    `json:"text"`
	At        string    `json:"at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *CreateReminderHandler) Execute(_ context.Context, step engine.ActionStep) (string, error) {
	text, ok := step.Param("text")
	if !ok || text.String() == "" {
		return "", engine.NewFatalError("create reminder requires a text parameter", nil)
	}

	record := reminderRecord{
		Text:      text.String(),
		CreatedAt: time.Now(),
	}
	if at, ok := step.Param("at"); ok {
		record.At = at.String()
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return "", engine.NewRecoverableError("failed to create reminders directory", err)
	}

	path := filepath.Join(h.dir, "reminders.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", engine.NewRecoverableError("failed to open reminders journal", err)
	}
	defer f.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return "", engine.NewFatalError("failed to encode reminder", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", engine.NewRecoverableError("failed to write reminder", err)
	}

	if record.At != "" {
		return fmt.Sprintf("Reminder set for %s: %s", record.At, record.Text), nil
	}
	return fmt.Sprintf("Reminder saved: %s", record.Text), nil
}

func defaultNotesDir(dir string) string {
	if dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "hark", "notes")
	}
	return filepath.Join(home, ".hark", "notes")
}

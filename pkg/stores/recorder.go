package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/hark-assistant/hark/pkg/engine"
	"github.com/hark-assistant/hark/pkg/telemetry"
)

// Recorder persists run history from the telemetry event stream. It
// subscribes to the event publisher and writes run records and events as
// plans execute; storage failures are logged and never affect the plan.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "run-recorder").Logger(),
	}
}

// Attach subscribes the recorder to the publisher.
func (r *Recorder) Attach(publisher *telemetry.EventPublisher) {
	publisher.Subscribe(r.handle, nil)
}

// storeTimeout bounds each write so a wedged database cannot back up the
// event pipeline.
const storeTimeout = 5 * time.Second

func (r *Recorder) handle(event telemetry.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch event.Type {
	case string(engine.EventPlanStarted):
		r.recordStart(ctx, event)
	case string(engine.EventPlanCompleted):
		r.recordFinish(ctx, event)
	}

	r.appendEvent(ctx, event)
}

func (r *Recorder) recordStart(ctx context.Context, event telemetry.Event) {
	stepCount := 0
	if v, ok := event.Data["step_count"].(int); ok {
		stepCount = v
	}

	run := &Run{
		ID:        event.PlanID,
		Status:    RunStatusRunning,
		StepCount: stepCount,
		StartedAt: event.Timestamp,
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Str("plan_id", event.PlanID).Msg("Failed to record run start")
	}
}

func (r *Recorder) recordFinish(ctx context.Context, event telemetry.Event) {
	status := RunStatusFailed
	var summary, errMsg *string

	if success, _ := event.Data["success"].(bool); success {
		status = RunStatusCompleted
		if s, ok := event.Data["summary"].(string); ok && s != "" {
			summary = &s
		}
	} else {
		if reason, _ := event.Data["reason"].(string); reason == "cancelled" {
			status = RunStatusCancelled
		}
		msg := event.Message
		errMsg = &msg
	}

	if err := r.store.UpdateRunStatus(ctx, event.PlanID, status, summary, errMsg); err != nil {
		r.logger.Warn().Err(err).Str("plan_id", event.PlanID).Msg("Failed to record run finish")
	}
}

func (r *Recorder) appendEvent(ctx context.Context, event telemetry.Event) {
	var data *string
	if len(event.Data) > 0 {
		if raw, err := json.Marshal(event.Data); err == nil {
			s := string(raw)
			data = &s
		}
	}

	var action *string
	if event.Action != "" {
		action = &event.Action
	}

	record := &Event{
		RunID:     event.PlanID,
		StepIndex: event.StepIndex,
		Type:      event.Type,
		Action:    action,
		Level:     event.Level,
		Message:   event.Message,
		Data:      data,
		Timestamp: event.Timestamp,
	}
	if err := r.store.AppendEvent(ctx, record); err != nil {
		r.logger.Warn().Err(err).Str("plan_id", event.PlanID).Msg("Failed to append event")
	}
}

// Package rundriver advances hosted assistant runs: it polls run status,
// resolves every requires_action batch through the tool registry and submits
// the outputs back until the run reaches a terminal state.
package rundriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/aisdk"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/storage"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

// Recorder persists run history. Failures are logged and never fail a turn.
type Recorder interface {
	RecordRun(ctx context.Context, run *storage.Run) error
	RecordToolExecution(ctx context.Context, exec *storage.ToolExecution) error
}

// Config wires a Driver.
type Config struct {
	Client  aisdk.AssistantClient
	Toolbox *agent.DefaultToolbox
	Policy  Policy
	// Scratch is read for SnapshotRequery and for TurnResult.Rows. Optional.
	Scratch    *datastore.Scratch
	Recorder   Recorder
	Logger     *slog.Logger
	Tracer     trace.Tracer
	OnProgress func(Event)
}

type Driver struct {
	client     aisdk.AssistantClient
	toolbox    *agent.DefaultToolbox
	policy     Policy
	scratch    *datastore.Scratch
	recorder   Recorder
	logger     *slog.Logger
	tracer     trace.Tracer
	onProgress func(Event)
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a driver.
func New(cfg Config) (*Driver, error) {
	if cfg.Client == nil {
		return nil, ErrClientRequired
	}
	if cfg.Toolbox == nil {
		return nil, ErrToolboxRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/elee1766/dataagent/src/rundriver")
	}
	return &Driver{
		client:     cfg.Client,
		toolbox:    cfg.Toolbox,
		policy:     cfg.Policy.withDefaults(),
		scratch:    cfg.Scratch,
		recorder:   cfg.Recorder,
		logger:     logger.With("component", "rundriver"),
		tracer:     tracer,
		onProgress: cfg.OnProgress,
		sleep:      sleepCtx,
	}, nil
}

// Policy returns the effective policy.
func (d *Driver) Policy() Policy {
	return d.policy
}

// DriveResult is the outcome of one driven run.
type DriveResult struct {
	RunID        string
	Status       aisdk.RunStatus
	Polls        int
	ActionRounds int
	Charts       []ChartInfo
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	RunID    string
	Status   aisdk.RunStatus
	Response string
	Charts   []ChartInfo
	// Rows is the session's scratch table after the turn; nil without a scratch store.
	Rows *datastore.ResultSet
}

// Turn posts message to the thread, runs the assistant and returns the
// newest assistant reply. The session id is taken from ctx.
func (d *Driver) Turn(ctx context.Context, threadID, assistantID, message string) (res *TurnResult, err error) {
	ctx, span := d.tracer.Start(ctx, "rundriver.Turn", trace.WithAttributes(
		attribute.String("thread.id", threadID),
		attribute.String("assistant.id", assistantID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if _, err := d.client.AddMessage(ctx, threadID, &aisdk.CreateMessageRequest{Role: "user", Content: message}); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	run, err := d.client.CreateRun(ctx, threadID, &aisdk.CreateRunRequest{AssistantID: assistantID})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	span.SetAttributes(attribute.String("run.id", run.ID))
	d.emit(Event{Type: EventRunCreated, ThreadID: threadID, RunID: run.ID, Status: run.Status})

	record := &storage.Run{
		ID:        run.ID,
		SessionID: toolsutil.SessionFrom(ctx),
		ThreadID:  threadID,
		Status:    string(run.Status),
		StartedAt: time.Now().UTC(),
	}
	d.recordRun(ctx, record)

	driven, driveErr := d.Drive(ctx, threadID, run.ID)

	finished := time.Now().UTC()
	record.FinishedAt = &finished
	if driven != nil {
		record.Status = string(driven.Status)
		for _, c := range driven.Charts {
			record.Charts = append(record.Charts, c.ImagePath)
		}
	}
	if driveErr != nil {
		record.Error = driveErr.Error()
		if errors.Is(driveErr, ErrRunTimeout) {
			record.Status = "timeout"
		}
	}
	d.recordRun(context.WithoutCancel(ctx), record)

	if driveErr != nil {
		return nil, driveErr
	}

	reply, err := d.latestReply(ctx, threadID, run.ID)
	if err != nil {
		return nil, err
	}

	res = &TurnResult{
		RunID:    run.ID,
		Status:   driven.Status,
		Response: reply,
		Charts:   driven.Charts,
	}
	if d.scratch != nil {
		rows, err := d.scratch.All(ctx, d.scratch.TableFor(toolsutil.SessionFrom(ctx)))
		if err != nil {
			d.logger.Warn("failed to read scratch rows", "error", err)
		} else {
			res.Rows = rows
		}
	}
	return res, nil
}

// latestReply returns the newest assistant message written by runID. A run
// that wrote nothing yields an empty reply, never an older run's answer.
func (d *Driver) latestReply(ctx context.Context, threadID, runID string) (string, error) {
	list, err := d.client.ListMessages(ctx, threadID, &aisdk.ListMessagesParams{Limit: 20, Order: "desc", RunID: runID})
	if err != nil {
		return "", fmt.Errorf("failed to list messages: %w", err)
	}
	for i := range list.Data {
		m := &list.Data[i]
		if m.Role == "assistant" && m.RunID == runID {
			return m.Text(), nil
		}
	}
	d.logger.Warn("run finished without an assistant message", "thread_id", threadID, "run_id", runID)
	return "", nil
}

// Drive polls runID until it reaches a terminal state.
func (d *Driver) Drive(ctx context.Context, threadID, runID string) (_ *DriveResult, err error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, d.policy.Timeout)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "rundriver.Drive", trace.WithAttributes(
		attribute.String("thread.id", threadID),
		attribute.String("run.id", runID),
	))
	res := &DriveResult{RunID: runID}
	logger := d.logger.With("thread_id", threadID, "run_id", runID)
	defer func() {
		if err != nil && !res.Status.IsTerminal() && res.Status != aisdk.RunStatusCancelling {
			d.cancelRun(context.WithoutCancel(ctx), logger, threadID, runID)
		}
		span.SetAttributes(
			attribute.Int("run.polls", res.Polls),
			attribute.Int("run.action_rounds", res.ActionRounds),
			attribute.String("run.status", string(res.Status)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// own deadline expiry is a run timeout, caller cancellation is not
	ctxErr := func() error {
		if parent.Err() != nil {
			return parent.Err()
		}
		return fmt.Errorf("%w after %s", ErrRunTimeout, d.policy.Timeout)
	}

	for {
		if res.Polls >= d.policy.MaxPolls {
			return res, fmt.Errorf("%w after %d polls", ErrRunTimeout, res.Polls)
		}
		res.Polls++

		run, err := d.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctxErr()
			}
			return res, fmt.Errorf("failed to retrieve run: %w", err)
		}

		if run.Status != res.Status {
			logger.Debug("run status changed", "from", res.Status, "to", run.Status)
			res.Status = run.Status
			d.emit(Event{Type: EventStatus, ThreadID: threadID, RunID: runID, Status: run.Status})
		}

		switch {
		case run.Status == aisdk.RunStatusRequiresAction:
			res.ActionRounds++
			if res.ActionRounds > d.policy.MaxActionRounds {
				return res, fmt.Errorf("%w: limit is %d", ErrTooManyActionRounds, d.policy.MaxActionRounds)
			}
			calls := run.PendingToolCalls()
			outputs, charts := d.resolveBatch(ctx, threadID, runID, calls)
			res.Charts = append(res.Charts, charts...)

			logger.Info("submitting tool outputs", "count", len(outputs), "round", res.ActionRounds)
			if _, err := d.client.SubmitToolOutputs(ctx, threadID, runID, outputs); err != nil {
				if ctx.Err() != nil {
					return res, ctxErr()
				}
				return res, fmt.Errorf("failed to submit tool outputs: %w", err)
			}
			continue

		case run.Status.Succeeded():
			d.emit(Event{Type: EventRunCompleted, ThreadID: threadID, RunID: runID, Status: run.Status})
			return res, nil

		case run.Status.IsTerminal():
			msg := "no error reported"
			if run.LastError != nil && run.LastError.Message != "" {
				msg = run.LastError.Message
			}
			return res, fmt.Errorf("%w: status %s: %s", ErrRunFailed, run.Status, msg)
		}

		if err := d.sleep(ctx, d.policy.PollInterval); err != nil {
			return res, ctxErr()
		}
	}
}

// cancelRun stops a run the driver is giving up on so it does not keep
// working, or holding the thread, after the turn has returned.
func (d *Driver) cancelRun(ctx context.Context, logger *slog.Logger, threadID, runID string) {
	ctx, cancel := context.WithTimeout(ctx, cancelTimeout)
	defer cancel()
	run, err := d.client.CancelRun(ctx, threadID, runID)
	if err != nil {
		logger.Warn("failed to cancel abandoned run", "error", err)
		return
	}
	logger.Info("cancelled abandoned run", "status", run.Status)
}

func (d *Driver) recordRun(ctx context.Context, run *storage.Run) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordRun(ctx, run); err != nil {
		d.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"voice-campaigns/internal/crm"
	"voice-campaigns/pkg/logger"
)

// Follow-up policy for ended calls.
const (
	followUpMinDuration = 30 // seconds; strictly greater is required
	followUpDelay       = 24 * time.Hour

	followUpTaskTitle = "Follow up on AI call"
	followUpTaskBody  = "Follow up on the AI voice call that was made. Review call details and next steps."
)

// CallTracker receives call lifecycle outcomes for the local call log.
// Failures are logged and never fail the webhook.
type CallTracker interface {
	MarkStarted(ctx context.Context, callID string, at time.Time) error
	MarkEnded(ctx context.Context, outcome CallOutcome) error
	MarkQualified(ctx context.Context, callID string, qualified bool) error
}

type CallOutcome struct {
	CallID          string
	ContactID       string
	Status          string
	DurationSeconds int
	EndedAt         time.Time
}

type Options struct {
	// PipelineID and StageID place opportunities for qualified leads.
	PipelineID string
	StageID    string

	Tracker CallTracker
	Now     func() time.Time
}

// Dispatcher routes classified events to their handlers. Handlers run
// synchronously and CRM calls are made in sequence; an earlier successful
// write is not rolled back when a later one fails.
type Dispatcher struct {
	crm        crm.Client
	pipelineID string
	stageID    string
	tracker    CallTracker
	now        func() time.Time
}

func NewDispatcher(client crm.Client, opts Options) *Dispatcher {
	d := &Dispatcher{
		crm:        client,
		pipelineID: opts.PipelineID,
		stageID:    opts.StageID,
		tracker:    opts.Tracker,
		now:        opts.Now,
	}
	if d.pipelineID == "" {
		d.pipelineID = "default"
	}
	if d.stageID == "" {
		d.stageID = "default"
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Dispatch classifies and handles one payload.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) error {
	ev, err := Classify(p)
	if err != nil {
		return err
	}
	return d.Handle(ctx, ev)
}

// Handle runs the handler for an already classified event.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	call := ev.CallData()
	ctx, log := logger.WithAttrs(ctx, "event_type", ev.Type(), "call_id", call.ID)

	var err error
	switch e := ev.(type) {
	case CallStarted:
		err = d.callStarted(ctx, e.Call)
	case CallEnded:
		err = d.callEnded(ctx, e.Call)
	case TranscriptReady:
		err = d.transcript(ctx, e.Call)
	case FunctionInvoked:
		err = d.functionCall(ctx, log, e.Call)
	case UnknownEvent:
		log.Info("unhandled webhook type")
	default:
		err = fmt.Errorf("webhook: unsupported event %T", ev)
	}
	if err != nil {
		log.Error("webhook processing failed", "err", err)
	}
	return err
}

func (d *Dispatcher) callStarted(ctx context.Context, call CallData) error {
	now := d.now()
	d.track(ctx, "started", func() error { return d.tracker.MarkStarted(ctx, call.ID, now) })

	contactID := call.ContactID()
	if contactID == "" {
		return nil
	}
	note := fmt.Sprintf("AI call started at %s. Call ID: %s", crm.FormatTime(now), call.ID)
	return upstream("add_note", d.crm.AddNote(ctx, contactID, note))
}

func (d *Dispatcher) callEnded(ctx context.Context, call CallData) error {
	duration := call.DurationSeconds()
	contactID := call.ContactID()

	endedAt, ok := call.EndedTime()
	if !ok {
		endedAt = d.now()
	}
	d.track(ctx, "ended", func() error {
		return d.tracker.MarkEnded(ctx, CallOutcome{
			CallID:          call.ID,
			ContactID:       contactID,
			Status:          call.Status,
			DurationSeconds: duration,
			EndedAt:         endedAt.UTC(),
		})
	})

	if contactID == "" {
		return nil
	}
	note := fmt.Sprintf("AI call ended. Duration: %ds. Status: %s. Call ID: %s", duration, call.Status, call.ID)
	if err := d.crm.AddNote(ctx, contactID, note); err != nil {
		return upstream("add_note", err)
	}

	if call.Status != "ended" || duration <= followUpMinDuration {
		return nil
	}
	return upstream("create_task", d.crm.CreateTask(ctx, crm.Task{
		ContactID: contactID,
		Title:     followUpTaskTitle,
		Body:      followUpTaskBody,
		DueDate:   d.now().Add(followUpDelay),
	}))
}

func (d *Dispatcher) transcript(ctx context.Context, call CallData) error {
	contactID := call.ContactID()
	if call.Transcript == "" || contactID == "" {
		return nil
	}
	return upstream("add_note", d.crm.AddNote(ctx, contactID, "Call transcript: "+call.Transcript))
}

func (d *Dispatcher) functionCall(ctx context.Context, log *slog.Logger, call CallData) error {
	contactID := call.ContactID()
	if call.FunctionCall == nil || contactID == "" {
		return nil
	}

	fn, err := DecodeFunction(*call.FunctionCall)
	if err != nil {
		return err
	}

	switch f := fn.(type) {
	case QualifyLead:
		return d.qualifyLead(ctx, call.ID, contactID, f.Params)
	case ScheduleFollowUp:
		return d.scheduleFollowUp(ctx, contactID, f.Params)
	case UnknownFunction:
		log.Info("unhandled function call", "function", f.RawName)
		return nil
	default:
		return fmt.Errorf("webhook: unsupported function %T", fn)
	}
}

// track reports to the call tracker, if one is configured.
func (d *Dispatcher) track(ctx context.Context, what string, fn func() error) {
	if d.tracker == nil {
		return
	}
	if err := fn(); err != nil {
		logger.From(ctx).Warn("call tracking failed", "transition", what, "err", err)
	}
}

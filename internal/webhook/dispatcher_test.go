package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-campaigns/internal/crm"
	"voice-campaigns/internal/crm/crmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(fake *crmtest.Fake, tracker CallTracker) *Dispatcher {
	return NewDispatcher(fake, Options{
		PipelineID: "pipe-1",
		StageID:    "stage-1",
		Tracker:    tracker,
		Now:        func() time.Time { return fixedNow },
	})
}

func callWithContact(id string) *CallData {
	return &CallData{ID: id, Customer: &Customer{ContactID: "contact-1"}}
}

func functionPayload(name, params string) Payload {
	call := callWithContact("call-fn")
	call.FunctionCall = &FunctionCall{Name: name, Parameters: json.RawMessage(params)}
	return Payload{Type: TypeFunctionCall, Call: call}
}

func TestDispatch_NoCallDataRejectedWithoutCRMCalls(t *testing.T) {
	for _, typ := range []string{TypeCallStarted, TypeCallEnded, TypeTranscript, TypeFunctionCall, "other", ""} {
		fake := crmtest.NewFake()
		err := newTestDispatcher(fake, nil).Dispatch(context.Background(), Payload{Type: typ})
		require.ErrorIs(t, err, ErrNoCallData, typ)
		assert.Empty(t, fake.Calls(), typ)
	}
}

func TestDispatch_CallStartedAddsNote(t *testing.T) {
	fake := crmtest.NewFake()
	err := newTestDispatcher(fake, nil).Dispatch(context.Background(), Payload{Type: TypeCallStarted, Call: callWithContact("call-1")})
	require.NoError(t, err)

	notes := fake.CallsTo("add_note")
	require.Len(t, notes, 1)
	assert.Equal(t, "contact-1", notes[0].ContactID)
	assert.Equal(t, "AI call started at 2024-03-01T12:00:00.000Z. Call ID: call-1", notes[0].Note)
}

func TestDispatch_CallEndedFollowUpPolicy(t *testing.T) {
	cases := []struct {
		name      string
		status    string
		endOffset time.Duration
		wantTask  bool
	}{
		{"long ended call", "ended", 45 * time.Second, true},
		{"exactly thirty seconds", "ended", 30 * time.Second, false},
		{"thirty point nine floors to thirty", "ended", 30*time.Second + 900*time.Millisecond, false},
		{"thirty one seconds", "ended", 31 * time.Second, true},
		{"short call", "ended", 10 * time.Second, false},
		{"long but failed", "failed", 5 * time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := crmtest.NewFake()
			start := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
			call := callWithContact("call-2")
			call.Status = tc.status
			call.StartedAt = crm.FormatTime(start)
			call.EndedAt = crm.FormatTime(start.Add(tc.endOffset))

			err := newTestDispatcher(fake, nil).Dispatch(context.Background(), Payload{Type: TypeCallEnded, Call: call})
			require.NoError(t, err)

			require.Len(t, fake.CallsTo("add_note"), 1)
			tasks := fake.CallsTo("create_task")
			if !tc.wantTask {
				assert.Empty(t, tasks)
				return
			}
			require.Len(t, tasks, 1)
			task := tasks[0].Task
			assert.Equal(t, "Follow up on AI call", task.Title)
			assert.Equal(t, "Follow up on the AI voice call that was made. Review call details and next steps.", task.Body)
			assert.WithinDuration(t, fixedNow.Add(24*time.Hour), task.DueDate, time.Second)
		})
	}
}

func TestDispatch_CallEndedNote(t *testing.T) {
	fake := crmtest.NewFake()
	call := callWithContact("call-3")
	call.Status = "ended"
	call.StartedAt = "2024-03-01T11:00:00.000Z"
	call.EndedAt = "2024-03-01T11:00:45.000Z"

	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), Payload{Type: TypeCallEnded, Call: call}))

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "add_note", calls[0].Op)
	assert.Equal(t, "AI call ended. Duration: 45s. Status: ended. Call ID: call-3", calls[0].Note)
	assert.Equal(t, "create_task", calls[1].Op)
}

func TestDispatch_CallEndedWithoutEndedAtHasZeroDuration(t *testing.T) {
	fake := crmtest.NewFake()
	call := callWithContact("call-4")
	call.Status = "ended"
	call.StartedAt = "2024-03-01T11:00:00.000Z"

	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), Payload{Type: TypeCallEnded, Call: call}))

	notes := fake.CallsTo("add_note")
	require.Len(t, notes, 1)
	assert.Equal(t, "AI call ended. Duration: 0s. Status: ended. Call ID: call-4", notes[0].Note)
	assert.Empty(t, fake.CallsTo("create_task"))
}

func TestDispatch_TranscriptNote(t *testing.T) {
	fake := crmtest.NewFake()
	call := callWithContact("call-5")
	call.Transcript = "AI: Hello!\nUser: Hi, who is this?"

	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), Payload{Type: TypeTranscript, Call: call}))

	notes := fake.CallsTo("add_note")
	require.Len(t, notes, 1)
	assert.Equal(t, "Call transcript: AI: Hello!\nUser: Hi, who is this?", notes[0].Note)
}

func TestDispatch_EmptyTranscriptIsNoop(t *testing.T) {
	fake := crmtest.NewFake()
	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), Payload{Type: TypeTranscript, Call: callWithContact("call-6")}))
	assert.Empty(t, fake.Calls())
}

func TestDispatch_QualifiedLeadUpdatesThenCreatesOpportunity(t *testing.T) {
	fake := crmtest.NewFake()
	p := functionPayload(FuncQualifyLead, `{"businessType":"Auto Repair","timeInBusiness":5,"monthlyRevenue":15000,"creditScore":720,"fundingNeeded":50000,"qualified":true}`)

	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), p))

	calls := fake.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "update_contact", calls[0].Op)
	require.Equal(t, "create_opportunity", calls[1].Op)

	update := calls[0].Update
	assert.Equal(t, "contact-1", calls[0].ContactID)
	assert.Equal(t, []string{"qualified-lead", "voice-campaign"}, update.Tags)
	assert.Equal(t, map[string]any{
		"businessType":      "Auto Repair",
		"timeInBusiness":    5.0,
		"monthlyRevenue":    15000.0,
		"creditScore":       720.0,
		"fundingNeeded":     50000.0,
		"qualified":         "Yes",
		"qualificationDate": "2024-03-01T12:00:00.000Z",
	}, update.CustomFields)

	opp := calls[1].Opportunity
	assert.Equal(t, "contact-1", opp.ContactID)
	assert.Equal(t, "MCA Funding - Auto Repair", opp.Name)
	assert.Equal(t, "pipe-1", opp.PipelineID)
	assert.Equal(t, "stage-1", opp.StageID)
	require.NotNil(t, opp.MonetaryValue)
	assert.Equal(t, 50000.0, *opp.MonetaryValue)
	assert.Equal(t, map[string]any{"source": "AI Voice Call", "qualificationDate": "2024-03-01T12:00:00.000Z"}, opp.CustomFields)
}

func TestDispatch_UnqualifiedLeadHasNoOpportunity(t *testing.T) {
	fake := crmtest.NewFake()
	p := functionPayload(FuncQualifyLead, `{"businessType":"Retail","qualified":false}`)

	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), p))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "update_contact", calls[0].Op)
	assert.Equal(t, []string{"unqualified", "voice-campaign"}, calls[0].Update.Tags)
	assert.Equal(t, "No", calls[0].Update.CustomFields["qualified"])
	assert.NotContains(t, calls[0].Update.CustomFields, "fundingNeeded")
	assert.Empty(t, fake.CallsTo("create_opportunity"))
}

func TestDispatch_QualifiedWithoutBusinessTypeUsesUnknown(t *testing.T) {
	fake := crmtest.NewFake()
	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), functionPayload(FuncQualifyLead, `{"qualified":true}`)))

	opps := fake.CallsTo("create_opportunity")
	require.Len(t, opps, 1)
	assert.Equal(t, "MCA Funding - Unknown", opps[0].Opportunity.Name)
	assert.Nil(t, opps[0].Opportunity.MonetaryValue)
}

func TestDispatch_OpportunityFailureKeepsContactUpdate(t *testing.T) {
	fake := crmtest.NewFake()
	fake.Errors["create_opportunity"] = errors.New("pipeline not found")

	err := newTestDispatcher(fake, nil).Dispatch(context.Background(), functionPayload(FuncQualifyLead, `{"qualified":true,"fundingNeeded":1000}`))

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "create_opportunity", ue.Op)
	assert.False(t, IsValidation(err))
	// no compensation: the qualified tagging stays in place
	require.Len(t, fake.CallsTo("update_contact"), 1)
}

func TestDispatch_UpdateFailureSkipsOpportunity(t *testing.T) {
	fake := crmtest.NewFake()
	fake.Errors["update_contact"] = errors.New("boom")

	err := newTestDispatcher(fake, nil).Dispatch(context.Background(), functionPayload(FuncQualifyLead, `{"qualified":true}`))
	require.Error(t, err)
	assert.Empty(t, fake.CallsTo("create_opportunity"))
}

func TestDispatch_ScheduleFollowUp(t *testing.T) {
	fake := crmtest.NewFake()
	p := functionPayload(FuncScheduleFollowUp, `{"preferredTime":"2024-03-01T15:00:00Z","notes":"Owner prefers afternoons"}`)

	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), p))

	tasks := fake.CallsTo("create_task")
	require.Len(t, tasks, 1)
	task := tasks[0].Task
	assert.Equal(t, "Scheduled follow-up call", task.Title)
	assert.Contains(t, task.Body, "2024-03-01T15:00:00Z")
	assert.Contains(t, task.Body, "Owner prefers afternoons")
	assert.Equal(t, "Follow-up call scheduled for 2024-03-01T15:00:00Z. Notes: Owner prefers afternoons", task.Body)

	raw, err := json.Marshal(task)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "2024-03-01T15:00:00.000Z", wire["dueDate"])
}

func TestDispatch_ScheduleFollowUpOffsetWithoutColon(t *testing.T) {
	fake := crmtest.NewFake()
	p := functionPayload(FuncScheduleFollowUp, `{"preferredTime":"2024-03-01T10:00:00-0500"}`)

	require.NoError(t, newTestDispatcher(fake, nil).Dispatch(context.Background(), p))

	tasks := fake.CallsTo("create_task")
	require.Len(t, tasks, 1)
	raw, err := json.Marshal(tasks[0].Task)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "2024-03-01T15:00:00.000Z", wire["dueDate"])
}

func TestDispatch_ScheduleFollowUpBadTimeIsParameterError(t *testing.T) {
	fake := crmtest.NewFake()
	err := newTestDispatcher(fake, nil).Dispatch(context.Background(), functionPayload(FuncScheduleFollowUp, `{"preferredTime":"whenever"}`))

	var pe *ParameterError
	require.True(t, errors.As(err, &pe))
	assert.False(t, IsValidation(err))
	assert.Empty(t, fake.Calls())
}

func TestDispatch_UnknownFunctionAndTypeAcknowledged(t *testing.T) {
	fake := crmtest.NewFake()
	d := newTestDispatcher(fake, nil)

	require.NoError(t, d.Dispatch(context.Background(), functionPayload("transfer_call", `{}`)))
	require.NoError(t, d.Dispatch(context.Background(), Payload{Type: "hang", Call: callWithContact("x")}))
	assert.Empty(t, fake.Calls())
}

func TestDispatch_NoContactIDMeansNoCRMWrites(t *testing.T) {
	payloads := []Payload{
		{Type: TypeCallStarted, Call: &CallData{ID: "a"}},
		{Type: TypeCallEnded, Call: &CallData{ID: "b", Status: "ended", StartedAt: "2024-03-01T11:00:00Z", EndedAt: "2024-03-01T11:05:00Z"}},
		{Type: TypeTranscript, Call: &CallData{ID: "c", Transcript: "hello", Customer: &Customer{Number: "+1555"}}},
		{Type: TypeFunctionCall, Call: &CallData{ID: "d", FunctionCall: &FunctionCall{Name: FuncQualifyLead, Parameters: json.RawMessage(`{"qualified":true}`)}}},
		// parameters are not even inspected without a contact
		{Type: TypeFunctionCall, Call: &CallData{ID: "e", FunctionCall: &FunctionCall{Name: FuncScheduleFollowUp, Parameters: json.RawMessage(`{"preferredTime":"junk"}`)}}},
	}
	fake := crmtest.NewFake()
	d := newTestDispatcher(fake, nil)
	for _, p := range payloads {
		require.NoError(t, d.Dispatch(context.Background(), p), p.Type)
	}
	assert.Zero(t, fake.Writes())
}

func TestDispatch_ReplayDuplicatesSideEffects(t *testing.T) {
	// Events carry no idempotency key, so a redelivered event writes again.
	fake := crmtest.NewFake()
	d := newTestDispatcher(fake, nil)
	call := callWithContact("call-replay")
	call.Status = "ended"
	call.StartedAt = "2024-03-01T11:00:00Z"
	call.EndedAt = "2024-03-01T11:02:00Z"
	p := Payload{Type: TypeCallEnded, Call: call}

	require.NoError(t, d.Dispatch(context.Background(), p))
	require.NoError(t, d.Dispatch(context.Background(), p))

	assert.Len(t, fake.CallsTo("add_note"), 2)
	assert.Len(t, fake.CallsTo("create_task"), 2)
}

func TestDispatch_NoteFailureIsUpstreamError(t *testing.T) {
	fake := crmtest.NewFake()
	fake.Errors["add_note"] = &crm.APIError{Provider: "gohighlevel", Operation: "add_note", StatusCode: 503}

	err := newTestDispatcher(fake, nil).Dispatch(context.Background(), Payload{Type: TypeCallStarted, Call: callWithContact("call-7")})

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	var apiErr *crm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.StatusCode)
}

type recordingTracker struct {
	mu        sync.Mutex
	started   []string
	ended     []CallOutcome
	qualified map[string]bool
	err       error
}

func (r *recordingTracker) MarkStarted(_ context.Context, callID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, callID)
	return r.err
}

func (r *recordingTracker) MarkEnded(_ context.Context, o CallOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, o)
	return r.err
}

func (r *recordingTracker) MarkQualified(_ context.Context, callID string, q bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.qualified == nil {
		r.qualified = map[string]bool{}
	}
	r.qualified[callID] = q
	return r.err
}

func TestDispatch_TrackerReceivesLifecycle(t *testing.T) {
	fake := crmtest.NewFake()
	tr := &recordingTracker{}
	d := newTestDispatcher(fake, tr)

	require.NoError(t, d.Dispatch(context.Background(), Payload{Type: TypeCallStarted, Call: &CallData{ID: "c1"}}))
	require.NoError(t, d.Dispatch(context.Background(), Payload{Type: TypeCallEnded, Call: &CallData{
		ID: "c1", Status: "ended", StartedAt: "2024-03-01T11:00:00Z", EndedAt: "2024-03-01T11:01:40Z",
	}}))
	require.NoError(t, d.Dispatch(context.Background(), functionPayload(FuncQualifyLead, `{"qualified":true}`)))

	assert.Equal(t, []string{"c1"}, tr.started)
	require.Len(t, tr.ended, 1)
	assert.Equal(t, 100, tr.ended[0].DurationSeconds)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 1, 40, 0, time.UTC), tr.ended[0].EndedAt)
	assert.Equal(t, map[string]bool{"call-fn": true}, tr.qualified)
}

func TestDispatch_TrackerFailureDoesNotFailWebhook(t *testing.T) {
	fake := crmtest.NewFake()
	tr := &recordingTracker{err: errors.New("db down")}

	err := newTestDispatcher(fake, tr).Dispatch(context.Background(), Payload{Type: TypeCallStarted, Call: callWithContact("c2")})
	require.NoError(t, err)
	assert.Len(t, fake.CallsTo("add_note"), 1)
}

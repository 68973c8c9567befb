package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_ByType(t *testing.T) {
	call := &CallData{ID: "call-1"}
	cases := []struct {
		typ  string
		want Event
	}{
		{TypeCallStarted, CallStarted{Call: *call}},
		{TypeCallEnded, CallEnded{Call: *call}},
		{TypeTranscript, TranscriptReady{Call: *call}},
		{TypeFunctionCall, FunctionInvoked{Call: *call}},
		{"speech-update", UnknownEvent{RawType: "speech-update", Call: *call}},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			ev, err := Classify(Payload{Type: tc.typ, Call: call})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ev)
			assert.Equal(t, tc.typ, ev.Type())
		})
	}
}

func TestClassify_NoCallData(t *testing.T) {
	_, err := Classify(Payload{Type: TypeCallStarted})
	require.ErrorIs(t, err, ErrNoCallData)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "No call data", err.Error())
}

func TestClassify_UnwrapsMessageEnvelope(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"message":{"type":"call-ended","call":{"id":"c-9","status":"ended"}}}`), &p))

	ev, err := Classify(p)
	require.NoError(t, err)
	ended, ok := ev.(CallEnded)
	require.True(t, ok)
	assert.Equal(t, "c-9", ended.Call.ID)
}

func TestDurationSeconds(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		want       int
	}{
		{"forty five seconds", "2024-03-01T15:00:00.000Z", "2024-03-01T15:00:45.000Z", 45},
		{"floors fractions", "2024-03-01T15:00:00.000Z", "2024-03-01T15:00:31.999Z", 31},
		{"ended absent", "2024-03-01T15:00:00.000Z", "", 0},
		{"started absent", "", "2024-03-01T15:00:45.000Z", 0},
		{"unparseable", "yesterday", "2024-03-01T15:00:45.000Z", 0},
		{"negative clamps", "2024-03-01T15:00:45Z", "2024-03-01T15:00:00Z", 0},
		{"mixed zones", "2024-03-01T10:00:00-05:00", "2024-03-01T15:01:00Z", 60},
		{"offset without colon", "2024-03-01T10:00:00.000-0500", "2024-03-01T15:00:30+0000", 30},
		{"hour-only offset", "2024-03-01T17:00:00+02", "2024-03-01T15:00:10Z", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := CallData{StartedAt: tc.start, EndedAt: tc.end}
			assert.Equal(t, tc.want, c.DurationSeconds())
		})
	}
}

func TestContactID(t *testing.T) {
	assert.Equal(t, "", CallData{}.ContactID())
	assert.Equal(t, "", CallData{Customer: &Customer{ContactID: "  "}}.ContactID())
	assert.Equal(t, "c1", CallData{Customer: &Customer{ContactID: "c1"}}.ContactID())
}

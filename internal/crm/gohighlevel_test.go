package crm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGHL(t *testing.T, h http.HandlerFunc) *GoHighLevel {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewGoHighLevel(GoHighLevelConfig{
		APIKey:     "ghl-key",
		LocationID: "loc-1",
		BaseURL:    srv.URL,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		HTTPClient: &http.Client{Timeout: time.Second},
	})
	require.NoError(t, err)
	return g
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestNewGoHighLevel_Validation(t *testing.T) {
	_, err := NewGoHighLevel(GoHighLevelConfig{LocationID: "loc"})
	assert.Error(t, err)
	_, err = NewGoHighLevel(GoHighLevelConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestFindContactByPhone_ExactMatchOnly(t *testing.T) {
	g := newTestGHL(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/search", r.URL.Path)
		assert.Equal(t, "Bearer ghl-key", r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "loc-1", body["locationId"])
		assert.Equal(t, "+15551234567", body["query"])
		w.Write([]byte(`{"contacts":[{"id":"c0","phone":"+155512345679"},{"id":"c1","phone":"+15551234567"}]}`))
	})

	c, err := g.FindContactByPhone(context.Background(), "+15551234567")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "c1", c.ID)
}

func TestFindContactByPhone_NoMatchReturnsNil(t *testing.T) {
	g := newTestGHL(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"contacts":[]}`))
	})
	c, err := g.FindContactByPhone(context.Background(), "+15550000000")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCreateContact_DecodesWrappedAndBare(t *testing.T) {
	responses := []string{`{"contact":{"id":"wrapped"}}`, `{"id":"bare"}`}
	var n int32
	g := newTestGHL(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "loc-1", body["locationId"])
		assert.Equal(t, []any{"voice-campaign", "mca-lead"}, body["tags"])
		w.Write([]byte(responses[atomic.AddInt32(&n, 1)-1]))
	})

	in := NewContact{FirstName: "Unknown", LastName: "Lead", Phone: "+1555", Tags: []string{"voice-campaign", "mca-lead"}}
	c, err := g.CreateContact(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", c.ID)

	c, err = g.CreateContact(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "bare", c.ID)
}

func TestCreateTask_SerializesMillisecondDueDate(t *testing.T) {
	g := newTestGHL(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/c1/tasks", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "2024-03-01T15:00:00.000Z", body["dueDate"])
		assert.Equal(t, "c1", body["contactId"])
		assert.Equal(t, "Scheduled follow-up call", body["title"])
		w.Write([]byte(`{}`))
	})

	err := g.CreateTask(context.Background(), Task{
		ContactID: "c1",
		Title:     "Scheduled follow-up call",
		DueDate:   time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestAddNote_RetriedOnServerError(t *testing.T) {
	var hits int32
	g := newTestGHL(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/c1/notes", r.URL.Path)
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body := decodeBody(t, r)
		assert.Equal(t, "hello", body["body"])
		w.Write([]byte(`{}`))
	})

	require.NoError(t, g.AddNote(context.Background(), "c1", "hello"))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestCreateOpportunity_NotRetried(t *testing.T) {
	var hits int32
	g := newTestGHL(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"upstream down"}`))
	})

	value := 50000.0
	_, err := g.CreateOpportunity(context.Background(), Opportunity{ContactID: "c1", Name: "MCA Funding - Retail", MonetaryValue: &value})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestCreateOpportunity_SendsLocationAndValue(t *testing.T) {
	g := newTestGHL(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/opportunities/", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "loc-1", body["locationId"])
		assert.Equal(t, 50000.0, body["monetaryValue"])
		assert.Equal(t, "default", body["pipelineId"])
		w.Write([]byte(`{"id":"opp-1"}`))
	})

	value := 50000.0
	rec, err := g.CreateOpportunity(context.Background(), Opportunity{
		ContactID: "c1", Name: "MCA Funding - Retail", PipelineID: "default", StageID: "default", MonetaryValue: &value,
	})
	require.NoError(t, err)
	assert.Equal(t, "opp-1", rec.ID)
}

func TestContactOperations_RequireContactID(t *testing.T) {
	g := newTestGHL(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	ctx := context.Background()
	assert.ErrorIs(t, g.AddNote(ctx, "", "x"), ErrContactIDRequired)
	assert.ErrorIs(t, g.UpdateContact(ctx, "", ContactUpdate{}), ErrContactIDRequired)
	assert.ErrorIs(t, g.CreateTask(ctx, Task{}), ErrContactIDRequired)
}

func TestFormatTime(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "2024-03-01T15:00:00.000Z", FormatTime(time.Date(2024, 3, 1, 10, 0, 0, 0, est)))
	assert.Equal(t, "2024-03-01T15:00:00.123Z", FormatTime(time.Date(2024, 3, 1, 15, 0, 0, 123456789, time.UTC)))
}

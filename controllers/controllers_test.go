package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubebony/analytics"
	"hubebony/leadsource"
	"hubebony/middleware"
	"hubebony/models"
	"hubebony/tracking"
)

func str(s string) *string { return &s }

func e2eLeads() []models.LeadSubmission {
	return []models.LeadSubmission{
		{ID: "l1", Email: "a@x.com", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			LeadScore: 50, PagesVisited: 2, TimeOnSite: 60, EventsTriggered: 1},
		{ID: "l2", Email: "a@x.com", CreatedAt: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), Phone: str("+97100000"),
			LeadScore: 70, PagesVisited: 5, TimeOnSite: 180, EventsTriggered: 3},
		{ID: "l3", Email: "b@x.com", CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
}

type recordingSink struct {
	tracking.Nop
	mu     sync.Mutex
	events []string
	leads  []models.LeadSubmission
}

func (s *recordingSink) TrackEvent(_ context.Context, name string, _ map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
}

func (s *recordingSink) TrackLead(_ context.Context, lead models.LeadSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
}

type reportEnvelope struct {
	Success bool             `json:"success"`
	Error   string           `json:"error"`
	Data    analytics.Report `json:"data"`
}

func doJSON(t *testing.T, app *fiber.App, req *http.Request, out interface{}) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp.StatusCode
}

func newRepeatApp(src leadsource.Source, sink tracking.EventSink) *fiber.App {
	logger, _ := test.NewNullLogger()
	rc := NewRepeatLeadController(src, sink, logger)
	app := fiber.New()
	app.Get("/repeat-leads", rc.GetRepeatLeads)
	app.Get("/repeat-leads/:email", rc.GetRepeatLeadsForEmail)
	return app
}

func TestGetRepeatLeads(t *testing.T) {
	var gotFilter models.RepeatLeadFilter
	src := leadsource.SourceFunc(func(ctx context.Context, f models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
		gotFilter = f
		return e2eLeads(), nil
	})
	sink := &recordingSink{}

	var env reportEnvelope
	code := doJSON(t, newRepeatApp(src, sink),
		httptest.NewRequest(fiber.MethodGet, "/repeat-leads?startDate=2025-01-01&formType=viewing&maxDaysBetween=10", nil), &env)

	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, env.Success)
	require.Len(t, env.Data.Leads, 1)

	r := env.Data.Leads[0]
	assert.Equal(t, "l2", r.ID)
	assert.Equal(t, 4, r.TimeBetweenLeads)
	assert.Equal(t, analytics.TrendIncreasing, r.Trend)
	assert.Equal(t, models.BehaviorChange{TimeOnSiteChange: 120, PagesVisitedChange: 3, EventsTriggeredChange: 2, LeadScoreChange: 20}, r.BehaviorChange)
	assert.Equal(t, map[string]models.FieldChange{"phone": {Old: nil, New: str("+97100000")}}, r.Changes)
	assert.Len(t, r.AllSubmissions, 2)
	assert.Equal(t, 1, env.Data.Summary.UniqueRepeatContacts)

	assert.Equal(t, 2, gotFilter.MinSubmissions)
	require.NotNil(t, gotFilter.FormType)
	assert.Equal(t, "viewing", *gotFilter.FormType)
	require.NotNil(t, gotFilter.MaxDaysBetween)
	assert.Equal(t, []string{"repeat_leads_analyzed"}, sink.events)
}

func TestGetRepeatLeads_InvalidFilter(t *testing.T) {
	src := leadsource.SourceFunc(func(ctx context.Context, f models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
		t.Fatal("source must not be called")
		return nil, nil
	})
	app := newRepeatApp(src, nil)

	for _, q := range []string{"minSubmissions=1", "startDate=nope", "leadScoreRange=80,20"} {
		var env reportEnvelope
		code := doJSON(t, app, httptest.NewRequest(fiber.MethodGet, "/repeat-leads?"+q, nil), &env)
		assert.Equal(t, fiber.StatusBadRequest, code, q)
		assert.False(t, env.Success)
	}
}

func TestGetRepeatLeads_SourceErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("GET: %w", leadsource.ErrUpstream), fiber.StatusBadGateway},
		{context.DeadlineExceeded, fiber.StatusGatewayTimeout},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		src := leadsource.SourceFunc(func(ctx context.Context, f models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
			return nil, tt.err
		})
		code := doJSON(t, newRepeatApp(src, nil), httptest.NewRequest(fiber.MethodGet, "/repeat-leads", nil), nil)
		assert.Equal(t, tt.want, code, tt.err.Error())
	}
}

func TestGetRepeatLeadsForEmail(t *testing.T) {
	src := leadsource.SourceFunc(func(ctx context.Context, f models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
		return e2eLeads(), nil
	})
	app := newRepeatApp(src, nil)

	var env reportEnvelope
	code := doJSON(t, app, httptest.NewRequest(fiber.MethodGet, "/repeat-leads/a%40x.com", nil), &env)
	require.Equal(t, fiber.StatusOK, code)
	require.Len(t, env.Data.Leads, 1)
	assert.Equal(t, "a@x.com", env.Data.Leads[0].Email)

	code = doJSON(t, app, httptest.NewRequest(fiber.MethodGet, "/repeat-leads/b%40x.com", nil), nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

type fakeStore struct {
	created []models.LeadSubmission
	query   leadsource.LeadQuery
	leads   []models.LeadSubmission
	err     error
}

func (s *fakeStore) CreateLead(_ context.Context, lead *models.LeadSubmission) error {
	if s.err != nil {
		return s.err
	}
	lead.ID = fmt.Sprintf("lead-%d", len(s.created)+1)
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	s.created = append(s.created, *lead)
	return nil
}

func (s *fakeStore) ListLeads(_ context.Context, q leadsource.LeadQuery) ([]models.LeadSubmission, error) {
	s.query = q
	return s.leads, s.err
}

func newLeadApp(store LeadStore, sink tracking.EventSink) *fiber.App {
	logger, _ := test.NewNullLogger()
	lc := NewLeadController(store, sink, logger)
	app := fiber.New()
	app.Post("/leads", lc.CreateLead)
	app.Get("/leads", lc.GetLeads)
	return app
}

func TestCreateLead(t *testing.T) {
	store := &fakeStore{}
	sink := &recordingSink{}

	body := `{"email":"Buyer@Example.com","phone":"+97100000","formType":"viewing","leadScore":70,"timeOnSite":180,"createdAt":"2025-01-05T10:00:00Z"}`
	req := httptest.NewRequest(fiber.MethodPost, "/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	code := doJSON(t, newLeadApp(store, sink), req, nil)
	require.Equal(t, fiber.StatusCreated, code)
	require.Len(t, store.created, 1)

	created := store.created[0]
	assert.Equal(t, "Buyer@Example.com", created.Email, "email is kept verbatim")
	assert.Equal(t, "+97100000", *created.Phone)
	assert.Nil(t, created.Name)
	assert.Equal(t, time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), created.CreatedAt)
	require.Len(t, sink.leads, 1)
}

func TestCreateLead_Validation(t *testing.T) {
	app := newLeadApp(&fakeStore{}, nil)
	for _, body := range []string{
		`{"phone":"1"}`,
		`{"email":"not-an-email"}`,
		`{"email":"a@x.com","leadScore":101}`,
		`{"email":"a@x.com","timeOnSite":-1}`,
		`not json`,
	} {
		req := httptest.NewRequest(fiber.MethodPost, "/leads", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		code := doJSON(t, app, req, nil)
		assert.Equal(t, fiber.StatusBadRequest, code, body)
	}
}

func TestGetLeads_Envelope(t *testing.T) {
	store := &fakeStore{leads: e2eLeads()}
	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Leads []models.LeadSubmission `json:"leads"`
		} `json:"data"`
	}
	code := doJSON(t, newLeadApp(store, nil), httptest.NewRequest(fiber.MethodGet, "/leads?isRepeatLead=true&minSubmissions=3", nil), &env)

	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, env.Success)
	assert.Len(t, env.Data.Leads, 3)
	assert.True(t, store.query.IsRepeatLead)
	assert.Equal(t, 3, store.query.Filter.MinSubmissions)
}

func TestGetLeads_EmptyIsArray(t *testing.T) {
	resp, err := newLeadApp(&fakeStore{}, nil).Test(httptest.NewRequest(fiber.MethodGet, "/leads", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"leads":[]`)
}

// fakeConn feeds scripted requests and records responses.
type fakeConn struct {
	in    chan streamRequest
	wrote chan streamResponse
	mu    sync.Mutex
	out   []streamResponse
}

func newFakeConn(buffer int) *fakeConn {
	return &fakeConn{in: make(chan streamRequest, buffer), wrote: make(chan streamResponse, 16)}
}

func (c *fakeConn) ReadJSON(v interface{}) error {
	req, ok := <-c.in
	if !ok {
		return io.EOF
	}
	*(v.(*streamRequest)) = req
	return nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp := v.(streamResponse)
	c.out = append(c.out, resp)
	c.wrote <- resp
	return nil
}

func TestStreamRepeatLeads_DropsSupersededResults(t *testing.T) {
	firstStarted := make(chan struct{})
	src := leadsource.SourceFunc(func(ctx context.Context, f models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
		if f.FormType != nil && *f.FormType == "slow" {
			close(firstStarted)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return e2eLeads(), nil
	})
	logger, _ := test.NewNullLogger()
	rc := NewRepeatLeadController(src, nil, logger)

	conn := newFakeConn(0)
	done := make(chan struct{})
	go func() {
		rc.serveStream(conn)
		close(done)
	}()

	conn.in <- streamRequest{RequestID: "r1", Filter: models.RepeatLeadFilter{FormType: str("slow")}}
	<-firstStarted
	conn.in <- streamRequest{RequestID: "r2"}
	for resp := range conn.wrote {
		if resp.Status == "done" {
			break
		}
	}
	close(conn.in)
	<-done

	conn.mu.Lock()
	defer conn.mu.Unlock()

	var statuses []string
	for _, r := range conn.out {
		statuses = append(statuses, r.RequestID+":"+r.Status)
	}
	assert.Equal(t, []string{"r1:loading", "r2:loading", "r2:done"}, statuses)
	require.NotNil(t, conn.out[2].Data)
	assert.Len(t, conn.out[2].Data.Leads, 1)
}

func TestStreamRepeatLeads_InvalidFilter(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rc := NewRepeatLeadController(leadsource.SourceFunc(func(ctx context.Context, f models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
		return nil, nil
	}), nil, logger)

	conn := newFakeConn(1)
	conn.in <- streamRequest{RequestID: "bad", Filter: models.RepeatLeadFilter{MinSubmissions: 1}}
	close(conn.in)
	rc.serveStream(conn)

	require.Len(t, conn.out, 1)
	assert.Equal(t, "error", conn.out[0].Status)
}

func TestGetRepeatLeads_EventsCarryRequestUser(t *testing.T) {
	src := leadsource.SourceFunc(func(ctx context.Context, f models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
		return e2eLeads(), nil
	})
	eventLogger, hook := test.NewNullLogger()
	logger, _ := test.NewNullLogger()
	rc := NewRepeatLeadController(src, tracking.NewLogSink(eventLogger), logger)

	app := fiber.New()
	app.Get("/repeat-leads", func(c *fiber.Ctx) error {
		if user := c.Get("X-User"); user != "" {
			c.Locals(middleware.LocalUserID, user)
		}
		return c.Next()
	}, rc.GetRepeatLeads)

	for _, user := range []string{"alice", "", "bob"} {
		req := httptest.NewRequest(fiber.MethodGet, "/repeat-leads", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		require.Equal(t, fiber.StatusOK, doJSON(t, app, req, nil))
	}

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "alice", entries[0].Data["user_id"])
	assert.NotContains(t, entries[1].Data, "user_id")
	assert.Equal(t, "bob", entries[2].Data["user_id"])
}

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tkrause/matchday/internal/errors"
	"github.com/tkrause/matchday/internal/handlers"
	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/models"
	"github.com/tkrause/matchday/internal/services"
	"github.com/tkrause/matchday/internal/websocket"
)

// stubGenerator implements services.GeneratorServicer with canned
// responses.
type stubGenerator struct {
	job       models.GeneratorJob
	startErr  error
	status    models.GeneratorStatus
	statusErr error
}

func (s *stubGenerator) StartGeneration(_ context.Context, eventID int) (models.GeneratorJob, error) {
	return s.job, s.startErr
}

func (s *stubGenerator) Status(_ context.Context, eventID int) (models.GeneratorStatus, error) {
	return s.status, s.statusErr
}

func (s *stubGenerator) LiveActivities(planID int) ([]models.Activity, bool) {
	return nil, false
}

// stubSchedule records the query it received and returns a fixed view.
type stubSchedule struct {
	lastPlan     int
	lastRole     string
	lastAt       int
	lastInterval int
	view         models.ScheduleView
}

func (s *stubSchedule) Now(planID int, role string, atMin int) models.ScheduleView {
	s.lastPlan, s.lastRole, s.lastAt = planID, role, atMin
	return s.view
}

func (s *stubSchedule) Next(planID int, role string, atMin, intervalMin int) models.ScheduleView {
	s.lastPlan, s.lastRole, s.lastAt, s.lastInterval = planID, role, atMin, intervalMin
	return s.view
}

type stubBlocks struct {
	submitted    *models.ExtraBlock
	submitErr    error
	toggled      *models.ExtraBlock
	toggleErr    error
	list         []models.ExtraBlock
	flushed      []int
	flushPending bool
}

func (s *stubBlocks) Submit(_ context.Context, block models.ExtraBlock) (*models.ExtraBlock, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	block.ID = 1
	s.submitted = &block
	return &block, nil
}

func (s *stubBlocks) ToggleActive(_ context.Context, blockID int, active bool) (*models.ExtraBlock, error) {
	return s.toggled, s.toggleErr
}

func (s *stubBlocks) List(_ context.Context, eventID int) ([]models.ExtraBlock, error) {
	return s.list, nil
}

func (s *stubBlocks) Flush(eventID int) bool {
	s.flushed = append(s.flushed, eventID)
	return s.flushPending
}

type testEnv struct {
	generator *stubGenerator
	schedule  *stubSchedule
	blocks    *stubBlocks
	server    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		generator: &stubGenerator{},
		schedule:  &stubSchedule{view: models.ScheduleView{Header: []string{"Time"}}},
		blocks:    &stubBlocks{},
	}

	log := logger.New()
	hub := websocket.New(log)
	hub.Start()

	h := handlers.New(log, env.generator, env.schedule, env.blocks, hub, "http://test")
	env.server = httptest.NewServer(h.Router())
	t.Cleanup(env.server.Close)
	return env
}

var (
	_ services.GeneratorServicer  = (*stubGenerator)(nil)
	_ services.ScheduleServicer   = (*stubSchedule)(nil)
	_ services.ExtraBlockServicer = (*stubBlocks)(nil)
)

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestScheduleNow(t *testing.T) {
	env := newTestEnv(t)

	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/schedule/3/now?role=visitor&at=09:30", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if env.schedule.lastPlan != 3 || env.schedule.lastRole != "visitor" {
		t.Errorf("query not forwarded: plan=%d role=%q", env.schedule.lastPlan, env.schedule.lastRole)
	}
	if env.schedule.lastAt != 9*60+30 {
		t.Errorf("expected at=570, got %d", env.schedule.lastAt)
	}

	var view models.ScheduleView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	if len(view.Header) == 0 {
		t.Error("expected header in response")
	}
}

func TestScheduleNow_AtFormats(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		at     string
		status int
		want   int
	}{
		{"clock time", "14:05", http.StatusOK, 14*60 + 5},
		{"bare minutes", "605", http.StatusOK, 605},
		{"multi-day clock", "d2%2009:00", http.StatusOK, 24*60 + 9*60},
		{"malformed clock", "25:00", http.StatusBadRequest, 0},
		{"negative minutes", "-5", http.StatusBadRequest, 0},
		{"garbage", "noon", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodGet, env.server.URL+"/api/schedule/1/now?at="+tt.at, "")
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			if tt.status == http.StatusOK && env.schedule.lastAt != tt.want {
				t.Errorf("expected at=%d, got %d", tt.want, env.schedule.lastAt)
			}
		})
	}
}

func TestScheduleNext(t *testing.T) {
	env := newTestEnv(t)

	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/schedule/1/next?at=600&interval=30", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if env.schedule.lastInterval != 30 {
		t.Errorf("expected interval 30, got %d", env.schedule.lastInterval)
	}

	// Interval defaults to an hour when omitted
	doJSON(t, http.MethodGet, env.server.URL+"/api/schedule/1/next?at=600", "")
	if env.schedule.lastInterval != 60 {
		t.Errorf("expected default interval 60, got %d", env.schedule.lastInterval)
	}

	for _, bad := range []string{"0", "-10", "soon"} {
		resp := doJSON(t, http.MethodGet, env.server.URL+"/api/schedule/1/next?at=600&interval="+bad, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("interval %q: expected 400, got %d", bad, resp.StatusCode)
		}
	}
}

func TestScheduleNow_InvalidPlanParam(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/schedule/abc/now?at=600", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestScheduleQR(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/schedule/1/qr", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
}

func TestGeneratePlan(t *testing.T) {
	env := newTestEnv(t)
	env.generator.job = models.GeneratorJob{ID: "job-1", PlanID: 5, Seq: 1, Status: models.StatusRunning}

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/plans/5/generate", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["job_id"] != "job-1" || body["status"] != "running" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestGeneratePlan_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown event", errors.NotFoundf("event 9 not found"), http.StatusNotFound},
		{"no active track", errors.Validation("event has no active track"), http.StatusBadRequest},
		{"schedule conflict", errors.Conflict("activities overlap"), http.StatusConflict},
		{"deadline exceeded", errors.Timeout("generation exceeded deadline"), http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.generator.startErr = tt.err

			resp := doJSON(t, http.MethodPost, env.server.URL+"/api/plans/9/generate", "")
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestPlanStatus(t *testing.T) {
	env := newTestEnv(t)
	env.generator.status = models.StatusDone

	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/plans/5/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "done" {
		t.Errorf("expected done, got %q", body["status"])
	}
}

func TestCreateExtraBlock(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"name":"Lunch","program":0,"insert_point":"after-judging","buffer_before":5,"duration_min":45,"buffer_after":5}`
	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/events/2/extra-blocks", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if env.blocks.submitted == nil {
		t.Fatal("block not forwarded to the service")
	}
	if env.blocks.submitted.EventID != 2 || env.blocks.submitted.DurationMin != 45 {
		t.Errorf("unexpected block %+v", env.blocks.submitted)
	}
	// Active defaults to true when omitted
	if !env.blocks.submitted.Active {
		t.Error("expected active to default to true")
	}
}

func TestCreateExtraBlock_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/events/2/extra-blocks", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty body: expected 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, env.server.URL+"/api/events/2/extra-blocks", "{not json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json: expected 400, got %d", resp.StatusCode)
	}

	env.blocks.submitErr = errors.Validation("extra block duration must be positive")
	resp = doJSON(t, http.MethodPost, env.server.URL+"/api/events/2/extra-blocks", `{"duration_min":0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("validation: expected 400, got %d", resp.StatusCode)
	}
}

func TestToggleExtraBlock_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.blocks.toggleErr = errors.NotFoundf("extra block 42 not found")

	resp := doJSON(t, http.MethodPut, env.server.URL+"/api/extra-blocks/42/active", `{"active":false}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFlushExtraBlocks(t *testing.T) {
	env := newTestEnv(t)
	env.blocks.flushPending = true

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/events/2/extra-blocks/flush", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(env.blocks.flushed) != 1 || env.blocks.flushed[0] != 2 {
		t.Errorf("flush not forwarded: %v", env.blocks.flushed)
	}

	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !body["flushed"] {
		t.Error("expected flushed true when a regeneration was pending")
	}
}

func TestFlushExtraBlocks_NothingPending(t *testing.T) {
	env := newTestEnv(t)

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/events/2/extra-blocks/flush", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["flushed"] {
		t.Error("expected flushed false with nothing pending")
	}
}

func TestListExtraBlocks_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/events/2/extra-blocks", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var blocks []models.ExtraBlock
	if err := json.NewDecoder(resp.Body).Decode(&blocks); err != nil {
		t.Fatalf("expected a JSON array, got decode error: %v", err)
	}
	if blocks == nil {
		t.Error("expected [] for an event with no blocks")
	}
}

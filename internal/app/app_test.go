package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/tkrause/matchday/internal/app"
	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/models"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(logger.New(), app.Config{
		Addr:               ":0",
		DBPath:             ":memory:",
		DebounceWindow:     time.Hour,
		GenerationDeadline: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_Health(t *testing.T) {
	a := newTestApp(t)
	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

// End to end: seed an event, trigger generation over HTTP, poll until
// done, then query the schedule.
func TestApp_GenerateAndQuery(t *testing.T) {
	a := newTestApp(t)
	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)

	ctx := context.Background()
	repo := a.Repository()
	eventID, err := repo.CreateEvent(ctx, models.Event{
		Name:        "Season Opener",
		Date:        "2026-09-12",
		ExploreMode: models.TrackModeDecoupledMorning,
		DayStartMin: 480,
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := repo.CreateTeam(ctx, models.Team{
			EventID: int(eventID), Name: "Team", Program: models.ProgramExplore,
		}); err != nil {
			t.Fatalf("CreateTeam failed: %v", err)
		}
	}

	url := server.URL + "/api/plans/" + strconv.Itoa(int(eventID))
	resp, err := http.Post(url+"/generate", "application/json", nil)
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	status := ""
	for time.Now().Before(deadline) && status != "done" {
		resp, err := http.Get(url + "/status")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		status = body["status"]
		if status == "failed" {
			t.Fatal("generation failed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status != "done" {
		t.Fatalf("generation did not finish, last status %q", status)
	}

	resp, err = http.Get(server.URL + "/api/schedule/" + strconv.Itoa(int(eventID)) + "/now?at=08:15")
	if err != nil {
		t.Fatalf("schedule request failed: %v", err)
	}
	defer resp.Body.Close()
	var view models.ScheduleView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	if len(view.Rows) == 0 {
		t.Error("expected the opening to be running at 08:15")
	}
}

func TestApp_WarmPlans(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	acts := []models.Activity{{TypeID: "opening", Program: models.ProgramJoint, StartMin: 480, EndMin: 510}}
	if err := a.Repository().ReplaceActivities(ctx, 4, acts); err != nil {
		t.Fatalf("ReplaceActivities failed: %v", err)
	}

	a.WarmPlans(ctx, 4)

	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)
	resp, err := http.Get(server.URL + "/api/schedule/4/now?at=08:15")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var view models.ScheduleView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	if len(view.Rows) != 1 {
		t.Errorf("expected the warmed opening, got %d rows", len(view.Rows))
	}
}

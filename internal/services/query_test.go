package services_test

import (
	"testing"

	"github.com/tkrause/matchday/internal/atd"
	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/models"
	"github.com/tkrause/matchday/internal/services"
)

// fixedSource serves a canned activity set for one plan.
type fixedSource struct {
	planID int
	acts   []models.Activity
}

func (s *fixedSource) LiveActivities(planID int) ([]models.Activity, bool) {
	if planID != s.planID {
		return nil, false
	}
	return s.acts, true
}

func queryFixture() *services.ScheduleService {
	acts := []models.Activity{
		{ID: 1, TypeID: "opening", Program: models.ProgramJoint, StartMin: 480, EndMin: 510},
		{ID: 2, TypeID: "explore-judging", Program: models.ProgramExplore, StartMin: 510, EndMin: 535,
			Room: "Room A", Lanes: []int{1}, Teams: []models.TeamSlot{{TeamID: 1}}},
		{ID: 3, TypeID: "challenge-judging", Program: models.ProgramChallenge, StartMin: 510, EndMin: 535,
			Room: "Room B", Lanes: []int{1}, Teams: []models.TeamSlot{{TeamID: 10}}},
		{ID: 4, TypeID: "judge-briefing", Program: models.ProgramJoint, StartMin: 540, EndMin: 560},
		{ID: 5, TypeID: "challenge-match", Program: models.ProgramChallenge, StartMin: 600, EndMin: 610,
			Lanes: []int{1}, Teams: []models.TeamSlot{{TeamID: 10}, {TeamID: 11, NoShow: true}}},
	}
	return services.NewScheduleService(logger.New(), atd.Default(), &fixedSource{planID: 1, acts: acts})
}

func rowCount(v models.ScheduleView) int {
	n := 0
	for _, r := range v.Rows {
		if !r.Separator {
			n++
		}
	}
	return n
}

func TestNow_Boundaries(t *testing.T) {
	svc := queryFixture()

	tests := []struct {
		name string
		at   int
		want int
	}{
		{"before the day", 400, 0},
		{"at opening start", 480, 1},
		{"during opening", 500, 1},
		{"at opening end, judging start", 510, 2}, // end is exclusive, start inclusive
		{"during judging", 520, 2},
		{"gap between sessions", 590, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := svc.Now(1, "", tt.at)
			if got := rowCount(view); got != tt.want {
				t.Errorf("Now(%d) returned %d rows, want %d", tt.at, got, tt.want)
			}
		})
	}
}

func TestNext_ReturnsAllTies(t *testing.T) {
	svc := queryFixture()

	// Both judging slots start at 510; both come back together
	view := svc.Next(1, "", 480, 60)
	if got := rowCount(view); got != 2 {
		t.Errorf("expected both 510 activities, got %d rows", got)
	}
}

func TestNext_IntervalWindow(t *testing.T) {
	svc := queryFixture()

	// The match at 600 is outside a 30-minute window from 560
	if view := svc.Next(1, "", 560, 30); rowCount(view) != 0 {
		t.Error("expected nothing within the window")
	}
	if view := svc.Next(1, "", 560, 60); rowCount(view) != 1 {
		t.Error("expected the match once the window reaches it")
	}
	// start == at is not "next"
	if view := svc.Next(1, "", 600, 60); rowCount(view) != 0 {
		t.Error("an activity already started is not upcoming")
	}
}

// A role with a hidden program sees an empty upcoming view when only
// that program is scheduled next.
func TestNext_RoleHidesProgram(t *testing.T) {
	svc := queryFixture()

	// Between 560 and 660 only the challenge match is scheduled
	view := svc.Next(1, "explore-visitor", 560, 100)
	if got := rowCount(view); got != 0 {
		t.Errorf("explore visitor should not see challenge activities, got %d rows", got)
	}
	// The unfiltered view has it
	if view := svc.Next(1, "", 560, 100); rowCount(view) != 1 {
		t.Error("unfiltered view should include the match")
	}
}

func TestNow_RoleFiltering(t *testing.T) {
	svc := queryFixture()

	tests := []struct {
		name string
		role string
		at   int
		want int
	}{
		{"explore visitor hides challenge judging", "explore-visitor", 520, 1},
		{"challenge visitor hides explore judging", "challenge-visitor", 520, 1},
		{"unknown role sees everything", "press", 520, 2},
		{"joint opening visible to all roles", "explore-visitor", 500, 1},
		{"visitor group hides the briefing", "visitor", 550, 0},
		{"unknown role sees the briefing", "press", 550, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := svc.Now(1, tt.role, tt.at)
			if got := rowCount(view); got != tt.want {
				t.Errorf("Now(role=%q, at=%d) returned %d rows, want %d", tt.role, tt.at, got, tt.want)
			}
		})
	}
}

// Unknown plans degrade to an empty view with the header intact so
// displays keep rendering.
func TestNow_UnknownPlan(t *testing.T) {
	svc := queryFixture()

	view := svc.Now(99, "", 500)
	if len(view.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(view.Rows))
	}
	if len(view.Header) == 0 {
		t.Error("expected the header even for an unknown plan")
	}
}

func TestBuildView_GroupsByStartTime(t *testing.T) {
	svc := queryFixture()

	view := svc.Now(1, "", 520)
	if len(view.Rows) != 2 {
		t.Fatalf("expected 2 rows for the 510 group, got %d", len(view.Rows))
	}

	first, second := view.Rows[0], view.Rows[1]
	if first.Separator || second.Separator {
		t.Error("a single group has no separator rows")
	}
	// The time cell leads the group and spans both rows
	if len(first.Cells) != 5 {
		t.Fatalf("expected 5 cells in the lead row, got %d", len(first.Cells))
	}
	if first.Cells[0].Text != "08:30 – 08:55" {
		t.Errorf("unexpected time cell %q", first.Cells[0].Text)
	}
	if first.Cells[0].RowSpan != 2 {
		t.Errorf("expected the time cell to span 2 rows, got %d", first.Cells[0].RowSpan)
	}
	// Follow-on rows omit the time cell
	if len(second.Cells) != 4 {
		t.Errorf("expected 4 cells in the follow-on row, got %d", len(second.Cells))
	}
}

func TestBuildView_TeamAndNoShowText(t *testing.T) {
	svc := queryFixture()

	view := svc.Now(1, "", 605)
	if len(view.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(view.Rows))
	}
	teams := view.Rows[0].Cells[4].Text
	if teams != "#10, #11 (no-show)" {
		t.Errorf("unexpected teams cell %q", teams)
	}
}

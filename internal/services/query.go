package services

import (
	"fmt"
	"strings"

	"github.com/tkrause/matchday/internal/atd"
	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/models"
)

// roleProgramExclusions maps viewer roles to the programs hidden from
// them. Roles absent from the table get no program filtering at all.
var roleProgramExclusions = map[string][]models.ProgramKind{
	"explore-visitor":   {models.ProgramChallenge},
	"challenge-visitor": {models.ProgramDiscover, models.ProgramExplore},
}

// roleExclusionGroups maps viewer roles to the activity type directory
// group applied on top of program filtering.
var roleExclusionGroups = map[string]string{
	"visitor":           atd.GroupVisitorHidden,
	"explore-visitor":   atd.GroupVisitorHidden,
	"challenge-visitor": atd.GroupVisitorHidden,
	"explore-general":   atd.GroupExploreGeneralHidden,
	"challenge-general": atd.GroupChallengeGeneralHidden,
}

// ScheduleService answers point-in-time queries against generated
// schedules. It is read-only: many callers may query concurrently while
// a plan regenerates, and each query sees one complete activity set.
type ScheduleService struct {
	log  logger.Logger
	atd  *atd.Directory
	live ActivitySource
}

// NewScheduleService creates a new ScheduleService
func NewScheduleService(log logger.Logger, directory *atd.Directory, live ActivitySource) *ScheduleService {
	return &ScheduleService{log: log, atd: directory, live: live}
}

// Now returns the activities visible to the role that are running at
// the given time: start <= at < end. An unknown plan or role degrades
// to an empty view so displays stay up.
func (s *ScheduleService) Now(planID int, role string, atMin int) models.ScheduleView {
	acts, ok := s.live.LiveActivities(planID)
	if !ok {
		return emptyView()
	}

	var current []models.Activity
	for _, a := range acts {
		if a.StartMin <= atMin && atMin < a.EndMin && s.visible(a, role) {
			current = append(current, a)
		}
	}
	return buildView(current)
}

// Next returns the activities visible to the role at the next point in
// time with anything scheduled within (at, at+interval]. Ties for the
// earliest start are all returned together.
func (s *ScheduleService) Next(planID int, role string, atMin, intervalMin int) models.ScheduleView {
	acts, ok := s.live.LiveActivities(planID)
	if !ok {
		return emptyView()
	}

	earliest := -1
	for _, a := range acts {
		if a.StartMin > atMin && a.StartMin <= atMin+intervalMin && s.visible(a, role) {
			if earliest < 0 || a.StartMin < earliest {
				earliest = a.StartMin
			}
		}
	}
	if earliest < 0 {
		return emptyView()
	}

	var upcoming []models.Activity
	for _, a := range acts {
		if a.StartMin == earliest && s.visible(a, role) {
			upcoming = append(upcoming, a)
		}
	}
	return buildView(upcoming)
}

// visible applies the role's program exclusions and its activity type
// directory group.
func (s *ScheduleService) visible(a models.Activity, role string) bool {
	for _, excluded := range roleProgramExclusions[role] {
		if sameProgram(a.Program, excluded) {
			return false
		}
	}
	if group, ok := roleExclusionGroups[role]; ok && s.atd.IsExcluded(a.TypeID, group) {
		return false
	}
	return true
}

// sameProgram reports whether an activity's program falls under an
// excluded program. Joint activities are never excluded by program.
func sameProgram(program, excluded models.ProgramKind) bool {
	if program == models.ProgramJoint {
		return false
	}
	if program.ExploreLike() && excluded.ExploreLike() {
		return true
	}
	return program == excluded
}

var viewHeader = []string{"Time", "Activity", "Program", "Room", "Teams"}

func emptyView() models.ScheduleView {
	return models.ScheduleView{Header: viewHeader}
}

// buildView renders activities into the display view model: activities
// sharing a start time form one group, separated from the next group by
// a separator row, with the time cell spanning the group's rows.
func buildView(acts []models.Activity) models.ScheduleView {
	view := emptyView()

	i := 0
	for i < len(acts) {
		j := i
		for j < len(acts) && acts[j].StartMin == acts[i].StartMin {
			j++
		}
		group := acts[i:j]

		if len(view.Rows) > 0 {
			view.Rows = append(view.Rows, models.ScheduleRow{Separator: true})
		}
		for k, a := range group {
			row := models.ScheduleRow{}
			if k == 0 {
				row.Cells = append(row.Cells, models.ScheduleCell{
					Text:    fmt.Sprintf("%s – %s", clock(a.StartMin), clock(a.EndMin)),
					RowSpan: len(group),
				})
			}
			row.Cells = append(row.Cells,
				models.ScheduleCell{Text: displayName(a)},
				models.ScheduleCell{Text: a.Program.String()},
				models.ScheduleCell{Text: a.Room},
				models.ScheduleCell{Text: teamsText(a)},
			)
			view.Rows = append(view.Rows, row)
		}
		i = j
	}
	return view
}

func displayName(a models.Activity) string {
	if a.Label != "" {
		return a.Label
	}
	return a.TypeID
}

func teamsText(a models.Activity) string {
	if len(a.Teams) == 0 {
		return ""
	}
	parts := make([]string, 0, len(a.Teams))
	for _, slot := range a.Teams {
		text := fmt.Sprintf("#%d", slot.TeamID)
		if slot.NoShow {
			text += " (no-show)"
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ", ")
}

// clock formats minutes from midnight as HH:MM, prefixing the day for
// multi-day events.
func clock(min int) string {
	day := min / (24 * 60)
	rest := min % (24 * 60)
	if day > 0 {
		return fmt.Sprintf("d%d %02d:%02d", day+1, rest/60, rest%60)
	}
	return fmt.Sprintf("%02d:%02d", rest/60, rest%60)
}

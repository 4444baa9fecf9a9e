package models

// Event represents one competition occurrence. Each event owns exactly
// one Plan for generation purposes; regenerating replaces the plan's
// activity set wholesale.
type Event struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Date          string    `json:"date"`
	ExploreMode   TrackMode `json:"explore_mode"`
	ChallengeMode TrackMode `json:"challenge_mode"`
	DayStartMin   int       `json:"day_start_min"` // minutes from midnight
	PlanID        int       `json:"plan_id"`
}

// Team is a registered competition team belonging to one program.
type Team struct {
	ID      int         `json:"id"`
	EventID int         `json:"event_id"`
	Name    string      `json:"name"`
	Program ProgramKind `json:"program"`
}

// Room is a physical space activities can be assigned to.
type Room struct {
	ID      int         `json:"id"`
	EventID int         `json:"event_id"`
	Name    string      `json:"name"`
	Program ProgramKind `json:"program"`
}

// TeamSlot is one team's assignment within an activity, with the
// per-team no-show flag.
type TeamSlot struct {
	TeamID int  `json:"team_id"`
	NoShow bool `json:"no_show,omitempty"`
}

// Activity is one scheduled unit of time within a plan. Times are
// minutes from midnight of the event day (multi-day events add 1440 per
// day), kept as plain ints so generated sets compare byte-for-byte.
// Lanes holds the judging-lane or match-table assignment; Challenge
// matches pair two teams at one table so Teams may hold two entries.
type Activity struct {
	ID       int         `json:"id"`
	PlanID   int         `json:"plan_id"`
	TypeID   string      `json:"type_id"`
	Label    string      `json:"label,omitempty"` // display name for extra blocks
	Program  ProgramKind `json:"program"`
	StartMin int         `json:"start_min"`
	EndMin   int         `json:"end_min"`
	Room     string      `json:"room,omitempty"`
	Lanes    []int       `json:"lanes,omitempty"`
	Teams    []TeamSlot  `json:"teams,omitempty"`
}

// Overlaps reports whether the [start,end) intervals of two activities
// intersect.
func (a Activity) Overlaps(b Activity) bool {
	return a.StartMin < b.EndMin && b.StartMin < a.EndMin
}

// Joint reports whether the activity is a shared track-independent
// block exempt from per-resource overlap checks.
func (a Activity) Joint() bool {
	return a.Program == ProgramJoint
}

// ExtraBlock is a user-authored timed insertion request. Only active
// blocks are materialized into activities; the buffers become
// unscheduled gaps around the block rather than activities of their own.
type ExtraBlock struct {
	ID           int         `json:"id"`
	EventID      int         `json:"event_id"`
	Name         string      `json:"name"`
	Program      ProgramKind `json:"program"`
	InsertPoint  string      `json:"insert_point"`
	BufferBefore int         `json:"buffer_before"`
	DurationMin  int         `json:"duration_min"`
	BufferAfter  int         `json:"buffer_after"`
	StartMin     int         `json:"start_min,omitempty"` // set once materialized
	EndMin       int         `json:"end_min,omitempty"`
	Active       bool        `json:"active"`
}

// GeneratorJob tracks one generation attempt for a plan. A job only
// ever moves forward through Unknown → Running → Done|Failed; a newer
// request starts a fresh job instead of mutating this one.
type GeneratorJob struct {
	ID      string          `json:"id"`
	PlanID  int             `json:"plan_id"`
	Seq     uint64          `json:"seq"`
	Status  GeneratorStatus `json:"status"`
	Failure string          `json:"failure,omitempty"`
}

// ScheduleCell is one rendered cell of a schedule view row.
type ScheduleCell struct {
	Text    string `json:"text"`
	RowSpan int    `json:"row_span,omitempty"`
	ColSpan int    `json:"col_span,omitempty"`
}

// ScheduleRow is either a normal row of cells or a separator marker.
type ScheduleRow struct {
	Separator bool           `json:"separator,omitempty"`
	Cells     []ScheduleCell `json:"cells,omitempty"`
}

// ScheduleView is the view model served to real-time displays: an
// ordered header plus ordered rows.
type ScheduleView struct {
	Header []string      `json:"header"`
	Rows   []ScheduleRow `json:"rows"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

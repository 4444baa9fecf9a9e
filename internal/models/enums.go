package models

// TrackMode describes how a track's sessions are arranged across the
// competition day. "Integrated" runs judging and matches as one combined
// session; "Decoupled" runs them as separate sessions.
type TrackMode int

const (
	TrackModeNone TrackMode = iota
	TrackModeIntegratedMorning
	TrackModeIntegratedAfternoon
	TrackModeDecoupledMorning
	TrackModeDecoupledAfternoon
	TrackModeDecoupledBoth
)

// Active reports whether the track takes part in the event at all.
func (m TrackMode) Active() bool {
	return m != TrackModeNone
}

// Decoupled reports whether judging and matches run as separate sessions.
func (m TrackMode) Decoupled() bool {
	switch m {
	case TrackModeDecoupledMorning, TrackModeDecoupledAfternoon, TrackModeDecoupledBoth:
		return true
	}
	return false
}

func (m TrackMode) String() string {
	switch m {
	case TrackModeNone:
		return "none"
	case TrackModeIntegratedMorning:
		return "integrated-morning"
	case TrackModeIntegratedAfternoon:
		return "integrated-afternoon"
	case TrackModeDecoupledMorning:
		return "decoupled-morning"
	case TrackModeDecoupledAfternoon:
		return "decoupled-afternoon"
	case TrackModeDecoupledBoth:
		return "decoupled-both"
	}
	return "unknown"
}

// ProgramKind classifies an activity or block by competition program.
// Joint activities (opening, awards) belong to every active track.
type ProgramKind int

const (
	ProgramJoint ProgramKind = iota
	ProgramDiscover
	ProgramExplore
	ProgramChallenge
)

// ExploreLike reports whether the program belongs to the Explore track.
// Discover runs alongside Explore and is filtered identically.
func (p ProgramKind) ExploreLike() bool {
	return p == ProgramDiscover || p == ProgramExplore
}

// Matches reports whether two programs count as the same for
// role-based filtering. Joint matches everything.
func (p ProgramKind) Matches(other ProgramKind) bool {
	if p == ProgramJoint || other == ProgramJoint {
		return true
	}
	if p.ExploreLike() && other.ExploreLike() {
		return true
	}
	return p == other
}

func (p ProgramKind) String() string {
	switch p {
	case ProgramJoint:
		return "joint"
	case ProgramDiscover:
		return "discover"
	case ProgramExplore:
		return "explore"
	case ProgramChallenge:
		return "challenge"
	}
	return "unknown"
}

// GeneratorStatus tracks one generation attempt. The zero value is
// Unknown, distinct from every terminal state: a plan that has never
// been generated reports Unknown, not Failed.
type GeneratorStatus int

const (
	StatusUnknown GeneratorStatus = iota
	StatusRunning
	StatusDone
	StatusFailed
)

// Terminal reports whether the job can no longer change state.
func (s GeneratorStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

func (s GeneratorStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

package services

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tkrause/matchday/internal/errors"
	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/models"
	"github.com/tkrause/matchday/internal/repository"
)

// GeneratorRepository defines the repository methods needed by GeneratorService
type GeneratorRepository interface {
	repository.EventRepository
	repository.ExtraBlockRepository
	repository.ActivityRepository
	repository.JobRepository
}

// GenerationOptions is the typed timing configuration for a generation
// pass, built once at startup and passed by reference. It replaces the
// older pattern of ambient constants loaded from an optional file.
type GenerationOptions struct {
	OpeningOffsetMin  int // opening start relative to day start
	OpeningLenMin     int
	JudgingSlotMin    int
	MatchSlotMin      int
	JudgingLanes      int
	MatchTables       int
	SessionGapMin     int
	AfternoonStartMin int // minutes from midnight
	AwardsGapMin      int
	AwardsLenMin      int
}

// DefaultGenerationOptions returns the standard competition-day timing.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		OpeningOffsetMin:  0,
		OpeningLenMin:     30,
		JudgingSlotMin:    25,
		MatchSlotMin:      10,
		JudgingLanes:      2,
		MatchTables:       2,
		SessionGapMin:     10,
		AfternoonStartMin: 13 * 60,
		AwardsGapMin:      15,
		AwardsLenMin:      45,
	}
}

// EventConfig is the full generation input for one event.
type EventConfig struct {
	Event models.Event
	Teams []models.Team
	Rooms []models.Room
	Opts  GenerationOptions
}

// planSnapshot is one immutable generated activity set. Replacing a
// plan's snapshot swaps the pointer; readers holding the old slice keep
// a complete, consistent set.
type planSnapshot struct {
	seq        uint64
	activities []models.Activity
}

// GeneratorService produces conflict-free activity schedules and tracks
// the per-plan job state machine.
type GeneratorService struct {
	log         logger.Logger
	repo        GeneratorRepository
	opts        GenerationOptions
	deadline    time.Duration
	broadcaster Broadcaster

	mu   sync.Mutex
	seqs map[int]uint64              // next sequence per plan
	jobs map[int]models.GeneratorJob // latest job per plan

	liveMu sync.RWMutex
	live   map[int]*planSnapshot
}

// NewGeneratorService creates a new GeneratorService
func NewGeneratorService(log logger.Logger, repo GeneratorRepository, opts GenerationOptions, deadline time.Duration) *GeneratorService {
	return &GeneratorService{
		log:      log,
		repo:     repo,
		opts:     opts,
		deadline: deadline,
		seqs:     make(map[int]uint64),
		jobs:     make(map[int]models.GeneratorJob),
		live:     make(map[int]*planSnapshot),
	}
}

// SetBroadcaster sets the broadcaster for job status updates
func (s *GeneratorService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// StartGeneration begins a generation attempt for the event's plan and
// returns the new job immediately. A request for a plan with a job
// already in flight starts a fresh job; the older job keeps running but
// its result is discarded once it finishes behind this one.
func (s *GeneratorService) StartGeneration(ctx context.Context, eventID int) (models.GeneratorJob, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		if err == repository.ErrNotFound {
			return models.GeneratorJob{}, errors.NotFoundf("event %d not found", eventID)
		}
		return models.GeneratorJob{}, err
	}
	if !event.ExploreMode.Active() && !event.ChallengeMode.Active() {
		return models.GeneratorJob{}, errors.Validation("event has no active track")
	}

	teams, err := s.repo.ListTeams(ctx, eventID)
	if err != nil {
		return models.GeneratorJob{}, err
	}
	rooms, err := s.repo.ListRooms(ctx, eventID)
	if err != nil {
		return models.GeneratorJob{}, err
	}
	blocks, err := s.repo.ListExtraBlocks(ctx, eventID, true)
	if err != nil {
		return models.GeneratorJob{}, err
	}

	cfg := EventConfig{Event: *event, Teams: teams, Rooms: rooms, Opts: s.opts}

	s.mu.Lock()
	s.seqs[event.PlanID]++
	job := models.GeneratorJob{
		ID:     uuid.NewString(),
		PlanID: event.PlanID,
		Seq:    s.seqs[event.PlanID],
		Status: models.StatusRunning,
	}
	s.jobs[event.PlanID] = job
	s.mu.Unlock()

	if err := s.repo.SaveJob(ctx, job); err != nil {
		s.log.Warn("Failed to persist job state", "job", job.ID, "error", err)
	}
	s.broadcastStatus(job)
	s.log.Info("Generation started", "event", eventID, "plan", event.PlanID, "job", job.ID, "seq", job.Seq)

	go s.run(job, cfg, blocks)
	return job, nil
}

// Status returns the latest generator status for the event's plan.
// Unknown when no generation has ever been requested.
func (s *GeneratorService) Status(ctx context.Context, eventID int) (models.GeneratorStatus, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		if err == repository.ErrNotFound {
			return models.StatusUnknown, errors.NotFoundf("event %d not found", eventID)
		}
		return models.StatusUnknown, err
	}

	s.mu.Lock()
	job, ok := s.jobs[event.PlanID]
	s.mu.Unlock()
	if ok {
		return job.Status, nil
	}

	persisted, err := s.repo.GetJob(ctx, event.PlanID)
	if err == repository.ErrNotFound {
		return models.StatusUnknown, nil
	}
	if err != nil {
		return models.StatusUnknown, err
	}
	return persisted.Status, nil
}

// LiveActivities returns the current complete activity set for a plan.
// The returned slice is never mutated after publication; callers may
// read it without locking.
func (s *GeneratorService) LiveActivities(planID int) ([]models.Activity, bool) {
	s.liveMu.RLock()
	snap, ok := s.live[planID]
	s.liveMu.RUnlock()
	if !ok {
		return nil, false
	}
	return snap.activities, true
}

// WarmPlan loads a previously persisted activity set into the live
// store, so queries work across restarts without regeneration.
func (s *GeneratorService) WarmPlan(ctx context.Context, planID int) error {
	acts, err := s.repo.ListActivities(ctx, planID)
	if err != nil {
		return err
	}
	if len(acts) == 0 {
		return nil
	}
	s.liveMu.Lock()
	if _, ok := s.live[planID]; !ok {
		s.live[planID] = &planSnapshot{activities: acts}
	}
	s.liveMu.Unlock()
	return nil
}

// run executes one generation attempt under the configured deadline.
// The job fails the moment the deadline fires; an overdue pass is
// abandoned, not awaited.
func (s *GeneratorService) run(job models.GeneratorJob, cfg EventConfig, blocks []models.ExtraBlock) {
	ctx := context.Background()
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	type result struct {
		acts []models.Activity
		err  error
	}
	done := make(chan result, 1)
	go func() {
		acts, err := Generate(cfg, blocks)
		done <- result{acts: acts, err: err}
	}()

	select {
	case res := <-done:
		err := res.err
		if err == nil && ctx.Err() != nil {
			err = errors.Timeout("generation exceeded deadline")
		}
		s.finish(ctx, job, cfg.Event.PlanID, res.acts, err)
	case <-ctx.Done():
		s.finish(ctx, job, cfg.Event.PlanID, nil, errors.Timeout("generation exceeded deadline"))
	}
}

// finish publishes a finished job's result if the job is still the most
// recent one for its plan. Superseded results are dropped without
// touching job state: the newer job owns the plan now.
func (s *GeneratorService) finish(ctx context.Context, job models.GeneratorJob, planID int, acts []models.Activity, genErr error) {
	s.mu.Lock()
	if s.seqs[planID] != job.Seq {
		s.mu.Unlock()
		s.log.Debug("Discarding superseded generation result", "job", job.ID, "seq", job.Seq)
		return
	}

	if genErr != nil {
		job.Status = models.StatusFailed
		job.Failure = genErr.Error()
	} else {
		job.Status = models.StatusDone
	}
	s.jobs[planID] = job
	s.mu.Unlock()

	// Publish and persist in one critical section: a newer job that
	// already published makes this result stale, and a slower successor
	// persists strictly after this one. The database always ends up
	// holding the last-issued result, matching the live store.
	s.liveMu.Lock()
	current := s.live[planID]
	if current != nil && current.seq > job.Seq {
		s.liveMu.Unlock()
		s.log.Debug("Discarding superseded generation result", "job", job.ID, "seq", job.Seq)
		return
	}
	if genErr == nil {
		s.live[planID] = &planSnapshot{seq: job.Seq, activities: acts}
		if err := s.repo.ReplaceActivities(ctx, planID, acts); err != nil {
			s.log.Error("Failed to persist activity set", "plan", planID, "error", err)
		}
	}
	if err := s.repo.SaveJob(context.Background(), job); err != nil {
		s.log.Warn("Failed to persist job state", "job", job.ID, "error", err)
	}
	s.liveMu.Unlock()

	if genErr == nil {
		s.log.Info("Generation finished", "plan", planID, "job", job.ID, "activities", len(acts))
	} else {
		s.log.Warn("Generation failed", "plan", planID, "job", job.ID, "error", genErr)
	}
	s.broadcastStatus(job)
}

func (s *GeneratorService) broadcastStatus(job models.GeneratorJob) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastGeneratorStatus(job.PlanID, job.Status.String())
	}
}

// Generate produces the full activity set for an event configuration.
// It is pure and deterministic: identical config and identical active
// extra blocks always yield an identical set, including lane and table
// assignments.
func Generate(cfg EventConfig, blocks []models.ExtraBlock) ([]models.Activity, error) {
	opts := cfg.Opts
	if opts.JudgingLanes < 1 || opts.MatchTables < 1 {
		return nil, errors.Validation("at least one judging lane and one match table are required")
	}
	if !cfg.Event.ExploreMode.Active() && !cfg.Event.ChallengeMode.Active() {
		return nil, errors.Validation("event has no active track")
	}
	for _, b := range blocks {
		if err := ValidateExtraBlock(b); err != nil {
			return nil, err
		}
	}

	dayStart := cfg.Event.DayStartMin
	if dayStart == 0 {
		dayStart = 8 * 60
	}

	openingStart := dayStart + opts.OpeningOffsetMin
	openingEnd := openingStart + opts.OpeningLenMin

	var acts []models.Activity
	acts = append(acts, models.Activity{
		TypeID:   "opening",
		Program:  models.ProgramJoint,
		StartMin: openingStart,
		EndMin:   openingEnd,
	})

	latestEnd := openingEnd

	tracks := []struct {
		program models.ProgramKind
		mode    models.TrackMode
	}{
		{models.ProgramExplore, cfg.Event.ExploreMode},
		{models.ProgramChallenge, cfg.Event.ChallengeMode},
	}

	for _, track := range tracks {
		if !track.mode.Active() {
			continue
		}
		teams := teamsForProgram(cfg.Teams, track.program)
		rooms := roomsForProgram(cfg.Rooms, track.program)

		cursor := openingEnd
		for i, sess := range expandSessions(track.mode) {
			if i > 0 {
				cursor += opts.SessionGapMin
			}
			if sess.afternoon && cursor < opts.AfternoonStartMin {
				cursor = opts.AfternoonStartMin
			}
			cursor = scheduleSession(&acts, track.program, sess, teams, rooms, cursor, opts)
		}
		if cursor > latestEnd {
			latestEnd = cursor
		}
	}

	acts = append(acts, models.Activity{
		TypeID:   "awards",
		Program:  models.ProgramJoint,
		StartMin: latestEnd + opts.AwardsGapMin,
		EndMin:   latestEnd + opts.AwardsGapMin + opts.AwardsLenMin,
	})

	acts, err := insertExtraBlocks(acts, blocks)
	if err != nil {
		return nil, err
	}

	sortActivities(acts)
	for i := range acts {
		acts[i].ID = i + 1
		acts[i].PlanID = cfg.Event.PlanID
	}

	if err := validateNoOverlap(acts); err != nil {
		return nil, err
	}
	return acts, nil
}

// session is one named slot in a track's day produced by expanding its
// TrackMode.
type session struct {
	name      string
	kind      string // "judging", "match" or "integrated"
	afternoon bool
}

// expandSessions turns a track mode into its ordered session slots.
func expandSessions(mode models.TrackMode) []session {
	switch mode {
	case models.TrackModeIntegratedMorning:
		return []session{{name: "integrated", kind: "integrated"}}
	case models.TrackModeIntegratedAfternoon:
		return []session{{name: "integrated", kind: "integrated", afternoon: true}}
	case models.TrackModeDecoupledMorning:
		return []session{{name: "judging", kind: "judging"}, {name: "matches", kind: "match"}}
	case models.TrackModeDecoupledAfternoon:
		return []session{
			{name: "judging", kind: "judging", afternoon: true},
			{name: "matches", kind: "match", afternoon: true},
		}
	case models.TrackModeDecoupledBoth:
		return []session{{name: "judging", kind: "judging"}, {name: "matches", kind: "match", afternoon: true}}
	}
	return nil
}

func teamsForProgram(teams []models.Team, program models.ProgramKind) []models.Team {
	var out []models.Team
	for _, t := range teams {
		if program.ExploreLike() && t.Program.ExploreLike() {
			out = append(out, t)
		} else if t.Program == program {
			out = append(out, t)
		}
	}
	return out
}

func roomsForProgram(rooms []models.Room, program models.ProgramKind) []models.Room {
	var out []models.Room
	for _, r := range rooms {
		if r.Program == models.ProgramJoint || r.Program.Matches(program) {
			out = append(out, r)
		}
	}
	return out
}

// scheduleSession emits the session's activities and returns the
// session's end time.
func scheduleSession(acts *[]models.Activity, program models.ProgramKind, sess session, teams []models.Team, rooms []models.Room, start int, opts GenerationOptions) int {
	switch sess.kind {
	case "judging":
		return scheduleJudging(acts, program, teams, rooms, start, opts)
	case "match":
		return scheduleMatches(acts, program, teams, start, opts)
	case "integrated":
		// One combined session: judging first, matches directly after.
		end := scheduleJudging(acts, program, teams, rooms, start, opts)
		return scheduleMatches(acts, program, teams, end, opts)
	}
	return start
}

// scheduleJudging gives every team one judging slot, filling lanes
// least-loaded first with the lowest lane winning ties so assignment is
// reproducible.
func scheduleJudging(acts *[]models.Activity, program models.ProgramKind, teams []models.Team, rooms []models.Room, start int, opts GenerationOptions) int {
	typeID := "challenge-judging"
	if program.ExploreLike() {
		typeID = "explore-judging"
	}

	counts := make([]int, opts.JudgingLanes)
	end := start
	for _, team := range teams {
		lane := leastLoadedLane(counts)
		slotStart := start + counts[lane]*opts.JudgingSlotMin
		slotEnd := slotStart + opts.JudgingSlotMin
		counts[lane]++

		room := ""
		if len(rooms) > 0 {
			room = rooms[lane%len(rooms)].Name
		}

		*acts = append(*acts, models.Activity{
			TypeID:   typeID,
			Program:  program,
			StartMin: slotStart,
			EndMin:   slotEnd,
			Room:     room,
			Lanes:    []int{lane + 1},
			Teams:    []models.TeamSlot{{TeamID: team.ID}},
		})
		if slotEnd > end {
			end = slotEnd
		}
	}
	return end
}

// scheduleMatches runs the track's table session. Challenge pairs two
// teams per table; Explore presents one team per table.
func scheduleMatches(acts *[]models.Activity, program models.ProgramKind, teams []models.Team, start int, opts GenerationOptions) int {
	typeID := "challenge-match"
	perTable := 2
	if program.ExploreLike() {
		typeID = "explore-play"
		perTable = 1
	}

	counts := make([]int, opts.MatchTables)
	end := start
	for i := 0; i < len(teams); i += perTable {
		slots := []models.TeamSlot{{TeamID: teams[i].ID}}
		if perTable == 2 && i+1 < len(teams) {
			slots = append(slots, models.TeamSlot{TeamID: teams[i+1].ID})
		}

		table := leastLoadedLane(counts)
		slotStart := start + counts[table]*opts.MatchSlotMin
		slotEnd := slotStart + opts.MatchSlotMin
		counts[table]++

		*acts = append(*acts, models.Activity{
			TypeID:   typeID,
			Program:  program,
			StartMin: slotStart,
			EndMin:   slotEnd,
			Lanes:    []int{table + 1},
			Teams:    slots,
		})
		if slotEnd > end {
			end = slotEnd
		}
	}
	return end
}

// leastLoadedLane picks the lane with the fewest assignments so far;
// ties go to the lowest lane index.
func leastLoadedLane(counts []int) int {
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] < counts[best] {
			best = i
		}
	}
	return best
}

// Insert points an extra block may anchor to.
const (
	InsertAfterOpening = "after-opening"
	InsertAfterJudging = "after-judging"
	InsertAfterMatches = "after-matches"
	InsertBeforeAwards = "before-awards"
)

// ValidInsertPoint reports whether the insert point name is known.
func ValidInsertPoint(p string) bool {
	switch p {
	case InsertAfterOpening, InsertAfterJudging, InsertAfterMatches, InsertBeforeAwards:
		return true
	}
	return false
}

// insertExtraBlocks materializes each active block at its insert point,
// shifting everything at or after the anchor later by the block's full
// footprint (buffer + duration + buffer). The buffers themselves stay
// unscheduled gaps; only the block's duration becomes an activity.
func insertExtraBlocks(acts []models.Activity, blocks []models.ExtraBlock) ([]models.Activity, error) {
	sorted := make([]models.ExtraBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, block := range sorted {
		if !block.Active {
			continue
		}
		anchor, err := anchorTime(acts, block)
		if err != nil {
			return nil, err
		}

		shift := block.BufferBefore + block.DurationMin + block.BufferAfter
		for i := range acts {
			if acts[i].StartMin >= anchor {
				acts[i].StartMin += shift
				acts[i].EndMin += shift
			}
		}

		acts = append(acts, models.Activity{
			TypeID:   "extra",
			Label:    block.Name,
			Program:  block.Program,
			StartMin: anchor + block.BufferBefore,
			EndMin:   anchor + block.BufferBefore + block.DurationMin,
		})
	}
	return acts, nil
}

// anchorTime resolves a block's insert point against the generated
// activities.
func anchorTime(acts []models.Activity, block models.ExtraBlock) (int, error) {
	openingEnd := -1
	awardsStart := -1
	judgingEnd := -1
	matchesEnd := -1

	for _, a := range acts {
		switch a.TypeID {
		case "opening":
			openingEnd = a.EndMin
		case "awards":
			awardsStart = a.StartMin
		case "explore-judging", "challenge-judging":
			if a.Program.Matches(block.Program) && a.EndMin > judgingEnd {
				judgingEnd = a.EndMin
			}
		case "explore-play", "challenge-match":
			if a.Program.Matches(block.Program) && a.EndMin > matchesEnd {
				matchesEnd = a.EndMin
			}
		}
	}

	switch block.InsertPoint {
	case InsertAfterOpening:
		if openingEnd < 0 {
			return 0, errors.Validationf("extra block %d: no opening to anchor to", block.ID)
		}
		return openingEnd, nil
	case InsertAfterJudging:
		if judgingEnd < 0 {
			return openingEnd, nil
		}
		return judgingEnd, nil
	case InsertAfterMatches:
		if matchesEnd < 0 {
			return openingEnd, nil
		}
		return matchesEnd, nil
	case InsertBeforeAwards:
		if awardsStart < 0 {
			return 0, errors.Validationf("extra block %d: no awards to anchor to", block.ID)
		}
		return awardsStart, nil
	}
	return 0, errors.Validationf("extra block %d: unknown insert point %q", block.ID, block.InsertPoint)
}

// sortActivities orders the final set deterministically: by start time,
// then program, type, lane and first team.
func sortActivities(acts []models.Activity) {
	sort.Slice(acts, func(i, j int) bool {
		a, b := acts[i], acts[j]
		if a.StartMin != b.StartMin {
			return a.StartMin < b.StartMin
		}
		if a.Program != b.Program {
			return a.Program < b.Program
		}
		if a.TypeID != b.TypeID {
			return a.TypeID < b.TypeID
		}
		if firstLane(a) != firstLane(b) {
			return firstLane(a) < firstLane(b)
		}
		return firstTeam(a) < firstTeam(b)
	})
}

func firstLane(a models.Activity) int {
	if len(a.Lanes) > 0 {
		return a.Lanes[0]
	}
	return 0
}

func firstTeam(a models.Activity) int {
	if len(a.Teams) > 0 {
		return a.Teams[0].TeamID
	}
	return 0
}

// validateNoOverlap enforces the core invariant: no two activities
// sharing a room, a lane/table or a team may overlap in time. Joint
// activities are the shared track-independent blocks and are exempt.
func validateNoOverlap(acts []models.Activity) error {
	type claim struct {
		key string
		act models.Activity
	}
	var claims []claim

	for _, a := range acts {
		if a.Joint() {
			continue
		}
		kind := resourceKind(a.TypeID)
		if a.Room != "" {
			claims = append(claims, claim{key: "room/" + a.Room, act: a})
		}
		for _, lane := range a.Lanes {
			claims = append(claims, claim{key: laneKey(a.Program, kind, lane), act: a})
		}
		for _, slot := range a.Teams {
			claims = append(claims, claim{key: teamKey(slot.TeamID), act: a})
		}
	}

	byKey := make(map[string][]models.Activity)
	for _, c := range claims {
		for _, other := range byKey[c.key] {
			if c.act.Overlaps(other) && c.act.ID != other.ID {
				return errors.Conflictf("activities %d and %d overlap on %s", other.ID, c.act.ID, c.key)
			}
		}
		byKey[c.key] = append(byKey[c.key], c.act)
	}
	return nil
}

func resourceKind(typeID string) string {
	switch typeID {
	case "explore-judging", "challenge-judging":
		return "judging"
	default:
		return "table"
	}
}

func laneKey(p models.ProgramKind, kind string, lane int) string {
	program := p.String()
	if p.ExploreLike() {
		program = "explore"
	}
	return "lane/" + program + "/" + kind + "/" + strconv.Itoa(lane)
}

func teamKey(teamID int) string {
	return "team/" + strconv.Itoa(teamID)
}

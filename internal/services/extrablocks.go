package services

import (
	"context"
	"sync"
	"time"

	"github.com/tkrause/matchday/internal/errors"
	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/models"
	"github.com/tkrause/matchday/internal/repository"
)

// DefaultDebounceWindow is how long after the last extra block edit the
// schedule is regenerated. Repeated edits within the window reset the
// timer rather than queuing additional passes, so an operator can
// iterate on buffers without regenerating on every change.
const DefaultDebounceWindow = 60 * time.Second

// ExtraBlockServiceRepository defines the repository methods needed by
// ExtraBlockService
type ExtraBlockServiceRepository interface {
	repository.ExtraBlockRepository
}

// ExtraBlockService manages user-authored extra blocks and the
// debounced regeneration they trigger.
type ExtraBlockService struct {
	log    logger.Logger
	repo   ExtraBlockServiceRepository
	regen  Regenerator
	window time.Duration

	mu     sync.Mutex
	timers map[int]*time.Timer // per event; acts as a single-writer gate

	// afterFunc is swappable so tests drive the debounce clock.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewExtraBlockService creates a new ExtraBlockService
func NewExtraBlockService(log logger.Logger, repo ExtraBlockServiceRepository, regen Regenerator, window time.Duration) *ExtraBlockService {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &ExtraBlockService{
		log:       log,
		repo:      repo,
		regen:     regen,
		window:    window,
		timers:    make(map[int]*time.Timer),
		afterFunc: time.AfterFunc,
	}
}

// ValidateExtraBlock checks that a block's timing fields are present
// and numerically consistent. Validation failures never reach the
// generator.
func ValidateExtraBlock(block models.ExtraBlock) error {
	if block.DurationMin <= 0 {
		return errors.Validation("extra block duration must be positive")
	}
	if block.BufferBefore < 0 || block.BufferAfter < 0 {
		return errors.Validation("extra block buffers must be non-negative")
	}
	if !ValidInsertPoint(block.InsertPoint) {
		return errors.Validationf("unknown insert point %q", block.InsertPoint)
	}
	if block.Program < models.ProgramJoint || block.Program > models.ProgramChallenge {
		return errors.Validationf("invalid program %d", block.Program)
	}
	if (block.StartMin != 0 || block.EndMin != 0) && block.EndMin <= block.StartMin {
		return errors.Validation("extra block end must be after start")
	}
	return nil
}

// Submit validates and stores a new extra block, then schedules a
// debounced regeneration for its event.
func (s *ExtraBlockService) Submit(ctx context.Context, block models.ExtraBlock) (*models.ExtraBlock, error) {
	if err := ValidateExtraBlock(block); err != nil {
		return nil, err
	}

	id, err := s.repo.CreateExtraBlock(ctx, block)
	if err != nil {
		return nil, err
	}
	block.ID = int(id)

	s.log.Info("Extra block submitted", "block", block.ID, "event", block.EventID, "insert_point", block.InsertPoint)
	s.markDirty(block.EventID)
	return &block, nil
}

// ToggleActive flips a block's active flag. An inactive block is never
// materialized by the next generation pass.
func (s *ExtraBlockService) ToggleActive(ctx context.Context, blockID int, active bool) (*models.ExtraBlock, error) {
	if err := s.repo.SetExtraBlockActive(ctx, blockID, active); err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFoundf("extra block %d not found", blockID)
		}
		return nil, err
	}
	block, err := s.repo.GetExtraBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Extra block toggled", "block", blockID, "active", active)
	s.markDirty(block.EventID)
	return block, nil
}

// List returns all extra blocks for an event, active or not.
func (s *ExtraBlockService) List(ctx context.Context, eventID int) ([]models.ExtraBlock, error) {
	return s.repo.ListExtraBlocks(ctx, eventID, false)
}

// markDirty schedules the event's regeneration after the coalescing
// window. A timer already pending for the event is reset, so only the
// last edit in a burst triggers a pass.
func (s *ExtraBlockService) markDirty(eventID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[eventID]; ok {
		timer.Stop()
	}
	s.timers[eventID] = s.afterFunc(s.window, func() {
		s.fire(eventID)
	})
}

// Flush triggers a pending regeneration for the event immediately and
// reports whether one was pending.
func (s *ExtraBlockService) Flush(eventID int) bool {
	s.mu.Lock()
	timer, ok := s.timers[eventID]
	if ok {
		timer.Stop()
	}
	s.mu.Unlock()
	if ok {
		s.fire(eventID)
	}
	return ok
}

func (s *ExtraBlockService) fire(eventID int) {
	s.mu.Lock()
	delete(s.timers, eventID)
	s.mu.Unlock()

	if _, err := s.regen.StartGeneration(context.Background(), eventID); err != nil {
		s.log.Warn("Debounced regeneration failed to start", "event", eventID, "error", err)
	}
}

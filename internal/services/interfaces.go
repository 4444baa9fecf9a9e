package services

import (
	"context"

	"github.com/tkrause/matchday/internal/models"
)

// Broadcaster defines the interface for pushing updates to connected
// displays.
type Broadcaster interface {
	BroadcastGeneratorStatus(planID int, status string)
}

// Regenerator triggers a schedule generation pass for an event.
// Implemented by GeneratorService; the extra block manager depends on
// this narrow surface only.
type Regenerator interface {
	StartGeneration(ctx context.Context, eventID int) (models.GeneratorJob, error)
}

// ActivitySource serves the live, fully generated activity set for a
// plan. The boolean is false when the plan has never been generated.
type ActivitySource interface {
	LiveActivities(planID int) ([]models.Activity, bool)
}

// GeneratorServicer defines the generator operations used by handlers
type GeneratorServicer interface {
	Regenerator
	ActivitySource
	Status(ctx context.Context, eventID int) (models.GeneratorStatus, error)
}

// ScheduleServicer defines the query operations used by handlers
type ScheduleServicer interface {
	Now(planID int, role string, atMin int) models.ScheduleView
	Next(planID int, role string, atMin, intervalMin int) models.ScheduleView
}

// ExtraBlockServicer defines the extra block operations used by handlers
type ExtraBlockServicer interface {
	Submit(ctx context.Context, block models.ExtraBlock) (*models.ExtraBlock, error)
	ToggleActive(ctx context.Context, blockID int, active bool) (*models.ExtraBlock, error)
	List(ctx context.Context, eventID int) ([]models.ExtraBlock, error)
	Flush(eventID int) bool
}

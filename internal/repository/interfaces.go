package repository

import (
	"context"

	"github.com/tkrause/matchday/internal/models"
)

// EventRepository defines event configuration operations
type EventRepository interface {
	GetEvent(ctx context.Context, id int) (*models.Event, error)
	CreateEvent(ctx context.Context, event models.Event) (int64, error)
	ListTeams(ctx context.Context, eventID int) ([]models.Team, error)
	CreateTeam(ctx context.Context, team models.Team) (int64, error)
	ListRooms(ctx context.Context, eventID int) ([]models.Room, error)
	CreateRoom(ctx context.Context, room models.Room) (int64, error)
}

// ExtraBlockRepository defines extra block operations
type ExtraBlockRepository interface {
	CreateExtraBlock(ctx context.Context, block models.ExtraBlock) (int64, error)
	GetExtraBlock(ctx context.Context, id int) (*models.ExtraBlock, error)
	SetExtraBlockActive(ctx context.Context, id int, active bool) error
	ListExtraBlocks(ctx context.Context, eventID int, activeOnly bool) ([]models.ExtraBlock, error)
}

// ActivityRepository defines generated schedule operations
type ActivityRepository interface {
	ReplaceActivities(ctx context.Context, planID int, activities []models.Activity) error
	ListActivities(ctx context.Context, planID int) ([]models.Activity, error)
	SetActivityNoShow(ctx context.Context, activityID, teamID int, noShow bool) error
}

// JobRepository defines generator job state operations
type JobRepository interface {
	SaveJob(ctx context.Context, job models.GeneratorJob) error
	GetJob(ctx context.Context, planID int) (*models.GeneratorJob, error)
}

// FullRepository combines all repository interfaces
type FullRepository interface {
	EventRepository
	ExtraBlockRepository
	ActivityRepository
	JobRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)

package testutil

import (
	"context"
	"testing"

	"github.com/tkrause/matchday/internal/models"
	"github.com/tkrause/matchday/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// SeedEvent creates an event with the given track modes plus teams for
// each active track, and returns the event ID (which is also the plan
// ID for seeded events).
func SeedEvent(t *testing.T, repo *repository.Repository, exploreMode, challengeMode models.TrackMode, exploreTeams, challengeTeams int) int {
	t.Helper()
	ctx := context.Background()

	id, err := repo.CreateEvent(ctx, models.Event{
		Name:          "Test Regional",
		Date:          "2026-03-14",
		ExploreMode:   exploreMode,
		ChallengeMode: challengeMode,
		DayStartMin:   8 * 60,
	})
	if err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	for i := 0; i < exploreTeams; i++ {
		if _, err := repo.CreateTeam(ctx, models.Team{
			EventID: int(id),
			Name:    "Explore Team",
			Program: models.ProgramExplore,
		}); err != nil {
			t.Fatalf("failed to seed team: %v", err)
		}
	}
	for i := 0; i < challengeTeams; i++ {
		if _, err := repo.CreateTeam(ctx, models.Team{
			EventID: int(id),
			Name:    "Challenge Team",
			Program: models.ProgramChallenge,
		}); err != nil {
			t.Fatalf("failed to seed team: %v", err)
		}
	}

	return int(id)
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tkrause/matchday/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// NewWithDB wraps an existing database handle (used by tests with sqlmock)
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			date TEXT NOT NULL,
			explore_mode INTEGER NOT NULL DEFAULT 0,
			challenge_mode INTEGER NOT NULL DEFAULT 0,
			day_start_min INTEGER NOT NULL DEFAULT 480,
			plan_id INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			program INTEGER NOT NULL,
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			program INTEGER NOT NULL,
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS extra_blocks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			program INTEGER NOT NULL,
			insert_point TEXT NOT NULL,
			buffer_before INTEGER NOT NULL DEFAULT 0,
			duration_min INTEGER NOT NULL,
			buffer_after INTEGER NOT NULL DEFAULT 0,
			start_min INTEGER NOT NULL DEFAULT 0,
			end_min INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id INTEGER NOT NULL,
			type_id TEXT NOT NULL,
			program INTEGER NOT NULL,
			start_min INTEGER NOT NULL,
			end_min INTEGER NOT NULL,
			room TEXT,
			lanes TEXT,
			teams TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS generator_jobs (
			plan_id INTEGER PRIMARY KEY,
			job_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			status INTEGER NOT NULL,
			failure TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_plan ON activities(plan_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_start ON activities(plan_id, start_min)`,
		`CREATE INDEX IF NOT EXISTS idx_extra_blocks_event ON extra_blocks(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_teams_event ON teams(event_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// GetEvent retrieves an event by ID
func (r *Repository) GetEvent(ctx context.Context, id int) (*models.Event, error) {
	var e models.Event
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, date, explore_mode, challenge_mode, day_start_min, plan_id
		 FROM events WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.Date, &e.ExploreMode, &e.ChallengeMode, &e.DayStartMin, &e.PlanID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEvent inserts a new event. The event's plan shares its ID
// unless a plan ID is given explicitly.
func (r *Repository) CreateEvent(ctx context.Context, event models.Event) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (name, date, explore_mode, challenge_mode, day_start_min, plan_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.Name, event.Date, event.ExploreMode, event.ChallengeMode, event.DayStartMin, event.PlanID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if event.PlanID == 0 {
		if _, err := r.db.ExecContext(ctx, `UPDATE events SET plan_id = id WHERE id = ?`, id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// ListTeams returns the teams registered for an event, ordered by ID
// so generation input order is stable.
func (r *Repository) ListTeams(ctx context.Context, eventID int) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, name, program FROM teams WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.Program); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// CreateTeam inserts a new team
func (r *Repository) CreateTeam(ctx context.Context, team models.Team) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO teams (event_id, name, program) VALUES (?, ?, ?)`,
		team.EventID, team.Name, team.Program)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRooms returns the rooms available at an event, ordered by ID
func (r *Repository) ListRooms(ctx context.Context, eventID int) ([]models.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, name, program FROM rooms WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.EventID, &room.Name, &room.Program); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CreateRoom inserts a new room
func (r *Repository) CreateRoom(ctx context.Context, room models.Room) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (event_id, name, program) VALUES (?, ?, ?)`,
		room.EventID, room.Name, room.Program)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateExtraBlock inserts a new extra block
func (r *Repository) CreateExtraBlock(ctx context.Context, block models.ExtraBlock) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO extra_blocks (event_id, name, program, insert_point, buffer_before, duration_min, buffer_after, start_min, end_min, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		block.EventID, block.Name, block.Program, block.InsertPoint,
		block.BufferBefore, block.DurationMin, block.BufferAfter,
		block.StartMin, block.EndMin, block.Active)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetExtraBlock retrieves an extra block by ID
func (r *Repository) GetExtraBlock(ctx context.Context, id int) (*models.ExtraBlock, error) {
	var b models.ExtraBlock
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, name, program, insert_point, buffer_before, duration_min, buffer_after, start_min, end_min, active
		 FROM extra_blocks WHERE id = ?`, id).
		Scan(&b.ID, &b.EventID, &b.Name, &b.Program, &b.InsertPoint,
			&b.BufferBefore, &b.DurationMin, &b.BufferAfter, &b.StartMin, &b.EndMin, &b.Active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SetExtraBlockActive flips the active flag and bumps the edit timestamp
func (r *Repository) SetExtraBlockActive(ctx context.Context, id int, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE extra_blocks SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExtraBlocks returns an event's extra blocks ordered by ID
func (r *Repository) ListExtraBlocks(ctx context.Context, eventID int, activeOnly bool) ([]models.ExtraBlock, error) {
	query := `SELECT id, event_id, name, program, insert_point, buffer_before, duration_min, buffer_after, start_min, end_min, active
		 FROM extra_blocks WHERE event_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []models.ExtraBlock
	for rows.Next() {
		var b models.ExtraBlock
		if err := rows.Scan(&b.ID, &b.EventID, &b.Name, &b.Program, &b.InsertPoint,
			&b.BufferBefore, &b.DurationMin, &b.BufferAfter, &b.StartMin, &b.EndMin, &b.Active); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// ReplaceActivities swaps a plan's activity set inside one transaction
// so readers of the persisted state never see a partial set.
func (r *Repository) ReplaceActivities(ctx context.Context, planID int, activities []models.Activity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE plan_id = ?`, planID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO activities (plan_id, type_id, program, start_min, end_min, room, lanes, teams)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range activities {
		lanes, err := json.Marshal(a.Lanes)
		if err != nil {
			return err
		}
		teams, err := json.Marshal(a.Teams)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, planID, a.TypeID, a.Program,
			a.StartMin, a.EndMin, a.Room, string(lanes), string(teams)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListPlanIDs returns the plans that have a persisted activity set.
func (r *Repository) ListPlanIDs(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT plan_id FROM activities ORDER BY plan_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListActivities returns a plan's generated activities ordered by start
// time, then ID.
func (r *Repository) ListActivities(ctx context.Context, planID int) ([]models.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, plan_id, type_id, program, start_min, end_min, room, lanes, teams
		 FROM activities WHERE plan_id = ? ORDER BY start_min, id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func scanActivity(rows *sql.Rows) (models.Activity, error) {
	var a models.Activity
	var room sql.NullString
	var lanes, teams sql.NullString
	if err := rows.Scan(&a.ID, &a.PlanID, &a.TypeID, &a.Program,
		&a.StartMin, &a.EndMin, &room, &lanes, &teams); err != nil {
		return a, err
	}
	a.Room = room.String
	if lanes.Valid && lanes.String != "" && lanes.String != "null" {
		if err := json.Unmarshal([]byte(lanes.String), &a.Lanes); err != nil {
			return a, err
		}
	}
	if teams.Valid && teams.String != "" && teams.String != "null" {
		if err := json.Unmarshal([]byte(teams.String), &a.Teams); err != nil {
			return a, err
		}
	}
	return a, nil
}

// SetActivityNoShow flips one team's no-show flag on an activity
func (r *Repository) SetActivityNoShow(ctx context.Context, activityID, teamID int, noShow bool) error {
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT teams FROM activities WHERE id = ?`, activityID).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var slots []models.TeamSlot
	if raw.Valid && raw.String != "" && raw.String != "null" {
		if err := json.Unmarshal([]byte(raw.String), &slots); err != nil {
			return err
		}
	}

	found := false
	for i := range slots {
		if slots[i].TeamID == teamID {
			slots[i].NoShow = noShow
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}

	updated, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE activities SET teams = ? WHERE id = ?`, string(updated), activityID)
	return err
}

// SaveJob upserts the generator job state for a plan
func (r *Repository) SaveJob(ctx context.Context, job models.GeneratorJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO generator_jobs (plan_id, job_id, seq, status, failure)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(plan_id) DO UPDATE SET job_id = excluded.job_id, seq = excluded.seq,
		 status = excluded.status, failure = excluded.failure`,
		job.PlanID, job.ID, job.Seq, job.Status, job.Failure)
	return err
}

// GetJob retrieves the latest generator job state for a plan
func (r *Repository) GetJob(ctx context.Context, planID int) (*models.GeneratorJob, error) {
	var job models.GeneratorJob
	var failure sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT plan_id, job_id, seq, status, failure FROM generator_jobs WHERE plan_id = ?`, planID).
		Scan(&job.PlanID, &job.ID, &job.Seq, &job.Status, &failure)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Failure = failure.String
	return &job, nil
}

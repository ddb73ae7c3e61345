package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Session sources recorded in the sessions table.
const (
	SourceLive  = "live"
	SourceAlpha = "alpha"
)

// sessionSetRow is one set flattened for the session_sets table.
type sessionSetRow struct {
	SessionID     uuid.UUID
	SetID         uuid.UUID
	PerformedAt   time.Time
	ModuleIndex   int
	ExerciseIndex int
	ExerciseName  string
	ExerciseType  string
	GroupIndex    int
	SetIndex      int
	SetNumber     int
	Side          string
	Completed     bool
	Weight        *float64
	Reps          *int
	Duration      *int
	HoldTime      *int
	Distance      *float64
	RPE           *int
	IsBodyweight  bool
}

const sessionSetColumns = 19

// flattenSession turns the session tree into session_sets rows in
// module, exercise, group, set order.
func flattenSession(s *models.Session) []sessionSetRow {
	var rows []sessionSetRow
	for mi, m := range s.Modules {
		for ei, e := range m.Exercises {
			for gi, g := range e.SetGroups {
				for si, set := range g.Sets {
					rows = append(rows, sessionSetRow{
						SessionID:     s.ID,
						SetID:         set.ID,
						PerformedAt:   s.StartedAt,
						ModuleIndex:   mi,
						ExerciseIndex: ei,
						ExerciseName:  e.Name,
						ExerciseType:  string(e.Type),
						GroupIndex:    gi,
						SetIndex:      si,
						SetNumber:     set.SetNumber,
						Side:          string(set.Side),
						Completed:     set.Completed,
						Weight:        set.Weight,
						Reps:          set.Reps,
						Duration:      set.Duration,
						HoldTime:      set.HoldTime,
						Distance:      set.Distance,
						RPE:           set.RPE,
						IsBodyweight:  e.IsBodyweight,
					})
				}
			}
		}
	}
	return rows
}

// SaveSession stores a finished session and its sets. Saving the same
// session again replaces the earlier copy.
func (db *DB) SaveSession(ctx context.Context, s *models.Session) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", s.ID, err)
	}
	err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO sessions (id, workout_id, workout_name, started_at, ended_at, duration_sec,
			 is_freestyle, feeling, notes, source, body)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			 ON CONFLICT (id) DO UPDATE SET
			 ended_at = EXCLUDED.ended_at, duration_sec = EXCLUDED.duration_sec,
			 feeling = EXCLUDED.feeling, notes = EXCLUDED.notes, body = EXCLUDED.body`,
			sessionArgs(s, SourceLive, body)...)
		if err != nil {
			return fmt.Errorf("upserting session: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM session_sets WHERE session_id = $1`, s.ID); err != nil {
			return fmt.Errorf("clearing session sets: %w", err)
		}
		_, err = insertSessionSets(ctx, tx, flattenSession(s))
		return err
	})
	if err != nil {
		return fmt.Errorf("saving session %s: %w", s.ID, err)
	}
	return nil
}

// ImportSession stores a session from an external source unless a session
// with the same ID already exists. It reports whether the session was new
// and how many sets were written.
func (db *DB) ImportSession(ctx context.Context, s *models.Session, source string) (bool, int64, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return false, 0, fmt.Errorf("encoding session %s: %w", s.ID, err)
	}
	var inserted bool
	var sets int64
	err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO sessions (id, workout_id, workout_name, started_at, ended_at, duration_sec,
			 is_freestyle, feeling, notes, source, body)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			 ON CONFLICT (id) DO NOTHING`,
			sessionArgs(s, source, body)...)
		if err != nil {
			return fmt.Errorf("inserting session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		inserted = true
		sets, err = insertSessionSets(ctx, tx, flattenSession(s))
		return err
	})
	if err != nil {
		return false, 0, fmt.Errorf("importing session %s: %w", s.ID, err)
	}
	return inserted, sets, nil
}

func sessionArgs(s *models.Session, source string, body []byte) []any {
	var workoutID any
	if s.WorkoutID != uuid.Nil {
		workoutID = s.WorkoutID
	}
	return []any{s.ID, workoutID, s.WorkoutName, s.StartedAt, s.EndedAt, s.DurationSec,
		s.IsFreestyle, s.Feeling, s.Notes, source, body}
}

// insertSessionSets batch-inserts set rows. Returns the number actually
// inserted.
func insertSessionSets(ctx context.Context, tx pgx.Tx, rows []sessionSetRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO session_sets (session_id, set_id, performed_at, module_index, exercise_index,
exercise_name, exercise_type, group_index, set_index, set_number, side, completed,
weight, reps, duration_sec, hold_time_sec, distance, rpe, is_bodyweight)
VALUES `
	args := make([]any, 0, len(rows)*sessionSetColumns)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * sessionSetColumns
		placeholders := make([]string, sessionSetColumns)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		args = append(args, r.SessionID, r.SetID, r.PerformedAt, r.ModuleIndex, r.ExerciseIndex,
			r.ExerciseName, r.ExerciseType, r.GroupIndex, r.SetIndex, r.SetNumber, r.Side, r.Completed,
			r.Weight, r.Reps, r.Duration, r.HoldTime, r.Distance, r.RPE, r.IsBodyweight)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting session sets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetSession loads a stored session.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var body []byte
	err := db.Pool.QueryRow(ctx, `SELECT body FROM sessions WHERE id = $1`, id).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, notFound(err))
	}
	var s models.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &s, nil
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	ID            uuid.UUID  `json:"id"`
	WorkoutName   string     `json:"workout_name"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	DurationSec   int        `json:"duration_sec"`
	Source        string     `json:"source"`
	CompletedSets int        `json:"completed_sets"`
}

// ListSessions returns stored sessions in a time range, newest first.
func (db *DB) ListSessions(ctx context.Context, start, end time.Time) ([]SessionSummary, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.workout_name, s.started_at, s.ended_at, s.duration_sec, s.source,
		        (SELECT COUNT(*) FROM session_sets ss WHERE ss.session_id = s.id AND ss.completed)::int
		 FROM sessions s
		 WHERE s.started_at >= $1 AND s.started_at < $2
		 ORDER BY s.started_at DESC`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.WorkoutName, &s.StartedAt, &s.EndedAt, &s.DurationSec,
			&s.Source, &s.CompletedSets); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// LastPerformance returns the exercise as performed in the most recent
// session that completed at least one set of it, or nil if there is none.
func (db *DB) LastPerformance(ctx context.Context, exerciseName string) (*models.Exercise, error) {
	var body []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT s.body FROM sessions s
		 WHERE s.id = (
			SELECT session_id FROM session_sets
			WHERE lower(exercise_name) = lower($1) AND completed
			ORDER BY performed_at DESC
			LIMIT 1
		 )`,
		exerciseName).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying last performance of %q: %w", exerciseName, err)
	}
	var s models.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return findExercise(&s, exerciseName), nil
}

// findExercise returns the first exercise matching name case-insensitively
// that has a completed set.
func findExercise(s *models.Session, name string) *models.Exercise {
	key := strings.ToLower(strings.TrimSpace(name))
	for mi := range s.Modules {
		for ei := range s.Modules[mi].Exercises {
			e := &s.Modules[mi].Exercises[ei]
			if strings.ToLower(strings.TrimSpace(e.Name)) != key {
				continue
			}
			for _, g := range e.SetGroups {
				for _, set := range g.Sets {
					if set.Completed {
						return e
					}
				}
			}
		}
	}
	return nil
}

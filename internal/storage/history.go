package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExerciseSession summarizes one session's work on a single exercise.
type ExerciseSession struct {
	SessionID   uuid.UUID `json:"session_id"`
	Date        time.Time `json:"date"`
	WorkoutName string    `json:"workout_name"`
	Sets        int       `json:"sets"`
	TotalReps   int       `json:"total_reps"`
	TopWeight   *float64  `json:"top_weight,omitempty"`
	Volume      float64   `json:"volume"`
	BestE1RM    *float64  `json:"best_e1rm,omitempty"`
}

// ExerciseHistory returns per-session summaries for an exercise, newest
// first. Only completed sets count.
func (db *DB) ExerciseHistory(ctx context.Context, exerciseName string, limit int) ([]ExerciseSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT ss.session_id, MIN(ss.performed_at), s.workout_name,
		        COUNT(*)::int,
		        COALESCE(SUM(ss.reps), 0)::int,
		        MAX(ss.weight),
		        COALESCE(SUM(ss.weight * ss.reps), 0),
		        MAX(ss.weight * (1 + ss.reps / 30.0))
		 FROM session_sets ss
		 JOIN sessions s ON s.id = ss.session_id
		 WHERE lower(ss.exercise_name) = lower($1) AND ss.completed
		 GROUP BY ss.session_id, s.workout_name
		 ORDER BY MIN(ss.performed_at) DESC
		 LIMIT $2`,
		exerciseName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history of %q: %w", exerciseName, err)
	}
	defer rows.Close()

	var result []ExerciseSession
	for rows.Next() {
		var e ExerciseSession
		if err := rows.Scan(&e.SessionID, &e.Date, &e.WorkoutName, &e.Sets, &e.TotalReps,
			&e.TopWeight, &e.Volume, &e.BestE1RM); err != nil {
			return nil, fmt.Errorf("scanning exercise history: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

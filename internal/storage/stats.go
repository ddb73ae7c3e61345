package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about all stored data.
type DataStats struct {
	TotalSessions     int64         `json:"total_sessions"`
	TotalSets         int64         `json:"total_sets"`
	TotalTemplates    int64         `json:"total_templates"`
	EarliestSession   *time.Time    `json:"earliest_session"`
	LatestSession     *time.Time    `json:"latest_session"`
	SessionsByWorkout []WorkoutStat `json:"sessions_by_workout"`
}

// WorkoutStat holds summary stats for one workout name.
type WorkoutStat struct {
	Name          string  `json:"name"`
	Count         int64   `json:"count"`
	TotalDuration float64 `json:"total_duration_sec"`
	TotalVolume   float64 `json:"total_volume"`
}

// GetDataStats returns aggregate statistics over stored sessions.
func (db *DB) GetDataStats(ctx context.Context) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(started_at), MAX(started_at) FROM sessions`,
	).Scan(&stats.TotalSessions, &stats.EarliestSession, &stats.LatestSession)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_sets WHERE completed`,
	).Scan(&stats.TotalSets)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_templates`,
	).Scan(&stats.TotalTemplates)
	if err != nil {
		return nil, fmt.Errorf("counting templates: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT s.workout_name, COUNT(*), COALESCE(SUM(s.duration_sec), 0)::float8,
		        COALESCE(SUM(v.volume), 0)
		 FROM sessions s
		 LEFT JOIN (
			SELECT session_id, SUM(weight * reps) AS volume
			FROM session_sets
			WHERE completed AND weight IS NOT NULL AND reps IS NOT NULL
			GROUP BY session_id
		 ) v ON v.session_id = s.id
		 GROUP BY s.workout_name
		 ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions by workout: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s WorkoutStat
		if err := rows.Scan(&s.Name, &s.Count, &s.TotalDuration, &s.TotalVolume); err != nil {
			return nil, fmt.Errorf("scanning workout stat: %w", err)
		}
		stats.SessionsByWorkout = append(stats.SessionsByWorkout, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/jackc/pgx/v5"
)

// LatestSuggestion returns the newest progression suggestion for an
// exercise, or nil if the producer has not written one.
func (db *DB) LatestSuggestion(ctx context.Context, exerciseName string) (*models.ProgressionSuggestion, error) {
	var sg models.ProgressionSuggestion
	var metric string
	err := db.Pool.QueryRow(ctx,
		`SELECT metric, base_value, suggested_value, confidence, rationale
		 FROM progression_suggestions
		 WHERE lower(exercise_name) = lower($1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		exerciseName).Scan(&metric, &sg.BaseValue, &sg.SuggestedValue, &sg.Confidence, &sg.Rationale)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying suggestion for %q: %w", exerciseName, err)
	}
	sg.Metric = models.SuggestionMetric(metric)
	return &sg, nil
}

// InsertSuggestion records a suggestion produced by the progression engine.
func (db *DB) InsertSuggestion(ctx context.Context, exerciseName string, sg models.ProgressionSuggestion) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO progression_suggestions (exercise_name, metric, base_value, suggested_value, confidence, rationale)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		exerciseName, string(sg.Metric), sg.BaseValue, sg.SuggestedValue, sg.Confidence, sg.Rationale)
	if err != nil {
		return fmt.Errorf("inserting suggestion for %q: %w", exerciseName, err)
	}
	return nil
}

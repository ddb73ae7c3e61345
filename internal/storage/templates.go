package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// GetTemplate loads a workout template by ID.
func (db *DB) GetTemplate(ctx context.Context, id uuid.UUID) (models.WorkoutTemplate, error) {
	var body []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT body FROM workout_templates WHERE id = $1`, id,
	).Scan(&body)
	if err != nil {
		return models.WorkoutTemplate{}, fmt.Errorf("querying template %s: %w", id, notFound(err))
	}
	var t models.WorkoutTemplate
	if err := json.Unmarshal(body, &t); err != nil {
		return models.WorkoutTemplate{}, fmt.Errorf("decoding template %s: %w", id, err)
	}
	return t, nil
}

// ListTemplates returns all templates ordered by name.
func (db *DB) ListTemplates(ctx context.Context) ([]models.WorkoutTemplate, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT body FROM workout_templates ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutTemplate
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		var t models.WorkoutTemplate
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("decoding template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// SaveTemplate inserts or replaces a template.
func (db *DB) SaveTemplate(ctx context.Context, t models.WorkoutTemplate) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding template %s: %w", t.ID, err)
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO workout_templates (id, name, body)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, body = EXCLUDED.body, updated_at = now()`,
		t.ID, t.Name, body)
	if err != nil {
		return fmt.Errorf("saving template %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTemplate removes a template. Sessions started from it keep their copy.
func (db *DB) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM workout_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// SessionImporter stores imported sessions, skipping ones already present.
type SessionImporter interface {
	ImportSession(ctx context.Context, s *models.Session, source string) (bool, int64, error)
}

// Provider processes Alpha Progression CSV exports.
type Provider struct {
	store SessionImporter
	log   *slog.Logger
}

// NewProvider creates a new Alpha Progression ingest provider.
func NewProvider(store SessionImporter, log *slog.Logger) *Provider {
	return &Provider{store: store, log: log}
}

// Ingest parses a CSV export and stores each session as finished history.
func (p *Provider) Ingest(ctx context.Context, r io.Reader) (*ingest.Result, error) {
	exports, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &ingest.Result{SessionsReceived: len(exports)}
	for _, e := range exports {
		s := ToSession(e)
		result.SetsReceived += s.CompletedSetCount()

		inserted, n, err := p.store.ImportSession(ctx, s, storage.SourceAlpha)
		if err != nil {
			return result, fmt.Errorf("storing session %s (%s): %w", e.Name, e.Date.Format("2006-01-02"), err)
		}
		if !inserted {
			result.SessionsSkipped++
			p.log.Debug("session already imported", "session_id", s.ID, "name", e.Name)
			continue
		}
		result.SessionsInserted++
		result.SetsInserted += n
	}
	return result, nil
}

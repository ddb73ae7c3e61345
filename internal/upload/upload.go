package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/ingest/alpha"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	SessionsSent     int
	SessionsInserted int
	SetsInserted     int64
}

// Sender delivers one export. *Client satisfies it.
type Sender interface {
	SendExport(ctx context.Context, data []byte) (*ingest.Result, error)
}

// Uploader walks a directory of CSV exports and sends the ones the state
// database has not seen.
type Uploader struct {
	client Sender
	state  *StateDB
	dir    string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader.
func New(client Sender, state *StateDB, dir string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		dir:    dir,
		dryRun: dryRun,
		log:    log,
	}
}

// Run executes the upload pipeline. A rejected file is counted and
// skipped; a server that stays unreachable stops the run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := exportFiles(u.dir)
	if err != nil {
		return &u.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.stats.FilesTotal++

		relPath, _ := filepath.Rel(u.dir, f)
		hash, err := HashFile(f)
		if err != nil {
			u.log.Warn("hash failed", "file", f, "error", err)
			u.stats.FilesErrored++
			continue
		}
		uploaded, err := u.state.IsUploaded(relPath, hash)
		if err != nil {
			u.log.Warn("state check failed", "file", f, "error", err)
			u.stats.FilesErrored++
			continue
		}
		if uploaded {
			u.stats.FilesSkipped++
			continue
		}

		data, err := os.ReadFile(f)
		if err != nil {
			u.log.Warn("read failed", "file", f, "error", err)
			u.stats.FilesErrored++
			continue
		}

		// Parse locally so malformed exports never reach the server.
		exports, err := alpha.Parse(bytes.NewReader(data))
		if err != nil {
			u.log.Warn("parse failed", "file", f, "error", err)
			u.stats.FilesErrored++
			continue
		}
		if len(exports) == 0 {
			u.stats.FilesSkipped++
			_ = u.state.MarkUploaded(relPath, hash, 0)
			continue
		}
		u.stats.SessionsSent += len(exports)

		if u.dryRun {
			u.log.Info("dry-run: would send", "file", relPath, "sessions", len(exports))
			continue
		}

		res, err := u.client.SendExport(ctx, data)
		if err != nil {
			if errors.Is(err, ErrUnreachable) {
				return &u.stats, fmt.Errorf("sending %s: %w", relPath, err)
			}
			u.log.Warn("upload rejected", "file", relPath, "error", err)
			u.stats.FilesErrored++
			continue
		}
		u.stats.SessionsInserted += res.SessionsInserted
		u.stats.SetsInserted += res.SetsInserted

		if err := u.state.MarkUploaded(relPath, hash, res.SessionsInserted); err != nil {
			u.log.Warn("failed to mark uploaded", "file", relPath, "error", err)
		}
		u.stats.FilesUploaded++
		u.log.Info("uploaded export",
			"file", relPath,
			"sessions_inserted", res.SessionsInserted,
			"sessions_skipped", res.SessionsSkipped,
		)
	}

	return &u.stats, nil
}

// exportFiles lists *.csv files below dir in a stable order.
func exportFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

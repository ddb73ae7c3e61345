package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	csvPath := flag.String("file", "", "path to an Alpha Progression CSV export (required)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *csvPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-import -config config.yaml -file export.csv\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Error("cannot open export", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, cfg.Database.Migrations); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	start := time.Now()
	logID, err := db.InsertImportLog(ctx, storage.ImportLog{Source: storage.SourceAlpha, Status: storage.ImportRunning})
	if err != nil {
		log.Warn("failed to create import log", "error", err)
	}

	// Run import
	result, err := alpha.NewProvider(db, log).Ingest(ctx, f)
	finishLog(ctx, db, log, logID, start, result, err)
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}

	log.Info("import complete",
		"sessions_received", result.SessionsReceived,
		"sessions_inserted", result.SessionsInserted,
		"sessions_skipped", result.SessionsSkipped,
		"sets_inserted", result.SetsInserted,
	)
}

func finishLog(ctx context.Context, db *storage.DB, log *slog.Logger, id int64, start time.Time, result *ingest.Result, importErr error) {
	if id == 0 {
		return
	}
	dur := int(time.Since(start).Milliseconds())
	entry := storage.ImportLog{Source: storage.SourceAlpha, Status: storage.ImportSuccess, DurationMs: &dur}
	if result != nil {
		entry.SessionsReceived = result.SessionsReceived
		entry.SessionsInserted = result.SessionsInserted
		entry.SetsInserted = result.SetsInserted
	}
	if importErr != nil {
		msg := importErr.Error()
		entry.Status = storage.ImportError
		entry.ErrorMessage = &msg
	}
	if err := db.UpdateImportLog(ctx, id, entry); err != nil {
		log.Warn("failed to update import log", "error", err)
	}
}

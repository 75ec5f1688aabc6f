package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"numfix/internal/config"
	"numfix/internal/metrics"
	"numfix/internal/report"
	"numfix/internal/storage"
)

// DefaultBatchSize is the number of rows per InsertRows call.
const DefaultBatchSize = 500

// Opener opens a repository; storage.New in production.
type Opener func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

// Sink writes reports to the table configured by an export block.
type Sink struct {
	Config    config.Export
	Open      Opener
	BatchSize int
	Log       *zap.Logger
}

// Result summarises one export.
type Result struct {
	RunID    string
	Rows     int
	Inserted int64
}

// Write opens the repository, ensures the table, and inserts rep in batches.
// Inserted can be lower than Rows when dedupe skips known hashes.
func (s Sink) Write(ctx context.Context, runID string, rep report.Report) (Result, error) {
	open := s.Open
	if open == nil {
		open = storage.New
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	rows := Rows(runID, rep)
	res := Result{RunID: runID, Rows: len(rows)}

	repo, err := open(ctx, storage.Config{Kind: s.Config.Kind, DSN: s.Config.DSN})
	if err != nil {
		return res, fmt.Errorf("export: open %s: %w", s.Config.Kind, err)
	}
	defer repo.Close()

	if err := repo.EnsureTable(ctx, TableSpec(s.Config.Table, s.Config.Dedupe)); err != nil {
		return res, fmt.Errorf("export: %w", err)
	}

	var dedupe []string
	if s.Config.Dedupe {
		dedupe = []string{ColRowHash}
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}

	cols := Columns()
	for i, part := range storage.Chunk(values, batch) {
		n, err := repo.InsertRows(ctx, s.Config.Table, cols, part, dedupe)
		res.Inserted += n
		if err != nil {
			metrics.RecordExport(s.Config.Kind, res.Inserted)
			return res, fmt.Errorf("export: batch %d: %w", i, err)
		}
		log.Debug("export batch", zap.Int("batch", i), zap.Int("rows", len(part)), zap.Int64("inserted", n))
	}

	metrics.RecordExport(s.Config.Kind, res.Inserted)
	log.Info("export done",
		zap.String("run_id", runID),
		zap.String("backend", s.Config.Kind),
		zap.String("table", s.Config.Table),
		zap.Int("rows", res.Rows),
		zap.Int64("inserted", res.Inserted),
	)
	return res, nil
}

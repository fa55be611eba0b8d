package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/commissioncalc/backend/src/models"
)

// ErrBatchNotFound is returned when no batch run has the requested id.
var ErrBatchNotFound = errors.New("batch run not found")

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Save(ctx context.Context, run models.BatchRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO batch_runs (id, mode, rules_version, results_count, failed_count, csv, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), run.RulesVersion, run.ResultsCount, run.FailedCount, run.CSV, formatTime(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("error inserting batch run %s: %w", run.ID, err)
	}
	return nil
}

func (r *BatchRepository) Get(ctx context.Context, id string) (*models.BatchRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, mode, rules_version, results_count, failed_count, csv, created_at
		FROM batch_runs WHERE id = ?`, id)

	var run models.BatchRun
	var mode, createdAt string
	err := row.Scan(&run.ID, &mode, &run.RulesVersion, &run.ResultsCount, &run.FailedCount, &run.CSV, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying batch run %s: %w", id, err)
	}
	run.Mode = models.BatchMode(mode)
	run.CreatedAt = parseTime(createdAt)
	return &run, nil
}

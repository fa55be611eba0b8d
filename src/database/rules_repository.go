package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/rules"
)

// RulesRepository stores every saved rules document; the newest row is current.
type RulesRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRulesRepository(db *sql.DB) *RulesRepository {
	return &RulesRepository{db: db, now: time.Now}
}

var _ rules.HistoryStore = (*RulesRepository)(nil)

func (r *RulesRepository) Current(ctx context.Context) (rules.Snapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT rules_text, created_at FROM rules_versions ORDER BY id DESC LIMIT 1`)

	var text, createdAt string
	err := row.Scan(&text, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rules.Snapshot{}, nil
	}
	if err != nil {
		return rules.Snapshot{}, fmt.Errorf("error querying current rules: %w", err)
	}
	return rules.NewSnapshot(text, parseTime(createdAt)), nil
}

func (r *RulesRepository) Save(ctx context.Context, text string) (rules.Snapshot, error) {
	snap := rules.NewSnapshot(text, r.now().UTC())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rules_versions (version, rules_text, created_at) VALUES (?, ?, ?)`,
		snap.Version, snap.Text, formatTime(snap.UpdatedAt))
	if err != nil {
		return rules.Snapshot{}, fmt.Errorf("error inserting rules version: %w", err)
	}
	logger.FromContext(ctx).Info("Rules document saved", "store", "sqlite", "version", snap.Version, "bytes", len(text))
	return snap, nil
}

// History lists saved versions newest first; limit <= 0 means 50.
func (r *RulesRepository) History(ctx context.Context, limit int) ([]rules.Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT rules_text, created_at FROM rules_versions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying rules history: %w", err)
	}
	defer rows.Close()

	var out []rules.Snapshot
	for rows.Next() {
		var text, createdAt string
		if err := rows.Scan(&text, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning rules history: %w", err)
		}
		out = append(out, rules.NewSnapshot(text, parseTime(createdAt)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules history: %w", err)
	}
	return out, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/commissioncalc/backend/src/models"
)

// ErrBusinessDataNotFound is returned when no record has the requested id.
var ErrBusinessDataNotFound = errors.New("business data record not found")

const businessDataColumns = `id, user_id, data_type, parent_id, category, source, raw_data, processed_data, metadata,
		       processing_status, processing_error, model_backend,
		       original_filename, file_type, file_size, file_hash, created_at`

type BusinessDataRepository struct {
	db *sql.DB
}

func NewBusinessDataRepository(db *sql.DB) *BusinessDataRepository {
	return &BusinessDataRepository{db: db}
}

func (r *BusinessDataRepository) Insert(ctx context.Context, rec *models.BusinessDataRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO business_data (
			id, user_id, data_type, parent_id, category, source, raw_data, processed_data, metadata,
			processing_status, processing_error, model_backend,
			original_filename, file_type, file_size, file_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.DataType, nullableString(rec.ParentID), rec.Category, rec.Source, rec.RawData,
		nullableJSON(rec.ProcessedData), nullableJSON(rec.Metadata),
		rec.ProcessingStatus, rec.ProcessingError, rec.ModelBackend,
		rec.OriginalFilename, rec.FileType, rec.FileSize, rec.FileHash, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("error inserting business data for user %s: %w", rec.UserID, err)
	}
	return nil
}

func (r *BusinessDataRepository) Get(ctx context.Context, id string) (*models.BusinessDataRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+businessDataColumns+` FROM business_data WHERE id = ?`, id)
	rec, err := scanBusinessData(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBusinessDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading business data %s: %w", id, err)
	}
	return rec, nil
}

// ListByUser returns the user's records newest first.
func (r *BusinessDataRepository) ListByUser(ctx context.Context, userID string) ([]models.BusinessDataRecord, error) {
	return r.list(ctx, `
		SELECT `+businessDataColumns+`
		FROM business_data
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, userID)
}

// ListByType returns the user's records of one data type, newest first.
func (r *BusinessDataRepository) ListByType(ctx context.Context, userID, dataType string) ([]models.BusinessDataRecord, error) {
	return r.list(ctx, `
		SELECT `+businessDataColumns+`
		FROM business_data
		WHERE user_id = ? AND data_type = ?
		ORDER BY created_at DESC, rowid DESC`, userID, dataType)
}

func (r *BusinessDataRepository) list(ctx context.Context, query string, args ...any) ([]models.BusinessDataRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying business data for user %v: %w", args[0], err)
	}
	defer rows.Close()

	records := []models.BusinessDataRecord{}
	for rows.Next() {
		rec, err := scanBusinessData(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning business data row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating business data rows: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBusinessData(row rowScanner) (*models.BusinessDataRecord, error) {
	var rec models.BusinessDataRecord
	var parentID, category, source, rawData, processed, metadata, procErr, backend, filename, fileType, fileHash sql.NullString
	var fileSize sql.NullInt64
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.DataType, &parentID, &category, &source, &rawData, &processed, &metadata,
		&rec.ProcessingStatus, &procErr, &backend, &filename, &fileType, &fileSize, &fileHash, &createdAt); err != nil {
		return nil, err
	}
	rec.ParentID = parentID.String
	rec.Category = category.String
	rec.Source = source.String
	rec.RawData = rawData.String
	if processed.Valid && processed.String != "" {
		rec.ProcessedData = []byte(processed.String)
	}
	if metadata.Valid && metadata.String != "" {
		rec.Metadata = []byte(metadata.String)
	}
	rec.ProcessingError = procErr.String
	rec.ModelBackend = backend.String
	rec.OriginalFilename = filename.String
	rec.FileType = fileType.String
	rec.FileSize = fileSize.Int64
	rec.FileHash = fileHash.String
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

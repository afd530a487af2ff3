package store

import (
	"fmt"
	"time"
)

// AuditRecord is one archived session, success or failure. Rows are
// inserted once when the session reaches a terminal state and never
// updated afterwards.
type AuditRecord struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Language       string    `json:"language"`
	DocumentType   string    `json:"document_type,omitempty"`
	AnalyzerSource string    `json:"analyzer_source,omitempty"`
	ResultPath     string    `json:"result_path,omitempty"`
	ArtifactPath   string    `json:"artifact_path,omitempty"`
	Error          string    `json:"error,omitempty"`
}

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert appends rec to the audit index.
func (r *AuditRepo) Insert(rec *AuditRecord) error {
	query := `INSERT INTO sessions (id, started_at, finished_at, language, document_type, analyzer_source, result_path, artifact_path, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.Exec(query,
		rec.ID, rec.StartedAt, rec.FinishedAt, rec.Language,
		rec.DocumentType, rec.AnalyzerSource, rec.ResultPath, rec.ArtifactPath, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to insert session record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *AuditRepo) Recent(limit int) ([]*AuditRecord, error) {
	query := `SELECT id, started_at, finished_at, language, document_type, analyzer_source, result_path, artifact_path, error
		FROM sessions ORDER BY finished_at DESC LIMIT ?`

	rows, err := r.db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []*AuditRecord
	for rows.Next() {
		rec := &AuditRecord{}
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Language,
			&rec.DocumentType, &rec.AnalyzerSource, &rec.ResultPath, &rec.ArtifactPath, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Counts reports total and failed session counts for the status surface.
func (r *AuditRepo) Counts() (total, failed int, err error) {
	query := `SELECT COUNT(*), COUNT(CASE WHEN error != '' THEN 1 END) FROM sessions`
	if err := r.db.conn.QueryRow(query).Scan(&total, &failed); err != nil {
		return 0, 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return total, failed, nil
}

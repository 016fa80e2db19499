package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// SQLiteStore persists records and results in a single SQLite file. It is the
// default backend for local runs.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ core.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at dbPath, creating the schema if needed.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS emails (
			id TEXT PRIMARY KEY,
			folder TEXT,
			subject TEXT,
			body_plain TEXT,
			body_html TEXT,
			sender_name TEXT,
			sender_email TEXT,
			recipients TEXT,
			delivery_time TIMESTAMP,
			attachment_count INTEGER,
			attachments TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create emails table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE,
			email_id TEXT,
			category TEXT,
			confidence REAL,
			evidence TEXT,
			library_version TEXT,
			classified_at TIMESTAMP,
			supersedes TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_emails_delivery_time ON emails(delivery_time)`,
		`CREATE INDEX IF NOT EXISTS idx_results_email_id ON results(email_id)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	logger.Info("Opened SQLite store", zap.String("path", dbPath))
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *core.EmailRecord) error {
	recipients, err := encodeJSON(rec.Recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}
	attachments, err := encodeJSON(rec.Attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO emails
			(id, folder, subject, body_plain, body_html, sender_name, sender_email, recipients, delivery_time, attachment_count, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Folder, rec.Subject, rec.BodyPlain, rec.BodyHTML, rec.SenderName, rec.SenderEmail,
		recipients, sqlTime(rec.Timestamp, time.RFC3339), len(rec.Attachments), attachments)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*core.EmailRecord, error) {
	var rec core.EmailRecord
	var recipients, attachments string
	var delivery sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, folder, subject, body_plain, body_html, sender_name, sender_email, recipients, delivery_time, attachments
		FROM emails
		WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Folder, &rec.Subject, &rec.BodyPlain, &rec.BodyHTML,
		&rec.SenderName, &rec.SenderEmail, &recipients, &delivery, &attachments)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query record: %w", err)
	}

	if rec.Timestamp, err = parseSQLTime(delivery, time.RFC3339); err != nil {
		return nil, fmt.Errorf("failed to parse delivery_time: %w", err)
	}
	if err := decodeJSON(recipients, &rec.Recipients); err != nil {
		return nil, fmt.Errorf("failed to decode recipients: %w", err)
	}
	if err := decodeJSON(attachments, &rec.Attachments); err != nil {
		return nil, fmt.Errorf("failed to decode attachments: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) SearchRecords(ctx context.Context, q core.RecordQuery) (*core.RecordPage, error) {
	conds, args := searchConds(q, time.RFC3339)
	where := whereClause(conds)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emails e`+latestResultJoin+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	page, perPage := normalizePage(q.Page, q.PerPage)
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.subject, e.sender_name, e.sender_email, e.folder, e.delivery_time, e.attachment_count,
			r.category, r.confidence, r.classified_at
		FROM emails e`+latestResultJoin+where+`
		ORDER BY e.delivery_time DESC, e.id
		LIMIT ? OFFSET ?
	`, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	hits := make([]core.SearchHit, 0, perPage)
	for rows.Next() {
		hit, err := scanSearchHit(rows, time.RFC3339)
		if err != nil {
			return nil, err
		}
		hits = append(hits, *hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	return &core.RecordPage{Hits: hits, Pagination: core.NewPagination(page, perPage, total)}, nil
}

func (s *SQLiteStore) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, res *core.ClassificationResult) error {
	evidence, err := encodeJSON(res.Evidence)
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ID, res.EmailID, string(res.Category), res.Confidence, evidence,
		res.LibraryVersion, sqlTime(res.ClassifiedAt, time.RFC3339), res.Supersedes)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestResult(ctx context.Context, emailID string) (*core.ClassificationResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+resultColumns+`
		FROM results
		WHERE email_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, emailID)

	res, err := scanResult(row, time.RFC3339)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query latest result: %w", err)
	}
	return res, nil
}

func (s *SQLiteStore) LatestResults(ctx context.Context) ([]*core.ClassificationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.email_id, r.category, r.confidence, r.evidence, r.library_version, r.classified_at, r.supersedes
		FROM results r
		JOIN (SELECT email_id, MAX(seq) AS max_seq FROM results GROUP BY email_id) m
			ON r.email_id = m.email_id AND r.seq = m.max_seq
		ORDER BY r.email_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest results: %w", err)
	}
	defer rows.Close()

	var out []*core.ClassificationResult
	for rows.Next() {
		res, err := scanResult(rows, time.RFC3339)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read latest results: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ResultHistory(ctx context.Context, emailID string) ([]*core.ClassificationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resultColumns+`
		FROM results
		WHERE email_id = ?
		ORDER BY seq
	`, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to query result history: %w", err)
	}
	defer rows.Close()

	var out []*core.ClassificationResult
	for rows.Next() {
		res, err := scanResult(rows, time.RFC3339)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result history: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*core.DatasetStats, error) {
	stats := &core.DatasetStats{ByCategory: make(map[core.Category]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails`).Scan(&stats.TotalEmails); err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails WHERE attachment_count > 0`).Scan(&stats.WithAttachments); err != nil {
		return nil, fmt.Errorf("failed to count attachments: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.category, COUNT(*)
		FROM emails e`+latestResultJoin+`
		GROUP BY r.category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category sql.NullString
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		cat := core.CategoryUnclassified
		if category.Valid && category.String != "" {
			cat = core.Category(category.String)
		}
		stats.ByCategory[cat] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(r.confidence) FROM emails e`+latestResultJoin).Scan(&avg); err != nil {
		return nil, fmt.Errorf("failed to average confidence: %w", err)
	}
	stats.AvgConfidence = avg.Float64

	return stats, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

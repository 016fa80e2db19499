package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

const mysqlTimeLayout = "2006-01-02 15:04:05"

// MySQLStore persists records and results in MySQL for shared deployments.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ core.Store = (*MySQLStore)(nil)

// NewMySQLStore connects to the database behind dsn and creates the schema
// if needed.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS emails (
			id VARCHAR(64) PRIMARY KEY,
			folder VARCHAR(255),
			subject TEXT,
			body_plain MEDIUMTEXT,
			body_html MEDIUMTEXT,
			sender_name VARCHAR(255),
			sender_email VARCHAR(255),
			recipients TEXT,
			delivery_time TIMESTAMP NULL,
			attachment_count INT,
			attachments TEXT,
			INDEX idx_emails_delivery_time (delivery_time)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create emails table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			id VARCHAR(64) UNIQUE,
			email_id VARCHAR(64),
			category VARCHAR(32),
			confidence DOUBLE,
			evidence TEXT,
			library_version VARCHAR(128),
			classified_at TIMESTAMP NULL,
			supersedes VARCHAR(64),
			INDEX idx_results_email_id (email_id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results table: %w", err)
	}

	logger.Info("Connected to MySQL store")
	return &MySQLStore{db: db, logger: logger}, nil
}

func (s *MySQLStore) SaveRecord(ctx context.Context, rec *core.EmailRecord) error {
	recipients, err := encodeJSON(rec.Recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}
	attachments, err := encodeJSON(rec.Attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO emails
			(id, folder, subject, body_plain, body_html, sender_name, sender_email, recipients, delivery_time, attachment_count, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			folder = VALUES(folder),
			subject = VALUES(subject),
			body_plain = VALUES(body_plain),
			body_html = VALUES(body_html),
			sender_name = VALUES(sender_name),
			sender_email = VALUES(sender_email),
			recipients = VALUES(recipients),
			delivery_time = VALUES(delivery_time),
			attachment_count = VALUES(attachment_count),
			attachments = VALUES(attachments)
	`, rec.ID, rec.Folder, rec.Subject, rec.BodyPlain, rec.BodyHTML, rec.SenderName, rec.SenderEmail,
		recipients, sqlTime(rec.Timestamp, mysqlTimeLayout), len(rec.Attachments), attachments)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *MySQLStore) GetRecord(ctx context.Context, id string) (*core.EmailRecord, error) {
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

	if rec.Timestamp, err = parseSQLTime(delivery, mysqlTimeLayout); err != nil {
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

func (s *MySQLStore) SearchRecords(ctx context.Context, q core.RecordQuery) (*core.RecordPage, error) {
	conds, args := searchConds(q, mysqlTimeLayout)
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
		hit, err := scanSearchHit(rows, mysqlTimeLayout)
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

func (s *MySQLStore) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (s *MySQLStore) SaveResult(ctx context.Context, res *core.ClassificationResult) error {
	evidence, err := encodeJSON(res.Evidence)
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ID, res.EmailID, string(res.Category), res.Confidence, evidence,
		res.LibraryVersion, sqlTime(res.ClassifiedAt, mysqlTimeLayout), res.Supersedes)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

func (s *MySQLStore) LatestResult(ctx context.Context, emailID string) (*core.ClassificationResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+resultColumns+`
		FROM results
		WHERE email_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, emailID)

	res, err := scanResult(row, mysqlTimeLayout)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query latest result: %w", err)
	}
	return res, nil
}

func (s *MySQLStore) LatestResults(ctx context.Context) ([]*core.ClassificationResult, error) {
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
		res, err := scanResult(rows, mysqlTimeLayout)
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

func (s *MySQLStore) ResultHistory(ctx context.Context, emailID string) ([]*core.ClassificationResult, error) {
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
		res, err := scanResult(rows, mysqlTimeLayout)
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

func (s *MySQLStore) Stats(ctx context.Context) (*core.DatasetStats, error) {
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
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

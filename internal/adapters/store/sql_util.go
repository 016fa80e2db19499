package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// latestResultJoin joins each email with its most recent result. Results are
// append-only, so the highest seq per email is the current one.
const latestResultJoin = `
	LEFT JOIN (
		SELECT res.email_id, res.category, res.confidence, res.classified_at
		FROM results res
		JOIN (SELECT email_id, MAX(seq) AS max_seq FROM results GROUP BY email_id) m
			ON res.email_id = m.email_id AND res.seq = m.max_seq
	) r ON r.email_id = e.id`

const resultColumns = "id, email_id, category, confidence, evidence, library_version, classified_at, supersedes"

type scanner interface {
	Scan(dest ...any) error
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// sqlTime renders t for storage, NULL for the zero time.
func sqlTime(t time.Time, layout string) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(layout)
}

func parseSQLTime(s sql.NullString, layout string) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(layout, s.String)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	return page, perPage
}

// searchConds translates a RecordQuery into WHERE conditions over the emails
// table (aliased e) joined with latestResultJoin (aliased r).
func searchConds(q core.RecordQuery, timeLayout string) ([]string, []any) {
	var conds []string
	var args []any

	if q.Text != "" {
		needle := "%" + strings.ToLower(q.Text) + "%"
		conds = append(conds, "(LOWER(e.subject) LIKE ? OR LOWER(e.sender_name) LIKE ? OR LOWER(e.sender_email) LIKE ? OR LOWER(e.body_plain) LIKE ?)")
		args = append(args, needle, needle, needle, needle)
	}
	if q.Category != "" {
		// Records never classified surface as unclassified.
		if q.Category == core.CategoryUnclassified {
			conds = append(conds, "(r.category = ? OR r.category IS NULL)")
		} else {
			conds = append(conds, "r.category = ?")
		}
		args = append(args, string(q.Category))
	}
	if q.Folder != "" {
		conds = append(conds, "LOWER(e.folder) = ?")
		args = append(args, strings.ToLower(q.Folder))
	}
	if q.HasAttachments != nil {
		if *q.HasAttachments {
			conds = append(conds, "e.attachment_count > 0")
		} else {
			conds = append(conds, "e.attachment_count = 0")
		}
	}
	if !q.From.IsZero() {
		conds = append(conds, "e.delivery_time >= ?")
		args = append(args, q.From.UTC().Format(timeLayout))
	}
	if !q.To.IsZero() {
		conds = append(conds, "e.delivery_time <= ?")
		args = append(args, q.To.UTC().Format(timeLayout))
	}
	return conds, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// scanResult reads one result row in resultColumns order.
func scanResult(row scanner, timeLayout string) (*core.ClassificationResult, error) {
	var res core.ClassificationResult
	var category, evidence string
	var classifiedAt sql.NullString

	if err := row.Scan(&res.ID, &res.EmailID, &category, &res.Confidence, &evidence,
		&res.LibraryVersion, &classifiedAt, &res.Supersedes); err != nil {
		return nil, err
	}
	res.Category = core.Category(category)

	var err error
	if res.ClassifiedAt, err = parseSQLTime(classifiedAt, timeLayout); err != nil {
		return nil, fmt.Errorf("failed to parse classified_at: %w", err)
	}
	if err := decodeJSON(evidence, &res.Evidence); err != nil {
		return nil, fmt.Errorf("failed to decode evidence: %w", err)
	}
	return &res, nil
}

// scanSearchHit reads one search row: email header columns followed by the
// nullable latest-result columns.
func scanSearchHit(row scanner, timeLayout string) (*core.SearchHit, error) {
	var hit core.SearchHit
	var delivery, category, classifiedAt sql.NullString
	var confidence sql.NullFloat64

	if err := row.Scan(&hit.EmailID, &hit.Subject, &hit.SenderName, &hit.SenderEmail, &hit.Folder,
		&delivery, &hit.AttachmentCount, &category, &confidence, &classifiedAt); err != nil {
		return nil, fmt.Errorf("failed to scan search row: %w", err)
	}

	var err error
	if hit.Timestamp, err = parseSQLTime(delivery, timeLayout); err != nil {
		return nil, fmt.Errorf("failed to parse delivery_time: %w", err)
	}
	if hit.ClassifiedAt, err = parseSQLTime(classifiedAt, timeLayout); err != nil {
		return nil, fmt.Errorf("failed to parse classified_at: %w", err)
	}

	hit.Category = core.CategoryUnclassified
	if category.Valid && category.String != "" {
		hit.Category = core.Category(category.String)
	}
	hit.Confidence = confidence.Float64
	return &hit, nil
}

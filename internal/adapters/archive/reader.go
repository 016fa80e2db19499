// Package archive reads the output directory of the PST extraction pipeline:
// metadata/<id>.json files describing each email, emails/<id>.eml with the
// message itself, attachments/<id>/ with the extracted files.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

type recordMetadata struct {
	ID           string           `json:"id"`
	Folder       string           `json:"folder"`
	Subject      string           `json:"subject"`
	SenderName   string           `json:"sender_name"`
	SenderEmail  string           `json:"sender_email"`
	DeliveryTime string           `json:"delivery_time"`
	Attachments  []attachmentMeta `json:"attachments"`
}

type attachmentMeta struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
}

// DirReader streams the records of one extraction directory in id order.
// Unreadable emails are logged and skipped; the run keeps going.
type DirReader struct {
	root         string
	sniffContent bool
	logger       *zap.Logger
	ids          []string
	pos          int
}

var _ core.RecordSource = (*DirReader)(nil)

// NewDirReader lists the metadata directory under root and prepares a reader
// over every email found there. With sniffContent set, each attachment's
// content type is detected from its first bytes.
func NewDirReader(root string, sniffContent bool, logger *zap.Logger) (*DirReader, error) {
	entries, err := os.ReadDir(filepath.Join(root, "metadata"))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		// progress.json is extractor state, not an email.
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == "progress.json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)

	logger.Info("Opened extraction directory",
		zap.String("root", root),
		zap.Int("emails", len(ids)))
	return &DirReader{root: root, sniffContent: sniffContent, logger: logger, ids: ids}, nil
}

func (d *DirReader) Next(ctx context.Context) (*core.EmailRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.pos >= len(d.ids) {
			return nil, io.EOF
		}
		id := d.ids[d.pos]
		d.pos++

		rec, err := d.load(id)
		if err != nil {
			d.logger.Warn("Skipping unreadable email",
				zap.String("email_id", id),
				zap.Error(err))
			continue
		}
		return rec, nil
	}
}

func (d *DirReader) Close() error {
	return nil
}

func (d *DirReader) load(id string) (*core.EmailRecord, error) {
	raw, err := os.ReadFile(filepath.Join(d.root, "metadata", id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta recordMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if meta.ID == "" {
		meta.ID = id
	}

	rec := &core.EmailRecord{
		ID:          meta.ID,
		Folder:      meta.Folder,
		Subject:     meta.Subject,
		SenderName:  meta.SenderName,
		SenderEmail: meta.SenderEmail,
	}
	if meta.DeliveryTime != "" {
		if ts, err := parseISOTime(meta.DeliveryTime); err == nil {
			rec.Timestamp = ts
		} else {
			d.logger.Debug("Ignoring unparseable delivery time",
				zap.String("email_id", id),
				zap.String("delivery_time", meta.DeliveryTime))
		}
	}

	// Bodies live in the companion .eml file. A missing or broken file
	// degrades to an empty body; the subject alone can still classify.
	if f, err := os.Open(filepath.Join(d.root, "emails", id+".eml")); err == nil {
		parsed, perr := ParseEML(f)
		f.Close()
		if perr != nil {
			d.logger.Warn("Failed to parse eml body",
				zap.String("email_id", id),
				zap.Error(perr))
		} else {
			rec.BodyPlain = parsed.BodyPlain
			rec.BodyHTML = parsed.BodyHTML
			if rec.Subject == "" {
				rec.Subject = parsed.Subject
			}
			if rec.SenderEmail == "" {
				rec.SenderEmail = parsed.SenderEmail
			}
			rec.Recipients = parsed.Recipients
			if rec.Timestamp.IsZero() {
				rec.Timestamp = parsed.Timestamp
			}
		}
	}

	rec.Attachments = d.attachments(id, meta.Attachments)
	return rec, nil
}

func (d *DirReader) attachments(id string, metas []attachmentMeta) []core.AttachmentDescriptor {
	if len(metas) > 0 {
		descs := make([]core.AttachmentDescriptor, 0, len(metas))
		for _, m := range metas {
			path := m.Path
			if path == "" {
				path = filepath.Join("attachments", id, m.Filename)
			}
			descs = append(descs, core.AttachmentDescriptor{
				Filename:    m.Filename,
				Extension:   filepath.Ext(m.Filename),
				Size:        m.Size,
				ContentType: d.sniff(filepath.Join(d.root, filepath.FromSlash(path))),
			})
		}
		return descs
	}

	// Older extractions carry no attachment list in the metadata; fall
	// back to the attachments directory itself.
	dir := filepath.Join(d.root, "attachments", id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var descs []core.AttachmentDescriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		descs = append(descs, core.AttachmentDescriptor{
			Filename:    e.Name(),
			Extension:   filepath.Ext(e.Name()),
			Size:        info.Size(),
			ContentType: d.sniff(filepath.Join(dir, e.Name())),
		})
	}
	return descs
}

// sniff detects the content type from the file's first bytes. An empty
// string means sniffing is off or the file could not be read; the extension
// still decides then.
func (d *DirReader) sniff(path string) string {
	if !d.sniffContent {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if n == 0 {
		return ""
	}
	return http.DetectContentType(buf[:n])
}

// parseISOTime accepts the extractor's ISO 8601 timestamps, which come with
// or without a zone offset. Naive timestamps are taken as UTC.
func parseISOTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

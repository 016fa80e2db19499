package archive

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	// Decoders for the legacy charsets Outlook archives carry.
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// ParseEML reads one RFC 5322 message and maps it onto an EmailRecord.
// Attachment bodies are drained for their size but not kept; only the
// descriptors matter for classification.
func ParseEML(r io.Reader) (*core.EmailRecord, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	rec := &core.EmailRecord{}
	if subject, err := mr.Header.Subject(); err == nil {
		rec.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		rec.Timestamp = date.UTC()
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		rec.SenderName = from[0].Name
		rec.SenderEmail = from[0].Address
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			rec.Recipients = append(rec.Recipients, addr.Address)
		}
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken part must not lose the message; keep what parsed.
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(ct, "text/plain") && rec.BodyPlain == "":
				rec.BodyPlain = string(body)
			case strings.HasPrefix(ct, "text/html") && rec.BodyHTML == "":
				rec.BodyHTML = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			ct, _, _ := h.ContentType()
			size, err := io.Copy(io.Discard, p.Body)
			if err != nil {
				continue
			}
			rec.Attachments = append(rec.Attachments, core.AttachmentDescriptor{
				Filename:    filename,
				Extension:   filepath.Ext(filename),
				Size:        size,
				ContentType: ct,
			})
		}
	}
	return rec, nil
}

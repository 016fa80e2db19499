package intake

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/store"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/attachment"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/normalize"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/patterns"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/scoring"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/utils"
)

func newTestIntake(t *testing.T) (*SMTPIntake, *store.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()
	engine, err := scoring.NewEngine(scoring.DefaultPolicy(), logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := store.NewMemoryStore()
	svc := core.NewClassifierService(
		normalize.NewNormalizer(utils.NewTextProcessor(logger), logger, 280),
		attachment.NewDetector(logger, 100*1024),
		engine,
		patterns.Default(),
		st,
		logger,
		1,
	)
	return NewSMTPIntake(svc, logger, "127.0.0.1:0", "", 0, 0, 0), st
}

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

const quoteEML = `Subject: Solicitud de =?UTF-8?Q?cotizaci=C3=B3n?= flotilla
Date: Fri, 01 Mar 2024 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

Buen dia, solicito su apoyo cotizando la flotilla.
`

func TestDataClassifiesAndStores(t *testing.T) {
	intake, st := newTestIntake(t)
	sess := &smtpSession{intake: intake}

	if err := sess.Mail("ana@corredor.mx", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sess.Rcpt("buzon@aseguradora.mx", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sess.Data(strings.NewReader(crlf(quoteEML))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	page, err := st.SearchRecords(ctx, core.RecordQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Hits) != 1 {
		t.Fatalf("got %d stored records, want 1", len(page.Hits))
	}
	hit := page.Hits[0]
	if hit.Subject != "Solicitud de cotización flotilla" {
		t.Errorf("Subject = %q, want decoded header", hit.Subject)
	}
	if hit.Category != core.CategoryCotizacion {
		t.Errorf("Category = %q, want %q", hit.Category, core.CategoryCotizacion)
	}

	// The envelope supplies what the headers did not.
	rec, err := st.GetRecord(ctx, hit.EmailID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SenderEmail != "ana@corredor.mx" {
		t.Errorf("SenderEmail = %q, want envelope sender", rec.SenderEmail)
	}
	if len(rec.Recipients) != 1 || rec.Recipients[0] != "buzon@aseguradora.mx" {
		t.Errorf("Recipients = %v, want envelope recipient", rec.Recipients)
	}
	if rec.ID == "" {
		t.Errorf("record was stored without an id")
	}
}

func TestDataAcceptsUnparseableMessage(t *testing.T) {
	intake, st := newTestIntake(t)
	sess := &smtpSession{intake: intake}

	if err := sess.Data(strings.NewReader("this is not an email")); err != nil {
		t.Fatalf("Data returned %v, want acceptance", err)
	}
	page, err := st.SearchRecords(context.Background(), core.RecordQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Hits) != 0 {
		t.Errorf("got %d stored records, want 0", len(page.Hits))
	}
}

func TestZeroSettingsFallBackToDefaults(t *testing.T) {
	intake, _ := newTestIntake(t)

	if intake.domain != "localhost" {
		t.Errorf("domain = %q, want localhost", intake.domain)
	}
	if intake.maxMessageBytes != 30*1024*1024 {
		t.Errorf("maxMessageBytes = %d, want 30MB", intake.maxMessageBytes)
	}
	if intake.readTimeout != 30*time.Second || intake.writeTimeout != 30*time.Second {
		t.Errorf("timeouts = %v/%v, want 30s/30s", intake.readTimeout, intake.writeTimeout)
	}
}

func TestSessionAuthAndReset(t *testing.T) {
	intake, _ := newTestIntake(t)
	sess := &smtpSession{intake: intake}

	if err := sess.AuthPlain(nil); err != smtp.ErrAuthUnsupported {
		t.Errorf("AuthPlain error = %v, want %v", err, smtp.ErrAuthUnsupported)
	}

	if err := sess.Mail("ana@corredor.mx", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sess.Rcpt("buzon@aseguradora.mx", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess.Reset()
	if sess.sender != "" || len(sess.recipients) != 0 {
		t.Errorf("Reset left sender=%q recipients=%v", sess.sender, sess.recipients)
	}
}

// Package intake receives live email over SMTP and feeds it through the
// classifier. Every message is accepted; classification is a side effect,
// never a delivery decision.
package intake

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/archive"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// SMTPIntake runs an SMTP listener that classifies and stores incoming mail.
type SMTPIntake struct {
	service         *core.ClassifierService
	logger          *zap.Logger
	listenAddr      string
	domain          string
	maxMessageBytes int64
	readTimeout     time.Duration
	writeTimeout    time.Duration
	server          *smtp.Server
}

// NewSMTPIntake creates an SMTP intake listening on listenAddr once started.
// Zero values for domain, maxMessageBytes and the timeouts select the
// defaults (localhost, 30MB, 30s).
func NewSMTPIntake(
	service *core.ClassifierService,
	logger *zap.Logger,
	listenAddr string,
	domain string,
	maxMessageBytes int64,
	readTimeout time.Duration,
	writeTimeout time.Duration,
) *SMTPIntake {
	if domain == "" {
		domain = "localhost"
	}
	if maxMessageBytes <= 0 {
		maxMessageBytes = 30 * 1024 * 1024 // 30MB
	}
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	return &SMTPIntake{
		service:         service,
		logger:          logger,
		listenAddr:      listenAddr,
		domain:          domain,
		maxMessageBytes: maxMessageBytes,
		readTimeout:     readTimeout,
		writeTimeout:    writeTimeout,
	}
}

// Start starts the SMTP server in the background.
func (i *SMTPIntake) Start() error {
	i.server = smtp.NewServer(&smtpBackend{intake: i})

	i.server.Addr = i.listenAddr
	i.server.Domain = i.domain
	i.server.ReadTimeout = i.readTimeout
	i.server.WriteTimeout = i.writeTimeout
	i.server.MaxMessageBytes = i.maxMessageBytes
	i.server.MaxRecipients = 50
	i.server.AllowInsecureAuth = true

	i.logger.Info("SMTP intake starting", zap.String("address", i.listenAddr))

	go func() {
		if err := i.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				i.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP server.
func (i *SMTPIntake) Stop() error {
	if i.server != nil {
		return i.server.Close()
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	intake *SMTPIntake
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		intake:     b.intake,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	intake     *SMTPIntake
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for the intake)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data classifies and stores the message. The message is accepted even when
// parsing or classification fails; rejecting mail is never this service's
// call to make.
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.intake.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	rec, err := archive.ParseEML(bytes.NewReader(raw))
	if err != nil {
		s.intake.logger.Warn("Accepted unparseable message without classifying",
			zap.String("sender", s.sender),
			zap.Error(err))
		return nil
	}

	// Fill the header gaps from the envelope.
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SenderEmail == "" {
		rec.SenderEmail = s.sender
	}
	if len(rec.Recipients) == 0 {
		rec.Recipients = append(rec.Recipients, s.recipients...)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := s.intake.service.Process(ctx, rec)
	if err != nil {
		s.intake.logger.Error("Failed to classify incoming email",
			zap.String("email_id", rec.ID),
			zap.String("sender", rec.SenderEmail),
			zap.Error(err))
		return nil
	}

	s.intake.logger.Info("Classified incoming email",
		zap.String("email_id", rec.ID),
		zap.String("sender", rec.SenderEmail),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence))

	return nil
}

// Logout handles SMTP logout (nothing to clean up)
func (s *smtpSession) Logout() error {
	return nil
}

package sink

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/report"
)

const defaultSMTPTimeout = 10 * time.Second

// EmailConfig holds SMTP configuration for the digest.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Email sends the run's matches as one digest. The digest is delivered as
// a whole, so either every key is acknowledged or none is.
type Email struct {
	cfg    EmailConfig
	dialer sender
	logger *zap.Logger
}

func NewEmail(cfg EmailConfig, logger *zap.Logger) *Email {
	dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	dialer.Timeout = defaultSMTPTimeout

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Email{cfg: cfg, dialer: dialer, logger: logger}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Deliver(_ context.Context, ranked []*match.Result) ([]string, error) {
	if len(ranked) == 0 {
		return nil, nil
	}
	if e.cfg.FromEmail == "" || e.cfg.ToEmail == "" {
		return nil, errors.New("email sender and recipient are required")
	}

	digest := report.BuildDigest(ranked)

	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.FromEmail)
	m.SetHeader("To", e.cfg.ToEmail)
	m.SetHeader("Subject", digest.Subject)
	m.SetBody("text/plain", digest.Body)

	if err := e.dialer.DialAndSend(m); err != nil {
		e.logger.Warn("sending digest failed",
			zap.String("to", e.cfg.ToEmail),
			zap.String("subject", digest.Subject),
			zap.Error(err),
		)
		return nil, err
	}

	e.logger.Info("digest sent", zap.String("to", e.cfg.ToEmail), zap.String("subject", digest.Subject))
	return keys(ranked), nil
}

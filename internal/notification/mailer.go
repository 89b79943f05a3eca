package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"
	"golang.org/x/time/rate"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/metrics"
)

// Message is one outgoing email.
type Message struct {
	Template string
	To       string
	ToName   string
	Subject  string
	HTML     string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer sends through an SMTP relay, throttled to cfg.PerSecond.
type SMTPMailer struct {
	cfg     config.MailConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewSMTPMailer(cfg config.MailConfig, logger *slog.Logger) *SMTPMailer {
	perSec := cfg.PerSecond
	if perSec <= 0 {
		perSec = 1
	}
	return &SMTPMailer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		logger:  logger.With("component", "mailer"),
	}
}

func (m *SMTPMailer) dial() (*mailyak.MailYak, error) {
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if m.cfg.Port == 465 {
		return mailyak.NewWithTLS(m.cfg.Addr(), auth, &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12})
	}
	return mailyak.New(m.cfg.Addr(), auth), nil
}

// Send waits for the throttle, then delivers m.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("mail %s: empty recipient", msg.Template)
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	mail, err := m.dial()
	if err != nil {
		metrics.EmailsSent.WithLabelValues(msg.Template, "failed").Inc()
		return fmt.Errorf("mail client: %w", err)
	}
	mail.From(m.cfg.From)
	mail.FromName(m.cfg.FromName)
	mail.To(msg.To)
	mail.Subject(msg.Subject)
	mail.HTML().Set(msg.HTML)

	if err := mail.Send(); err != nil {
		metrics.EmailsSent.WithLabelValues(msg.Template, "failed").Inc()
		m.logger.Error("send mail failed", "template", msg.Template, "to", msg.To, "error", err)
		return err
	}
	metrics.EmailsSent.WithLabelValues(msg.Template, "sent").Inc()
	m.logger.Info("mail sent", "template", msg.Template, "to", msg.To)
	return nil
}

// LogMailer only logs, for environments without SMTP.
type LogMailer struct{ logger *slog.Logger }

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer")}
}

func (l *LogMailer) Send(_ context.Context, m Message) error {
	l.logger.Info("mail skipped (smtp disabled)", "template", m.Template, "to", m.To, "subject", m.Subject)
	metrics.EmailsSent.WithLabelValues(m.Template, "skipped").Inc()
	return nil
}

// NewSender picks the SMTP mailer when mail is enabled.
func NewSender(cfg config.MailConfig, logger *slog.Logger) Sender {
	if !cfg.Enabled {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}

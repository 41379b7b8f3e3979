// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"codeberg.org/oliverandrich/ballot/internal/config"
	"codeberg.org/oliverandrich/ballot/internal/i18n"
)

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// Option configures a Service.
type Option func(*Service)

// WithSender replaces the transport chosen from the SMTP configuration.
func WithSender(sender Sender) Option {
	return func(s *Service) {
		s.sender = sender
	}
}

// Service composes localized voter emails and hands them to a Sender.
type Service struct {
	cfg    *config.SMTPConfig
	sender Sender
}

// NewService creates a new email service. Without an SMTP host messages
// are written to the log instead of being delivered.
func NewService(cfg *config.SMTPConfig, opts ...Option) (*Service, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &Service{cfg: cfg}
	if cfg.Host != "" {
		s.sender = &smtpSender{cfg: cfg}
	} else {
		s.sender = logSender{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Receipt holds the details of a recorded vote for the confirmation mail.
type Receipt struct {
	To            string
	VoterName     string
	ElectionName  string
	CandidateName string
	Party         string
	VoteID        string
	Timestamp     time.Time
	City          string
	State         string
	Country       string
}

// SendOTP sends a verification code valid for ttl.
func (s *Service) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	minutes := max(int(ttl.Round(time.Minute)/time.Minute), 1)

	subject := i18n.T(ctx, "otp_email_subject")
	body := i18n.TPlural(ctx, "otp_email_body", minutes, map[string]any{
		"Code": code,
	})

	return s.Send(ctx, to, subject, body)
}

// SendReceipt confirms a recorded vote to the voter.
func (s *Service) SendReceipt(ctx context.Context, r Receipt) error {
	subject := i18n.T(ctx, "vote_receipt_subject")
	body := i18n.TData(ctx, "vote_receipt_body", map[string]any{
		"VoterName":     r.VoterName,
		"ElectionName":  r.ElectionName,
		"CandidateName": r.CandidateName,
		"Party":         r.Party,
		"VoteID":        r.VoteID,
		"Timestamp":     r.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
		"City":          r.City,
		"State":         r.State,
		"Country":       r.Country,
	})

	return s.Send(ctx, r.To, subject, body)
}

// Send composes a plain text message and delivers it.
func (s *Service) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return s.sender.Send(ctx, msg)
}

// smtpSender delivers messages via SMTP using go-mail.
type smtpSender struct {
	cfg *config.SMTPConfig
}

func (s *smtpSender) Send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}

	// Use implicit TLS (SSL) for port 465, STARTTLS for others
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// logSender writes messages to the log. Used when no SMTP host is set.
type logSender struct{}

func (logSender) Send(_ context.Context, msg *mail.Msg) error {
	to, _ := msg.GetRecipients()
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return fmt.Errorf("rendering email: %w", err)
	}
	slog.Info("email_logged",
		"to", strings.Join(to, ","),
		"subject", strings.Join(msg.GetGenHeader(mail.HeaderSubject), " "),
		"message", buf.String(),
	)
	return nil
}

// Package mailer hands outbound messages to the SMTP transport. Success
// means the transport accepted the message, not that the recipient got it;
// no delivery receipts are tracked.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// ErrSendFailed wraps any transport rejection or connection error. No retry
// happens here; re-sending is the caller's explicit decision.
var ErrSendFailed = errors.New("send failed")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTP struct {
	client *mail.Client
	from   string
}

func NewSMTP(cfg Config) (*SMTP, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("mail client: %w", err)
	}
	return &SMTP{client: client, from: cfg.From}, nil
}

// Dispatch sends one message with a single binary attachment.
func (s *SMTP) Dispatch(ctx context.Context, to, subject, body, attachmentName string, attachment []byte) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	if err := msg.AttachReader(attachmentName, bytes.NewReader(attachment),
		mail.WithFileContentType("application/pdf")); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		log.Error().Str("to", to).Err(err).Msg("smtp rejected message")
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	log.Info().Str("to", to).Str("attachment", attachmentName).Msg("message accepted by transport")
	return nil
}

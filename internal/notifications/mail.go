package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hallbook/pkg/config"
	"hallbook/pkg/kafka"
	"hallbook/pkg/model"

	"github.com/wneessen/go-mail"
)

const smtpTimeout = 15 * time.Second

// mailSender is the subset of *mail.Client the publisher needs.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// MailPublisher sends notifications through an SMTP relay.
type MailPublisher struct {
	sender    mailSender
	from      string
	templates *Templates
}

func NewMailPublisher(cfg *config.Config, templates *Templates) (*MailPublisher, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(smtpTimeout),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return newMailPublisher(client, cfg.SMTPFrom, templates), nil
}

func newMailPublisher(sender mailSender, from string, templates *Templates) *MailPublisher {
	return &MailPublisher{sender: sender, from: from, templates: templates}
}

func (p *MailPublisher) Publish(ctx context.Context, n model.Notification) error {
	msg, err := p.buildMessage(n)
	if err != nil {
		return err
	}

	if err := p.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return classifySendError(err)
	}
	return nil
}

func (p *MailPublisher) buildMessage(n model.Notification) (*mail.Msg, error) {
	subject, body, err := p.templates.Render(n)
	if err != nil {
		return nil, kafka.NewPermanentError("render notification", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(p.from); err != nil {
		return nil, kafka.NewPermanentError("invalid sender address", err)
	}
	if err := msg.To(n.To); err != nil {
		return nil, kafka.NewPermanentError("invalid recipient address", err).WithDetail("to", n.To)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

// classifySendError maps SMTP failures onto retry classes. Only replies the
// relay marked as permanent (5xx) skip the retry loop.
func classifySendError(err error) error {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) && !sendErr.IsTemp() {
		return kafka.NewPermanentError("smtp rejected message", err)
	}
	return kafka.NewTransientError("smtp delivery failed", err)
}

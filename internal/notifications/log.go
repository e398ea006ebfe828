package notifications

import (
	"context"

	"hallbook/pkg/kafka"
	"hallbook/pkg/logger"
	"hallbook/pkg/model"
)

// LogPublisher renders notifications and writes them to the log instead of
// sending them. Used for local development.
type LogPublisher struct {
	templates *Templates
	log       *logger.Logger
}

func NewLogPublisher(templates *Templates, log *logger.Logger) *LogPublisher {
	return &LogPublisher{templates: templates, log: log}
}

func (p *LogPublisher) Publish(_ context.Context, n model.Notification) error {
	subject, body, err := p.templates.Render(n)
	if err != nil {
		return kafka.NewPermanentError("render notification", err)
	}
	p.log.Info("notification (log mode)",
		"notification_id", n.ID,
		"to", n.To,
		"subject", subject,
		"body", body,
	)
	return nil
}

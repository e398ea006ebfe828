package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"hallbook/pkg/logger"
	"hallbook/pkg/model"

	"github.com/google/uuid"
)

// Publisher delivers one notification. Implementations return kafka
// transient or permanent errors so the notifier worker can decide on retries.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

var ErrNotifierClosed = errors.New("notifier is closed")

// AsyncNotifier hands notifications to a Publisher on background goroutines
// so request handlers never wait on delivery. Failures are logged only.
type AsyncNotifier struct {
	publisher Publisher
	timeout   time.Duration
	log       *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncNotifier(publisher Publisher, timeout time.Duration, log *logger.Logger) *AsyncNotifier {
	return &AsyncNotifier{
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

func (n *AsyncNotifier) Send(ctx context.Context, to string, kind model.NotificationKind, data model.NotificationData) {
	if to == "" {
		n.log.Warn("skipping notification without recipient", "kind", kind, "booking_id", data.BookingID)
		return
	}

	n.Dispatch(ctx, func(context.Context) (*model.Notification, error) {
		return &model.Notification{To: to, Kind: kind, Data: data}, nil
	})
}

// Dispatch runs compose and delivers its result on a background goroutine.
// Both share one NOTIFY_TIMEOUT budget detached from the request context.
func (n *AsyncNotifier) Dispatch(ctx context.Context, compose model.NotificationComposer) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		n.log.Warn("dropping notification after shutdown")
		return
	}
	n.wg.Add(1)
	n.mu.RUnlock()

	// The request context is cancelled as soon as the response is written.
	base := context.WithoutCancel(ctx)

	go func() {
		defer n.wg.Done()

		sendCtx, cancel := context.WithTimeout(base, n.timeout)
		defer cancel()

		note, err := compose(sendCtx)
		if err != nil {
			n.log.Error("failed to compose notification", "error", err)
			return
		}
		if note == nil {
			return
		}
		if note.To == "" {
			n.log.Warn("skipping notification without recipient", "kind", note.Kind, "booking_id", note.Data.BookingID)
			return
		}
		if note.ID == "" {
			note.ID = uuid.NewString()
		}

		if err := n.publisher.Publish(sendCtx, *note); err != nil {
			n.log.Error("notification delivery failed",
				"notification_id", note.ID,
				"kind", note.Kind,
				"booking_id", note.Data.BookingID,
				"error", err,
			)
			return
		}
		n.log.Info("notification sent",
			"notification_id", note.ID,
			"kind", note.Kind,
			"booking_id", note.Data.BookingID,
		)
	}()
}

// Close stops accepting notifications and waits for in-flight deliveries
// until ctx expires.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

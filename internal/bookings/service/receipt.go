package service

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "hallbook/internal/bookings/errors"
	"hallbook/internal/bookings/repository"
	"hallbook/pkg/auth"
	"hallbook/pkg/config"
	apperrors "hallbook/pkg/errors"
	"hallbook/pkg/model"
)

// ReceiptRenderer turns a confirmed booking snapshot into a document.
type ReceiptRenderer interface {
	Render(snapshot *model.ReceiptSnapshot) ([]byte, error)
}

type Receipt struct {
	Filename    string
	ContentType string
	Content     []byte
}

type ReceiptService interface {
	Render(ctx context.Context, principal *auth.Principal, bookingID string) (*Receipt, error)
}

type receiptService struct {
	bookings repository.BookingRepository
	halls    repository.HallRepository
	users    repository.UserRepository
	renderer ReceiptRenderer
	cfg      *config.Config
}

func NewReceiptService(
	bookings repository.BookingRepository,
	halls repository.HallRepository,
	users repository.UserRepository,
	renderer ReceiptRenderer,
	cfg *config.Config,
) ReceiptService {
	return &receiptService{
		bookings: bookings,
		halls:    halls,
		users:    users,
		renderer: renderer,
		cfg:      cfg,
	}
}

// Render is a pure read. principal may be nil only when receipts are public.
func (s *receiptService) Render(ctx context.Context, principal *auth.Principal, bookingID string) (*Receipt, error) {
	if principal == nil && !s.cfg.ReceiptPublicAccess {
		return nil, apperrors.Unauthorized("Authentication token is required")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		case errors.Is(err, bookingserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		default:
			return nil, apperrors.Internal("Failed to load booking", err)
		}
	}

	hall, err := s.halls.FindByID(ctx, booking.HallID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrHallNotFound) {
			return nil, apperrors.NotFoundWithID("Hall", booking.HallID)
		}
		return nil, apperrors.Internal("Failed to load hall", err)
	}

	if !s.cfg.ReceiptPublicAccess && principal.UserID != booking.ConsumerID && principal.UserID != hall.OwnerID {
		return nil, apperrors.Forbidden("You do not have access to this receipt")
	}

	if booking.Status != model.BookingStatusConfirmed {
		return nil, apperrors.InvalidState(fmt.Sprintf("Receipt is only available for confirmed bookings, this booking is %s", booking.Status)).
			WithDetails(map[string]any{"status": booking.Status})
	}

	consumer, err := s.users.FindByID(ctx, booking.ConsumerID)
	if err != nil && !errors.Is(err, bookingserrors.ErrUserNotFound) {
		return nil, apperrors.Internal("Failed to load consumer", err)
	}

	snapshot := &model.ReceiptSnapshot{
		BookingID:   booking.ID,
		Day:         booking.Date.In(s.cfg.Location),
		Status:      booking.Status,
		ConfirmedAt: booking.UpdatedAt.In(s.cfg.Location),
		Hall:        *hall,
	}
	if consumer != nil {
		snapshot.ConsumerName = consumer.Name
		snapshot.ConsumerEmail = consumer.Email
	}

	content, err := s.renderer.Render(snapshot)
	if err != nil {
		s.cfg.Log.Error("Receipt rendering failed", "booking_id", booking.ID, "hall_id", hall.ID, "error", err)
		return nil, apperrors.Unavailable("Receipt renderer", err)
	}

	s.cfg.Log.Info("Receipt rendered", "booking_id", booking.ID, "hall_id", hall.ID, "bytes", len(content))

	return &Receipt{
		Filename:    fmt.Sprintf("Receipt_%s.pdf", booking.ID),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

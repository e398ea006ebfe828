package service

import (
	"context"
	"time"

	"hallbook/internal/bookings/repository"
	"hallbook/pkg/model"
)

// AvailabilityGuard answers whether a hall-day is free. It is a fast-fail
// check only; the unique index on active bookings is what actually prevents
// two concurrent creates from both succeeding.
type AvailabilityGuard struct {
	bookings repository.BookingRepository
	loc      *time.Location
}

func NewAvailabilityGuard(bookings repository.BookingRepository, loc *time.Location) *AvailabilityGuard {
	return &AvailabilityGuard{bookings: bookings, loc: loc}
}

func (g *AvailabilityGuard) IsDateAvailable(ctx context.Context, hallID string, date time.Time) (bool, error) {
	start, end := model.DayBounds(date, g.loc)
	taken, err := g.bookings.HasActiveBooking(ctx, hallID, start, end)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

package model

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusShortlisted BookingStatus = "shortlisted"
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusRejected    BookingStatus = "rejected"
)

// DayLayout is the calendar-day key format used for Booking.Day.
const DayLayout = "2006-01-02"

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusShortlisted, BookingStatusConfirmed, BookingStatusRejected:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusConfirmed || s == BookingStatusRejected
}

// Active reports whether a booking in this state holds its hall-day.
func (s BookingStatus) Active() bool {
	return s == BookingStatusShortlisted || s == BookingStatusConfirmed
}

// TransitionError is returned for a move out of a terminal state.
type TransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking is already %s and cannot become %s", e.From, e.To)
}

// Transition validates a move from s to next. changed is false when next
// equals s and s is terminal, which callers treat as an idempotent repeat.
func (s BookingStatus) Transition(next BookingStatus) (changed bool, err error) {
	if !next.Terminal() {
		return false, &TransitionError{From: s, To: next}
	}
	switch s {
	case BookingStatusShortlisted:
		return true, nil
	case next:
		return false, nil
	default:
		return false, &TransitionError{From: s, To: next}
	}
}

// DecisionStatus maps an owner's payment attestation to the target state.
func DecisionStatus(paymentReceived bool) BookingStatus {
	if paymentReceived {
		return BookingStatusConfirmed
	}
	return BookingStatusRejected
}

type Booking struct {
	ID                  string        `json:"id"`
	ConsumerID          string        `json:"consumerId"`
	HallID              string        `json:"hallId"`
	Date                time.Time     `json:"date"`
	Day                 string        `json:"day"`
	Status              BookingStatus `json:"status"`
	PaymentAcknowledged bool          `json:"paymentAcknowledged"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// StartOfDay truncates t to midnight of its calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns the half-open interval [start, end) covering t's day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := StartOfDay(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// DayKey formats t's calendar day in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// ParseBookingDate accepts a bare YYYY-MM-DD day, interpreted in loc, or an
// RFC 3339 timestamp, and returns the start of that day in loc.
func ParseBookingDate(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(DayLayout, raw, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	return StartOfDay(t, loc), nil
}

package model

import "context"

type NotificationKind string

const (
	NotificationBookingCreated   NotificationKind = "booking_created"
	NotificationBookingRejected  NotificationKind = "booking_rejected"
	NotificationBookingConfirmed NotificationKind = "booking_confirmed"
)

// Notification is one templated email, as published to the notification
// topic and rendered by the notifier worker.
type Notification struct {
	ID   string           `json:"id"`
	To   string           `json:"to"`
	Kind NotificationKind `json:"kind"`
	Data NotificationData `json:"data"`
}

// NotificationComposer builds a notification on the notifier's background
// task, where recipient lookups may block. A nil notification with a nil
// error means there is nothing to send.
type NotificationComposer func(ctx context.Context) (*Notification, error)

type NotificationData struct {
	BookingID    string `json:"bookingId"`
	HallName     string `json:"hallName"`
	Day          string `json:"day"`
	ConsumerName string `json:"consumerName,omitempty"`
	OwnerName    string `json:"ownerName,omitempty"`
	ActionURL    string `json:"actionUrl,omitempty"`
}

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationBookingCreated, NotificationBookingRejected, NotificationBookingConfirmed:
		return true
	}
	return false
}

package model

import "time"

// ReceiptSnapshot is the read-only projection a receipt is rendered from.
type ReceiptSnapshot struct {
	BookingID     string
	Day           time.Time
	Status        BookingStatus
	ConfirmedAt   time.Time
	ConsumerName  string
	ConsumerEmail string
	Hall          Hall
}

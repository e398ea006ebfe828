package model

type CreateBookingRequest struct {
	HallID string `json:"hallId" validate:"required,mongodb"`
	Date   string `json:"date" validate:"required,booking_date"`
}

// DecideRequest uses a pointer so an omitted field is distinguishable from false.
type DecideRequest struct {
	PaymentReceived *bool `json:"paymentReceived" validate:"required"`
}

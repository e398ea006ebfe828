package model

// BookingView is a booking joined with display fields of its hall and consumer.
type BookingView struct {
	Booking
	Consumer *UserSummary `json:"consumer,omitempty"`
	Hall     *HallSummary `json:"hall,omitempty"`
}

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type HallSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Decision is the outcome of an owner's confirm or reject call.
type Decision struct {
	Booking *Booking `json:"booking"`
	Changed bool     `json:"changed"`
	Message string   `json:"message"`
}

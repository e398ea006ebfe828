package model

import "time"

type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
}

type Hall struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	OwnerID          string      `json:"ownerId"`
	Location         Location    `json:"location"`
	VegPlatePrice    float64     `json:"vegPlatePrice"`
	NonVegPlatePrice float64     `json:"nonvegPlatePrice"`
	RoomPrice        float64     `json:"roomPrice,omitempty"`
	Accommodation    int         `json:"accommodation"`
	Amenities        []string    `json:"amenities,omitempty"`
	Phone            string      `json:"phone,omitempty"`
	BookedDates      []time.Time `json:"bookedDates,omitempty"`
}

// HasBookedDay reports whether any booked date falls on day's calendar day in loc.
func (h *Hall) HasBookedDay(day time.Time, loc *time.Location) bool {
	start, end := DayBounds(day, loc)
	for _, d := range h.BookedDates {
		if !d.Before(start) && d.Before(end) {
			return true
		}
	}
	return false
}

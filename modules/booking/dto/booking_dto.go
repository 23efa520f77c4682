package dto

// CreateBookingRequest is the payload for creating a booking.
type CreateBookingRequest struct {
	Title        *string  `json:"title,omitempty"`
	ClientName   string   `json:"client_name" validate:"required"`
	ClientPhone  *string  `json:"client_phone,omitempty"`
	ClientEmail  *string  `json:"client_email,omitempty"`
	EventDate    *string  `json:"event_date,omitempty"` // "2006-01-02"
	EventTime    *string  `json:"event_time,omitempty"` // "15:04"
	EventEndTime *string  `json:"event_end_time,omitempty"`
	Venue        string   `json:"venue"`
	VenueAddress *string  `json:"venue_address,omitempty"`
	Fee          *float64 `json:"fee,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
	Status       *string  `json:"status,omitempty"`
}

// UpdateBookingRequest carries partial updates; nil fields are untouched.
type UpdateBookingRequest struct {
	Title        *string  `json:"title,omitempty"`
	ClientName   *string  `json:"client_name,omitempty"`
	ClientPhone  *string  `json:"client_phone,omitempty"`
	ClientEmail  *string  `json:"client_email,omitempty"`
	EventDate    *string  `json:"event_date,omitempty"`
	EventTime    *string  `json:"event_time,omitempty"`
	EventEndTime *string  `json:"event_end_time,omitempty"`
	Venue        *string  `json:"venue,omitempty"`
	VenueAddress *string  `json:"venue_address,omitempty"`
	Fee          *float64 `json:"fee,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
	Status       *string  `json:"status,omitempty"`
}

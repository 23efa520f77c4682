package entity

import (
	"time"

	"github.com/google/uuid"

	"musobuddy/core/entity"
)

// Booking lifecycle statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Booking is one engagement: enquiry through contract to the gig itself.
type Booking struct {
	entity.BaseEntity
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	Title        *string    `db:"title" json:"title,omitempty"`
	ClientName   string     `db:"client_name" json:"client_name"`
	ClientPhone  *string    `db:"client_phone" json:"client_phone,omitempty"`
	ClientEmail  *string    `db:"client_email" json:"client_email,omitempty"`
	EventDate    *time.Time `db:"event_date" json:"event_date,omitempty"`
	EventTime    *string    `db:"event_time" json:"event_time,omitempty"`         // "HH:MM"
	EventEndTime *string    `db:"event_end_time" json:"event_end_time,omitempty"` // "HH:MM"
	Venue        string     `db:"venue" json:"venue"`
	VenueAddress *string    `db:"venue_address" json:"venue_address,omitempty"`
	Fee          float64    `db:"fee" json:"fee"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	Status       string     `db:"status" json:"status"`
}

func (Booking) TableName() string {
	return "bookings"
}

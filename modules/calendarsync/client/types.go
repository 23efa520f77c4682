package client

import "time"

// Provider event status values.
const (
	EventStatusConfirmed = "confirmed"
	EventStatusCancelled = "cancelled"
)

// EventDateTime is the provider's start/end shape. DateTime for timed
// events, Date for all-day events; exactly one is set.
type EventDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// ExtendedProperties carries the private key/value bag used for the
// provenance stamp.
type ExtendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
}

// Event is the provider's wire representation. Transient only; never
// persisted locally in full.
type Event struct {
	ID                 string              `json:"id,omitempty"`
	Status             string              `json:"status,omitempty"`
	Summary            string              `json:"summary,omitempty"`
	Description        string              `json:"description,omitempty"`
	Location           string              `json:"location,omitempty"`
	Start              *EventDateTime      `json:"start,omitempty"`
	End                *EventDateTime      `json:"end,omitempty"`
	ExtendedProperties *ExtendedProperties `json:"extendedProperties,omitempty"`
}

// Cancelled reports whether the provider tombstoned this event.
func (e *Event) Cancelled() bool {
	return e.Status == EventStatusCancelled
}

// PrivateProperty reads a key from the private extended-properties bag.
func (e *Event) PrivateProperty(key string) string {
	if e.ExtendedProperties == nil || e.ExtendedProperties.Private == nil {
		return ""
	}
	return e.ExtendedProperties.Private[key]
}

// ListResult is one full or incremental listing: the event delta plus the
// cursor to resume from next time.
type ListResult struct {
	Events    []Event
	SyncToken string
}

// WatchResult is a registered push-notification channel.
type WatchResult struct {
	ChannelID  string
	ResourceID string
	ExpiresAt  time.Time
}

// Tokens is the result of an authorization-code exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"musobuddy/core/constants"
	bookingEntity "musobuddy/modules/booking/entity"
	"musobuddy/modules/calendarsync/client"
)

// UnknownClient is the sentinel used when no name pattern matches.
const UnknownClient = "Unknown Client"

// NamePattern is one pattern -> extractor pair for pulling a client name
// out of a foreign event title. Evaluated in order; best-effort only.
type NamePattern struct {
	Name    string
	Extract func(title string) (string, bool)
}

var dashPattern = regexp.MustCompile(`^(.+?)\s+-\s+.+$`)
var forPattern = regexp.MustCompile(`(?i)\bfor\s+([A-Za-z][A-Za-z'.-]*(?:\s+[A-Za-z][A-Za-z'.-]*)*)`)
var withPattern = regexp.MustCompile(`(?i)\bwith\s+([A-Za-z][A-Za-z'.-]*(?:\s+[A-Za-z][A-Za-z'.-]*)*)`)

// ClientNamePatterns is the ordered heuristic for client-name extraction.
var ClientNamePatterns = []NamePattern{
	{
		Name: "name - suffix",
		Extract: func(title string) (string, bool) {
			if m := dashPattern.FindStringSubmatch(title); m != nil {
				return strings.TrimSpace(m[1]), true
			}
			return "", false
		},
	},
	{
		Name: "for name",
		Extract: func(title string) (string, bool) {
			if m := forPattern.FindStringSubmatch(title); m != nil {
				return strings.TrimSpace(m[1]), true
			}
			return "", false
		},
	},
	{
		Name: "with name",
		Extract: func(title string) (string, bool) {
			if m := withPattern.FindStringSubmatch(title); m != nil {
				return strings.TrimSpace(m[1]), true
			}
			return "", false
		},
	},
}

// ExtractClientName runs the ordered pattern list over a foreign event
// title, falling back to the UnknownClient sentinel.
func ExtractClientName(title string) string {
	for _, p := range ClientNamePatterns {
		if name, ok := p.Extract(title); ok && name != "" {
			return name
		}
	}
	return UnknownClient
}

// Translator is the pure, side-effect-free mapping between local bookings
// and provider events.
type Translator struct {
	loc *time.Location
}

func NewTranslator(timezone string) *Translator {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Translator{loc: loc}
}

// ToExternal maps a booking onto the provider event shape. The private
// extended-properties stamp is what lets the import phase recognize and
// skip the engine's own events.
func (t *Translator) ToExternal(b *bookingEntity.Booking) *client.Event {
	summary := ""
	if b.Title != nil && *b.Title != "" {
		summary = *b.Title
	} else {
		summary = fmt.Sprintf("%s - %s", b.ClientName, b.Venue)
	}

	start := t.startTime(b)
	end := start
	if b.EventEndTime != nil && *b.EventEndTime != "" {
		end = t.combine(b.EventDate, *b.EventEndTime)
	}

	location := b.Venue
	if b.VenueAddress != nil && *b.VenueAddress != "" {
		if location != "" {
			location += ", " + *b.VenueAddress
		} else {
			location = *b.VenueAddress
		}
	}

	return &client.Event{
		Summary:     summary,
		Description: t.description(b),
		Location:    location,
		Start: &client.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: t.loc.String(),
		},
		End: &client.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: t.loc.String(),
		},
		ExtendedProperties: &client.ExtendedProperties{
			Private: map[string]string{
				constants.ExtPropIDKey:   b.ID.String(),
				constants.ExtPropTypeKey: constants.LocalTypeBooking,
			},
		},
	}
}

// description is a fixed-order concatenation of present-only fields,
// terminated by the provenance marker.
func (t *Translator) description(b *bookingEntity.Booking) string {
	var lines []string
	if b.ClientName != "" {
		lines = append(lines, "Client: "+b.ClientName)
	}
	if b.ClientPhone != nil && *b.ClientPhone != "" {
		lines = append(lines, "Phone: "+*b.ClientPhone)
	}
	if b.ClientEmail != nil && *b.ClientEmail != "" {
		lines = append(lines, "Email: "+*b.ClientEmail)
	}
	if b.Fee > 0 {
		lines = append(lines, fmt.Sprintf("Fee: %.2f", b.Fee))
	}
	if b.Notes != nil && *b.Notes != "" {
		lines = append(lines, "Notes: "+*b.Notes)
	}
	lines = append(lines, constants.SyncProvenanceMarker)
	return strings.Join(lines, "\n")
}

func (t *Translator) startTime(b *bookingEntity.Booking) time.Time {
	timeOfDay := "00:00"
	if b.EventTime != nil && *b.EventTime != "" {
		timeOfDay = *b.EventTime
	}
	return t.combine(b.EventDate, timeOfDay)
}

func (t *Translator) combine(date *time.Time, timeOfDay string) time.Time {
	var d time.Time
	if date != nil {
		d = *date
	}
	parsed, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		parsed = time.Time{}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), parsed.Hour(), parsed.Minute(), 0, 0, t.loc)
}

// FromExternal maps a foreign event onto a partial booking for import.
// Imported events are assumed to represent committed obligations, so the
// status is always confirmed. Client name is a best-effort heuristic.
func (t *Translator) FromExternal(ev *client.Event) *bookingEntity.Booking {
	b := &bookingEntity.Booking{
		ClientName: ExtractClientName(ev.Summary),
		Status:     bookingEntity.StatusConfirmed,
		Fee:        0,
		Venue:      ev.Location,
	}

	if ev.Summary != "" {
		title := ev.Summary
		b.Title = &title
	}
	if ev.Description != "" {
		notes := ev.Description
		b.Notes = &notes
	}

	if ev.Start != nil {
		if date, clock, ok := t.parseEventTime(ev.Start); ok {
			b.EventDate = &date
			if clock != "" {
				b.EventTime = &clock
			}
		}
	}
	if ev.End != nil {
		if _, clock, ok := t.parseEventTime(ev.End); ok && clock != "" {
			b.EventEndTime = &clock
		}
	}

	return b
}

func (t *Translator) parseEventTime(edt *client.EventDateTime) (time.Time, string, bool) {
	if edt.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, "", false
		}
		local := parsed.In(t.loc)
		date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.loc)
		return date, local.Format("15:04"), true
	}
	if edt.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", edt.Date, t.loc)
		if err != nil {
			return time.Time{}, "", false
		}
		return parsed, "", true
	}
	return time.Time{}, "", false
}

package service

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"musobuddy/core/constants"
	bookingEntity "musobuddy/modules/booking/entity"
	"musobuddy/modules/calendarsync/client"
)

func TestToExternalFullBooking(t *testing.T) {
	tr := NewTranslator("UTC")

	b := &bookingEntity.Booking{
		UserID:      uuid.New(),
		ClientName:  "Jane Doe",
		ClientPhone: strPtr("07700 900123"),
		Venue:       "The Grand Hotel",
		EventDate:   datePtr(2025, time.June, 1),
		EventTime:   strPtr("19:00"),
		Fee:         250,
		Status:      bookingEntity.StatusConfirmed,
	}
	b.ID = uuid.New()

	ev := tr.ToExternal(b)

	if ev.Summary != "Jane Doe - The Grand Hotel" {
		t.Errorf("summary = %q", ev.Summary)
	}
	if ev.Start.DateTime != "2025-06-01T19:00:00Z" {
		t.Errorf("start = %q", ev.Start.DateTime)
	}
	// No end time on the booking: zero-duration event at the start.
	if ev.End.DateTime != ev.Start.DateTime {
		t.Errorf("end = %q, want same as start", ev.End.DateTime)
	}
	if got := ev.PrivateProperty(constants.ExtPropIDKey); got != b.ID.String() {
		t.Errorf("id stamp = %q, want %q", got, b.ID)
	}
	if got := ev.PrivateProperty(constants.ExtPropTypeKey); got != constants.LocalTypeBooking {
		t.Errorf("type stamp = %q", got)
	}
	if !strings.HasSuffix(ev.Description, constants.SyncProvenanceMarker) {
		t.Errorf("description missing provenance marker: %q", ev.Description)
	}
}

func TestToExternalCustomTitleWins(t *testing.T) {
	tr := NewTranslator("UTC")

	b := &bookingEntity.Booking{
		Title:      strPtr("Acoustic set at sunset"),
		ClientName: "Jane Doe",
		Venue:      "Beach Bar",
		EventDate:  datePtr(2025, time.June, 1),
	}
	b.ID = uuid.New()

	if ev := tr.ToExternal(b); ev.Summary != "Acoustic set at sunset" {
		t.Errorf("summary = %q", ev.Summary)
	}
}

func TestToExternalMissingTimeDefaultsToMidnight(t *testing.T) {
	tr := NewTranslator("UTC")

	b := &bookingEntity.Booking{
		ClientName: "Jane Doe",
		Venue:      "Hall",
		EventDate:  datePtr(2025, time.June, 1),
	}
	b.ID = uuid.New()

	if ev := tr.ToExternal(b); ev.Start.DateTime != "2025-06-01T00:00:00Z" {
		t.Errorf("start = %q", ev.Start.DateTime)
	}
}

func TestToExternalDescriptionOrder(t *testing.T) {
	tr := NewTranslator("UTC")

	b := &bookingEntity.Booking{
		ClientName:  "Jane Doe",
		ClientPhone: strPtr("07700 900123"),
		ClientEmail: strPtr("jane@example.com"),
		Venue:       "Hall",
		EventDate:   datePtr(2025, time.June, 1),
		Fee:         300,
		Notes:       strPtr("Bring PA"),
	}
	b.ID = uuid.New()

	want := strings.Join([]string{
		"Client: Jane Doe",
		"Phone: 07700 900123",
		"Email: jane@example.com",
		"Fee: 300.00",
		"Notes: Bring PA",
		constants.SyncProvenanceMarker,
	}, "\n")

	if ev := tr.ToExternal(b); ev.Description != want {
		t.Errorf("description =\n%q\nwant\n%q", ev.Description, want)
	}
}

func TestExtractClientName(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Jane Doe - The Grand Hotel", "Jane Doe"},
		{"Wedding for Alice Smith", "Alice Smith"},
		{"Rehearsal with Bob", "Bob"},
		{"Band practice", UnknownClient},
		{"", UnknownClient},
		// Dash pattern wins over the later patterns.
		{"Jane Doe - dinner with Bob", "Jane Doe"},
	}
	for _, tc := range cases {
		if got := ExtractClientName(tc.title); got != tc.want {
			t.Errorf("ExtractClientName(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestFromExternalTimedEvent(t *testing.T) {
	tr := NewTranslator("UTC")

	ev := &client.Event{
		ID:          "ext-1",
		Status:      client.EventStatusConfirmed,
		Summary:     "Wedding for Alice Smith",
		Description: "Bring the good speakers",
		Location:    "Town Hall",
		Start:       &client.EventDateTime{DateTime: "2025-07-04T18:30:00Z"},
		End:         &client.EventDateTime{DateTime: "2025-07-04T21:00:00Z"},
	}

	b := tr.FromExternal(ev)

	if b.ClientName != "Alice Smith" {
		t.Errorf("client name = %q", b.ClientName)
	}
	if b.Title == nil || *b.Title != "Wedding for Alice Smith" {
		t.Errorf("title = %v, want the summary verbatim", b.Title)
	}
	if b.Status != bookingEntity.StatusConfirmed {
		t.Errorf("status = %q", b.Status)
	}
	if b.Fee != 0 {
		t.Errorf("fee = %v, want 0 for imports", b.Fee)
	}
	if b.EventDate == nil || !b.EventDate.Equal(time.Date(2025, time.July, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("event date = %v", b.EventDate)
	}
	if b.EventTime == nil || *b.EventTime != "18:30" {
		t.Errorf("event time = %v", b.EventTime)
	}
	if b.EventEndTime == nil || *b.EventEndTime != "21:00" {
		t.Errorf("event end time = %v", b.EventEndTime)
	}
	if b.Venue != "Town Hall" {
		t.Errorf("venue = %q", b.Venue)
	}
}

func TestFromExternalAllDayEvent(t *testing.T) {
	tr := NewTranslator("UTC")

	ev := &client.Event{
		ID:      "ext-2",
		Status:  client.EventStatusConfirmed,
		Summary: "Festival",
		Start:   &client.EventDateTime{Date: "2025-08-09"},
		End:     &client.EventDateTime{Date: "2025-08-10"},
	}

	b := tr.FromExternal(ev)

	if b.EventDate == nil || !b.EventDate.Equal(time.Date(2025, time.August, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("event date = %v", b.EventDate)
	}
	if b.EventTime != nil {
		t.Errorf("event time = %v, want nil for all-day events", b.EventTime)
	}
}

func TestRoundTripKeepsDedupStamp(t *testing.T) {
	tr := NewTranslator("Europe/London")

	b := &bookingEntity.Booking{
		ClientName: "Jane Doe",
		Venue:      "The Grand Hotel",
		EventDate:  datePtr(2025, time.June, 1),
		EventTime:  strPtr("19:00"),
	}
	b.ID = uuid.New()

	ev := tr.ToExternal(b)
	if ev.PrivateProperty(constants.ExtPropIDKey) != b.ID.String() {
		t.Fatal("stamp lost in translation")
	}
}

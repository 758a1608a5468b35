package google

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/calgateway/internal"
)

func TestRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)
	tests := map[string]internal.Event{
		"timed": {
			ID:          "abc",
			CalendarID:  "primary",
			Title:       "Design review",
			Description: "Bring notes",
			Location:    "Room 4",
			Start:       start,
			End:         start.Add(45 * time.Minute),
			TimeZone:    "America/Sao_Paulo",
			Attendees: []internal.Attendee{
				{Email: "ana@example.com", Name: "Ana", ResponseStatus: internal.Accepted},
				{Email: "bob@example.com", ResponseStatus: internal.NeedsAction},
			},
			WebLink: "https://calendar.example/abc",
			Status:  internal.StatusTentative,
		},
		"all day": {
			ID:         "day",
			CalendarID: "primary",
			Title:      "Offsite",
			Start:      time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			End:        time.Date(2024, 3, 21, 23, 59, 59, 0, time.UTC),
			AllDay:     true,
			Status:     internal.StatusConfirmed,
		},
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ToCanonical(FromCanonical(want), want.CalendarID, nil)
			if err != nil {
				t.Fatal(err)
			}
			assertEvent(t, got, want)
		})
	}
}

func TestToCanonicalAllDay(t *testing.T) {
	ev := &calendar.Event{
		Id:      "a",
		Summary: "Holiday",
		Start:   &calendar.EventDateTime{Date: "2024-03-20", TimeZone: "Europe/Lisbon"},
		End:     &calendar.EventDateTime{Date: "2024-03-21", TimeZone: "Europe/Lisbon"},
	}
	got, err := ToCanonical(ev, "primary", nil)
	if err != nil {
		t.Fatal(err)
	}
	loc := internal.LoadLocation("Europe/Lisbon")
	if !got.AllDay ||
		!got.Start.Equal(time.Date(2024, 3, 20, 0, 0, 0, 0, loc)) ||
		!got.End.Equal(time.Date(2024, 3, 20, 23, 59, 59, 0, loc)) {
		t.Errorf("unexpected all-day interval %s", got.Interval())
	}
}

func TestToCanonicalSkipsBrokenAttendee(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ev := &calendar.Event{
		Id:      "a",
		Summary: "Sync",
		Start:   &calendar.EventDateTime{DateTime: "2024-03-20T10:00:00-03:00"},
		End:     &calendar.EventDateTime{DateTime: "2024-03-20T11:00:00-03:00"},
		Attendees: []*calendar.EventAttendee{
			{Email: "not an email"},
			nil,
			{Email: "ok@example.com"},
		},
	}
	got, err := ToCanonical(ev, "primary", logger)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Attendees) != 1 || got.Attendees[0].Email != "ok@example.com" {
		t.Errorf("attendees = %+v", got.Attendees)
	}
	if !strings.Contains(buf.String(), "skipping attendee") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
	if !got.Start.Equal(time.Date(2024, 3, 20, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %s", got.Start)
	}
	if got.Description != "" || got.Location != "" {
		t.Error("missing optional fields must be empty")
	}
}

func TestToCanonicalWithoutTimes(t *testing.T) {
	_, err := ToCanonical(&calendar.Event{Id: "x"}, "primary", nil)
	if internal.KindOf(err) != internal.KindPartialMapping {
		t.Fatalf("got %v", err)
	}
}

func TestUnknownZoneIsSentAsUTC(t *testing.T) {
	start := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	ev := FromCanonical(internal.Event{Title: "x", Start: start, End: start.Add(time.Hour), TimeZone: "Mars/Olympus"})
	if ev.Start.TimeZone != "UTC" || ev.Start.DateTime != "2024-03-20T09:00:00Z" {
		t.Errorf("start = %+v", ev.Start)
	}
	got, err := ToCanonical(ev, "primary", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.TimeZone != "" || !got.Start.Equal(start) {
		t.Errorf("event = %+v", got)
	}
}

func TestPatchEventOnlyCarriesSetFields(t *testing.T) {
	empty := ""
	ev := patchEvent(internal.EventPatch{Description: &empty})
	if ev.Summary != "" || ev.Start != nil || ev.Attendees != nil {
		t.Errorf("unexpected fields in %+v", ev)
	}
	b, err := ev.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"description":""}` {
		t.Errorf("payload = %s", b)
	}
}

func assertEvent(t *testing.T, got, want internal.Event) {
	t.Helper()
	if !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
		t.Errorf("interval = %s, want %s", got.Interval(), want.Interval())
	}
	got.Start, got.End = want.Start, want.End
	if got.ID != want.ID || got.CalendarID != want.CalendarID || got.Title != want.Title ||
		got.Description != want.Description || got.Location != want.Location ||
		got.TimeZone != want.TimeZone || got.AllDay != want.AllDay ||
		got.WebLink != want.WebLink || got.Status != want.Status {
		t.Errorf("event = %+v, want %+v", got, want)
	}
	if len(got.Attendees) != len(want.Attendees) {
		t.Fatalf("attendees = %+v, want %+v", got.Attendees, want.Attendees)
	}
	for i := range want.Attendees {
		if got.Attendees[i] != want.Attendees[i] {
			t.Errorf("attendee %d = %+v, want %+v", i, got.Attendees[i], want.Attendees[i])
		}
	}
}

package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{in: "google", want: ProviderGoogle},
		{in: " Microsoft ", want: ProviderMicrosoft},
		{in: "caldav", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if tt.wantErr {
			if KindOf(err) != KindValidation {
				t.Errorf("ParseProvider(%q) err = %v, want validation", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseProvider(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestIntervalValidate(t *testing.T) {
	start := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	if err := NewInterval(start, start.Add(time.Minute)).Validate(); err != nil {
		t.Errorf("valid interval: %v", err)
	}
	if err := NewInterval(start, start).Validate(); KindOf(err) != KindValidation {
		t.Errorf("empty interval: got %v", err)
	}
	if err := NewInterval(start, start.Add(-time.Hour)).Validate(); KindOf(err) != KindValidation {
		t.Errorf("inverted interval: got %v", err)
	}
	if err := (Interval{End: start}).Validate(); KindOf(err) != KindValidation {
		t.Errorf("missing start: got %v", err)
	}
}

func TestIntervalOverlaps(t *testing.T) {
	base := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	a := NewInterval(base, base.Add(time.Hour))
	if a.Overlaps(NewInterval(base.Add(time.Hour), base.Add(2*time.Hour))) {
		t.Error("adjacent intervals must not overlap")
	}
	if !a.Overlaps(NewInterval(base.Add(30*time.Minute), base.Add(2*time.Hour))) {
		t.Error("expected overlap")
	}
	berlin := time.FixedZone("CET", 3600)
	same := Interval{Start: base.In(berlin), End: base.Add(time.Hour).In(berlin)}
	if !a.Contains(same) || !same.Contains(a) {
		t.Error("zones must not affect comparison")
	}
}

func TestEventValidate(t *testing.T) {
	start := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	valid := Event{
		Title:     "Standup",
		Start:     start,
		End:       start.Add(15 * time.Minute),
		Attendees: []Attendee{{Email: "ana@example.com"}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event: %v", err)
	}

	noTitle := valid
	noTitle.Title = "  "
	inverted := valid
	inverted.End = start.Add(-time.Minute)
	badEmail := valid
	badEmail.Attendees = []Attendee{{Email: "Ana <ana@example.com>"}}

	for name, e := range map[string]Event{"no title": noTitle, "inverted": inverted, "bad email": badEmail} {
		if err := e.Validate(); KindOf(err) != KindValidation {
			t.Errorf("%s: got %v, want validation", name, err)
		}
	}
}

func TestEventPatchValidate(t *testing.T) {
	empty := ""
	if !(EventPatch{}).IsEmpty() {
		t.Error("zero patch must be empty")
	}
	if err := (EventPatch{Title: &empty}).Validate(); KindOf(err) != KindValidation {
		t.Errorf("empty title: got %v", err)
	}
	start := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	inv := NewInterval(start, start)
	if err := (EventPatch{Interval: &inv}).Validate(); KindOf(err) != KindValidation {
		t.Errorf("empty interval: got %v", err)
	}

	tz := "Europe/Berlin"
	zoneOnly := EventPatch{TimeZone: &tz}
	if zoneOnly.IsEmpty() {
		t.Error("zone patch must not be empty")
	}
	if err := zoneOnly.Validate(); KindOf(err) != KindValidation {
		t.Errorf("zone without interval: got %v", err)
	}
	hour := NewInterval(start, start.Add(time.Hour))
	if err := (EventPatch{Interval: &hour, TimeZone: &tz}).Validate(); err != nil {
		t.Errorf("zone with interval: got %v", err)
	}
}

func TestCredentialState(t *testing.T) {
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	margin := 5 * time.Minute
	tests := []struct {
		name string
		cred *Credential
		want CredentialState
	}{
		{"nil", nil, CredentialExpired},
		{"no access token", &Credential{RefreshToken: "r"}, CredentialExpired},
		{"no expiry", &Credential{AccessToken: "a"}, CredentialValid},
		{"fresh", &Credential{AccessToken: "a", Expiry: now.Add(time.Hour)}, CredentialValid},
		{"inside margin", &Credential{AccessToken: "a", Expiry: now.Add(time.Minute)}, CredentialExpiring},
		{"at expiry", &Credential{AccessToken: "a", Expiry: now}, CredentialExpired},
		{"past", &Credential{AccessToken: "a", Expiry: now.Add(-time.Hour)}, CredentialExpired},
	}
	for _, tt := range tests {
		if got := tt.cred.State(now, margin); got != tt.want {
			t.Errorf("%s: State = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := map[int]Kind{
		http.StatusTooManyRequests:     KindTransient,
		http.StatusRequestTimeout:      KindTransient,
		http.StatusInternalServerError: KindTransient,
		http.StatusServiceUnavailable:  KindTransient,
		http.StatusUnauthorized:        KindAuthentication,
		http.StatusBadRequest:          KindPermanent,
		http.StatusNotFound:            KindPermanent,
		http.StatusConflict:            KindPermanent,
	}
	for status, want := range tests {
		if got := ClassifyStatus(status); got != want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestErrorChain(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", ProviderError("delete event", http.StatusGone, 0, "gone", cause))
	if !IsNotFound(err) {
		t.Error("410 must be not found")
	}
	if !errors.Is(err, cause) {
		t.Error("cause must be reachable")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("unclassified errors are unknown")
	}
	if got := ProviderError("list", 429, 0, "slow down", nil).Error(); got != "transient: list: status 429: slow down" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTransportError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := TransportError(ctx, "list", context.DeadlineExceeded); !IsTransient(err) {
		t.Errorf("client timeout must be transient, got %v", err)
	}
	cancel()
	if err := TransportError(ctx, "list", errors.New("conn reset")); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller must get context error, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	tests := map[string]time.Duration{
		"":     0,
		"7":    7 * time.Second,
		"-3":   0,
		"soon": 0,
		now.Add(30 * time.Second).Format(http.TimeFormat): 30 * time.Second,
		now.Add(-time.Minute).Format(http.TimeFormat):     0,
	}
	for in, want := range tests {
		if got := ParseRetryAfter(in, now); got != want {
			t.Errorf("ParseRetryAfter(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestDate(t *testing.T) {
	loc := time.FixedZone("X", -3*3600)
	d, err := ParseDate("2024-03-20", loc)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.EndOfDay(); !got.Equal(time.Date(2024, 3, 20, 23, 59, 59, 0, loc)) {
		t.Errorf("EndOfDay = %s", got)
	}
	if next := d.AddDate(0, 0, 1); next.String() != "2024-03-21" {
		t.Errorf("AddDate = %s", next)
	}
	if _, err := ParseDate("not-a-date", time.UTC); err == nil {
		t.Error("expected parse error")
	}
}

func TestNormalizeTimeZone(t *testing.T) {
	tests := map[string]string{
		"":                        "",
		"UTC":                     "",
		"Pacific Standard Time":   "America/Los_Angeles",
		"w. europe standard time": "Europe/Berlin",
		"Europe/Lisbon":           "Europe/Lisbon",
		"Mars/Olympus":            "",
	}
	for in, want := range tests {
		if got := NormalizeTimeZone(in); got != want {
			t.Errorf("NormalizeTimeZone(%q) = %q, want %q", in, got, want)
		}
	}
	if got := ZoneName("Mars/Olympus"); got != "UTC" {
		t.Errorf("ZoneName = %q", got)
	}
}

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	err := app.RunContext(context.Background(), append([]string{"calgateway"}, args...))
	return out.String(), err
}

func TestTokenImportAndAudit(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CALGATEWAY_DATABASE_DSN", filepath.Join(dir, "calgateway.db"))
	t.Setenv("CALGATEWAY_STORAGE_ENCRYPTION_KEY", strings.Repeat("0f", 32))

	tokenFile := filepath.Join(dir, "token.json")
	err := os.WriteFile(tokenFile, []byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expiry":"2030-01-01T00:00:00Z"}`), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "token", "import", "--user", "u1", "--provider", "microsoft", tokenFile)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, `Saved microsoft credential of "u1"`) {
		t.Errorf("unexpected output: %q", out)
	}

	// Rejected before reaching any provider, still audited.
	if _, err := runApp(t, "events", "cancel", "--user", "u1", "--provider", "yahoo", "evt-1"); err == nil {
		t.Error("expected error for unsupported provider")
	}

	out, err = runApp(t, "audit", "--user", "u1")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "WHEN") {
		t.Fatalf("unexpected audit output:\n%s", out)
	}
	if !strings.Contains(lines[1], "delete") || !strings.Contains(lines[1], "unsupported provider") {
		t.Errorf("unexpected audit line: %q", lines[1])
	}
}

func TestCalendars(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/calendars" || r.Header.Get("Authorization") != "Bearer at" {
			http.Error(w, `{"error":{"code":"Unexpected","message":"unexpected request"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"AAMk","name":"Calendar","canEdit":true,"isDefaultCalendar":true}]}`))
	}))
	t.Cleanup(graph.Close)

	dir := t.TempDir()
	t.Setenv("CALGATEWAY_DATABASE_DSN", filepath.Join(dir, "calgateway.db"))
	t.Setenv("CALGATEWAY_MICROSOFT_ENDPOINT", graph.URL)

	tokenFile := filepath.Join(dir, "token.json")
	err := os.WriteFile(tokenFile, []byte(`{"access_token":"at","token_type":"Bearer","expiry":"2030-01-01T00:00:00Z"}`), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runApp(t, "token", "import", "--user", "u1", "--provider", "microsoft", tokenFile); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := runApp(t, "calendars", "--user", "u1", "--provider", "microsoft")
	if err != nil {
		t.Fatalf("calendars: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if fields := strings.Fields(lines[1]); len(fields) != 4 || fields[0] != "AAMk" || fields[2] != "true" {
		t.Errorf("unexpected calendar line: %q", lines[1])
	}
}

func TestTokenImportRequiresFile(t *testing.T) {
	t.Setenv("CALGATEWAY_DATABASE_DSN", filepath.Join(t.TempDir(), "calgateway.db"))

	if _, err := runApp(t, "token", "import", "--user", "u1"); err == nil {
		t.Error("expected error without token file")
	}
	if _, err := runApp(t, "token", "import", "--user", "u1", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing token file")
	}
}

func TestParseTime(t *testing.T) {
	tests := map[string]struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		"rfc3339": {in: "2024-03-20T10:00:00+01:00", want: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)},
		"date":    {in: " 2024-03-20 ", want: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)},
		"garbage": {in: "tomorrow", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := parseTime("from", tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil || !got.Equal(tc.want) {
				t.Errorf("parseTime(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
			}
		})
	}
}

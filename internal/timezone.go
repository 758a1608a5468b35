package internal

import (
	"strings"
	"time"
)

// windowsZones maps the Windows zone names Graph reports to IANA names.
// UTC is the empty zone.
var windowsZones = map[string]string{
	"utc":                            "",
	"coordinated universal time":     "",
	"dateline standard time":         "Etc/GMT+12",
	"hawaiian standard time":         "Pacific/Honolulu",
	"alaskan standard time":          "America/Anchorage",
	"pacific standard time":          "America/Los_Angeles",
	"us mountain standard time":      "America/Phoenix",
	"mountain standard time":         "America/Denver",
	"central standard time":          "America/Chicago",
	"central america standard time":  "America/Guatemala",
	"central standard time (mexico)": "America/Mexico_City",
	"canada central standard time":   "America/Regina",
	"sa pacific standard time":       "America/Bogota",
	"eastern standard time":          "America/New_York",
	"us eastern standard time":       "America/Indiana/Indianapolis",
	"atlantic standard time":         "America/Halifax",
	"newfoundland standard time":     "America/St_Johns",
	"e. south america standard time": "America/Sao_Paulo",
	"argentina standard time":        "America/Argentina/Buenos_Aires",
	"pacific sa standard time":       "America/Santiago",
	"greenwich standard time":        "Atlantic/Reykjavik",
	"gmt standard time":              "Europe/London",
	"w. europe standard time":        "Europe/Berlin",
	"romance standard time":          "Europe/Paris",
	"central europe standard time":   "Europe/Budapest",
	"central european standard time": "Europe/Warsaw",
	"e. europe standard time":        "Europe/Chisinau",
	"gtb standard time":              "Europe/Bucharest",
	"israel standard time":           "Asia/Jerusalem",
	"south africa standard time":     "Africa/Johannesburg",
	"egypt standard time":            "Africa/Cairo",
	"russian standard time":          "Europe/Moscow",
	"turkey standard time":           "Europe/Istanbul",
	"arabian standard time":          "Asia/Dubai",
	"pakistan standard time":         "Asia/Karachi",
	"india standard time":            "Asia/Kolkata",
	"se asia standard time":          "Asia/Bangkok",
	"china standard time":            "Asia/Shanghai",
	"singapore standard time":        "Asia/Singapore",
	"taipei standard time":           "Asia/Taipei",
	"tokyo standard time":            "Asia/Tokyo",
	"korea standard time":            "Asia/Seoul",
	"w. australia standard time":     "Australia/Perth",
	"cen. australia standard time":   "Australia/Adelaide",
	"aus eastern standard time":      "Australia/Sydney",
	"e. australia standard time":     "Australia/Brisbane",
	"new zealand standard time":      "Pacific/Auckland",
}

// NormalizeTimeZone returns the IANA name of a provider zone. Windows names
// are translated, UTC and names that cannot be loaded become the empty zone.
func NormalizeTimeZone(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if iana, ok := windowsZones[strings.ToLower(name)]; ok {
		name = iana
	}
	if name == "" || strings.EqualFold(name, "UTC") {
		return ""
	}
	if _, err := time.LoadLocation(name); err != nil {
		return ""
	}
	return name
}

// ZoneName is the name sent to providers for tz, UTC when tz cannot be loaded.
func ZoneName(tz string) string {
	if tz = NormalizeTimeZone(tz); tz == "" {
		return "UTC"
	}
	return tz
}

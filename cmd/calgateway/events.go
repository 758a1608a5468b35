package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/guilherme-santos/calgateway"
)

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List and change events of an account",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List events inside a window",
				Flags: append(userFlags(),
					&cli.StringFlag{Name: "from", Usage: "window start, RFC 3339 or date (default now)"},
					&cli.StringFlag{Name: "to", Usage: "window end, RFC 3339 or date (default from + 7 days)"},
					&cli.StringFlag{Name: "calendar", Usage: "calendar id (default calendar when empty)"},
					&cli.BoolFlag{Name: "json", Usage: "print events as JSON"},
				),
				Action: listEvents,
			},
			{
				Name:  "create",
				Usage: "Create an event",
				Flags: append(userFlags(),
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "start", Usage: "RFC 3339", Required: true},
					&cli.StringFlag{Name: "end", Usage: "RFC 3339", Required: true},
					&cli.StringFlag{Name: "time-zone", Usage: "IANA zone the event is shown in", Value: "UTC"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "location"},
					&cli.StringSliceFlag{Name: "attendee", Usage: "attendee email, may be repeated"},
					&cli.StringFlag{Name: "calendar"},
				),
				Action: createEvent,
			},
			{
				Name:      "update",
				Usage:     "Change the given fields of an event",
				ArgsUsage: "<event id>",
				Flags: append(userFlags(),
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "location"},
					&cli.StringFlag{Name: "calendar"},
				),
				Action: updateEvent,
			},
			{
				Name:      "reschedule",
				Usage:     "Move an event to a new interval",
				ArgsUsage: "<event id>",
				Flags: append(userFlags(),
					&cli.StringFlag{Name: "start", Usage: "RFC 3339", Required: true},
					&cli.StringFlag{Name: "end", Usage: "RFC 3339", Required: true},
				),
				Action: rescheduleEvent,
			},
			{
				Name:      "cancel",
				Usage:     "Delete an event",
				ArgsUsage: "<event id>",
				Flags: append(userFlags(),
					&cli.StringFlag{Name: "calendar"},
				),
				Action: cancelEvent,
			},
		},
	}
}

func listEvents(c *cli.Context) error {
	window, err := windowFlags(c, 7*24*time.Hour)
	if err != nil {
		return err
	}
	return withEngine(c, func(e *calgateway.Engine) error {
		events, err := e.ListEvents(c.Context, c.String("user"), c.String("provider"), window, c.String("calendar"))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}
		printEvents(c.App.Writer, events)
		return nil
	})
}

func createEvent(c *cli.Context) error {
	iv, err := intervalFlags(c)
	if err != nil {
		return err
	}
	ev := calgateway.Event{
		CalendarID:  c.String("calendar"),
		Title:       c.String("title"),
		Description: c.String("description"),
		Location:    c.String("location"),
		Start:       iv.Start,
		End:         iv.End,
		TimeZone:    c.String("time-zone"),
	}
	for _, email := range c.StringSlice("attendee") {
		ev.Attendees = append(ev.Attendees, calgateway.Attendee{Email: email})
	}

	return withEngine(c, func(e *calgateway.Engine) error {
		created, err := e.CreateEvent(c.Context, c.String("user"), c.String("provider"), ev)
		if err != nil {
			return err
		}
		printEvents(c.App.Writer, []calgateway.Event{*created})
		return nil
	})
}

func updateEvent(c *cli.Context) error {
	patch := calgateway.EventPatch{CalendarID: c.String("calendar")}
	for name, field := range map[string]**string{
		"title":       &patch.Title,
		"description": &patch.Description,
		"location":    &patch.Location,
	} {
		if c.IsSet(name) {
			v := c.String(name)
			*field = &v
		}
	}

	return withEngine(c, func(e *calgateway.Engine) error {
		updated, err := e.UpdateEvent(c.Context, c.String("user"), c.String("provider"), c.Args().First(), patch)
		if err != nil {
			return err
		}
		printEvents(c.App.Writer, []calgateway.Event{*updated})
		return nil
	})
}

func rescheduleEvent(c *cli.Context) error {
	iv, err := intervalFlags(c)
	if err != nil {
		return err
	}
	return withEngine(c, func(e *calgateway.Engine) error {
		updated, err := e.RescheduleEvent(c.Context, c.String("user"), c.String("provider"), c.Args().First(), iv)
		if err != nil {
			return err
		}
		printEvents(c.App.Writer, []calgateway.Event{*updated})
		return nil
	})
}

func cancelEvent(c *cli.Context) error {
	return withEngine(c, func(e *calgateway.Engine) error {
		if _, err := e.CancelEvent(c.Context, c.String("user"), c.String("provider"), c.Args().First(), c.String("calendar")); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Event %s cancelled\n", c.Args().First())
		return nil
	})
}

func printEvents(w io.Writer, events []calgateway.Event) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tSTATUS\tTITLE")
	for _, ev := range events {
		loc := ev.Zone()
		start, end := ev.Start.In(loc).Format(time.RFC3339), ev.End.In(loc).Format(time.RFC3339)
		if ev.AllDay {
			start, end = ev.Start.In(loc).Format(time.DateOnly), ev.End.In(loc).Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ev.ID, start, end, ev.Status, ev.Title)
	}
	tw.Flush()
}

// parseTime accepts RFC 3339 timestamps and plain dates, read as UTC midnight.
func parseTime(name, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("--%s: %q is neither RFC 3339 nor a date", name, v)
}

func intervalFlags(c *cli.Context) (calgateway.Interval, error) {
	start, err := parseTime("start", c.String("start"))
	if err != nil {
		return calgateway.Interval{}, err
	}
	end, err := parseTime("end", c.String("end"))
	if err != nil {
		return calgateway.Interval{}, err
	}
	return calgateway.NewInterval(start, end), nil
}

// windowFlags reads --from and --to, defaulting to now and now + span.
func windowFlags(c *cli.Context, span time.Duration) (calgateway.Interval, error) {
	from := time.Now().UTC()
	if c.IsSet("from") {
		t, err := parseTime("from", c.String("from"))
		if err != nil {
			return calgateway.Interval{}, err
		}
		from = t
	}
	to := from.Add(span)
	if c.IsSet("to") {
		t, err := parseTime("to", c.String("to"))
		if err != nil {
			return calgateway.Interval{}, err
		}
		to = t
	}
	return calgateway.NewInterval(from, to), nil
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/guilherme-santos/calgateway"
)

func slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Find free slots inside working hours",
		Flags: append(userFlags(),
			&cli.StringFlag{Name: "from", Usage: "window start, RFC 3339 or date (default now)"},
			&cli.StringFlag{Name: "to", Usage: "window end, RFC 3339 or date (default from + 7 days)"},
			&cli.DurationFlag{Name: "duration", Usage: "minimum slot length", Value: 30 * time.Minute},
			&cli.StringSliceFlag{Name: "attendee", Usage: "also require attendee to be free, may be repeated"},
		),
		Action: func(c *cli.Context) error {
			window, err := windowFlags(c, 7*24*time.Hour)
			if err != nil {
				return err
			}
			return withEngine(c, func(e *calgateway.Engine) error {
				// A zero policy uses the configured working hours.
				slots, err := e.FindFreeSlots(c.Context, c.String("user"), c.String("provider"), window,
					c.Duration("duration"), calgateway.WorkingHoursPolicy{}, c.StringSlice("attendee")...)
				if err != nil {
					return err
				}

				loc := e.Policy.Location
				if loc == nil {
					loc = time.UTC
				}
				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "START\tEND\tLENGTH")
				for _, s := range slots {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Start.In(loc).Format(time.RFC3339), s.End.In(loc).Format(time.RFC3339), s.Duration())
				}
				return tw.Flush()
			})
		},
	}
}

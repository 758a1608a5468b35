package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/guilherme-santos/calgateway"
)

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars of an account",
		Flags: userFlags(),
		Action: func(c *cli.Context) error {
			return withEngine(c, func(e *calgateway.Engine) error {
				calendars, err := e.ListCalendars(c.Context, c.String("user"), c.String("provider"))
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tZONE\tPRIMARY\tWRITABLE")
				for _, cal := range calendars {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\n", cal.ID, cal.Name, cal.TimeZone, cal.Primary, cal.CanEdit)
				}
				return tw.Flush()
			})
		},
	}
}

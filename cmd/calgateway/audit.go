package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/guilherme-santos/calgateway"
)

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Show the latest recorded calls of a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: func(c *cli.Context) error {
			return withEngine(c, func(e *calgateway.Engine) error {
				recs, err := e.AuditRecords(c.Context, c.String("user"), c.Int("limit"))
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tPROVIDER\tACTION\tEVENT\tRESULT")
				for _, r := range recs {
					result := "ok"
					if !r.Success {
						result = r.Error
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.CreatedAt.Format(time.RFC3339), r.Provider, r.Action, r.EventID, result)
				}
				return tw.Flush()
			})
		},
	}
}

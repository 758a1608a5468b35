package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/guilherme-santos/calgateway"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage stored credentials",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Store an OAuth2 token JSON file as the credential of an account",
				ArgsUsage: "<token.json>",
				Flags:     userFlags(),
				Action:    importToken,
			},
		},
	}
}

func importToken(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected one token file, got %d arguments", c.NArg())
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return fmt.Errorf("reading token: %w", err)
	}

	return withEngine(c, func(e *calgateway.Engine) error {
		if err := e.ImportToken(c.Context, c.String("user"), c.String("provider"), &tok); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Saved %s credential of %q\n", c.String("provider"), c.String("user"))
		return nil
	})
}

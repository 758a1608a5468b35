package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/urfave/cli/v2"

	"github.com/guilherme-santos/calgateway"
	"github.com/guilherme-santos/calgateway/internal"
	"github.com/guilherme-santos/calgateway/internal/config"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "calgateway:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "calgateway",
		Usage: "Query availability and manage events on Google and Microsoft calendars.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (yaml, toml or json)", EnvVars: []string{"CALGATEWAY_CONFIG"}},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at debug level"},
		},
		Commands: []*cli.Command{
			tokenCommand(),
			calendarsCommand(),
			eventsCommand(),
			slotsCommand(),
			auditCommand(),
		},
	}
}

// userFlags are shared by every command acting on an account.
func userFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "user id owning the credential", Required: true},
		&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "google or microsoft", Value: "google"},
	}
}

// withEngine opens the engine for the duration of fn.
func withEngine(c *cli.Context, fn func(*calgateway.Engine) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if c.Bool("verbose") {
		level = "debug"
	}
	logger := internal.NewLogger(c.App.ErrWriter, level)
	slog.SetDefault(logger)

	e, err := calgateway.Open(c.Context, calgateway.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			logger.Error("closing engine", "error", err)
		}
	}()
	return fn(e)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"example.com/healthsync/internal/app"
)

const jobName = "backfill"

var cli struct {
	app.Flags `embed:""`
	Year      int `help:"Calendar year to backfill." default:"2024"`
}

func main() {
	kong.Parse(&cli,
		kong.Name(jobName),
		kong.Description("Load every day and activity of one year into the health database."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunBackfill(ctx, cli.Flags, jobName, cli.Year)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"example.com/healthsync/internal/app"
	"example.com/healthsync/internal/ingest"
)

const jobName = "ingest-yesterday"

var cli struct {
	app.Flags `embed:""`
}

func main() {
	kong.Parse(&cli,
		kong.Name(jobName),
		kong.Description("Ingest yesterday's Garmin statistics and most recent activities, then publish status codes."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunDaily(ctx, cli.Flags, jobName, ingest.Yesterday)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

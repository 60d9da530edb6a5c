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

const jobName = "ingest-today"

var cli struct {
	app.Flags `embed:""`
}

func main() {
	kong.Parse(&cli,
		kong.Name(jobName),
		kong.Description("Ingest today's Garmin statistics and latest activity, then publish status codes."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunDaily(ctx, cli.Flags, jobName, ingest.Today)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

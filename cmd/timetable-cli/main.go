package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/noah-isme/timetable-api/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cli.Execute(ctx)
}

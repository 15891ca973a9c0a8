package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/urfave/cli/v2"

	"buswatch/internal/buswatch"
	"buswatch/internal/server"
	"buswatch/pkg/api"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the live map dashboard",
		Flags: []cli.Flag{
			feedURLFlag(),
			lineFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Address to bind",
				Value: "127.0.0.1",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP server port",
				Value: 8080,
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	logger := httplog.NewLogger("buswatch", httplog.Options{
		JSON:            false,
		LogLevel:        slog.LevelDebug,
		Concise:         true,
		QuietDownPeriod: 10 * time.Second,
	})

	feed := api.NewSPPOFeedAPI(c.String("feed-url"))
	srv := server.New(server.Config{
		Tracker:  buswatch.NewTracker(feed, logger.Logger),
		Geocoder: buswatch.NewGeocoder(logger.Logger),
		Logger:   logger,
		Line:     c.String("line"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", c.String("host"), c.Int("port"))
	return srv.Run(ctx, addr)
}

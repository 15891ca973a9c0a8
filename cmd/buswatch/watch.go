package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"buswatch/internal/buswatch"
	"buswatch/pkg/api"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow a line in the terminal with a 25s refresh loop",
		Flags: []cli.Flag{
			feedURLFlag(),
			lineFlag(),
			&cli.StringFlag{
				Name:  "location",
				Usage: "Address to search around (geocoded)",
			},
			&cli.Float64Flag{
				Name:  "lat",
				Usage: "Latitude of the location",
			},
			&cli.Float64Flag{
				Name:  "long",
				Usage: "Longitude of the location",
			},
			&cli.Float64Flag{
				Name:    "radius",
				Aliases: []string{"r"},
				Usage:   "Search radius in kilometers",
				Value:   buswatch.DefaultRadiusKm,
			},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := api.NewSPPOFeedAPI(c.String("feed-url"))
	tracker := buswatch.NewTracker(feed, logger)

	ref, err := referenceFromFlags(c, logger)
	if err != nil {
		return err
	}

	line := c.String("line")
	q := buswatch.Query{Line: line, Ref: ref, RadiusKm: c.Float64("radius")}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refresher := buswatch.NewRefresher(buswatch.RefreshInterval)

	// Countdown line between cycles; the refresh loop itself never sleeps.
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fmt.Printf("\rNext update in %2ds (Ctrl-C to quit) ", int(refresher.Remaining().Seconds()))
			}
		}
	}()

	refresher.Run(ctx, func(cctx context.Context) {
		fctx, cancel := context.WithTimeout(cctx, 15*time.Second)
		defer cancel()

		buses, err := tracker.Snapshot(fctx, q)
		if err != nil {
			fmt.Printf("\rBus feed unavailable this cycle: %v\n", err)
			return
		}

		fmt.Printf("\r%s — linha %s: %d buses", time.Now().In(buswatch.FeedTimezone).Format("15:04:05"), line, len(buses))
		if latest := buswatch.MostRecentSignal(buses); !latest.IsZero() {
			fmt.Printf(", last signal %s (BRT)", latest.Format("15:04:05"))
		}
		fmt.Println()

		for _, b := range buses {
			if b.DistanceKm != nil {
				fmt.Printf("  %-8s %s  %8.5f,%9.5f  %5.2f km  %s km/h\n",
					b.Ordem, b.Time.Format("15:04:05"), b.Lat, b.Lon, *b.DistanceKm, b.Velocidade)
			} else {
				fmt.Printf("  %-8s %s  %8.5f,%9.5f  %s km/h\n",
					b.Ordem, b.Time.Format("15:04:05"), b.Lat, b.Lon, b.Velocidade)
			}
		}
	})

	fmt.Println()
	return nil
}

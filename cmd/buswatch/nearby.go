package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"buswatch/internal/buswatch"
	"buswatch/pkg/api"
)

func nearbyCommand() *cli.Command {
	return &cli.Command{
		Name:  "nearby",
		Usage: "List the current buses of a line, optionally near a location",
		Flags: []cli.Flag{
			feedURLFlag(),
			lineFlag(),
			&cli.StringFlag{
				Name:     "location",
				Usage:    "Address to search around (geocoded)",
				Required: false,
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
			&cli.StringFlag{
				Name:  "gpx",
				Usage: "Write the result set to a GPX file",
			},
		},
		Action: nearbyAction,
	}
}

func nearbyAction(c *cli.Context) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := api.NewSPPOFeedAPI(c.String("feed-url"))
	tracker := buswatch.NewTracker(feed, logger)

	ref, err := referenceFromFlags(c, logger)
	if err != nil {
		return err
	}

	line := c.String("line")
	buses, err := tracker.Snapshot(c.Context, buswatch.Query{
		Line:     line,
		Ref:      ref,
		RadiusKm: c.Float64("radius"),
	})
	if err != nil {
		return fmt.Errorf("error fetching buses: %w", err)
	}

	for i, b := range buses {
		fmt.Printf("%d. %s (linha %s)\n", i+1, b.Ordem, b.Linha)
		fmt.Printf("   Last seen: %s (BRT)\n", b.Time.Format("15:04:05"))
		fmt.Printf("   Speed: %s km/h\n", b.Velocidade)
		if b.DistanceKm != nil {
			fmt.Printf("   Distance: %.2f km\n", *b.DistanceKm)
		}
		fmt.Printf("   Coordinates: %.5f, %.5f\n\n", b.Lat, b.Lon)
	}

	if ref != nil {
		fmt.Printf("Found %d buses of line %s within %g km radius\n", len(buses), line, c.Float64("radius"))
	} else {
		fmt.Printf("Found %d buses of line %s\n", len(buses), line)
	}

	if out := c.String("gpx"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("error creating GPX file: %w", err)
		}
		defer f.Close()
		if err := buswatch.WriteGPX(f, buses, line); err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s\n", out)
	}

	return nil
}

// referenceFromFlags resolves the reference point from --location or
// --lat/--long. No flags means no proximity filtering.
func referenceFromFlags(c *cli.Context, logger *slog.Logger) (*buswatch.LatLon, error) {
	if loc := c.String("location"); loc != "" {
		geocoder := buswatch.NewGeocoder(logger)
		point, err := geocoder.Geocode(loc)
		if err != nil {
			return nil, fmt.Errorf("error geocoding %q: %w", loc, err)
		}
		fmt.Printf("Location found: %.5f, %.5f\n", point.Lat, point.Lon)
		return &point, nil
	}

	latSet, lonSet := c.IsSet("lat"), c.IsSet("long")
	if latSet != lonSet {
		return nil, errors.New("latitude and longitude must be given together")
	}
	if latSet {
		return &buswatch.LatLon{Lat: c.Float64("lat"), Lon: c.Float64("long")}, nil
	}
	return nil, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"buswatch/pkg/api"
)

func main() {
	app := &cli.App{
		Name:  "buswatch",
		Usage: "Track Rio de Janeiro SPPO buses in real time",
		Commands: []*cli.Command{
			serveCommand(),
			watchCommand(),
			nearbyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

func feedURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "feed-url",
		Usage:   "Bus GPS feed endpoint",
		Value:   api.DefaultFeedURL,
		EnvVars: []string{"BUSWATCH_FEED_URL"},
	}
}

func lineFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "line",
		Aliases: []string{"l"},
		Usage:   "Bus line to filter (substring match)",
		Value:   "112",
	}
}

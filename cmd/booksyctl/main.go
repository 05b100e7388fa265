// Package main provides booksyctl, the maintenance command line for a Booksy
// data directory.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/booksy/booksy-server/internal/config"
)

func main() {
	runner := NewRunner(RunnerOpts{})

	app := &cli.Command{
		Name:    "booksyctl",
		Usage:   "Maintain a Booksy library without the server running",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "metadata-path",
				Aliases: []string{"d"},
				Usage:   "Base path for server data",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Store backend: badger or sqlite",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to .env file",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
		},
		Before:   runner.Open,
		After:    runner.Close,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		runner.logger.Fatal("booksyctl failed", "err", err)
	}
}

// cmd/harvester/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"reddit-harvester/internal/app"
)

func main() {
	cliApp := &cli.App{
		Name:  "harvester",
		Usage: "reddit content harvester",
		Commands: []*cli.Command{
			{
				Name:  "api",
				Usage: "run the HTTP API server",
				Action: func(c *cli.Context) error {
					application, err := app.Initialize()
					if err != nil {
						return err
					}
					handleShutdown(application)

					log.Println("Starting Reddit Harvester API...")
					return application.RunAPI()
				},
			},
			{
				Name:  "worker",
				Usage: "run the scrape worker and scheduled sweep",
				Action: func(c *cli.Context) error {
					application, err := app.Initialize()
					if err != nil {
						return err
					}
					handleShutdown(application)

					log.Println("Starting Reddit Harvester worker...")
					log.Printf("Scheduler dashboard available at http://localhost:%s", application.Config.DashboardPort)
					return application.RunWorker()
				},
			},
			{
				Name:      "scrape",
				Usage:     "scrape one subreddit immediately, bypassing the queue",
				ArgsUsage: "<subreddit>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "time-filter",
						Usage: "top listing window (hour, day, week, month, year, all)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum posts to fetch",
					},
				},
				Action: func(c *cli.Context) error {
					subreddit := c.Args().First()
					if subreddit == "" {
						return cli.Exit("subreddit argument is required", 1)
					}

					application, err := app.Initialize()
					if err != nil {
						return err
					}
					defer application.Shutdown()

					return application.RunScrape(context.Background(), subreddit, c.String("time-filter"), c.Int("limit"))
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("Failed to run: %v", err)
	}
}

func handleShutdown(application *app.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v. Shutting down...", sig)
		application.Shutdown()
		os.Exit(0)
	}()
}

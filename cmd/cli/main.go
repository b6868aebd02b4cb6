package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glizzus/radio-relay/internal/config"
	"github.com/glizzus/radio-relay/internal/datalayer"
	"github.com/glizzus/radio-relay/internal/journal"
	"github.com/glizzus/radio-relay/internal/opus"
	"github.com/glizzus/radio-relay/internal/schedule"
	"github.com/urfave/cli/v2"
)

func printEvent(e journal.Event) {
	line := fmt.Sprintf("%s  %-20s guild=%s state=%s", e.At.Format("2006-01-02 15:04:05"), e.Kind, e.GuildID, e.State)
	if e.Attempt > 0 {
		line += fmt.Sprintf(" attempt=%d", e.Attempt)
	}
	if e.Delay > 0 {
		line += fmt.Sprintf(" delay=%s", e.Delay)
	}
	if e.Reason != "" {
		line += fmt.Sprintf(" reason=%q", e.Reason)
	}
	fmt.Println(line)
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	app := &cli.App{
		Name:        "radio-relay-cli",
		Description: "A development CLI tool for inspecting Radio Relay without Discord",
		Commands: []*cli.Command{
			{
				Name:  "events",
				Usage: "List the most recent radio events for a guild from Postgres",
				Action: func(c *cli.Context) error {
					guildID := c.String("guild-id")
					if guildID == "" {
						return cli.Exit("Please provide a guild ID using --guild-id", 1)
					}

					pool, err := datalayer.NewPostgresPoolFromEnv(c.Context)
					if err != nil {
						return cli.Exit("Failed to connect to postgres: "+err.Error(), 1)
					}
					defer pool.Close()
					if err := datalayer.MigratePostgres(pool); err != nil {
						return cli.Exit("Failed to migrate postgres: "+err.Error(), 1)
					}

					events, err := journal.NewPostgres(pool).List(c.Context, guildID, c.Int("limit"))
					if err != nil {
						return cli.Exit("Failed to retrieve events: "+err.Error(), 1)
					}

					if len(events) == 0 {
						log.Println("No events found for the specified guild.")
						return nil
					}
					for _, e := range events {
						printEvent(e)
					}
					return nil
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "guild-id",
						Usage:    "ID of the guild to list events for",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of events to show",
						Value: 20,
					},
				},
			},
			{
				Name:  "tail",
				Usage: "Show the newest radio events across all guilds from the Redis stream",
				Action: func(c *cli.Context) error {
					journalConfig, err := config.NewJournalConfigFromEnv()
					if err != nil {
						return cli.Exit("Failed to load journal config: "+err.Error(), 1)
					}
					client, err := datalayer.NewRedisClientFromEnv(c.Context)
					if err != nil {
						return cli.Exit("Failed to connect to redis: "+err.Error(), 1)
					}
					defer client.Close()

					events, err := journal.NewRedis(client, journalConfig.RedisStream, journalConfig.RedisMaxLen).Recent(c.Context, c.Int64("count"))
					if err != nil {
						return cli.Exit("Failed to read events: "+err.Error(), 1)
					}
					for _, e := range events {
						printEvent(e)
					}
					return nil
				},
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "count",
						Usage: "Number of events to show",
						Value: 20,
					},
				},
			},
			{
				Name:  "schedule",
				Usage: "Print the next times an auto-start cron expression fires",
				Action: func(c *cli.Context) error {
					times, err := schedule.Upcoming(c.String("cron"), time.Now(), c.Int("n"))
					if err != nil {
						return cli.Exit("Invalid cron expression: "+err.Error(), 1)
					}
					for _, t := range times {
						fmt.Println(t.Format("2006-01-02 15:04:05 MST"))
					}
					return nil
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "cron",
						Usage:    "Cron expression, as accepted by RADIO_AUTOSTART_CRON",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "n",
						Usage: "Number of run times to print",
						Value: 5,
					},
				},
			},
			{
				Name:  "ffmpeg-args",
				Usage: "Print the ffmpeg command used to relay a stream",
				Action: func(c *cli.Context) error {
					radioConfig, err := config.NewRadioConfigFromEnv()
					if err != nil {
						return cli.Exit("Failed to load radio config: "+err.Error(), 1)
					}
					url := c.String("url")
					if url == "" {
						url = radioConfig.StreamURL
					}
					args := opus.FFmpegArgs(url, radioConfig.Bitrate)
					fmt.Println(radioConfig.FFmpegPath + " " + strings.Join(args, " "))
					return nil
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Stream URL. Defaults to RADIO_URL",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/audio"
	"github.com/glizzus/radio-relay/internal/autoconnect"
	"github.com/glizzus/radio-relay/internal/config"
	"github.com/glizzus/radio-relay/internal/datalayer"
	"github.com/glizzus/radio-relay/internal/gateway"
	"github.com/glizzus/radio-relay/internal/generator"
	"github.com/glizzus/radio-relay/internal/handler"
	"github.com/glizzus/radio-relay/internal/journal"
	"github.com/glizzus/radio-relay/internal/schedule"
	"github.com/glizzus/radio-relay/internal/session"
	"github.com/glizzus/radio-relay/internal/supervisor"
	"github.com/glizzus/radio-relay/internal/voice"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// newJournal builds the recorders named by JOURNAL_BACKEND. The returned
// func releases their connections.
func newJournal(ctx context.Context, cfg *config.JournalConfig, logger *slog.Logger) (journal.Recorder, func(), error) {
	var (
		recorders journal.Multi
		closers   []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Uses(config.JournalBackendLog) {
		recorders = append(recorders, journal.NewLog(logger))
	}

	if cfg.Uses(config.JournalBackendPostgres) {
		pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := datalayer.MigratePostgres(pool); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		recorders = append(recorders, journal.NewPostgres(pool))
	}

	if cfg.Uses(config.JournalBackendRedis) {
		client, err := datalayer.NewRedisClientFromEnv(ctx)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		})
		recorders = append(recorders, journal.NewRedis(client, cfg.RedisStream, cfg.RedisMaxLen))
	}

	return recorders, closeAll, nil
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	loggingConfig, err := config.NewLoggingConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load logging config: %w", err)
	}
	logger, err := loggingConfig.Logger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}
	radioConfig, err := config.NewRadioConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load radio config: %w", err)
	}
	journalConfig, err := config.NewJournalConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load journal config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, closeJournal, err := newJournal(ctx, journalConfig, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	dg, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready: handler.ReadyLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	sessions := session.NewStore()
	player := audio.NewManager(
		audio.FFmpegOpener(radioConfig.FFmpegPath, radioConfig.Bitrate),
		radioConfig.SendTimeout,
		logger,
	)
	defer player.Close()

	radio := supervisor.New(
		supervisor.ConfigFromRadio(radioConfig),
		sessions,
		gateway.NewDiscord(dg, radioConfig.JoinTimeout, logger),
		player,
		supervisor.WithJournal(recorder),
		supervisor.WithLogger(logger),
	)

	selfID := func() string {
		if dg.State.User == nil {
			return ""
		}
		return dg.State.User.ID
	}
	states := voice.FromState(dg.State)
	controller := autoconnect.NewController(radio, sessions, states, selfID, 2*radioConfig.JoinTimeout, logger)

	opts := []handler.Option{
		handler.WithThrottle(handler.NewThrottle(rate.Every(2*time.Second), 5)),
		handler.WithChannels(dg.State.Channel),
		handler.WithCommandTimeout(2 * radioConfig.JoinTimeout),
		handler.WithLogger(logger),
	}
	handler.AddHandlers(dg, handler.Handlers{
		InteractionCreate: handler.NewInteractionHandler(radio, states, &generator.UUIDV4Generator{}, opts...),
		MessageCreate:     handler.NewMessageHandler(radio, states, discordConfig.CommandPrefix, opts...),
		VoiceStateUpdate: func(_ *discordgo.Session, u *discordgo.VoiceStateUpdate) {
			controller.OnVoiceStateUpdate(ctx, u)
		},
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := dg.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	if err := handler.EstablishCommands(dg, discordConfig.CommandGuildID()); err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		supervisor.NewHealthMonitor(radio, radioConfig.VoiceCheckInterval, logger).Run(gctx)
		return nil
	})
	if radioConfig.AutostartCron != "" {
		g.Go(func() error {
			return schedule.Every(gctx, radioConfig.AutostartCron, controller.Tick)
		})
	}

	<-gctx.Done()
	logger.Info("Shutting down", "guilds", len(sessions.All()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), radioConfig.ShutdownTimeout)
	defer cancel()
	if err := radio.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown did not finish cleanly", "error", err)
	}

	stop()
	return g.Wait()
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}

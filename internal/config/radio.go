package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glizzus/radio-relay/internal/schedule"
	"github.com/sethvargo/go-envconfig"
)

const DefaultRadioURL = "http://radio.4duk.ru/4duk128.mp3"

// RadioConfig controls what is relayed and how the supervisor recovers.
type RadioConfig struct {
	StreamURL            string        `env:"RADIO_URL, default=http://radio.4duk.ru/4duk128.mp3"`
	MaxReconnectAttempts int           `env:"RADIO_MAX_RECONNECT_ATTEMPTS, default=5"`
	ReconnectBackoffBase time.Duration `env:"RADIO_RECONNECT_BACKOFF_BASE, default=2s"`
	VoiceCheckInterval   time.Duration `env:"RADIO_VOICE_CHECK_INTERVAL, default=20s"`
	StaleSessionPause    time.Duration `env:"RADIO_STALE_SESSION_PAUSE, default=1s"`
	JoinTimeout          time.Duration `env:"RADIO_JOIN_TIMEOUT, default=15s"`
	ShutdownTimeout      time.Duration `env:"RADIO_SHUTDOWN_TIMEOUT, default=10s"`

	FFmpegPath  string        `env:"RADIO_FFMPEG_PATH, default=ffmpeg"`
	Bitrate     int           `env:"RADIO_OPUS_BITRATE, default=96000"`
	SendTimeout time.Duration `env:"RADIO_SEND_TIMEOUT, default=1s"`

	// AutostartCron is an optional cron expression. On every tick the bot
	// starts the radio in guilds with auto-connect enabled.
	AutostartCron string `env:"RADIO_AUTOSTART_CRON"`
}

func NewRadioConfigFromEnv() (*RadioConfig, error) {
	return newRadioConfig(context.Background(), envconfig.OsLookuper())
}

func newRadioConfig(ctx context.Context, lookuper envconfig.Lookuper) (*RadioConfig, error) {
	var cfg RadioConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *RadioConfig) Validate() error {
	var errs []error
	if c.StreamURL == "" {
		errs = append(errs, errors.New("RADIO_URL must not be empty"))
	}
	if c.MaxReconnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("RADIO_MAX_RECONNECT_ATTEMPTS must be >= 0, got %d", c.MaxReconnectAttempts))
	}
	// The base is raised to the attempt count, so under 1s the delays shrink.
	if c.ReconnectBackoffBase < time.Second {
		errs = append(errs, fmt.Errorf("RADIO_RECONNECT_BACKOFF_BASE must be >= 1s, got %s", c.ReconnectBackoffBase))
	}
	if c.VoiceCheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("RADIO_VOICE_CHECK_INTERVAL must be > 0, got %s", c.VoiceCheckInterval))
	}
	if c.StaleSessionPause < 0 {
		errs = append(errs, fmt.Errorf("RADIO_STALE_SESSION_PAUSE must be >= 0, got %s", c.StaleSessionPause))
	}
	if c.JoinTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RADIO_JOIN_TIMEOUT must be > 0, got %s", c.JoinTimeout))
	}
	if c.Bitrate < 6000 || c.Bitrate > 510000 {
		errs = append(errs, fmt.Errorf("RADIO_OPUS_BITRATE must be within [6000, 510000], got %d", c.Bitrate))
	}
	if c.AutostartCron != "" {
		if err := schedule.ValidateCron(c.AutostartCron); err != nil {
			errs = append(errs, fmt.Errorf("RADIO_AUTOSTART_CRON: %w", err))
		}
	}
	return errors.Join(errs...)
}

package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type DiscordConfig struct {
	Token          string `env:"DISCORD_TOKEN, required"`
	GuildID        string `env:"DISCORD_GUILD_ID"`
	RunBotGlobally bool   `env:"DISCORD_RUN_BOT_GLOBALLY"`
	CommandPrefix  string `env:"DISCORD_COMMAND_PREFIX, default=!"`
}

func NewDiscordConfigFromEnv() (*DiscordConfig, error) {
	return newDiscordConfig(context.Background(), envconfig.OsLookuper())
}

func newDiscordConfig(ctx context.Context, lookuper envconfig.Lookuper) (*DiscordConfig, error) {
	var cfg DiscordConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if cfg.GuildID == "" && !cfg.RunBotGlobally {
		return nil, fmt.Errorf("refusing to register commands without a guild ID unless DISCORD_RUN_BOT_GLOBALLY is set to true")
	}
	if cfg.CommandPrefix == "" {
		return nil, fmt.Errorf("DISCORD_COMMAND_PREFIX must not be empty")
	}

	return &cfg, nil
}

// CommandGuildID is the guild slash commands are registered in.
// An empty string registers them globally.
func (c *DiscordConfig) CommandGuildID() string {
	if c.RunBotGlobally {
		return ""
	}
	return c.GuildID
}

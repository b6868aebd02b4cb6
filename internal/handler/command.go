package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var voiceChannelTypes = []discordgo.ChannelType{
	discordgo.ChannelTypeGuildVoice,
	discordgo.ChannelTypeGuildStageVoice,
}

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Check that the bot is alive",
	},
	{
		Name:        "join",
		Description: "Join your voice channel without playing anything",
	},
	{
		Name:        "radio",
		Description: "Play the radio in your voice channel",
	},
	{
		Name:        "stop",
		Description: "Stop the radio and leave the voice channel",
	},
	{
		Name:        "status",
		Description: "Show what the radio is doing in this server",
	},
	{
		Name:        "setchannel",
		Description: "Pick the channel the radio joins automatically",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:         "channel",
				Type:         discordgo.ApplicationCommandOptionChannel,
				Description:  "The voice channel. Defaults to the one you are in.",
				ChannelTypes: voiceChannelTypes,
				Required:     false,
			},
		},
	},
	{
		Name:        "autoconnect",
		Description: "Turn auto-connect on or off",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "enabled",
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Description: "Whether the radio starts when people join the channel. Omit to see the setting.",
				Required:    false,
			},
		},
	},
}

func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}

func commandMatcher(name string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionApplicationCommand {
			return false
		}
		return i.ApplicationCommandData().Name == name
	}
}

func componentMatcher(prefix string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionMessageComponent {
			return false
		}
		return CustomIDPrefix(i.MessageComponentData().CustomID) == prefix
	}
}

func findOption(
	options []*discordgo.ApplicationCommandInteractionDataOption,
	name string,
) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, opt := range options {
		if opt.Name == name {
			return opt, true
		}
	}
	return nil, false
}

func isVoiceChannel(t discordgo.ChannelType) bool {
	for _, vt := range voiceChannelTypes {
		if t == vt {
			return true
		}
	}
	return false
}

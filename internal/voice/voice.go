// Package voice answers questions about who is in which voice channel,
// using the voice states discordgo keeps in its state cache.
package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/util"
)

// States returns the current voice states of a guild.
type States func(guildID string) ([]*discordgo.VoiceState, error)

// FromState reads voice states from a discordgo state cache. The returned
// slice is a copy.
func FromState(state *discordgo.State) States {
	return func(guildID string) ([]*discordgo.VoiceState, error) {
		guild, err := state.Guild(guildID)
		if err != nil {
			return nil, fmt.Errorf("guild %s is not in the state cache: %w", guildID, err)
		}
		state.RLock()
		defer state.RUnlock()
		return append([]*discordgo.VoiceState(nil), guild.VoiceStates...), nil
	}
}

// ChannelOf returns the voice channel userID is connected to.
func ChannelOf(states []*discordgo.VoiceState, userID string) (string, bool) {
	vs, ok := util.FindFirst(states, func(vs *discordgo.VoiceState) bool {
		return vs.UserID == userID && vs.ChannelID != ""
	})
	if !ok {
		return "", false
	}
	return vs.ChannelID, true
}

// IsBot reports whether a voice state belongs to a bot account, or to the
// user selfID.
func IsBot(vs *discordgo.VoiceState, selfID string) bool {
	if vs.UserID == selfID {
		return true
	}
	return vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot
}

// HumansIn counts the non-bot users connected to channelID.
func HumansIn(states []*discordgo.VoiceState, channelID, selfID string) int {
	return util.Count(states, func(vs *discordgo.VoiceState) bool {
		return vs.ChannelID == channelID && !IsBot(vs, selfID)
	})
}

// MaxAttendedChannel returns the channel with the most humans in it.
// This returns "" if no channel has any.
func MaxAttendedChannel(states []*discordgo.VoiceState, selfID string) string {
	counts := make(map[string]int)
	for _, vs := range states {
		if vs.ChannelID == "" || IsBot(vs, selfID) {
			continue
		}
		counts[vs.ChannelID]++
	}

	maxAttendedChannel := ""
	maxAttended := 0
	// Sorted so ties go to the lowest channel ID.
	for _, channelID := range util.SortedKeys(counts) {
		if counts[channelID] > maxAttended {
			maxAttendedChannel = channelID
			maxAttended = counts[channelID]
		}
	}
	return maxAttendedChannel
}

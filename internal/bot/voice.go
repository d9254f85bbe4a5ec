package bot

import (
	"github.com/bwmarrin/discordgo"
)

// userVoiceChannel returns the voice channel userID sits in, or "".
func userVoiceChannel(state *discordgo.State, guildID, userID string) string {
	guild, err := state.Guild(guildID)
	if err != nil {
		return ""
	}
	for _, voiceState := range guild.VoiceStates {
		if voiceState.UserID == userID {
			return voiceState.ChannelID
		}
	}
	return ""
}

// countHumans counts the non-bot members in channelID, excluding selfID.
func countHumans(states []*discordgo.VoiceState, channelID, selfID string, isBot func(userID string) bool) int {
	n := 0
	for _, vs := range states {
		if vs.ChannelID != channelID || vs.UserID == selfID {
			continue
		}
		if vs.Member != nil && vs.Member.User != nil {
			if vs.Member.User.Bot {
				continue
			}
		} else if isBot(vs.UserID) {
			continue
		}
		n++
	}
	return n
}

func isBotUser(state *discordgo.State, guildID, userID string) bool {
	member, err := state.Member(guildID, userID)
	if err != nil || member.User == nil {
		return false
	}
	return member.User.Bot
}

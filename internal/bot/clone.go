package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) cloneDiscordChannel(guildID, channelID string) (*discordgo.Channel, error) {
	src, err := b.session.State.Channel(channelID)
	if err != nil {
		src, err = b.session.Channel(channelID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch channel: %w", err)
		}
	}

	ch, err := b.session.GuildChannelCreateComplex(guildID, cloneData(src))
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	return ch, nil
}

// cloneData copies the settings a new channel can be created with.
func cloneData(src *discordgo.Channel) discordgo.GuildChannelCreateData {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(src.PermissionOverwrites))
	for _, po := range src.PermissionOverwrites {
		cp := *po
		overwrites = append(overwrites, &cp)
	}

	return discordgo.GuildChannelCreateData{
		Name:                 src.Name,
		Type:                 src.Type,
		Topic:                src.Topic,
		Bitrate:              src.Bitrate,
		UserLimit:            src.UserLimit,
		RateLimitPerUser:     src.RateLimitPerUser,
		Position:             src.Position,
		PermissionOverwrites: overwrites,
		ParentID:             src.ParentID,
		NSFW:                 src.NSFW,
	}
}

package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/kakusiA/discord-bot-v1/internal/speech"
)

const defaultReadyTimeout = 10 * time.Second

// Transport joins guild voice channels through a discordgo session.
type Transport struct {
	session      *discordgo.Session
	readyTimeout time.Duration
}

func NewTransport(session *discordgo.Session) *Transport {
	return &Transport{
		session:      session,
		readyTimeout: defaultReadyTimeout,
	}
}

func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (speech.VoiceConn, error) {
	// Only sending audio, so join deafened.
	vc, err := t.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}

	if err := waitReady(ctx, vc, t.readyTimeout); err != nil {
		if derr := vc.Disconnect(); derr != nil {
			log.Warn().Err(derr).Str("guild_id", guildID).Msg("Failed to disconnect unready voice connection")
		}
		return nil, err
	}

	log.Info().
		Str("guild_id", guildID).
		Str("channel_id", channelID).
		Msg("Joined voice channel")

	return newConn(vc), nil
}

func waitReady(ctx context.Context, vc *discordgo.VoiceConnection, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("voice connection not ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

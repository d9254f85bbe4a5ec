package speech

import (
	"context"
	"errors"
)

var (
	ErrNoVoiceChannel    = errors.New("speech: no voice channel to connect to")
	ErrSynthesis         = errors.New("speech: synthesis failed")
	ErrPlayerUnavailable = errors.New("speech: audio player unavailable")
	ErrClosed            = errors.New("speech: coordinator closed")
)

// Request is one utterance to speak in a guild's voice session.
type Request struct {
	GuildID       string
	TextChannelID string // where errors for this utterance are reported
	Text          string
	ConnectHint   string // voice channel the requester is in, "" if none
}

// AudioSource points a voice connection at a synthesized artifact and the
// decoder executable that can read it.
type AudioSource struct {
	Path   string
	Player string
}

// VoiceConn is a live voice session for one guild.
type VoiceConn interface {
	ChannelID() string
	// Play starts playback and returns immediately. done is called once
	// playback has finished, been stopped, or failed.
	Play(src AudioSource, done func(error))
	Stop()
	Pause()
	Resume()
	IsPlaying() bool
	IsPaused() bool
	Move(ctx context.Context, channelID string) error
	Disconnect() error
}

// Transport opens voice sessions.
type Transport interface {
	Connect(ctx context.Context, guildID, channelID string) (VoiceConn, error)
}

// Synthesizer converts text into an audio file written at path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, path string) error
}

// LanguageSource returns the current language tag for a guild, falling back
// to a default when none is stored.
type LanguageSource interface {
	Language(ctx context.Context, guildID string) string
}

// PlayerResolver returns the decoder executable for this host or
// ErrPlayerUnavailable.
type PlayerResolver func() (string, error)

// Notifier posts a user-visible message to a text channel.
type Notifier interface {
	Notify(channelID, message string)
}

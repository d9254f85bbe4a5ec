package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/kakusiA/discord-bot-v1/internal/chat"
	"github.com/kakusiA/discord-bot-v1/internal/config"
	"github.com/kakusiA/discord-bot-v1/internal/llm"
	"github.com/kakusiA/discord-bot-v1/internal/llm/gemini"
	"github.com/kakusiA/discord-bot-v1/internal/llm/openai"
	"github.com/kakusiA/discord-bot-v1/internal/proxy"
	"github.com/kakusiA/discord-bot-v1/internal/speech"
	"github.com/kakusiA/discord-bot-v1/internal/store"
	"github.com/kakusiA/discord-bot-v1/internal/summariser"
	"github.com/kakusiA/discord-bot-v1/internal/tts"
	"github.com/kakusiA/discord-bot-v1/internal/voice"
	"github.com/kakusiA/discord-bot-v1/internal/youtube"
)

const (
	commandTimeout = 2 * time.Minute
	maxMessageLen  = 2000
)

// Speaker is the per-guild speech queue.
type Speaker interface {
	Enqueue(ctx context.Context, req speech.Request) error
	Join(ctx context.Context, guildID, channelID string) error
	Teardown(guildID string) (bool, error)
	Stop(guildID string) bool
	Pause(guildID string) bool
	Resume(guildID string) bool
	Connected(guildID string) (string, bool)
	Close() error
}

type Chatter interface {
	Ask(ctx context.Context, userID, question string) (string, error)
	Clear(userID string) error
	Recent(userID string, n int) ([]store.Message, error)
}

type VideoSearcher interface {
	Top(ctx context.Context, query string) (youtube.Video, error)
}

type Summariser interface {
	Summarise(ctx context.Context, entries []store.MeetingEntry, mode string) (string, error)
}

type MeetingStore interface {
	AppendMeetingEntry(guildID string, entry store.MeetingEntry) error
	LoadMeeting(guildID string) ([]store.MeetingEntry, error)
	ResetMeeting(guildID string) error
	SaveNotes(sessionID string, notes string) (string, error)
}

type Bot struct {
	config  *config.Config
	session *discordgo.Session

	speech     Speaker
	chat       Chatter
	videos     VideoSearcher // nil without a YouTube key
	summariser Summariser
	meetings   MeetingStore
	languages  store.Languages

	cloneChannel func(guildID, channelID string) (*discordgo.Channel, error)

	ctx     context.Context
	cancel  context.CancelFunc
	closers []io.Closer
}

func NewBot(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		config:  cfg,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
	}
	b.cloneChannel = b.cloneDiscordChannel

	if err := b.wire(); err != nil {
		b.closeAll()
		cancel()
		return nil, err
	}

	// Register handlers
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onVoiceStateUpdate)

	return b, nil
}

func (b *Bot) wire() error {
	cfg := b.config

	var httpClient *http.Client
	if cfg.SocksProxy != "" {
		client, err := proxy.NewSocksClient(cfg.SocksProxy, 120*time.Second)
		if err != nil {
			return fmt.Errorf("failed to create proxy client: %w", err)
		}
		httpClient = client
		log.Info().Str("proxy", cfg.SocksProxy).Msg("Routing API traffic through SOCKS proxy")
	}

	// Create stores
	fileStore, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	b.meetings = fileStore

	switch cfg.LanguageStore {
	case "badger":
		langs, err := store.OpenBadgerLanguages(store.BadgerOptions{
			Dir:      filepath.Join(cfg.DataDir, "badger"),
			Fallback: cfg.DefaultLanguage,
		})
		if err != nil {
			return fmt.Errorf("failed to open language store: %w", err)
		}
		b.languages = langs
	default:
		langs, err := store.OpenLanguageFile(cfg.DataDir, cfg.DefaultLanguage)
		if err != nil {
			return fmt.Errorf("failed to open language store: %w", err)
		}
		b.languages = langs
	}
	b.closers = append(b.closers, b.languages)

	convs, err := store.OpenConversations(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open conversations: %w", err)
	}

	// Create LLM backend
	params := llm.Params{MaxTokens: cfg.LLMMaxTokens, Temperature: cfg.LLMTemperature}
	var completer llm.Completer
	switch cfg.LLMBackend {
	case "gemini":
		params.Model = cfg.GenAIModel
		client, err := gemini.New(b.ctx, cfg.GenAIAPIKey, httpClient, params)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, client)
		completer = client
	default:
		params.Model = cfg.OpenAIModel
		completer = openai.New(cfg.OpenAIAPIKey, httpClient, params)
	}

	b.chat = chat.NewService(completer, convs)
	b.summariser = summariser.New(completer)

	if cfg.YouTubeAPIKey != "" {
		searcher, err := youtube.NewSearcher(b.ctx, cfg.YouTubeAPIKey, httpClient)
		if err != nil {
			return err
		}
		b.videos = searcher
	} else {
		log.Warn().Msg("YOUTUBE_API_KEY not set, video search disabled")
	}

	// Create speech coordinator
	coordinator, err := speech.NewCoordinator(
		voice.NewTransport(b.session),
		tts.NewGoogle(httpClient),
		b.languages,
		voice.NewPlayerResolver(cfg.FFmpegPath),
		b,
		speech.Options{
			MaxParallelSynth:  cfg.MaxParallelSynth,
			SynthTimeout:      cfg.SynthTimeout,
			PurgeOnDisconnect: cfg.PurgeOnDisconnect,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create speech coordinator: %w", err)
	}
	b.speech = coordinator

	return nil
}

func (b *Bot) Start() error {
	// Open connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	log.Info().Msg("Discord bot started")
	return nil
}

func (b *Bot) Stop() error {
	b.cancel()

	// Leave voice before the gateway goes away
	if err := b.speech.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close voice sessions cleanly")
	}

	// Close Discord session
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}

	b.closeAll()

	log.Info().Msg("Discord bot stopped")
	return nil
}

func (b *Bot) closeAll() {
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	b.closers = nil
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Info().
		Str("username", event.User.Username).
		Int("guilds", len(event.Guilds)).
		Msg("Bot is ready")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages and DMs
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	content := strings.TrimSpace(m.Content)
	if name, args, ok := parseCommand(content, b.config.CommandPrefix); ok {
		cc := b.newCommandContext(ctx, s, m, args)
		if b.dispatch(name, cc) {
			return
		}
	}

	switch b.channelName(s, m.ChannelID) {
	case b.config.TTSChannel:
		cc := b.newCommandContext(ctx, s, m, content)
		b.handleSpeak(cc)
	case b.config.MeetingChannel:
		b.recordMeeting(m)
	}
}

func (b *Bot) newCommandContext(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args string) *commandContext {
	return &commandContext{
		ctx:            ctx,
		guildID:        m.GuildID,
		channelID:      m.ChannelID,
		authorID:       m.Author.ID,
		args:           args,
		voiceChannelID: userVoiceChannel(s.State, m.GuildID, m.Author.ID),
		reply:          func(msg string) { b.sendMessage(m.ChannelID, msg) },
		replyError:     func(msg string) { b.sendError(m.ChannelID, msg) },
		replyFile: func(content, name string, data []byte) {
			b.sendFile(m.ChannelID, content, name, data)
		},
	}
}

func (b *Bot) channelName(s *discordgo.Session, channelID string) string {
	ch, err := s.State.Channel(channelID)
	if err != nil {
		ch, err = s.Channel(channelID)
		if err != nil {
			log.Debug().Err(err).Str("channel_id", channelID).Msg("Failed to look up channel")
			return ""
		}
	}
	return ch.Name
}

func (b *Bot) recordMeeting(m *discordgo.MessageCreate) {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := store.MeetingEntry{
		Timestamp: ts,
		Author:    m.Author.Username,
		Content:   m.Content,
	}
	if err := b.meetings.AppendMeetingEntry(m.GuildID, entry); err != nil {
		log.Error().Err(err).Str("guild_id", m.GuildID).Msg("Failed to record meeting message")
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	channelID, ok := b.speech.Connected(e.GuildID)
	if !ok {
		return
	}

	selfID := ""
	if s.State.User != nil {
		selfID = s.State.User.ID
	}

	// Kicked or disconnected from outside
	if e.UserID == selfID && e.ChannelID == "" {
		b.teardown(e.GuildID, "bot left voice")
		return
	}

	guild, err := s.State.Guild(e.GuildID)
	if err != nil {
		log.Debug().Err(err).Str("guild_id", e.GuildID).Msg("Guild not in state")
		return
	}

	humans := countHumans(guild.VoiceStates, channelID, selfID, func(userID string) bool {
		return isBotUser(s.State, e.GuildID, userID)
	})
	if humans == 0 {
		b.teardown(e.GuildID, "voice channel empty")
	}
}

func (b *Bot) teardown(guildID, reason string) {
	if _, err := b.speech.Teardown(guildID); err != nil {
		log.Warn().Err(err).Str("guild_id", guildID).Msg("Failed to tear down voice session")
		return
	}
	log.Info().Str("guild_id", guildID).Str("reason", reason).Msg("Left voice channel")
}

// Notify posts coordinator reports to a text channel.
func (b *Bot) Notify(channelID, message string) {
	b.sendMessage(channelID, message)
}

func (b *Bot) sendMessage(channelID, message string) {
	for _, part := range splitMessage(message, maxMessageLen) {
		if _, err := b.session.ChannelMessageSend(channelID, part); err != nil {
			log.Error().Err(err).Str("channel_id", channelID).Msg("Failed to send message")
			return
		}
	}
}

func (b *Bot) sendError(channelID, message string) {
	b.sendMessage(channelID, "❌ "+message)
	log.Warn().Str("channel_id", channelID).Str("error", message).Msg("Sent error message")
}

func (b *Bot) sendFile(channelID, content, name string, data []byte) {
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Files: []*discordgo.File{
			{
				Name:        name,
				ContentType: "text/markdown",
				Reader:      bytes.NewReader(data),
			},
		},
	})
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("Failed to send file")
		b.sendError(channelID, "파일을 전송하지 못했습니다.")
	}
}

// splitMessage cuts text into pieces Discord accepts, preferring line
// breaks.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

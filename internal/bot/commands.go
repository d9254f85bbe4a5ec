package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kakusiA/discord-bot-v1/internal/chat"
	"github.com/kakusiA/discord-bot-v1/internal/speech"
	"github.com/kakusiA/discord-bot-v1/internal/store"
	"github.com/kakusiA/discord-bot-v1/internal/tts"
	"github.com/kakusiA/discord-bot-v1/internal/youtube"
)

const defaultHistoryLimit = 5

// commandContext carries one invocation and how to answer it.
type commandContext struct {
	ctx            context.Context
	guildID        string
	channelID      string
	authorID       string
	args           string
	voiceChannelID string // caller's voice channel, "" if none

	reply      func(msg string)
	replyError func(msg string)
	replyFile  func(content, name string, data []byte)
}

// parseCommand splits "/name args" into its parts.
func parseCommand(content, prefix string) (name, args string, ok bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, prefix)
	if rest == "" || strings.HasPrefix(rest, " ") {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// dispatch runs a known command and reports whether name was one.
func (b *Bot) dispatch(name string, cc *commandContext) bool {
	switch name {
	case "y":
		b.handleYouTube(cc)
	case "gpt":
		b.handleGPT(cc)
	case "clear":
		b.handleClear(cc)
	case "history":
		b.handleHistory(cc)
	case "언어", "lang":
		b.handleLanguage(cc)
	case "langs":
		cc.reply("사용 가능한 언어 코드: " + tts.FormatLanguages())
	case "vc":
		b.handleJoin(cc)
	case "leave":
		b.handleLeave(cc)
	case "stop":
		b.handleStop(cc)
	case "pause":
		b.handlePause(cc)
	case "resume":
		b.handleResume(cc)
	case "summary":
		b.handleSummary(cc)
	case "clone":
		b.handleClone(cc)
	default:
		return false
	}

	log.Debug().
		Str("command", name).
		Str("guild_id", cc.guildID).
		Str("user_id", cc.authorID).
		Msg("Handled command")
	return true
}

func (b *Bot) handleSpeak(cc *commandContext) {
	if cc.args == "" {
		return
	}
	err := b.speech.Enqueue(cc.ctx, speech.Request{
		GuildID:       cc.guildID,
		TextChannelID: cc.channelID,
		Text:          cc.args,
		ConnectHint:   cc.voiceChannelID,
	})
	switch {
	case err == nil:
	case errors.Is(err, speech.ErrNoVoiceChannel):
		cc.reply("음성 채널에 먼저 접속해주세요.")
	case errors.Is(err, speech.ErrClosed):
	default:
		log.Error().Err(err).Str("guild_id", cc.guildID).Msg("Failed to queue speech")
		cc.replyError("음성 채널에 연결하는 중 오류가 발생했습니다.")
	}
}

func (b *Bot) handleYouTube(cc *commandContext) {
	if cc.args == "" {
		cc.reply("검색할 유튜브 제목을 입력해주세요.")
		return
	}
	if b.videos == nil {
		cc.replyError("유튜브 검색이 설정되어 있지 않습니다.")
		return
	}

	video, err := b.videos.Top(cc.ctx, cc.args)
	switch {
	case errors.Is(err, youtube.ErrNoResults):
		cc.reply("검색 결과가 없습니다.")
	case err != nil:
		log.Error().Err(err).Str("query", cc.args).Msg("YouTube search failed")
		cc.replyError("유튜브 검색 중 오류가 발생했습니다.")
	default:
		cc.reply(fmt.Sprintf("**%s**\n%s", video.Title, video.URL()))
	}
}

func (b *Bot) handleGPT(cc *commandContext) {
	if cc.args == "" {
		cc.reply("질문을 해주세요.")
		return
	}

	answer, err := b.chat.Ask(cc.ctx, cc.authorID, cc.args)
	if err != nil {
		log.Error().Err(err).Str("user_id", cc.authorID).Msg("GPT request failed")
		cc.replyError("GPT 요청 중 오류가 발생했습니다.")
		return
	}
	cc.reply(answer)

	if !b.config.SpeakChatReplies {
		return
	}
	if _, ok := b.speech.Connected(cc.guildID); !ok {
		return
	}
	err = b.speech.Enqueue(cc.ctx, speech.Request{
		GuildID:       cc.guildID,
		TextChannelID: cc.channelID,
		Text:          answer,
	})
	if err != nil && !errors.Is(err, speech.ErrNoVoiceChannel) {
		log.Warn().Err(err).Str("guild_id", cc.guildID).Msg("Failed to queue chat reply")
	}
}

func (b *Bot) handleClear(cc *commandContext) {
	err := b.chat.Clear(cc.authorID)
	switch {
	case errors.Is(err, chat.ErrNoHistory):
		cc.reply("대화 기록이 존재하지 않습니다.")
	case err != nil:
		log.Error().Err(err).Str("user_id", cc.authorID).Msg("Failed to clear conversation")
		cc.replyError("대화 기록을 초기화하지 못했습니다.")
	default:
		cc.reply("대화 기록이 초기화되었습니다.")
	}
}

func (b *Bot) handleHistory(cc *commandContext) {
	limit := defaultHistoryLimit
	if cc.args != "" {
		n, err := strconv.Atoi(cc.args)
		if err != nil || n <= 0 {
			cc.reply("기록 개수는 양의 정수로 입력해주세요.")
			return
		}
		limit = n
	}

	msgs, err := b.chat.Recent(cc.authorID, limit)
	if errors.Is(err, chat.ErrNoHistory) {
		cc.reply("대화 기록이 존재하지 않습니다.")
		return
	}
	if err != nil {
		cc.replyError("대화 기록을 불러오지 못했습니다.")
		return
	}
	cc.reply(chat.FormatHistory(limit, msgs))
}

func (b *Bot) handleLanguage(cc *commandContext) {
	lang, ok := tts.Lookup(cc.args)
	if !ok {
		cc.reply("지원되지 않는 언어 코드입니다. 사용 가능한 언어 코드는 다음과 같습니다:\n" + tts.FormatLanguages())
		return
	}

	if err := b.languages.SetLanguage(cc.ctx, cc.guildID, lang.Code); err != nil {
		log.Error().Err(err).Str("guild_id", cc.guildID).Msg("Failed to save guild language")
		cc.replyError("언어 설정을 저장하지 못했습니다.")
		return
	}

	log.Info().Str("guild_id", cc.guildID).Str("language", lang.Code).Msg("Guild language changed")
	cc.reply(fmt.Sprintf("TTS 언어가 %s(%s)으로 설정되었습니다.", lang.Name, lang.Code))
}

func (b *Bot) handleJoin(cc *commandContext) {
	if cc.voiceChannelID == "" {
		cc.reply("음성 채널에 먼저 입장해주세요.")
		return
	}

	if err := b.speech.Join(cc.ctx, cc.guildID, cc.voiceChannelID); err != nil {
		log.Error().Err(err).Str("guild_id", cc.guildID).Msg("Failed to join voice channel")
		cc.replyError("음성 채널에 연결하는 중 오류가 발생했습니다.")
		return
	}
	cc.reply(fmt.Sprintf("<#%s> 채널에 입장했습니다.", cc.voiceChannelID))
}

func (b *Bot) handleLeave(cc *commandContext) {
	connected, err := b.speech.Teardown(cc.guildID)
	if err != nil {
		log.Warn().Err(err).Str("guild_id", cc.guildID).Msg("Disconnect reported an error")
	}
	if !connected {
		cc.reply("음성 채널에 연결되어 있지 않습니다.")
		return
	}
	cc.reply("음성 채널에서 나왔습니다.")
}

func (b *Bot) handleStop(cc *commandContext) {
	if b.speech.Stop(cc.guildID) {
		cc.reply("TTS 재생을 중지했습니다.")
		return
	}
	cc.reply("현재 재생 중인 TTS가 없습니다.")
}

func (b *Bot) handlePause(cc *commandContext) {
	if b.speech.Pause(cc.guildID) {
		cc.reply("TTS 재생을 일시정지했습니다.")
		return
	}
	cc.reply("현재 재생 중인 TTS가 없습니다.")
}

func (b *Bot) handleResume(cc *commandContext) {
	if b.speech.Resume(cc.guildID) {
		cc.reply("TTS 재생을 다시 시작했습니다.")
		return
	}
	cc.reply("일시정지된 TTS가 없습니다.")
}

func (b *Bot) handleSummary(cc *commandContext) {
	if cc.args == "reset" {
		if err := b.meetings.ResetMeeting(cc.guildID); err != nil {
			log.Error().Err(err).Str("guild_id", cc.guildID).Msg("Failed to reset meeting log")
			cc.replyError("회의 기록을 초기화하지 못했습니다.")
			return
		}
		cc.reply("회의 기록을 초기화했습니다.")
		return
	}

	entries, err := b.meetings.LoadMeeting(cc.guildID)
	if errors.Is(err, store.ErrNotFound) {
		cc.reply("회의 내용 파일이 존재하지 않습니다.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("guild_id", cc.guildID).Msg("Failed to load meeting log")
		cc.replyError("회의 내용을 불러오는 데 실패했습니다.")
		return
	}

	cc.reply("⏳ 회의 내용을 정리하는 중입니다...")

	notes, err := b.summariser.Summarise(cc.ctx, entries, cc.args)
	if err != nil {
		log.Error().Err(err).Str("guild_id", cc.guildID).Msg("Failed to summarise meeting")
		cc.replyError("회의 요약 중 오류가 발생했습니다.")
		return
	}

	sessionID := store.GenerateSessionID()
	path, err := b.meetings.SaveNotes(sessionID, notes)
	if err != nil {
		cc.replyError("회의록을 저장하지 못했습니다.")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		cc.replyError("회의록 파일을 읽지 못했습니다.")
		return
	}
	cc.replyFile("📝 회의록입니다:", sessionID+".md", data)
}

func (b *Bot) handleClone(cc *commandContext) {
	ch, err := b.cloneChannel(cc.guildID, cc.channelID)
	if err != nil {
		log.Error().Err(err).Str("channel_id", cc.channelID).Msg("Failed to clone channel")
		cc.replyError("채널을 복제하지 못했습니다.")
		return
	}
	cc.reply(fmt.Sprintf("<#%s> 채널을 복제했습니다.", ch.ID))
}

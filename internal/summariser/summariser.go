package summariser

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kakusiA/discord-bot-v1/internal/llm"
	"github.com/kakusiA/discord-bot-v1/internal/store"
)

const systemPrompt = "당신은 회의 내용을 요약하는 전문가입니다. 회의 대화의 주요 논의사항, 결정사항, 그리고 후속 작업을 불릿 포인트로 정리해 주세요."

// Summariser turns a meeting log into Markdown notes.
type Summariser struct {
	llm llm.Completer
}

func New(completer llm.Completer) *Summariser {
	return &Summariser{llm: completer}
}

func (s *Summariser) Summarise(ctx context.Context, entries []store.MeetingEntry, mode string) (string, error) {
	if len(entries) == 0 {
		return "# Meeting Notes\n\nNo meeting log available.", nil
	}

	transcript := buildTranscript(entries)
	prompt := buildPrompt(transcript, mode)

	summary, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	log.Info().
		Int("entries", len(entries)).
		Int("summary_length", len(summary)).
		Msg("Generated meeting summary")

	return summary, nil
}

func buildTranscript(entries []store.MeetingEntry) string {
	var transcript strings.Builder

	for _, entry := range entries {
		timestamp := entry.Timestamp.Format("2006-01-02 15:04:05")
		speaker := entry.Author
		if speaker == "" {
			speaker = "Unknown"
		}

		fmt.Fprintf(&transcript, "[%s] %s: %s\n", timestamp, speaker, entry.Content)
	}

	return transcript.String()
}

func buildPrompt(transcript, mode string) string {
	var style string
	switch mode {
	case "brief":
		style = "핵심 사항만 아주 간결하게 정리해 주세요."
	case "verbose":
		style = "가능한 한 맥락을 많이 담아 자세히 정리해 주세요."
	case "casual":
		style = "친근하고 편한 말투로 정리해 주세요."
	case "formal":
		style = "격식 있는 말투로 정리해 주세요."
	default:
		style = "간결하지만 빠짐없이 정리해 주세요."
	}

	return fmt.Sprintf(`다음 회의 대화 내용을 분석하여 아래 항목을 불릿 포인트 형식의 Markdown으로 정리해 주세요. %s

1) **주요 논의 사항**
2) **결정된 사항**
3) **후속 작업 및 질문** - 담당자와 기한이 언급되었다면 함께 적어 주세요

각 항목에 대해 간단한 설명도 덧붙여 주세요.

**회의 대화:**
%s`, style, transcript)
}

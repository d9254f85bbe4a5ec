package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://translate.google.com/translate_tts"
	chunkSize      = 200
)

var ErrEmptyText = errors.New("tts: empty text")

// Google synthesizes speech through the translate_tts endpoint. Long text is
// split into chunks the endpoint accepts and the MP3 replies are
// concatenated.
type Google struct {
	client  *http.Client
	baseURL string
}

// NewGoogle returns a synthesizer using client, or a default client with a
// 15 second timeout when client is nil.
func NewGoogle(client *http.Client) *Google {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Google{
		client:  client,
		baseURL: defaultBaseURL,
	}
}

// Synthesize writes an MP3 rendition of text in lang to path. Nothing is
// left at path when it fails.
func (g *Google) Synthesize(ctx context.Context, text, lang, path string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if lang == "" {
		lang = DefaultLanguage
	}

	chunks := splitText(text, chunkSize)
	var buf bytes.Buffer
	for i, chunk := range chunks {
		audio, err := g.fetchChunk(ctx, chunk, lang, i, len(chunks))
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		buf.Write(audio)
	}

	duration, err := mp3Duration(buf.Bytes())
	if err != nil {
		return fmt.Errorf("invalid audio from provider: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to write audio: %w", err)
	}

	log.Debug().
		Str("lang", lang).
		Int("chunks", len(chunks)).
		Dur("duration", duration).
		Str("path", path).
		Msg("Synthesized speech")

	return nil
}

func (g *Google) fetchChunk(ctx context.Context, text, lang string, idx, total int) ([]byte, error) {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("q", text)
	params.Set("tl", lang)
	params.Set("total", strconv.Itoa(total))
	params.Set("idx", strconv.Itoa(idx))
	params.Set("textlen", strconv.Itoa(len([]rune(text))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts: google tts status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func mp3Duration(data []byte) (time.Duration, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	rate := dec.SampleRate()
	if rate <= 0 {
		return 0, fmt.Errorf("bad sample rate %d", rate)
	}
	// 16-bit stereo, 4 bytes per sample frame.
	samples := dec.Length() / 4
	return time.Duration(samples) * time.Second / time.Duration(rate), nil
}

// splitText cuts text into pieces of at most size runes, preferring to break
// after whitespace.
func splitText(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		if len(runes) <= size {
			out = append(out, string(runes))
			break
		}
		cut := size
		for i := size; i > size/2; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			out = append(out, piece)
		}
		runes = runes[cut:]
	}
	return out
}

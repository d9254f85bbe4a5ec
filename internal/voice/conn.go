package voice

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"layeh.com/gopus"

	"github.com/kakusiA/discord-bot-v1/internal/speech"
)

const (
	SampleRate   = 48000
	Channels     = 2   // Discord expects stereo
	FrameSize    = 960 // 20ms at 48kHz
	Bitrate      = 64000
	maxOpusBytes = FrameSize * Channels * 2
)

var errDisconnected = errors.New("voice: connection closed")

// Conn streams audio files into a discordgo voice connection. Files are
// decoded to 48kHz stereo PCM by ffmpeg and encoded to Opus frames here.
type Conn struct {
	vc *discordgo.VoiceConnection

	mu      sync.Mutex
	gen     uint64
	stopFn  context.CancelFunc
	playing bool
	paused  bool
	resume  chan struct{}

	// sendMu keeps a single stream writing to OpusSend.
	sendMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(vc *discordgo.VoiceConnection) *Conn {
	return &Conn{
		vc:     vc,
		closed: make(chan struct{}),
	}
}

func (c *Conn) ChannelID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.ChannelID
}

func (c *Conn) Play(src speech.AudioSource, done func(error)) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.stopFn != nil {
		c.stopFn()
	}
	c.gen++
	gen := c.gen
	c.stopFn = cancel
	c.playing = true
	c.paused = false
	c.mu.Unlock()

	go func() {
		err := c.stream(ctx, src)
		cancel()

		c.mu.Lock()
		if c.gen == gen {
			c.stopFn = nil
			c.playing = false
			c.paused = false
		}
		c.mu.Unlock()

		done(err)
	}()
}

func (c *Conn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopFn != nil {
		c.stopFn()
	}
}

func (c *Conn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing && !c.paused {
		c.paused = true
		c.resume = make(chan struct{})
	}
}

func (c *Conn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.paused = false
		close(c.resume)
	}
}

func (c *Conn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.paused
}

func (c *Conn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Conn) Move(_ context.Context, channelID string) error {
	return c.vc.ChangeChannel(channelID, false, true)
}

func (c *Conn) Disconnect() error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.Stop()
	return c.vc.Disconnect()
}

func (c *Conn) stream(ctx context.Context, src speech.AudioSource) error {
	select {
	case <-c.closed:
		return errDisconnected
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, src.Player,
		"-loglevel", "error",
		"-i", src.Path,
		"-f", "s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	c.sendMu.Lock()
	sendErr := c.send(ctx, bufio.NewReaderSize(stdout, 16384))
	c.sendMu.Unlock()

	stopped := ctx.Err() != nil
	cancel()
	waitErr := cmd.Wait()

	switch {
	case sendErr != nil:
		return sendErr
	case stopped:
		// killed by Stop, not a failure
		return nil
	case waitErr != nil:
		return fmt.Errorf("ffmpeg: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *Conn) send(ctx context.Context, r io.Reader) error {
	encoder, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}
	encoder.SetBitrate(Bitrate)

	if err := c.vc.Speaking(true); err != nil {
		log.Warn().Err(err).Msg("Failed to set speaking state")
	}
	defer func() {
		if err := c.vc.Speaking(false); err != nil {
			log.Debug().Err(err).Msg("Failed to clear speaking state")
		}
	}()

	buf := make([]byte, FrameSize*Channels*2)
	pcm := make([]int16, FrameSize*Channels)

	for {
		if err := c.waitIfPaused(ctx); err != nil {
			return ignoreStop(err)
		}

		n, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		last := errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !last {
			return fmt.Errorf("failed to read pcm: %w", err)
		}

		decodePCM(buf[:n], pcm)

		frame, err := encoder.Encode(pcm, FrameSize, maxOpusBytes)
		if err != nil {
			return fmt.Errorf("failed to encode opus frame: %w", err)
		}

		select {
		case c.vc.OpusSend <- frame:
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return errDisconnected
		}

		if last {
			return nil
		}
	}
}

func (c *Conn) waitIfPaused(ctx context.Context) error {
	c.mu.Lock()
	paused, resume := c.paused, c.resume
	c.mu.Unlock()

	if !paused {
		return nil
	}

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return errDisconnected
	}
}

func ignoreStop(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// decodePCM converts little-endian s16 bytes into pcm, zero filling any
// tail the short final read did not cover.
func decodePCM(b []byte, pcm []int16) {
	n := len(b) / 2
	if n > len(pcm) {
		n = len(pcm)
	}
	for i := 0; i < n; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	for i := n; i < len(pcm); i++ {
		pcm[i] = 0
	}
}

package speech

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	msgSynthesisFailed   = "❌ TTS 변환 중 오류가 발생했습니다."
	msgPlayerUnavailable = "❌ FFmpeg 실행 파일을 찾을 수 없습니다. 시스템에 FFmpeg가 설치되어 있는지 확인해주세요."
)

type Options struct {
	// TempDir holds synthesized artifacts until they have been played.
	TempDir string

	// MaxParallelSynth bounds concurrent synthesis calls across all guilds.
	MaxParallelSynth int

	// SynthTimeout bounds a single synthesis call. Zero disables the deadline.
	SynthTimeout time.Duration

	// PurgeOnDisconnect drops queued utterances when a guild's voice session
	// is torn down.
	PurgeOnDisconnect bool
}

// Coordinator owns every guild's voice session and plays queued utterances
// strictly one at a time, in arrival order, per guild.
type Coordinator struct {
	transport Transport
	synth     Synthesizer
	languages LanguageSource
	player    PlayerResolver
	notifier  Notifier
	opts      Options
	sem       *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	destinations map[string]*destination
	closed       bool

	wg sync.WaitGroup
}

type destination struct {
	guildID string

	// connectMu serializes connection attempts and teardown so concurrent
	// enqueues open one voice session. Taken before mu.
	connectMu sync.Mutex

	mu         sync.Mutex
	conn       VoiceConn
	queue      []*utterance
	processing bool
}

type utterance struct {
	id   uuid.UUID
	req  Request
	path string

	ctx    context.Context
	cancel context.CancelFunc

	// done is closed once synthesis has settled; err is valid after that.
	done chan struct{}
	err  error
}

func NewCoordinator(
	transport Transport,
	synth Synthesizer,
	languages LanguageSource,
	player PlayerResolver,
	notifier Notifier,
	opts Options,
) (*Coordinator, error) {
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "discord-bot-tts")
	}
	if opts.MaxParallelSynth <= 0 {
		opts.MaxParallelSynth = 4
	}

	if err := os.MkdirAll(opts.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tts temp directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		transport:    transport,
		synth:        synth,
		languages:    languages,
		player:       player,
		notifier:     notifier,
		opts:         opts,
		sem:          semaphore.NewWeighted(int64(opts.MaxParallelSynth)),
		ctx:          ctx,
		cancel:       cancel,
		destinations: make(map[string]*destination),
	}, nil
}

// Enqueue accepts an utterance for a guild. It connects to req.ConnectHint
// when the guild has no voice session yet and returns ErrNoVoiceChannel if
// there is nothing to connect to. It never waits for synthesis or playback.
func (c *Coordinator) Enqueue(ctx context.Context, req Request) error {
	d, err := c.destination(req.GuildID)
	if err != nil {
		return err
	}

	if err := c.ensureConnected(ctx, d, req.ConnectHint); err != nil {
		return err
	}

	u := c.newUtterance(req)

	d.mu.Lock()
	if c.isClosed() {
		d.mu.Unlock()
		u.cancel()
		return ErrClosed
	}
	if d.conn == nil {
		// torn down between connecting and queueing
		d.mu.Unlock()
		u.cancel()
		return ErrNoVoiceChannel
	}
	d.queue = append(d.queue, u)
	c.startSynthesis(u)
	start := !d.processing
	if start {
		d.processing = true
		c.wg.Add(1)
	}
	pending := len(d.queue)
	d.mu.Unlock()

	if start {
		go c.drain(d)
	}

	log.Debug().
		Str("guild_id", req.GuildID).
		Str("utterance_id", u.id.String()).
		Int("pending", pending).
		Bool("worker_started", start).
		Msg("Queued utterance")

	return nil
}

// Join connects the guild to channelID, moving an existing session if it is
// in another channel.
func (c *Coordinator) Join(ctx context.Context, guildID, channelID string) error {
	if channelID == "" {
		return ErrNoVoiceChannel
	}

	d, err := c.destination(guildID)
	if err != nil {
		return err
	}

	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()

	if conn != nil {
		if conn.ChannelID() == channelID {
			return nil
		}
		if err := conn.Move(ctx, channelID); err != nil {
			return fmt.Errorf("failed to move to voice channel %s: %w", channelID, err)
		}
		log.Info().Str("guild_id", guildID).Str("channel_id", channelID).Msg("Moved voice session")
		return nil
	}

	return c.connectLocked(ctx, d, channelID)
}

// Teardown disconnects a guild's voice session and drops its connection
// state. With PurgeOnDisconnect, queued utterances are discarded and their
// artifacts removed. It reports whether a session was connected. A connect
// in flight for the guild is waited for and then torn down.
func (c *Coordinator) Teardown(guildID string) (bool, error) {
	d := c.lookup(guildID)
	if d == nil {
		return false, nil
	}

	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	var purged []*utterance
	if c.opts.PurgeOnDisconnect {
		purged = d.queue
		d.queue = nil
	}
	d.mu.Unlock()

	for _, u := range purged {
		u.cancel()
		c.wg.Add(1)
		go func(u *utterance) {
			defer c.wg.Done()
			<-u.done
			c.removeArtifact(u)
		}(u)
	}

	if conn == nil {
		return false, nil
	}

	conn.Stop()
	err := conn.Disconnect()

	log.Info().
		Str("guild_id", guildID).
		Str("channel_id", conn.ChannelID()).
		Int("purged", len(purged)).
		Msg("Voice session torn down")

	if err != nil {
		return true, fmt.Errorf("failed to disconnect voice session: %w", err)
	}
	return true, nil
}

// Stop preempts the utterance currently playing in a guild. The worker moves
// on to the next queued item.
func (c *Coordinator) Stop(guildID string) bool {
	conn := c.conn(guildID)
	if conn == nil || !(conn.IsPlaying() || conn.IsPaused()) {
		return false
	}
	conn.Stop()
	return true
}

func (c *Coordinator) Pause(guildID string) bool {
	conn := c.conn(guildID)
	if conn == nil || !conn.IsPlaying() {
		return false
	}
	conn.Pause()
	return true
}

func (c *Coordinator) Resume(guildID string) bool {
	conn := c.conn(guildID)
	if conn == nil || !conn.IsPaused() {
		return false
	}
	conn.Resume()
	return true
}

// Connected returns the voice channel a guild's session is in.
func (c *Coordinator) Connected(guildID string) (string, bool) {
	conn := c.conn(guildID)
	if conn == nil {
		return "", false
	}
	return conn.ChannelID(), true
}

// Pending returns the number of utterances waiting to be played.
func (c *Coordinator) Pending(guildID string) int {
	d := c.lookup(guildID)
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Processing reports whether a playback worker is draining the guild queue.
func (c *Coordinator) Processing(guildID string) bool {
	d := c.lookup(guildID)
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processing
}

// Close tears down every voice session and waits for workers to exit.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	guildIDs := make([]string, 0, len(c.destinations))
	for id := range c.destinations {
		guildIDs = append(guildIDs, id)
	}
	c.mu.Unlock()

	c.cancel()

	var g errgroup.Group
	for _, id := range guildIDs {
		id := id
		g.Go(func() error {
			_, err := c.Teardown(id)
			return err
		})
	}
	err := g.Wait()

	c.wg.Wait()
	return err
}

func (c *Coordinator) destination(guildID string) (*destination, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	d, ok := c.destinations[guildID]
	if !ok {
		d = &destination{guildID: guildID}
		c.destinations[guildID] = d
	}
	return d, nil
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Coordinator) lookup(guildID string) *destination {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destinations[guildID]
}

func (c *Coordinator) conn(guildID string) VoiceConn {
	d := c.lookup(guildID)
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

func (c *Coordinator) ensureConnected(ctx context.Context, d *destination, hint string) error {
	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	d.mu.Lock()
	connected := d.conn != nil
	d.mu.Unlock()

	if connected {
		return nil
	}
	if hint == "" {
		return ErrNoVoiceChannel
	}
	return c.connectLocked(ctx, d, hint)
}

// connectLocked must be called with d.connectMu held.
func (c *Coordinator) connectLocked(ctx context.Context, d *destination, channelID string) error {
	conn, err := c.transport.Connect(ctx, d.guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to connect to voice channel %s: %w", channelID, err)
	}

	d.mu.Lock()
	if c.isClosed() {
		d.mu.Unlock()
		if err := conn.Disconnect(); err != nil {
			log.Warn().Err(err).Str("guild_id", d.guildID).Msg("Failed to drop voice session opened during shutdown")
		}
		return ErrClosed
	}
	d.conn = conn
	d.mu.Unlock()

	log.Info().
		Str("guild_id", d.guildID).
		Str("channel_id", channelID).
		Msg("Voice session established")
	return nil
}

func (c *Coordinator) newUtterance(req Request) *utterance {
	id := uuid.New()
	ctx, cancel := context.WithCancel(c.ctx)
	return &utterance{
		id:     id,
		req:    req,
		path:   filepath.Join(c.opts.TempDir, fmt.Sprintf("tts_%s_%s.mp3", req.GuildID, id)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (c *Coordinator) startSynthesis(u *utterance) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(u.done)

		if err := c.sem.Acquire(u.ctx, 1); err != nil {
			u.err = fmt.Errorf("%w: %w", ErrSynthesis, err)
			return
		}
		defer c.sem.Release(1)

		lang := c.languages.Language(u.ctx, u.req.GuildID)

		ctx := u.ctx
		if c.opts.SynthTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.SynthTimeout)
			defer cancel()
		}

		start := time.Now()
		if err := c.synth.Synthesize(ctx, u.req.Text, lang, u.path); err != nil {
			u.err = fmt.Errorf("%w: %w", ErrSynthesis, err)
			return
		}

		log.Debug().
			Str("guild_id", u.req.GuildID).
			Str("utterance_id", u.id.String()).
			Str("language", lang).
			Dur("took", time.Since(start)).
			Msg("Synthesized utterance")
	}()
}

// drain plays the guild queue until it is empty. The empty check and the
// processing flag reset happen under the same lock so an Enqueue either
// sees processing=true with its item still ahead of this check, or starts a
// new worker.
func (c *Coordinator) drain(d *destination) {
	defer c.wg.Done()

	log.Debug().Str("guild_id", d.guildID).Msg("Playback worker started")

	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.processing = false
			d.mu.Unlock()
			log.Debug().Str("guild_id", d.guildID).Msg("Playback worker drained queue")
			return
		}
		u := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		c.play(d, u)
	}
}

func (c *Coordinator) play(d *destination, u *utterance) {
	logger := log.With().
		Str("guild_id", d.guildID).
		Str("utterance_id", u.id.String()).
		Logger()

	defer u.cancel()
	defer c.removeArtifact(u)
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Recovered from panic while playing utterance")
		}
	}()

	<-u.done
	if u.err != nil {
		logger.Warn().Err(u.err).Msg("Skipping utterance")
		c.notify(u.req.TextChannelID, msgSynthesisFailed)
		return
	}

	player, err := c.player()
	if err != nil {
		logger.Error().Err(err).Msg("Audio player unavailable")
		c.notify(u.req.TextChannelID, msgPlayerUnavailable)
		return
	}

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()

	if conn == nil {
		logger.Info().Msg("Voice session gone, dropping utterance")
		return
	}

	if conn.IsPlaying() || conn.IsPaused() {
		conn.Stop()
	}

	done := make(chan error, 1)
	var once sync.Once
	conn.Play(AudioSource{Path: u.path, Player: player}, func(err error) {
		once.Do(func() { done <- err })
	})

	if err := <-done; err != nil {
		logger.Warn().Err(err).Msg("Playback finished with error")
		return
	}
	logger.Debug().Msg("Playback finished")
}

func (c *Coordinator) removeArtifact(u *utterance) {
	if err := os.Remove(u.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().
			Err(err).
			Str("utterance_id", u.id.String()).
			Str("file", u.path).
			Msg("Failed to delete tts artifact")
	}
}

func (c *Coordinator) notify(channelID, message string) {
	if c.notifier == nil || channelID == "" {
		return
	}
	c.notifier.Notify(channelID, message)
}

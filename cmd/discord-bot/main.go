package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	cli "github.com/spf13/pflag"

	"github.com/kakusiA/discord-bot-v1/internal/bot"
	"github.com/kakusiA/discord-bot-v1/internal/config"
)

const shutdownTimeout = 30 * time.Second

var errShutdownTimeout = errors.New("shutdown timed out")

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides LOG_LEVEL)")
	cli.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	if err := run(*envFile, *logLevel); err != nil {
		log.Fatal().Err(err).Msg("Bot exited with error")
	}
}

func run(envFile, logLevel string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	setupLogging(cfg.LogLevel)

	discordBot, err := bot.NewBot(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	if err := discordBot.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("prefix", cfg.CommandPrefix).Msg("Bot is running, waiting for interrupt")
	<-ctx.Done()

	log.Info().Dur("timeout", shutdownTimeout).Msg("Interrupt received, closing voice sessions")
	if err := shutdown(discordBot.Stop, shutdownTimeout); err != nil {
		if errors.Is(err, errShutdownTimeout) {
			log.Warn().Msg("Shutdown did not finish in time, exiting anyway")
			return nil
		}
		return err
	}
	log.Info().Msg("Bot stopped")
	return nil
}

// shutdown runs stop and gives up after timeout.
func shutdown(stop func() error, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- stop() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return errShutdownTimeout
	}
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Debug().Str("level", lvl.String()).Msg("Log level set")
}

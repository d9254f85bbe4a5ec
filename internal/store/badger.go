package store

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

const languageKeyPrefix = "lang:"

// BadgerLanguages keeps guild languages in a BadgerDB.
type BadgerLanguages struct {
	db       *badger.DB
	fallback string
}

type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Ignored when InMemory.
	Dir      string
	InMemory bool
	Fallback string
}

func OpenBadgerLanguages(opts BadgerOptions) (*BadgerLanguages, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: badger directory is required")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerLanguages{db: db, fallback: opts.Fallback}, nil
}

func (b *BadgerLanguages) Language(_ context.Context, guildID string) string {
	var code string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(languageKeyPrefix + guildID))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		code = string(val)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			log.Warn().Err(err).Str("guild_id", guildID).Msg("Failed to read guild language")
		}
		return b.fallback
	}
	if code == "" {
		return b.fallback
	}
	return code
}

func (b *BadgerLanguages) SetLanguage(_ context.Context, guildID, code string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(languageKeyPrefix+guildID), []byte(code))
	})
	if err != nil {
		return fmt.Errorf("failed to store guild language: %w", err)
	}
	return nil
}

func (b *BadgerLanguages) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger output into zerolog, dropping its info chatter.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{})   { log.Error().Msgf("badger: "+f, v...) }
func (badgerLogger) Warningf(f string, v ...interface{}) { log.Warn().Msgf("badger: "+f, v...) }
func (badgerLogger) Infof(string, ...interface{})        {}
func (badgerLogger) Debugf(f string, v ...interface{})   { log.Trace().Msgf("badger: "+f, v...) }

package zerolog

import (
	"context"
	"time"

	"github.com/fwojciec/pluck"
	"github.com/rs/zerolog"
)

// Ensure LoggingCredentialStore implements pluck.CredentialStore.
var _ pluck.CredentialStore = (*LoggingCredentialStore)(nil)

// LoggingCredentialStore wraps a CredentialStore with debug logging.
// Stored values are never logged.
type LoggingCredentialStore struct {
	next   pluck.CredentialStore
	logger zerolog.Logger
}

// NewLoggingCredentialStore creates a new LoggingCredentialStore.
func NewLoggingCredentialStore(next pluck.CredentialStore, logger zerolog.Logger) *LoggingCredentialStore {
	return &LoggingCredentialStore{next: next, logger: logger}
}

// GetCredential delegates to the wrapped store. A missing credential is not
// logged as an error.
func (s *LoggingCredentialStore) GetCredential(ctx context.Context, profile, key string) (value string, err error) {
	defer func(begin time.Time) {
		event := s.logger.Debug()
		if err != nil && pluck.ErrorCode(err) != pluck.ENOTFOUND {
			event = s.logger.Error().Err(err)
		}
		event.
			Str("profile", profile).
			Str("key", key).
			Bool("found", value != "").
			Dur("duration", time.Since(begin)).
			Msg("credential get")
	}(time.Now())
	return s.next.GetCredential(ctx, profile, key)
}

// SetCredential delegates to the wrapped store.
func (s *LoggingCredentialStore) SetCredential(ctx context.Context, profile, key, value string) (err error) {
	defer func(begin time.Time) {
		s.event(err).
			Str("profile", profile).
			Str("key", key).
			Dur("duration", time.Since(begin)).
			Msg("credential set")
	}(time.Now())
	return s.next.SetCredential(ctx, profile, key, value)
}

// DeleteCredential delegates to the wrapped store.
func (s *LoggingCredentialStore) DeleteCredential(ctx context.Context, profile, key string) (err error) {
	defer func(begin time.Time) {
		s.event(err).
			Str("profile", profile).
			Str("key", key).
			Dur("duration", time.Since(begin)).
			Msg("credential delete")
	}(time.Now())
	return s.next.DeleteCredential(ctx, profile, key)
}

func (s *LoggingCredentialStore) event(err error) *zerolog.Event {
	if err != nil {
		return s.logger.Error().Err(err)
	}
	return s.logger.Info()
}

// Package zerolog provides logging decorators for pluck services.
package zerolog

import (
	"context"
	"time"

	"github.com/fwojciec/pluck"
	"github.com/rs/zerolog"
)

// Ensure LoggingExtractor implements pluck.Extractor.
var _ pluck.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor with logging of every call.
type LoggingExtractor struct {
	next   pluck.Extractor
	logger zerolog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next pluck.Extractor, logger zerolog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Extract delegates to the wrapped extractor and logs the outcome.
// The credential is never logged.
func (e *LoggingExtractor) Extract(ctx context.Context, credential string, urls []string, opts pluck.ExtractOptions) (resp *pluck.ExtractResponse, err error) {
	defer func(begin time.Time) {
		event := e.logger.Info()
		if err != nil {
			event = e.logger.Warn().Err(err).Str("kind", string(pluck.Classify(err)))
		}
		event.
			Strs("urls", urls).
			Int("prompt_len", len(opts.Prompt)).
			Bool("success", resp != nil && resp.Success).
			Dur("duration", time.Since(begin)).
			Msg("extract")
	}(time.Now())
	return e.next.Extract(ctx, credential, urls, opts)
}

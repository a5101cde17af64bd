package mock

import (
	"context"

	"github.com/fwojciec/pluck"
)

var _ pluck.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of pluck.Extractor.
type Extractor struct {
	ExtractFn func(ctx context.Context, credential string, urls []string, opts pluck.ExtractOptions) (*pluck.ExtractResponse, error)
}

func (e *Extractor) Extract(ctx context.Context, credential string, urls []string, opts pluck.ExtractOptions) (*pluck.ExtractResponse, error) {
	return e.ExtractFn(ctx, credential, urls, opts)
}

// Package firecrawl implements pluck.Extractor against the Firecrawl v1
// extract API.
package firecrawl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/pluck"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the hosted Firecrawl API.
const DefaultBaseURL = "https://api.firecrawl.dev"

// DefaultPollInterval is the pause between extract job status checks.
const DefaultPollInterval = time.Second

// Extract job statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Ensure Extractor implements pluck.Extractor at compile time.
var _ pluck.Extractor = (*Extractor)(nil)

// Extractor starts Firecrawl extract jobs and polls them to completion.
type Extractor struct {
	client       *resty.Client
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBaseURL sets the API base URL. Defaults to DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(e *Extractor) {
		e.baseURL = strings.TrimRight(u, "/")
	}
}

// WithPollInterval sets the pause between status checks.
// Defaults to DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Extractor) {
		e.pollInterval = d
	}
}

// WithTimeout sets a per-request timeout. Zero, the default, leaves requests
// bounded only by the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.timeout = d
	}
}

// NewExtractor creates a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		baseURL:      DefaultBaseURL,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.client = resty.New().
		SetBaseURL(e.baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if e.timeout > 0 {
		e.client.SetTimeout(e.timeout)
	}

	return e
}

// extractRequest is the body of POST /v1/extract.
type extractRequest struct {
	URLs   []string `json:"urls"`
	Prompt string   `json:"prompt,omitempty"`
}

// apiError is the error body returned with non-2xx statuses.
type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Extract starts an extract job for urls and waits for it to finish.
func (e *Extractor) Extract(ctx context.Context, credential string, urls []string, opts pluck.ExtractOptions) (*pluck.ExtractResponse, error) {
	if len(urls) == 0 {
		return nil, pluck.Errorf(pluck.EINVALID, "at least one URL required")
	}

	var job pluck.ExtractResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetBody(extractRequest{URLs: urls, Prompt: opts.Prompt}).
		SetResult(&job).
		SetError(&apiError{}).
		Post("/v1/extract")
	if err != nil {
		return nil, fmt.Errorf("start extract job: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	if !job.Success {
		return &pluck.ExtractResponse{Success: false, Error: job.Error}, nil
	}
	// Some deployments answer synchronously with the data inline.
	if job.ID == "" {
		return &job, nil
	}

	return e.wait(ctx, credential, job.ID)
}

// wait polls the job until it reaches a terminal status.
func (e *Extractor) wait(ctx context.Context, credential, id string) (*pluck.ExtractResponse, error) {
	limiter := rate.NewLimiter(rate.Every(e.pollInterval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var status pluck.ExtractResponse
		resp, err := e.client.R().
			SetContext(ctx).
			SetAuthToken(credential).
			SetPathParam("id", id).
			SetResult(&status).
			SetError(&apiError{}).
			Get("/v1/extract/{id}")
		if err != nil {
			return nil, fmt.Errorf("check extract job %s: %w", id, err)
		}
		if resp.IsError() {
			return nil, statusError(resp)
		}

		switch status.Status {
		case StatusCompleted:
			status.ID = id
			return &status, nil
		case StatusFailed, StatusCancelled:
			return nil, pluck.Errorf(pluck.EEXTRACT, "Extract job %s. Error: %s", status.Status, status.Error)
		}
	}
}

// statusError converts a non-2xx response into an application error.
func statusError(resp *resty.Response) error {
	msg := ""
	if body, ok := resp.Error().(*apiError); ok && body.Error != "" {
		msg = body.Error
	} else {
		msg = strings.TrimSpace(resp.String())
	}

	code := pluck.EEXTRACT
	if resp.StatusCode() == http.StatusUnauthorized {
		code = pluck.EUNAUTHORIZED
	}
	return pluck.Errorf(code, "Failed to extract. Status code: %d. Error: %s", resp.StatusCode(), msg)
}

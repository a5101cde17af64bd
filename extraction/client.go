// Package extraction implements the form's client-side behavior: it loads the
// stored credential, runs submissions against a pluck.Extractor, and keeps
// the state and result the form renders.
package extraction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fwojciec/pluck"
)

// DefaultWelcomeDelay is how long a first visit waits before the welcome
// overlay appears.
const DefaultWelcomeDelay = 500 * time.Millisecond

// Client owns the credential, UI state and current result of one profile.
// At most one submission is in flight at a time.
type Client struct {
	extractor   pluck.Extractor
	credentials pluck.CredentialStore
	profile     string

	welcomeDelay      time.Duration
	defaultCredential string

	// credMu serializes credential writes so the store and memory agree.
	credMu sync.Mutex

	mu         sync.Mutex
	credential string
	state      pluck.UIState
	result     *pluck.ExtractionResult
	welcome    *time.Timer
}

// Option configures a Client.
type Option func(*Client)

// WithWelcomeDelay sets the delay before the welcome overlay is shown.
// Defaults to DefaultWelcomeDelay.
func WithWelcomeDelay(d time.Duration) Option {
	return func(c *Client) {
		c.welcomeDelay = d
	}
}

// WithDefaultCredential sets a credential used when none is stored.
// It is held in memory only and never written to the store.
func WithDefaultCredential(credential string) Option {
	return func(c *Client) {
		c.defaultCredential = credential
	}
}

// NewClient creates a Client for profile. Call Start before use.
func NewClient(extractor pluck.Extractor, credentials pluck.CredentialStore, profile string, opts ...Option) *Client {
	c := &Client{
		extractor:    extractor,
		credentials:  credentials,
		profile:      profile,
		welcomeDelay: DefaultWelcomeDelay,
		state:        pluck.UIState{IsFirstVisit: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start loads the stored credential. When no credential is available the
// welcome overlay is scheduled to appear after the welcome delay.
func (c *Client) Start(ctx context.Context) error {
	stored, err := c.credentials.GetCredential(ctx, c.profile, pluck.CredentialKey)
	if err != nil && pluck.ErrorCode(err) != pluck.ENOTFOUND {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case stored != "":
		c.credential = stored
		c.state.IsFirstVisit = false
	case c.defaultCredential != "":
		c.credential = c.defaultCredential
		c.state.IsFirstVisit = false
	default:
		c.scheduleWelcome()
	}
	return nil
}

// scheduleWelcome must be called with mu held.
func (c *Client) scheduleWelcome() {
	if c.welcome != nil {
		c.welcome.Stop()
	}
	c.welcome = time.AfterFunc(c.welcomeDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.credential == "" {
			c.state.ShowWelcomeOverlay = true
		}
	})
}

// Submit runs one extraction of targetURL with prompt and returns the
// displayed result text. The displayed result is also kept on the Client,
// for failures as well as successes.
//
// Returns ECREDENTIAL without calling the extractor when no credential is
// held, ECONFLICT when a submission is already in flight, EUNAUTHORIZED when
// the service rejects the credential, and EEXTRACT for any other failure.
func (c *Client) Submit(ctx context.Context, targetURL, prompt string) (string, error) {
	req := &pluck.ExtractionRequest{TargetURL: targetURL, Prompt: prompt}
	if err := req.Validate(); err != nil {
		return "", err
	}

	credential, err := c.begin()
	if err != nil {
		return "", err
	}
	defer c.finish()

	resp, err := c.extract(ctx, credential, req)
	return c.settle(resp, err)
}

func (c *Client) begin() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsLoading {
		return "", pluck.Errorf(pluck.ECONFLICT, "an extraction is already in progress")
	}
	if c.credential == "" {
		c.state.ShowCredentialModal = true
		return "", pluck.Errorf(pluck.ECREDENTIAL, "Please set your Firecrawl API key first")
	}

	c.state.IsLoading = true
	c.result = nil
	return c.credential, nil
}

func (c *Client) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsLoading = false
}

// extract calls the extractor, turning a panic into an unknown error.
func (c *Client) extract(ctx context.Context, credential string, req *pluck.ExtractionRequest) (resp *pluck.ExtractResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, errUnknown()
		}
	}()
	return c.extractor.Extract(ctx, credential, []string{req.TargetURL}, pluck.ExtractOptions{Prompt: req.Prompt})
}

func (c *Client) settle(resp *pluck.ExtractResponse, err error) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil && resp == nil {
		err = errUnknown()
	}

	if err != nil {
		if pluck.Classify(err) == pluck.KindCredentialInvalid {
			c.state.ShowCredentialModal = true
			c.fail(pluck.KindCredentialInvalid, pluck.InvalidCredentialMessage)
			return "", pluck.Errorf(pluck.EUNAUTHORIZED, "%s", pluck.InvalidCredentialMessage)
		}

		msg := pluck.ErrorMessage(err)
		c.fail(pluck.KindExtractionFailed, msg)

		var appErr *pluck.Error
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", &pluck.Error{Code: pluck.EEXTRACT, Message: msg}
	}

	if !resp.Success {
		msg := "Failed to extract: " + resp.Error
		c.fail(pluck.KindExtractionFailed, msg)
		return "", pluck.Errorf(pluck.EEXTRACT, "%s", msg)
	}

	text, err := pluck.FormatResponse(resp)
	if err != nil {
		c.fail(pluck.KindExtractionFailed, err.Error())
		return "", pluck.Errorf(pluck.EINTERNAL, "format response: %s", err)
	}

	c.result = &pluck.ExtractionResult{Text: text}
	return text, nil
}

// fail must be called with mu held.
func (c *Client) fail(kind pluck.ErrorKind, msg string) {
	c.result = &pluck.ExtractionResult{
		Text:    pluck.FormatErrorResult(msg),
		IsError: true,
		Kind:    kind,
	}
}

func errUnknown() error {
	return pluck.Errorf(pluck.EINTERNAL, "Unknown error occurred")
}

// SaveCredential persists value and closes the credential prompt.
// The credential is not checked against the service; a bad value surfaces on
// the next submission.
func (c *Client) SaveCredential(ctx context.Context, value string) error {
	if value == "" {
		return pluck.Errorf(pluck.EINVALID, "API key required")
	}

	c.credMu.Lock()
	defer c.credMu.Unlock()

	if err := c.credentials.SetCredential(ctx, c.profile, pluck.CredentialKey, value); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.credential = value
	c.state.ShowCredentialModal = false
	c.state.IsFirstVisit = false
	c.state.ShowWelcomeOverlay = false
	if c.welcome != nil {
		c.welcome.Stop()
	}
	return nil
}

// ClearCredential removes the stored credential. The client falls back to
// the default credential, or returns to a first visit when there is none.
func (c *Client) ClearCredential(ctx context.Context) error {
	c.credMu.Lock()
	defer c.credMu.Unlock()

	if err := c.credentials.DeleteCredential(ctx, c.profile, pluck.CredentialKey); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.defaultCredential != "" {
		c.credential = c.defaultCredential
		return nil
	}
	c.credential = ""
	c.state.IsFirstVisit = true
	c.state.ShowWelcomeOverlay = false
	c.scheduleWelcome()
	return nil
}

// OpenCredentialModal shows the credential prompt.
func (c *Client) OpenCredentialModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ShowCredentialModal = true
}

// CancelCredentialModal hides the credential prompt. Without a credential the
// welcome overlay comes back.
func (c *Client) CancelCredentialModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ShowCredentialModal = false
	if c.credential == "" {
		c.state.ShowWelcomeOverlay = true
	}
}

// State returns a snapshot of the UI state.
func (c *Client) State() pluck.UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.HasCredential = c.credential != ""
	return s
}

// Result returns the current displayed result, or nil if there is none.
func (c *Client) Result() *pluck.ExtractionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	r := *c.result
	return &r
}

// Credential returns the credential held in memory.
func (c *Client) Credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential
}

// Close stops the pending welcome timer, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.welcome != nil {
		c.welcome.Stop()
	}
	return nil
}

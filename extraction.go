package pluck

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
)

// DefaultPrompt is the prompt offered when the user has not typed one.
const DefaultPrompt = "Extract the most important information from the page"

// ExtractionRequest is a single user submission.
type ExtractionRequest struct {
	TargetURL string `json:"url"`
	Prompt    string `json:"prompt"`
}

// Validate returns an error if the request would be rejected by the form.
// The checks mirror a required url input and a required text area.
func (r *ExtractionRequest) Validate() error {
	if strings.TrimSpace(r.TargetURL) == "" {
		return Errorf(EINVALID, "url required")
	}
	u, err := url.Parse(r.TargetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Errorf(EINVALID, "url %q is not an absolute URL", r.TargetURL)
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return Errorf(EINVALID, "prompt required")
	}
	return nil
}

// ExtractOptions are the structured options sent alongside the URLs.
type ExtractOptions struct {
	Prompt string `json:"prompt"`
}

// ExtractResponse is the response of the extraction service.
// Data is kept as raw JSON so the displayed text preserves the service's
// field order.
type ExtractResponse struct {
	Success   bool            `json:"success"`
	ID        string          `json:"id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Warning   string          `json:"warning,omitempty"`
	ExpiresAt string          `json:"expiresAt,omitempty"`
}

// Extractor sends URLs and a prompt to an extraction service.
type Extractor interface {
	// Extract runs one extraction authenticated with credential.
	// A response with Success false is an application-level failure reported
	// by the service; transport and protocol failures are returned as errors.
	Extract(ctx context.Context, credential string, urls []string, opts ExtractOptions) (*ExtractResponse, error)
}

// ExtractionResult is the text shown to the user after a submission.
type ExtractionResult struct {
	Text    string    `json:"text"`
	IsError bool      `json:"isError"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// FormatResponse renders the full response as indented JSON.
func FormatResponse(resp *ExtractResponse) (string, error) {
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatErrorResult renders an error message for display. Messages about the
// API key are flagged so they stand out.
func FormatErrorResult(message string) string {
	if strings.Contains(strings.ToLower(message), "api key") {
		return "❌ Error: " + message
	}
	return "Error: " + message
}

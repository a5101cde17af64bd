package pluck

import (
	"context"
	"strings"
)

// CredentialKey is the storage key holding the extraction service API key.
const CredentialKey = "firecrawl_api_key"

// CredentialStore is durable key-value storage scoped to a profile.
// A profile plays the role of a browser's local storage: every browser (or
// CLI user) reads and writes its own keys.
type CredentialStore interface {
	// GetCredential returns the value stored under key.
	// Returns ENOTFOUND if nothing is stored.
	GetCredential(ctx context.Context, profile, key string) (string, error)

	// SetCredential stores value under key, replacing any previous value.
	SetCredential(ctx context.Context, profile, key, value string) error

	// DeleteCredential removes key. Deleting a missing key is not an error.
	DeleteCredential(ctx context.Context, profile, key string) error
}

// MaskCredential hides all but the last four characters of a credential.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	const visible = 4
	if len(credential) <= visible {
		return strings.Repeat("*", len(credential))
	}
	return strings.Repeat("*", len(credential)-visible) + credential[len(credential)-visible:]
}

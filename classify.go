package pluck

import "strings"

// ErrorKind classifies a failed submission by how it is recovered.
type ErrorKind string

// ErrorKind values.
const (
	KindCredentialMissing ErrorKind = "credential_missing"
	KindCredentialInvalid ErrorKind = "credential_invalid"
	KindExtractionFailed  ErrorKind = "extraction_failed"
)

// InvalidCredentialMessage is shown when the service rejects the credential.
const InvalidCredentialMessage = "Invalid or expired API key. Please check your Firecrawl API key or get a new one from firecrawl.dev"

// credentialMarkers are matched case-insensitively against error text when the
// transport does not report a structured code.
var credentialMarkers = []string{"401", "unauthorized", "invalid api key"}

// Classify maps an error to an ErrorKind. Structured codes win; otherwise the
// error text is searched for markers of a rejected credential.
// Returns an empty kind for a nil error.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	switch ErrorCode(err) {
	case ECREDENTIAL:
		return KindCredentialMissing
	case EUNAUTHORIZED:
		return KindCredentialInvalid
	}

	text := strings.ToLower(err.Error())
	for _, marker := range credentialMarkers {
		if strings.Contains(text, marker) {
			return KindCredentialInvalid
		}
	}
	return KindExtractionFailed
}

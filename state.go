package pluck

// UIState holds the flags that drive what the form shows.
type UIState struct {
	// IsLoading is true only while a submission is in flight.
	IsLoading bool `json:"isLoading"`

	// ShowCredentialModal is true while the credential entry prompt is open.
	ShowCredentialModal bool `json:"showCredentialModal"`

	// IsFirstVisit is true until a credential has been loaded or saved.
	IsFirstVisit bool `json:"isFirstVisit"`

	// ShowWelcomeOverlay is true while the first-visit welcome is shown.
	ShowWelcomeOverlay bool `json:"showWelcomeOverlay"`

	// HasCredential reports whether a credential is held in memory.
	HasCredential bool `json:"hasCredential"`
}

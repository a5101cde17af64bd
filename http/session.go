package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/pluck/extraction"
	"github.com/google/uuid"
)

// DefaultProfileCookie names the cookie that identifies a browser profile.
const DefaultProfileCookie = "pluck_profile"

// profileCookieMaxAge keeps the profile for about a year, like local storage
// that is never cleared.
const profileCookieMaxAge = 365 * 24 * time.Hour

// DefaultSessionIdleTimeout is how long an unused profile keeps its client
// in memory. The stored credential outlives it.
const DefaultSessionIdleTimeout = 30 * time.Minute

// ClientFactory creates an extraction client for a browser profile.
type ClientFactory func(profile string) *extraction.Client

// Sessions maps browser profiles to their extraction clients. Each browser
// gets a profile ID in a long-lived cookie; the profile scopes the stored
// credential the same way local storage is scoped to one browser.
//
// Clients idle for longer than IdleTimeout are closed and dropped unless a
// submission is in flight; the next request of that profile starts a new
// client from the store.
type Sessions struct {
	mu        sync.Mutex
	clients   map[string]*session
	newClient ClientFactory
	lastPrune time.Time

	// CookieName overrides DefaultProfileCookie.
	CookieName string

	// Secure marks the profile cookie as HTTPS-only.
	Secure bool

	// IdleTimeout overrides DefaultSessionIdleTimeout.
	IdleTimeout time.Duration
}

type session struct {
	client   *extraction.Client
	lastSeen time.Time
}

// NewSessions creates a new Sessions.
func NewSessions(newClient ClientFactory) *Sessions {
	return &Sessions{
		clients:     make(map[string]*session),
		newClient:   newClient,
		lastPrune:   time.Now(),
		CookieName:  DefaultProfileCookie,
		IdleTimeout: DefaultSessionIdleTimeout,
	}
}

// Client returns the extraction client for the request's profile. A client
// is created and started on the first request of a profile; a request
// without a valid profile cookie gets a new profile.
func (s *Sessions) Client(ctx context.Context, w http.ResponseWriter, r *http.Request) (*extraction.Client, error) {
	profile, ok := s.profile(r)
	if !ok {
		profile = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     s.CookieName,
			Value:    profile,
			Path:     "/",
			MaxAge:   int(profileCookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   s.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if client := s.lookup(profile); client != nil {
		return client, nil
	}

	// Start reads the store, so it runs without holding the lock.
	client := s.newClient(profile)
	if err := client.Start(ctx); err != nil {
		client.Close()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.clients[profile]; ok {
		client.Close()
		existing.lastSeen = time.Now()
		return existing.client, nil
	}
	s.clients[profile] = &session{client: client, lastSeen: time.Now()}
	return client, nil
}

// lookup returns the cached client of profile, or nil. It also drops idle
// sessions.
func (s *Sessions) lookup(profile string) *extraction.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastPrune) > s.IdleTimeout {
		for key, sess := range s.clients {
			if now.Sub(sess.lastSeen) > s.IdleTimeout && !sess.client.State().IsLoading {
				sess.client.Close()
				delete(s.clients, key)
			}
		}
		s.lastPrune = now
	}

	sess, ok := s.clients[profile]
	if !ok {
		return nil
	}
	sess.lastSeen = now
	return sess.client
}

// Len returns the number of profiles with a live client.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// profile returns the profile ID from the request cookie, if it is a UUID.
func (s *Sessions) profile(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.CookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// Close stops every client.
func (s *Sessions) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for profile, sess := range s.clients {
		sess.client.Close()
		delete(s.clients, profile)
	}
	return nil
}

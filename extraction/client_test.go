package extraction_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/pluck"
	"github.com/fwojciec/pluck/extraction"
	"github.com/fwojciec/pluck/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfile = "profile-1"

// memoryStore returns a CredentialStore mock backed by a map.
func memoryStore(initial map[string]string) *mock.CredentialStore {
	var mu sync.Mutex
	values := make(map[string]string)
	for k, v := range initial {
		values[k] = v
	}
	return &mock.CredentialStore{
		GetCredentialFn: func(_ context.Context, profile, key string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			v, ok := values[profile+"/"+key]
			if !ok {
				return "", pluck.Errorf(pluck.ENOTFOUND, "credential not found")
			}
			return v, nil
		},
		SetCredentialFn: func(_ context.Context, profile, key, value string) error {
			mu.Lock()
			defer mu.Unlock()
			values[profile+"/"+key] = value
			return nil
		},
		DeleteCredentialFn: func(_ context.Context, profile, key string) error {
			mu.Lock()
			defer mu.Unlock()
			delete(values, profile+"/"+key)
			return nil
		},
	}
}

// storedKey returns the initial map entry for a stored credential.
func storedKey(value string) map[string]string {
	return map[string]string{testProfile + "/" + pluck.CredentialKey: value}
}

// failingExtractor fails the test if the network would be used.
func failingExtractor(t *testing.T) *mock.Extractor {
	t.Helper()
	return &mock.Extractor{
		ExtractFn: func(context.Context, string, []string, pluck.ExtractOptions) (*pluck.ExtractResponse, error) {
			t.Error("extractor must not be called")
			return nil, errors.New("unexpected call")
		},
	}
}

func respondWith(resp *pluck.ExtractResponse, err error) *mock.Extractor {
	return &mock.Extractor{
		ExtractFn: func(context.Context, string, []string, pluck.ExtractOptions) (*pluck.ExtractResponse, error) {
			return resp, err
		},
	}
}

func startedClient(t *testing.T, extractor pluck.Extractor, store pluck.CredentialStore, opts ...extraction.Option) *extraction.Client {
	t.Helper()
	client := extraction.NewClient(extractor, store, testProfile, opts...)
	require.NoError(t, client.Start(context.Background()))
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_Start(t *testing.T) {
	t.Parallel()

	t.Run("shows welcome overlay after delay when no credential is stored", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(nil),
			extraction.WithWelcomeDelay(10*time.Millisecond))

		state := client.State()
		assert.True(t, state.IsFirstVisit)
		assert.False(t, state.HasCredential)

		assert.Eventually(t, func() bool {
			return client.State().ShowWelcomeOverlay
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("does not show welcome before the delay elapses", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(nil),
			extraction.WithWelcomeDelay(time.Hour))

		assert.False(t, client.State().ShowWelcomeOverlay)
	})

	t.Run("loads stored credential without welcome", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(storedKey("fc-stored")),
			extraction.WithWelcomeDelay(time.Millisecond))

		time.Sleep(20 * time.Millisecond)
		state := client.State()
		assert.False(t, state.IsFirstVisit)
		assert.False(t, state.ShowWelcomeOverlay)
		assert.True(t, state.HasCredential)
		assert.Equal(t, "fc-stored", client.Credential())
	})

	t.Run("uses default credential when none is stored", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(nil),
			extraction.WithDefaultCredential("fc-env"),
			extraction.WithWelcomeDelay(time.Millisecond))

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, "fc-env", client.Credential())
		assert.False(t, client.State().ShowWelcomeOverlay)
	})

	t.Run("prefers stored credential over default", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(storedKey("fc-stored")),
			extraction.WithDefaultCredential("fc-env"))

		assert.Equal(t, "fc-stored", client.Credential())
	})

	t.Run("returns store errors other than not found", func(t *testing.T) {
		t.Parallel()

		store := &mock.CredentialStore{
			GetCredentialFn: func(context.Context, string, string) (string, error) {
				return "", errors.New("disk I/O error")
			},
		}
		client := extraction.NewClient(failingExtractor(t), store, testProfile)
		defer client.Close()

		err := client.Start(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk I/O error")
	})
}

func TestClient_Submit(t *testing.T) {
	t.Parallel()

	t.Run("surfaces credential prompt without calling the extractor", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(nil), extraction.WithWelcomeDelay(time.Hour))

		for range 2 {
			_, err := client.Submit(context.Background(), "https://example.com", "titles")

			require.Error(t, err)
			assert.Equal(t, pluck.ECREDENTIAL, pluck.ErrorCode(err))
			assert.Equal(t, pluck.KindCredentialMissing, pluck.Classify(err))
			state := client.State()
			assert.True(t, state.ShowCredentialModal)
			assert.False(t, state.IsLoading)
			assert.Nil(t, client.Result())
		}
	})

	t.Run("sends URL as single element list with prompt option", func(t *testing.T) {
		t.Parallel()

		var gotCredential string
		var gotURLs []string
		var gotOpts pluck.ExtractOptions
		extractor := &mock.Extractor{
			ExtractFn: func(_ context.Context, credential string, urls []string, opts pluck.ExtractOptions) (*pluck.ExtractResponse, error) {
				gotCredential, gotURLs, gotOpts = credential, urls, opts
				return &pluck.ExtractResponse{Success: true}, nil
			},
		}
		client := startedClient(t, extractor, memoryStore(storedKey("fc-key")))

		_, err := client.Submit(context.Background(), "https://example.com/page", "list prices")

		require.NoError(t, err)
		assert.Equal(t, "fc-key", gotCredential)
		assert.Equal(t, []string{"https://example.com/page"}, gotURLs)
		assert.Equal(t, pluck.ExtractOptions{Prompt: "list prices"}, gotOpts)
	})

	t.Run("displays pretty printed response on success", func(t *testing.T) {
		t.Parallel()

		resp := &pluck.ExtractResponse{
			Success: true,
			Data:    json.RawMessage(`{"title":"Example Domain"}`),
		}
		client := startedClient(t, respondWith(resp, nil), memoryStore(storedKey("fc-key")))

		text, err := client.Submit(context.Background(), "https://example.com", "title")

		require.NoError(t, err)
		expected, err := json.MarshalIndent(resp, "", "  ")
		require.NoError(t, err)
		assert.Equal(t, string(expected), text)
		result := client.Result()
		require.NotNil(t, result)
		assert.Equal(t, string(expected), result.Text)
		assert.False(t, result.IsError)
	})

	t.Run("displays service error when success is false", func(t *testing.T) {
		t.Parallel()

		resp := &pluck.ExtractResponse{Success: false, Error: "X"}
		client := startedClient(t, respondWith(resp, nil), memoryStore(storedKey("fc-key")))

		_, err := client.Submit(context.Background(), "https://example.com", "title")

		require.Error(t, err)
		assert.Equal(t, pluck.EEXTRACT, pluck.ErrorCode(err))
		result := client.Result()
		require.NotNil(t, result)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Text, "Failed to extract: X")
		assert.Equal(t, "Error: Failed to extract: X", result.Text)
		assert.False(t, client.State().ShowCredentialModal)
	})

	t.Run("unsuccessful response mentioning unauthorized is not reclassified", func(t *testing.T) {
		t.Parallel()

		resp := &pluck.ExtractResponse{Success: false, Error: "Unauthorized"}
		client := startedClient(t, respondWith(resp, nil), memoryStore(storedKey("fc-key")))

		_, err := client.Submit(context.Background(), "https://example.com", "title")

		require.Error(t, err)
		assert.Equal(t, pluck.EEXTRACT, pluck.ErrorCode(err))
		result := client.Result()
		require.NotNil(t, result)
		assert.Equal(t, "Error: Failed to extract: Unauthorized", result.Text)
		assert.Equal(t, pluck.KindExtractionFailed, result.Kind)
		assert.False(t, client.State().ShowCredentialModal)
		assert.Equal(t, "fc-key", client.Credential())
	})

	t.Run("reprompts for credential on 401 transport error", func(t *testing.T) {
		t.Parallel()

		for _, msg := range []string{"Request failed with status code 401", "UNAUTHORIZED", "Invalid API Key"} {
			client := startedClient(t, respondWith(nil, errors.New(msg)), memoryStore(storedKey("fc-bad")))

			_, err := client.Submit(context.Background(), "https://example.com", "title")

			require.Error(t, err)
			assert.Equal(t, pluck.EUNAUTHORIZED, pluck.ErrorCode(err))
			assert.True(t, client.State().ShowCredentialModal)
			result := client.Result()
			require.NotNil(t, result)
			assert.NotContains(t, result.Text, msg)
			assert.Equal(t, "❌ Error: "+pluck.InvalidCredentialMessage, result.Text)
			assert.Equal(t, pluck.KindCredentialInvalid, result.Kind)
		}
	})

	t.Run("propagates other transport errors verbatim", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, respondWith(nil, errors.New("dial tcp: connection refused")), memoryStore(storedKey("fc-key")))

		_, err := client.Submit(context.Background(), "https://example.com", "title")

		require.Error(t, err)
		assert.Equal(t, pluck.EEXTRACT, pluck.ErrorCode(err))
		assert.Equal(t, "dial tcp: connection refused", pluck.ErrorMessage(err))
		assert.Equal(t, "Error: dial tcp: connection refused", client.Result().Text)
		assert.False(t, client.State().ShowCredentialModal)
	})

	t.Run("normalizes extractor panics to unknown error", func(t *testing.T) {
		t.Parallel()

		extractor := &mock.Extractor{
			ExtractFn: func(context.Context, string, []string, pluck.ExtractOptions) (*pluck.ExtractResponse, error) {
				panic("nil map")
			},
		}
		client := startedClient(t, extractor, memoryStore(storedKey("fc-key")))

		_, err := client.Submit(context.Background(), "https://example.com", "title")

		require.Error(t, err)
		assert.Equal(t, pluck.EINTERNAL, pluck.ErrorCode(err))
		assert.Equal(t, "Error: Unknown error occurred", client.Result().Text)
		assert.False(t, client.State().IsLoading)
	})

	t.Run("rejects invalid input before checking credential", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(nil), extraction.WithWelcomeDelay(time.Hour))

		_, err := client.Submit(context.Background(), "", "title")

		assert.Equal(t, pluck.EINVALID, pluck.ErrorCode(err))
		assert.False(t, client.State().ShowCredentialModal)
	})

	t.Run("replaces previous result", func(t *testing.T) {
		t.Parallel()

		responses := []*pluck.ExtractResponse{
			{Success: false, Error: "first"},
			{Success: true, Data: json.RawMessage(`{"n":2}`)},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(context.Context, string, []string, pluck.ExtractOptions) (*pluck.ExtractResponse, error) {
				resp := responses[0]
				responses = responses[1:]
				return resp, nil
			},
		}
		client := startedClient(t, extractor, memoryStore(storedKey("fc-key")))

		_, _ = client.Submit(context.Background(), "https://example.com", "title")
		require.True(t, client.Result().IsError)

		_, err := client.Submit(context.Background(), "https://example.com", "title")

		require.NoError(t, err)
		assert.False(t, client.Result().IsError)
		assert.Contains(t, client.Result().Text, `"n": 2`)
	})
}

func TestClient_Submit_Loading(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	extractor := &mock.Extractor{
		ExtractFn: func(context.Context, string, []string, pluck.ExtractOptions) (*pluck.ExtractResponse, error) {
			close(started)
			<-release
			return &pluck.ExtractResponse{Success: true}, nil
		},
	}
	client := startedClient(t, extractor, memoryStore(storedKey("fc-key")))

	assert.False(t, client.State().IsLoading, "not loading before first submission")

	done := make(chan error, 1)
	go func() {
		_, err := client.Submit(context.Background(), "https://example.com", "title")
		done <- err
	}()

	<-started
	assert.True(t, client.State().IsLoading, "loading while in flight")
	assert.Nil(t, client.Result(), "previous result cleared while in flight")

	_, err := client.Submit(context.Background(), "https://example.com", "title")
	assert.Equal(t, pluck.ECONFLICT, pluck.ErrorCode(err), "overlapping submission rejected")

	close(release)
	require.NoError(t, <-done)
	assert.False(t, client.State().IsLoading, "not loading after settle")
}

func TestClient_SaveCredential(t *testing.T) {
	t.Parallel()

	t.Run("persists credential and closes prompts", func(t *testing.T) {
		t.Parallel()

		store := memoryStore(nil)
		client := startedClient(t, failingExtractor(t), store, extraction.WithWelcomeDelay(time.Millisecond))
		assert.Eventually(t, func() bool { return client.State().ShowWelcomeOverlay }, time.Second, time.Millisecond)
		client.OpenCredentialModal()

		require.NoError(t, client.SaveCredential(context.Background(), "abc"))

		state := client.State()
		assert.False(t, state.ShowCredentialModal)
		assert.False(t, state.IsFirstVisit)
		assert.False(t, state.ShowWelcomeOverlay)
		assert.True(t, state.HasCredential)

		stored, err := store.GetCredential(context.Background(), testProfile, pluck.CredentialKey)
		require.NoError(t, err)
		assert.Equal(t, "abc", stored)
	})

	t.Run("fresh startup reads saved credential back", func(t *testing.T) {
		t.Parallel()

		store := memoryStore(nil)
		first := startedClient(t, failingExtractor(t), store, extraction.WithWelcomeDelay(time.Hour))
		require.NoError(t, first.SaveCredential(context.Background(), "abc"))

		second := startedClient(t, failingExtractor(t), store, extraction.WithWelcomeDelay(time.Millisecond))

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, "abc", second.Credential())
		assert.False(t, second.State().ShowWelcomeOverlay)
		assert.False(t, second.State().IsFirstVisit)
	})

	t.Run("rejects empty credential", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(nil), extraction.WithWelcomeDelay(time.Hour))

		err := client.SaveCredential(context.Background(), "")

		assert.Equal(t, pluck.EINVALID, pluck.ErrorCode(err))
	})

	t.Run("keeps state when store fails", func(t *testing.T) {
		t.Parallel()

		store := memoryStore(nil)
		store.SetCredentialFn = func(context.Context, string, string, string) error {
			return errors.New("read-only database")
		}
		client := startedClient(t, failingExtractor(t), store, extraction.WithWelcomeDelay(time.Hour))
		client.OpenCredentialModal()

		err := client.SaveCredential(context.Background(), "abc")

		require.Error(t, err)
		assert.True(t, client.State().ShowCredentialModal)
		assert.False(t, client.State().HasCredential)
	})
}

func TestClient_CredentialModal(t *testing.T) {
	t.Parallel()

	t.Run("cancel without credential brings welcome back", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(nil), extraction.WithWelcomeDelay(time.Hour))
		client.OpenCredentialModal()

		client.CancelCredentialModal()

		state := client.State()
		assert.False(t, state.ShowCredentialModal)
		assert.True(t, state.ShowWelcomeOverlay)
	})

	t.Run("cancel with credential only closes the modal", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(storedKey("fc-key")))
		client.OpenCredentialModal()

		client.CancelCredentialModal()

		state := client.State()
		assert.False(t, state.ShowCredentialModal)
		assert.False(t, state.ShowWelcomeOverlay)
	})
}

func TestClient_ClearCredential(t *testing.T) {
	t.Parallel()

	t.Run("removes the stored credential", func(t *testing.T) {
		t.Parallel()

		store := memoryStore(storedKey("fc-key"))
		client := startedClient(t, failingExtractor(t), store, extraction.WithWelcomeDelay(time.Hour))

		require.NoError(t, client.ClearCredential(context.Background()))

		assert.False(t, client.State().HasCredential)
		_, err := store.GetCredential(context.Background(), testProfile, pluck.CredentialKey)
		assert.Equal(t, pluck.ENOTFOUND, pluck.ErrorCode(err))
	})

	t.Run("returns to a first visit and shows the welcome again", func(t *testing.T) {
		t.Parallel()

		client := startedClient(t, failingExtractor(t), memoryStore(storedKey("fc-key")),
			extraction.WithWelcomeDelay(10*time.Millisecond))
		require.False(t, client.State().IsFirstVisit)

		require.NoError(t, client.ClearCredential(context.Background()))

		assert.True(t, client.State().IsFirstVisit)
		assert.Eventually(t, func() bool {
			return client.State().ShowWelcomeOverlay
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("falls back to the default credential", func(t *testing.T) {
		t.Parallel()

		store := memoryStore(nil)
		client := startedClient(t, failingExtractor(t), store,
			extraction.WithDefaultCredential("fc-env"),
			extraction.WithWelcomeDelay(10*time.Millisecond))
		require.NoError(t, client.SaveCredential(context.Background(), "fc-saved"))

		require.NoError(t, client.ClearCredential(context.Background()))
		assert.Equal(t, "fc-env", client.Credential())

		fresh := startedClient(t, failingExtractor(t), store, extraction.WithDefaultCredential("fc-env"))
		assert.Equal(t, fresh.Credential(), client.Credential())

		time.Sleep(30 * time.Millisecond)
		state := client.State()
		assert.False(t, state.IsFirstVisit)
		assert.False(t, state.ShowWelcomeOverlay)
		assert.True(t, state.HasCredential)
	})

	t.Run("concurrent save and clear leave store and memory in agreement", func(t *testing.T) {
		t.Parallel()

		store := memoryStore(nil)
		client := startedClient(t, failingExtractor(t), store, extraction.WithWelcomeDelay(time.Hour))

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				assert.NoError(t, client.SaveCredential(context.Background(), "fc-key-"+string(rune('a'+i%26))))
			}()
			go func() {
				defer wg.Done()
				assert.NoError(t, client.ClearCredential(context.Background()))
			}()
		}
		wg.Wait()

		stored, err := store.GetCredential(context.Background(), testProfile, pluck.CredentialKey)
		if pluck.ErrorCode(err) == pluck.ENOTFOUND {
			stored = ""
		} else {
			require.NoError(t, err)
		}
		assert.Equal(t, stored, client.Credential())
	})
}

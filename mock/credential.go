package mock

import (
	"context"

	"github.com/fwojciec/pluck"
)

var _ pluck.CredentialStore = (*CredentialStore)(nil)

// CredentialStore is a mock implementation of pluck.CredentialStore.
type CredentialStore struct {
	GetCredentialFn    func(ctx context.Context, profile, key string) (string, error)
	SetCredentialFn    func(ctx context.Context, profile, key, value string) error
	DeleteCredentialFn func(ctx context.Context, profile, key string) error
}

func (s *CredentialStore) GetCredential(ctx context.Context, profile, key string) (string, error) {
	return s.GetCredentialFn(ctx, profile, key)
}

func (s *CredentialStore) SetCredential(ctx context.Context, profile, key, value string) error {
	return s.SetCredentialFn(ctx, profile, key, value)
}

func (s *CredentialStore) DeleteCredential(ctx context.Context, profile, key string) error {
	return s.DeleteCredentialFn(ctx, profile, key)
}

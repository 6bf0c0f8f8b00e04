package memory

import (
	"context"

	"autokami/internal/app/ports"
)

type CredentialRepo struct {
	store *Store
}

func NewCredentialRepo(store *Store) CredentialRepo {
	return CredentialRepo{store: store}
}

func (r CredentialRepo) Get(_ context.Context, operator string) (ports.SealedCredential, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.credentials[operator]
	if !ok {
		return ports.SealedCredential{}, ports.ErrNotFound
	}
	return c, nil
}

func (r CredentialRepo) Put(_ context.Context, credential ports.SealedCredential) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if credential.UpdatedAt.IsZero() {
		credential.UpdatedAt = r.store.now()
	}
	r.store.credentials[credential.OperatorIdentity] = credential
	return nil
}

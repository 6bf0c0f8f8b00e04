package signer

import (
	"context"
	"errors"
	"fmt"

	"autokami/internal/app/ports"
)

var ErrNoCredential = errors.New("no signing credential for operator")

// Scope hands out decrypted credentials for the length of one call.
type Scope struct {
	Vault ports.CredentialVault
}

// With decrypts the operator's credential, runs fn with it and wipes the
// secret before returning, whatever fn returns.
func (s Scope) With(ctx context.Context, operator string, fn func(ctx context.Context, cred ports.Credential) error) error {
	if s.Vault == nil {
		return ErrNoCredential
	}
	cred, err := s.Vault.Decrypt(ctx, operator)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNoCredential, operator)
		}
		return fmt.Errorf("decrypt credential: %w", err)
	}
	defer cred.Wipe()
	if cred.Empty() {
		return fmt.Errorf("%w: %s", ErrNoCredential, operator)
	}
	return fn(ctx, cred)
}

package ports

import (
	"context"

	"autokami/internal/domain/kami"
)

type Auditor interface {
	Record(ctx context.Context, event kami.AuditEvent) error
}

// Locker runs fn with exclusive access to key.
type Locker interface {
	RunExclusive(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// CredentialScope lends a decrypted credential to fn for the duration of the
// call only.
type CredentialScope interface {
	With(ctx context.Context, operator string, fn func(ctx context.Context, cred Credential) error) error
}

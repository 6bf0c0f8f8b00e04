package ports

import "context"

// Credential is a decrypted signing secret. Holders must not retain it past
// the operation it was fetched for.
type Credential struct {
	secret []byte
}

func NewCredential(secret []byte) Credential {
	return Credential{secret: secret}
}

func (c Credential) Bytes() []byte {
	return c.secret
}

func (c Credential) Empty() bool {
	return len(c.secret) == 0
}

// Wipe zeroes the secret in place.
func (c Credential) Wipe() {
	for i := range c.secret {
		c.secret[i] = 0
	}
}

type CredentialVault interface {
	Decrypt(ctx context.Context, operator string) (Credential, error)
}

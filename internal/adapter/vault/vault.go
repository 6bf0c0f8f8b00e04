// Package vault seals operator signing keys at rest with AES-256-GCM under a
// key derived from the service master key with argon2id.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"autokami/internal/app/ports"

	"golang.org/x/crypto/argon2"
)

const (
	keyLen   = 32
	saltLen  = 16
	nonceLen = 12
)

var ErrSealed = errors.New("credential cannot be opened")

type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

var DefaultParams = Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}

// Vault implements ports.CredentialVault over a credential repository.
type Vault struct {
	Credentials ports.CredentialRepository
	MasterKey   string
	Params      Params
	Now         func() time.Time
}

func (v Vault) Decrypt(ctx context.Context, operator string) (ports.Credential, error) {
	sealed, err := v.Credentials.Get(ctx, operator)
	if err != nil {
		return ports.Credential{}, err
	}
	secret, err := Open(sealed, v.MasterKey, v.params())
	if err != nil {
		return ports.Credential{}, err
	}
	return ports.NewCredential(secret), nil
}

// Store seals secret for operator and replaces any stored credential.
func (v Vault) Store(ctx context.Context, operator string, secret []byte) error {
	sealed, err := Seal(secret, v.MasterKey, operator, v.params())
	if err != nil {
		return err
	}
	if v.Now != nil {
		sealed.UpdatedAt = v.Now()
	}
	return v.Credentials.Put(ctx, sealed)
}

func (v Vault) params() Params {
	if v.Params.Time == 0 {
		return DefaultParams
	}
	return v.Params
}

// Seal encrypts secret with a fresh salt and nonce. The operator identity is
// bound as additional data, so a row copied to another operator fails to open.
func Seal(secret []byte, masterKey, operator string, p Params) (ports.SealedCredential, error) {
	if masterKey == "" {
		return ports.SealedCredential{}, errors.New("master key is empty")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return ports.SealedCredential{}, fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := newGCM(masterKey, salt, p)
	if err != nil {
		return ports.SealedCredential{}, err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return ports.SealedCredential{}, fmt.Errorf("generate nonce: %w", err)
	}
	return ports.SealedCredential{
		OperatorIdentity: operator,
		Ciphertext:       gcm.Seal(nil, nonce, secret, []byte(operator)),
		Salt:             salt,
		Nonce:            nonce,
		UpdatedAt:        time.Now().UTC(),
	}, nil
}

func Open(sealed ports.SealedCredential, masterKey string, p Params) ([]byte, error) {
	if len(sealed.Nonce) != nonceLen {
		return nil, fmt.Errorf("%w: nonce length %d", ErrSealed, len(sealed.Nonce))
	}
	gcm, err := newGCM(masterKey, sealed.Salt, p)
	if err != nil {
		return nil, err
	}
	secret, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, []byte(sealed.OperatorIdentity))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealed, err)
	}
	return secret, nil
}

func newGCM(masterKey string, salt []byte, p Params) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(masterKey), salt, p.Time, p.MemoryKiB, p.Threads, keyLen)
	defer wipe(key)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

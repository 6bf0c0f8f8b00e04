package signer

import (
	"context"
	"errors"
	"testing"

	"autokami/internal/app/ports"
)

type stubVault struct {
	secret []byte
	err    error
	calls  int
}

func (v *stubVault) Decrypt(context.Context, string) (ports.Credential, error) {
	v.calls++
	if v.err != nil {
		return ports.Credential{}, v.err
	}
	return ports.NewCredential(v.secret), nil
}

func TestScope_WipesSecretAfterSuccess(t *testing.T) {
	v := &stubVault{secret: []byte("s3cr3t")}
	var seen string
	err := Scope{Vault: v}.With(context.Background(), "0xabc", func(_ context.Context, cred ports.Credential) error {
		seen = string(cred.Bytes())
		return nil
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if seen != "s3cr3t" {
		t.Fatalf("fn saw %q", seen)
	}
	for _, b := range v.secret {
		if b != 0 {
			t.Fatalf("secret not wiped: %v", v.secret)
		}
	}
}

func TestScope_WipesSecretAfterFailure(t *testing.T) {
	v := &stubVault{secret: []byte("s3cr3t")}
	want := errors.New("reverted")
	err := Scope{Vault: v}.With(context.Background(), "0xabc", func(context.Context, ports.Credential) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err=%v want %v", err, want)
	}
	for _, b := range v.secret {
		if b != 0 {
			t.Fatalf("secret not wiped after failure")
		}
	}
}

func TestScope_MissingCredential(t *testing.T) {
	v := &stubVault{err: ports.ErrNotFound}
	called := false
	err := Scope{Vault: v}.With(context.Background(), "0xabc", func(context.Context, ports.Credential) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err=%v want ErrNoCredential", err)
	}
	if called {
		t.Fatalf("fn must not run without a credential")
	}
}

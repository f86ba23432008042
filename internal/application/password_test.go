package application

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

var fastArgon2idParams = Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	t.Run("argon2id round trip", func(t *testing.T) {
		hash, err := CreatePasswordHash("s3cret!", fastArgon2idParams)
		if err != nil {
			t.Fatalf("CreatePasswordHash: %v", err)
		}
		if err := VerifyPassword(hash, "s3cret!"); err != nil {
			t.Fatalf("expected password to verify, got %v", err)
		}
		if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if NeedsRehash(hash) {
			t.Fatalf("argon2id hash should not need rehash")
		}
	})

	t.Run("legacy bcrypt hashes are accepted", func(t *testing.T) {
		raw, err := bcrypt.GenerateFromPassword([]byte("senha123"), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("bcrypt: %v", err)
		}
		hash := string(raw)
		if err := VerifyPassword(hash, "senha123"); err != nil {
			t.Fatalf("expected bcrypt password to verify, got %v", err)
		}
		if err := VerifyPassword(hash, "senha124"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if !NeedsRehash(hash) {
			t.Fatalf("bcrypt hash should need rehash")
		}
	})

	t.Run("garbage hashes are rejected", func(t *testing.T) {
		if err := VerifyPassword("not-a-hash", "x"); !errors.Is(err, ErrInvalidPasswordHash) {
			t.Fatalf("expected ErrInvalidPasswordHash, got %v", err)
		}
	})
}

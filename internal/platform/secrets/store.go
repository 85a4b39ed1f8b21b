// Package secrets keeps integration credentials encrypted at rest and hands out plaintext only on request.
package secrets

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

var ErrNotFound = errors.New("secrets: reference not found")

// Getter resolves a secret reference to its plaintext. Callers must not keep the result beyond the
// call that needed it.
type Getter interface {
	Get(ctx context.Context, ref string) (string, error)
}

type Store struct {
	db  *sql.DB
	key []byte
	now func() time.Time
}

func NewStore(db *sql.DB, key string) (*Store, error) {
	if key == "" {
		return nil, fmt.Errorf("secrets: key is required")
	}
	sum := sha256.Sum256([]byte(key))
	return &Store{db: db, key: sum[:], now: time.Now}, nil
}

// Seal encrypts plaintext and returns the reference to store on the integration row.
func (s *Store) Seal(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("secrets: plaintext is required")
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("secrets: create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce generation failed: %w", err)
	}

	ref := "sec_" + uuid.New().String()
	// the reference is bound as associated data so ciphertexts cannot be swapped between rows
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(ref))

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO integration_secrets (id, ciphertext, created_at) VALUES (?, ?, ?)`,
		ref, sealed, s.now().Unix())
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (s *Store) Get(ctx context.Context, ref string) (string, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT ciphertext FROM integration_secrets WHERE id = ?`, ref).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("secrets: create cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", fmt.Errorf("secrets: ciphertext too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(ref))
	if err != nil {
		return "", fmt.Errorf("secrets: decrypt: %w", err)
	}
	return string(plaintext), nil
}

var _ Getter = (*Store)(nil)

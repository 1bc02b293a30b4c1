package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
)

const blobVersion = "v1"

var ErrMalformedBlob = errors.New("malformed credential blob")

// CredentialCipher seals credentials with AES-GCM. The owner id is bound as
// additional data, so a blob only opens for the user it was sealed for.
//
// Blob format: v1.<base64url(owner)>.<base64(nonce || ciphertext)>
type CredentialCipher struct {
	gcm cipher.AEAD
}

var _ adapter.CredentialCipher = (*CredentialCipher)(nil)

// NewCredentialCipher expects a 16, 24 or 32 byte key (AES-128/192/256).
func NewCredentialCipher(key string) (*CredentialCipher, error) {
	k := []byte(key)
	if n := len(k); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &CredentialCipher{gcm: gcm}, nil
}

func (c *CredentialCipher) Encrypt(ctx context.Context, plaintext, ownerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ownerID == "" {
		return "", domain.Validation("owner_id", "is required")
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := c.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(ownerID))
	return strings.Join([]string{
		blobVersion,
		base64.RawURLEncoding.EncodeToString([]byte(ownerID)),
		base64.StdEncoding.EncodeToString(ct),
	}, "."), nil
}

// Decrypt returns domain.ErrForbidden unless requesterID is the owner the
// blob was sealed for.
func (c *CredentialCipher) Decrypt(ctx context.Context, blob, requesterID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	owner, data, err := c.split(blob)
	if err != nil {
		return "", err
	}
	if requesterID == "" || requesterID != owner {
		return "", domain.ErrForbidden
	}
	ns := c.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("%w: ciphertext too short", ErrMalformedBlob)
	}
	pt, err := c.gcm.Open(nil, data[:ns], data[ns:], []byte(owner))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

func (c *CredentialCipher) split(blob string) (string, []byte, error) {
	parts := strings.Split(blob, ".")
	if len(parts) != 3 || parts[0] != blobVersion {
		return "", nil, ErrMalformedBlob
	}
	owner, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("%w: owner: %v", ErrMalformedBlob, err)
	}
	data, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", nil, fmt.Errorf("%w: base64 decode: %v", ErrMalformedBlob, err)
	}
	return string(owner), data, nil
}

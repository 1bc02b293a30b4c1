package adapter

import "context"

// CredentialCipher seals account credentials at rest.
// Decrypt returns domain.ErrForbidden when requesterID may not read the blob.
type CredentialCipher interface {
	Encrypt(ctx context.Context, plaintext, ownerID string) (string, error)
	Decrypt(ctx context.Context, blob, requesterID string) (string, error)
}

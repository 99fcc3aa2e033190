// Package secrets encrypts provider credentials at rest with age X25519
// keys. The key file lives next to the database and is generated on first
// use.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"
)

// AgeEncryptor encrypts and decrypts blobs with a single X25519 identity.
type AgeEncryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeEncryptor loads an identity from an age key file.
func NewAgeEncryptor(keyPath string) (*AgeEncryptor, error) {
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("open age key: %w", err)
	}
	defer f.Close()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age key %s: %w", keyPath, err)
	}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return &AgeEncryptor{identity: x, recipient: x.Recipient()}, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity found in %s", keyPath)
}

// NewEphemeralEncryptor generates an identity that is never persisted.
// Anything encrypted with it is unreadable after the process exits.
func NewEphemeralEncryptor() (*AgeEncryptor, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate age key: %w", err)
	}
	return &AgeEncryptor{identity: id, recipient: id.Recipient()}, nil
}

// EnsureKeyFile loads the key at path, generating it with 0600 permissions
// when absent. The file format matches age-keygen output.
func EnsureKeyFile(path string) (*AgeEncryptor, error) {
	if _, err := os.Stat(path); err == nil {
		return NewAgeEncryptor(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat age key: %w", err)
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate age key: %w", err)
	}

	content := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
		time.Now().Format(time.RFC3339), id.Recipient(), id)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("write age key: %w", err)
	}
	return &AgeEncryptor{identity: id, recipient: id.Recipient()}, nil
}

// Encrypt seals plaintext for this encryptor's recipient.
func (e *AgeEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("start encryption: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens a blob sealed by Encrypt.
func (e *AgeEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read decrypted data: %w", err)
	}
	return data, nil
}

// PublicKey returns the age recipient string for this encryptor.
func (e *AgeEncryptor) PublicKey() string {
	return e.recipient.String()
}

package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/revittco/anibridge/internal/store"
)

// Manager stores provider credentials through a CredentialStore, encrypting
// the field map at rest. Each provider owns one encrypted blob holding a
// key/value map (client name, API key, and so on).
type Manager struct {
	store     store.CredentialStore
	encryptor *AgeEncryptor
}

// NewManager creates a secrets Manager.
func NewManager(s store.CredentialStore, enc *AgeEncryptor) *Manager {
	return &Manager{store: s, encryptor: enc}
}

// Put encrypts and stores a credential field for the given provider,
// preserving any other fields already stored.
func (m *Manager) Put(ctx context.Context, provider, key, value string) error {
	fields, err := m.load(ctx, provider)
	if err != nil {
		return err
	}

	fields[key] = value

	encrypted, err := m.encryptFields(fields)
	if err != nil {
		return err
	}

	cred := &store.ProviderCredential{Provider: provider, EncryptedData: encrypted}
	if err := m.store.UpsertCredential(ctx, cred); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// Get decrypts and returns one credential field for the given provider.
func (m *Manager) Get(ctx context.Context, provider, key string) (string, error) {
	cred, err := m.store.GetCredential(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("get credential %s: %w", provider, err)
	}

	fields, err := m.decryptFields(cred.EncryptedData)
	if err != nil {
		return "", err
	}

	val, ok := fields[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return val, nil
}

// All decrypts and returns every credential field for the given provider.
func (m *Manager) All(ctx context.Context, provider string) (map[string]string, error) {
	cred, err := m.store.GetCredential(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", provider, err)
	}
	return m.decryptFields(cred.EncryptedData)
}

// List returns the credential field names for the given provider (no values).
func (m *Manager) List(ctx context.Context, provider string) ([]string, error) {
	fields, err := m.All(ctx, provider)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes one credential field from the given provider. Deleting the
// last field removes the provider's credential row entirely.
func (m *Manager) Delete(ctx context.Context, provider, key string) error {
	cred, err := m.store.GetCredential(ctx, provider)
	if err != nil {
		return fmt.Errorf("get credential %s: %w", provider, err)
	}

	fields, err := m.decryptFields(cred.EncryptedData)
	if err != nil {
		return err
	}

	if _, ok := fields[key]; !ok {
		return store.ErrNotFound
	}
	delete(fields, key)

	if len(fields) == 0 {
		return m.store.DeleteCredential(ctx, provider)
	}

	encrypted, err := m.encryptFields(fields)
	if err != nil {
		return err
	}
	cred.EncryptedData = encrypted
	return m.store.UpsertCredential(ctx, cred)
}

// DeleteAll removes every stored credential for the given provider.
func (m *Manager) DeleteAll(ctx context.Context, provider string) error {
	return m.store.DeleteCredential(ctx, provider)
}

// Providers returns the names of providers with stored credentials.
func (m *Manager) Providers(ctx context.Context) ([]string, error) {
	return m.store.ListCredentialProviders(ctx)
}

// load fetches and decrypts a provider's field map, returning an empty map
// when the provider has no stored credentials yet.
func (m *Manager) load(ctx context.Context, provider string) (map[string]string, error) {
	cred, err := m.store.GetCredential(ctx, provider)
	if errors.Is(err, store.ErrNotFound) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", provider, err)
	}
	return m.decryptFields(cred.EncryptedData)
}

// decryptFields decrypts the stored blob into a key/value map.
func (m *Manager) decryptFields(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	plaintext, err := m.encryptor.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}

	var fields map[string]string
	if err := json.Unmarshal(plaintext, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return fields, nil
}

// encryptFields serializes and encrypts a key/value map.
func (m *Manager) encryptFields(fields map[string]string) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}

	encrypted, err := m.encryptor.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("encrypt credential: %w", err)
	}
	return encrypted, nil
}

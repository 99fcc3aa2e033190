package secrets_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/revittco/anibridge/internal/secrets"
	"github.com/revittco/anibridge/internal/store"
	"github.com/revittco/anibridge/internal/store/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "anibridge.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := secrets.NewEphemeralEncryptor()
	if err != nil {
		t.Fatalf("NewEphemeralEncryptor: %v", err)
	}

	plaintext := []byte(`{"client":"anibridge","api_key":"s3cret"}`)
	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if string(sealed) == string(plaintext) {
		t.Fatal("ciphertext equals plaintext")
	}

	opened, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(opened) != string(plaintext) {
		t.Fatalf("round trip = %q, want %q", opened, plaintext)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	a, err := secrets.NewEphemeralEncryptor()
	if err != nil {
		t.Fatalf("NewEphemeralEncryptor: %v", err)
	}
	b, err := secrets.NewEphemeralEncryptor()
	if err != nil {
		t.Fatalf("NewEphemeralEncryptor: %v", err)
	}

	sealed, err := a.Encrypt([]byte("only for a"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := b.Decrypt(sealed); err == nil {
		t.Fatal("Decrypt with wrong identity succeeded")
	}
}

func TestEnsureKeyFileCreatesAndReloads(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "anibridge.db.age")

	first, err := secrets.EnsureKeyFile(keyPath)
	if err != nil {
		t.Fatalf("EnsureKeyFile: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("key file mode = %o, want 600", perm)
	}

	sealed, err := first.Encrypt([]byte("persisted"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// A second call must load the same identity, not regenerate.
	second, err := secrets.EnsureKeyFile(keyPath)
	if err != nil {
		t.Fatalf("EnsureKeyFile reload: %v", err)
	}
	opened, err := second.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt with reloaded key: %v", err)
	}
	if string(opened) != "persisted" {
		t.Fatalf("Decrypt = %q, want %q", opened, "persisted")
	}
	if first.PublicKey() != second.PublicKey() {
		t.Fatalf("public key changed across reload: %s != %s", first.PublicKey(), second.PublicKey())
	}
}

func TestNewAgeEncryptorMissingFile(t *testing.T) {
	if _, err := secrets.NewAgeEncryptor(filepath.Join(t.TempDir(), "absent.age")); err == nil {
		t.Fatal("NewAgeEncryptor on missing file succeeded")
	}
}

func newTestManager(t *testing.T) *secrets.Manager {
	t.Helper()
	enc, err := secrets.NewEphemeralEncryptor()
	if err != nil {
		t.Fatalf("NewEphemeralEncryptor: %v", err)
	}
	return secrets.NewManager(newTestDB(t), enc)
}

func TestManagerPutGet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if err := m.Put(ctx, "anidb", "client", "anibridge"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(ctx, "anidb", "api_key", "s3cret"); err != nil {
		t.Fatalf("Put second field: %v", err)
	}

	got, err := m.Get(ctx, "anidb", "api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("Get = %q, want %q", got, "s3cret")
	}

	// The first field must survive the second Put.
	all, err := m.All(ctx, "anidb")
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := map[string]string{"client": "anibridge", "api_key": "s3cret"}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("All = %v, want %v", all, want)
	}

	keys, err := m.List(ctx, "anidb")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"api_key", "client"}) {
		t.Fatalf("List = %v, want [api_key client]", keys)
	}
}

func TestManagerPutOverwritesField(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if err := m.Put(ctx, "anidb", "api_key", "old"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(ctx, "anidb", "api_key", "new"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	got, err := m.Get(ctx, "anidb", "api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "new" {
		t.Fatalf("Get = %q, want %q", got, "new")
	}
}

func TestManagerGetMissing(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.Get(ctx, "anidb", "api_key"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get on empty store = %v, want ErrNotFound", err)
	}

	if err := m.Put(ctx, "anidb", "client", "anibridge"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := m.Get(ctx, "anidb", "api_key"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get missing field = %v, want ErrNotFound", err)
	}
}

func TestManagerDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if err := m.Put(ctx, "anidb", "client", "anibridge"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(ctx, "anidb", "api_key", "s3cret"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := m.Delete(ctx, "anidb", "api_key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "anidb", "api_key"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get deleted field = %v, want ErrNotFound", err)
	}
	if _, err := m.Get(ctx, "anidb", "client"); err != nil {
		t.Fatalf("Get surviving field: %v", err)
	}

	if err := m.Delete(ctx, "anidb", "gone"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Delete missing field = %v, want ErrNotFound", err)
	}

	// Deleting the last field drops the provider row.
	if err := m.Delete(ctx, "anidb", "client"); err != nil {
		t.Fatalf("Delete last field: %v", err)
	}
	if _, err := m.All(ctx, "anidb"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("All after last delete = %v, want ErrNotFound", err)
	}
}

func TestManagerProviders(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	names, err := m.Providers(ctx)
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("Providers on empty store = %v, want none", names)
	}

	if err := m.Put(ctx, "anidb", "client", "anibridge"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(ctx, "tmdb", "api_key", "k"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	names, err = m.Providers(ctx)
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"anidb", "tmdb"}) {
		t.Fatalf("Providers = %v, want [anidb tmdb]", names)
	}

	if err := m.DeleteAll(ctx, "tmdb"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	names, err = m.Providers(ctx)
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"anidb"}) {
		t.Fatalf("Providers after DeleteAll = %v, want [anidb]", names)
	}
}

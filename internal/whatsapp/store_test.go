package whatsapp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCredentialStoreRoundTrip(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "auth"))

	if store.HasCredentials() {
		t.Error("Fresh store should have no credentials")
	}
	if _, err := store.LoadDevice(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Expected ErrNoCredentials on fresh store, got %v", err)
	}

	saved := DeviceInfo{
		JID:      "5511999998888@s.whatsapp.net",
		PushName: "Salon Agenda",
		PairedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.SaveDevice(saved); err != nil {
		t.Fatalf("SaveDevice failed: %v", err)
	}

	loaded, err := store.LoadDevice()
	if err != nil {
		t.Fatalf("LoadDevice failed: %v", err)
	}
	if loaded.JID != saved.JID {
		t.Errorf("Expected JID %q, got %q", saved.JID, loaded.JID)
	}
	if loaded.PushName != saved.PushName {
		t.Errorf("Expected push name %q, got %q", saved.PushName, loaded.PushName)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be stamped on save")
	}
}

func TestCredentialStoreCorruptMetadata(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "auth")
	store := NewCredentialStore(dir)

	if err := store.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, deviceMetaFile), []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := store.LoadDevice(); !errors.Is(err, ErrCorruptStore) {
		t.Errorf("Expected ErrCorruptStore, got %v", err)
	}
}

func TestCredentialStoreMissingJIDIsCorrupt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "auth")
	store := NewCredentialStore(dir)

	if err := store.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, deviceMetaFile), []byte("pushName: x\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := store.LoadDevice(); !errors.Is(err, ErrCorruptStore) {
		t.Errorf("Expected ErrCorruptStore for metadata without JID, got %v", err)
	}
}

func TestCredentialStoreClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "auth")
	store := NewCredentialStore(dir)

	if err := store.SaveDevice(DeviceInfo{JID: "x@s.whatsapp.net", PairedAt: time.Now()}); err != nil {
		t.Fatalf("SaveDevice failed: %v", err)
	}
	// Simulate the transport database living next to the metadata.
	if err := os.WriteFile(store.DatabasePath(), []byte("sqlite"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	// The directory exists again and is empty: a load reports missing
	// credentials, never a corrupted store.
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("Expected recreated store directory: %v", err)
	}
	if _, err := store.LoadDevice(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials after clear, got %v", err)
	}
	if _, err := os.Stat(store.DatabasePath()); !os.IsNotExist(err) {
		t.Error("Expected transport database removed by clear")
	}
}

func TestCredentialStoreClearMissingDir(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "never-created"))

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on missing dir failed: %v", err)
	}
	if _, err := store.LoadDevice(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}
}

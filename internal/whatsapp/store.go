package whatsapp

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	deviceMetaFile  = "device.yaml"
	sessionDatabase = "session.db"
)

// CredentialStore owns the directory holding the durable session
// credentials: the transport's SQLite database plus a small device
// metadata file. Only the session manager mutates it.
type CredentialStore struct {
	dir string
}

// NewCredentialStore creates a store rooted at dir. The directory is
// created lazily on first use.
func NewCredentialStore(dir string) *CredentialStore {
	return &CredentialStore{dir: dir}
}

// Dir returns the store's root directory.
func (s *CredentialStore) Dir() string {
	return s.dir
}

// DatabasePath returns the path of the transport credential database.
func (s *CredentialStore) DatabasePath() string {
	return filepath.Join(s.dir, sessionDatabase)
}

func (s *CredentialStore) metaPath() string {
	return filepath.Join(s.dir, deviceMetaFile)
}

// EnsureDir creates the backing directory if it does not exist.
func (s *CredentialStore) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credential store directory: %w", err)
	}
	return nil
}

// LoadDevice reads the paired-device metadata. Returns ErrNoCredentials
// for a fresh store and ErrCorruptStore when the file exists but cannot
// be parsed.
func (s *CredentialStore) LoadDevice() (*DeviceInfo, error) {
	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	var info DeviceInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	if len(info.JID) == 0 {
		return nil, fmt.Errorf("%w: device metadata has no JID", ErrCorruptStore)
	}

	return &info, nil
}

// SaveDevice persists the paired-device metadata atomically via a
// temp-file rename so a crash never leaves a half-written file.
func (s *CredentialStore) SaveDevice(info DeviceInfo) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}

	if info.UpdatedAt.IsZero() {
		info.UpdatedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(&info)
	if err != nil {
		return fmt.Errorf("failed to marshal device metadata: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, deviceMetaFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp metadata file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write device metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp metadata file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.metaPath()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace device metadata: %w", err)
	}

	return nil
}

// HasCredentials reports whether a paired device record exists.
func (s *CredentialStore) HasCredentials() bool {
	_, err := os.Stat(s.metaPath())
	return err == nil
}

// Clear deletes all durable credentials and recreates the empty backing
// directory, so a subsequent LoadDevice reports ErrNoCredentials rather
// than a corrupted store. The deletion is atomic from the caller's point
// of view: the directory is renamed aside first, so a concurrent load
// never observes a half-cleared store.
func (s *CredentialStore) Clear() error {
	trash := fmt.Sprintf("%s.removing-%d", s.dir, time.Now().UnixNano())

	if err := os.Rename(s.dir, trash); err != nil {
		if os.IsNotExist(err) {
			return s.EnsureDir()
		}
		return fmt.Errorf("failed to clear credential store: %w", err)
	}

	if err := os.RemoveAll(trash); err != nil {
		// The rename already made the store invisible; removal of the
		// renamed directory can be retried on the next Clear.
		logrus.WithError(err).WithField("path", trash).Warn("Failed to remove cleared credential store")
	}

	return s.EnsureDir()
}

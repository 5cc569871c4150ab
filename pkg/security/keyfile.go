package security

import (
	"fmt"
	"os"
	"sync"
)

// KeyFile is a plaintext secret materialized on disk for an external tool.
// Close overwrites and removes the file; it is safe to call more than once.
type KeyFile struct {
	path string
	size int
	once sync.Once
	err  error
}

// Path returns the location of the plaintext file
func (f *KeyFile) Path() string {
	return f.path
}

// Close wipes and unlinks the file
func (f *KeyFile) Close() error {
	f.once.Do(func() {
		f.err = shred(f.path, f.size)
	})
	return f.err
}

// OpenDecryptedKey decrypts blob into a 0600 temporary file. The caller must
// Close the returned KeyFile.
func (sm *SecretsManager) OpenDecryptedKey(blob string) (*KeyFile, error) {
	plaintext, err := sm.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	defer wipe(plaintext)

	return createTempFile(sm.tempDir, "catena-key-*", plaintext)
}

// WithDecryptedKey runs fn with the path of a decrypted copy of blob. The
// file is wiped and removed when fn returns, whatever the outcome.
func (sm *SecretsManager) WithDecryptedKey(blob string, fn func(path string) error) error {
	kf, err := sm.OpenDecryptedKey(blob)
	if err != nil {
		return err
	}
	defer kf.Close()

	return fn(kf.Path())
}

// WithTempFile writes data to a scoped 0600 temporary file and runs fn with
// its path. The file is wiped and removed when fn returns.
func WithTempFile(dir, pattern string, data []byte, fn func(path string) error) error {
	f, err := createTempFile(dir, pattern, data)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(f.Path())
}

func createTempFile(dir, pattern string, data []byte) (*KeyFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	kf := &KeyFile{path: f.Name(), size: len(data)}

	if err := f.Chmod(0600); err != nil {
		f.Close()
		kf.Close()
		return nil, fmt.Errorf("failed to set temp file mode: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		kf.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		kf.Close()
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return kf, nil
}

func shred(path string, size int) error {
	if f, err := os.OpenFile(path, os.O_WRONLY, 0); err == nil {
		f.Write(make([]byte, size))
		f.Sync()
		f.Close()
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	return nil
}

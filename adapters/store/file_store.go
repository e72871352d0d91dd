package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
)

// FileStore keeps the session token in a single file readable only by the owner
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ ports.TokenStore = (*FileStore)(nil)

// NewFileStore stores the token at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultTokenPath is the token file under the user config directory
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "frf", TokenKey), nil
}

func (s *FileStore) GetToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", core.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", core.ErrTokenNotFound
	}
	return token, nil
}

// SetToken writes through a temp file so a crash never leaves a partial token
func (s *FileStore) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

func (s *FileStore) DeleteToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

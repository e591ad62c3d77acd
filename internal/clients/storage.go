package clients

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps generated files on disk; cmd/api serves them under PublicPrefix.
type LocalStorage struct {
	BaseDir      string
	PublicPrefix string
	BaseURL      string
}

// NewLocalStorage creates baseDir if missing.
func NewLocalStorage(baseDir, publicPrefix, baseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if publicPrefix == "" {
		publicPrefix = "/files"
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure storage dir %q: %w", baseDir, err)
	}

	return &LocalStorage{BaseDir: baseDir, PublicPrefix: publicPrefix, BaseURL: baseURL}, nil
}

// Save writes data under a random prefix and returns the stored file name.
func (s *LocalStorage) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	fileName = filepath.Base(fileName)

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", fmt.Errorf("failed to generate file name: %w", err)
	}
	final := fmt.Sprintf("%s_%s", hex.EncodeToString(randBytes), fileName)

	path := filepath.Join(s.BaseDir, final)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}

	return final, nil
}

// URL is absolute when BaseURL is set, otherwise relative to the API root.
func (s *LocalStorage) URL(ctx context.Context, fileName string) (string, error) {
	prefix := "/" + strings.Trim(s.PublicPrefix, "/")
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/") + prefix + "/" + fileName, nil
	}
	return prefix + "/" + fileName, nil
}

// Open resolves a stored file name, refusing anything outside BaseDir.
func (s *LocalStorage) Open(fileName string) (path string, original string, err error) {
	clean := filepath.Base(fileName)
	if clean != fileName || clean == "." || clean == ".." {
		return "", "", fs.ErrNotExist
	}
	path = filepath.Join(s.BaseDir, clean)
	if _, err := os.Stat(path); err != nil {
		return "", "", err
	}

	original = clean
	if idx := strings.IndexByte(clean, '_'); idx >= 0 {
		original = clean[idx+1:]
	}
	return path, original, nil
}

// Cleanup removes files older than maxAge and reports how many were deleted.
func (s *LocalStorage) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	now := time.Now()
	removed := 0
	err := filepath.WalkDir(s.BaseDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > maxAge {
			if os.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Package tokencache persists a single app-only access token on disk.
//
// The cache is not safe against concurrent writers in other processes. Two
// processes racing on a cache miss will both fetch a token and the last rename
// wins, which is harmless because either token is valid.
package tokencache

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	pkgerrs "github.com/jamesprial/rofi-reddit/pkg/errors"
	"github.com/jamesprial/rofi-reddit/pkg/types"
)

// MaxTokenSize is the largest token, in bytes, the cache will return.
const MaxTokenSize = 1024

const (
	dirPerm  = 0o700
	filePerm = 0o600

	// AppDir is the per-user directory name under the cache and config roots.
	AppDir   = "rofi-reddit"
	fileName = "access_token"
)

// DefaultPath returns $XDG_CACHE_HOME/rofi-reddit/access_token, falling back
// to ~/.cache when XDG_CACHE_HOME is unset.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", &pkgerrs.CacheError{Op: "locate", Err: err}
	}
	return filepath.Join(dir, AppDir, fileName), nil
}

// Store is the behaviour the session needs from a token cache.
type Store interface {
	Exists() bool
	Load() (types.AccessToken, error)
	Save(token types.AccessToken) error
}

// FileStore keeps the token in a single file.
type FileStore struct {
	path   string
	exists bool
	logger *slog.Logger
}

var _ Store = (*FileStore)(nil)

// New returns a FileStore for path. Whether a usable cache exists is checked
// here once and not re-checked on every call.
func New(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{
		path:   path,
		exists: usable(path),
		logger: logger,
	}
}

// usable reports whether path is a readable, non-empty regular file.
func usable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// Path returns the cache file location.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether a cached token was present when the store was created
// or has been saved since.
func (s *FileStore) Exists() bool {
	return s.exists
}

// Load reads the cached token. A file longer than MaxTokenSize is an error,
// never a truncated token.
func (s *FileStore) Load() (types.AccessToken, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.AccessToken{}, &pkgerrs.CacheError{Op: "load", Path: s.path, Err: pkgerrs.ErrTokenNotFound}
		}
		return types.AccessToken{}, &pkgerrs.CacheError{Op: "load", Path: s.path, Err: err}
	}
	defer f.Close()

	// One extra byte distinguishes "exactly at the limit" from "over it".
	data, err := io.ReadAll(io.LimitReader(f, MaxTokenSize+1))
	if err != nil {
		return types.AccessToken{}, &pkgerrs.CacheError{Op: "load", Path: s.path, Err: err}
	}

	if len(data) > MaxTokenSize {
		return types.AccessToken{}, &pkgerrs.CacheError{Op: "load", Path: s.path, Err: pkgerrs.ErrTokenTooLarge}
	}

	value := string(bytes.TrimSpace(data))
	if value == "" {
		return types.AccessToken{}, &pkgerrs.CacheError{Op: "load", Path: s.path, Err: pkgerrs.ErrTokenNotFound}
	}

	s.logger.Debug("access token cache hit", "path", s.path, "size", len(value))
	return types.AccessToken{Value: value}, nil
}

// Save replaces the cached token. The new contents are written to a temporary
// file in the same directory and renamed into place, so a reader sees either
// the old token or the new one.
func (s *FileStore) Save(token types.AccessToken) error {
	if token.IsZero() {
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: pkgerrs.ErrEmptyToken}
	}
	value := strings.TrimSpace(token.Value)
	if len(value) > MaxTokenSize {
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: pkgerrs.ErrTokenTooLarge}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.WriteString(value); err != nil {
		cleanup()
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Chmod(filePerm); err != nil {
		cleanup()
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &pkgerrs.CacheError{Op: "save", Path: s.path, Err: err}
	}

	s.exists = true
	s.logger.Debug("cached access token", "path", s.path, "size", len(value))
	return nil
}

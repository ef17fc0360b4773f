package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"storefront-api/internal/domain"
)

// TokenCache persists the current access token between runs. All methods are
// best-effort: a broken cache degrades recovery, it never breaks a flow.
type TokenCache interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// SessionCache is the local session-caching layer: a place the provider SDK
// (or this process on its behalf) keeps a full session that can be recovered
// without a stored token.
type SessionCache interface {
	Get() (*domain.Session, *domain.SessionUser, error)
	Set(session *domain.Session, user *domain.SessionUser) error
	Clear() error
}

// FileTokenCache stores the token as a single file.
type FileTokenCache struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenCache(path string) *FileTokenCache {
	return &FileTokenCache{path: path}
}

func (c *FileTokenCache) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (c *FileTokenCache) Save(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.path, []byte(token), 0o600)
}

func (c *FileTokenCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type cachedSession struct {
	Session *domain.Session     `json:"session"`
	User    *domain.SessionUser `json:"user"`
}

// FileSessionCache stores the full session as a JSON file.
type FileSessionCache struct {
	mu   sync.Mutex
	path string
}

func NewFileSessionCache(path string) *FileSessionCache {
	return &FileSessionCache{path: path}
}

func (c *FileSessionCache) Get() (*domain.Session, *domain.SessionUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	var cached cachedSession
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, nil, err
	}
	if cached.Session == nil || cached.Session.AccessToken == "" {
		return nil, nil, domain.ErrNotFound
	}
	return cached.Session, cached.User, nil
}

func (c *FileSessionCache) Set(session *domain.Session, user *domain.SessionUser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(cachedSession{Session: session, User: user})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.path, raw, 0o600)
}

func (c *FileSessionCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

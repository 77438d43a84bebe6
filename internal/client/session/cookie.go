package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// cookieRecord is one persisted cookie. Expires is explicit; a record past
// its expiry is treated the same as an absent one.
type cookieRecord struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

// CookieFile is the cookie surface of the token store: a small JSON file of
// named values with explicit expiries, the client-side stand-in for the
// browser cookie jar. All methods are safe for concurrent use.
type CookieFile struct {
	mu   sync.Mutex
	path string
}

func NewCookieFile(path string) *CookieFile {
	return &CookieFile{path: path}
}

// ErrCookieCorrupt reports that the cookie file exists but cannot be parsed.
var ErrCookieCorrupt = errors.New("cookie file corrupt")

func (c *CookieFile) load() ([]cookieRecord, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var records []cookieRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCookieCorrupt, err)
	}
	return records, nil
}

// save writes the records atomically: temp file in the same directory, then
// rename over the target.
func (c *CookieFile) save(records []cookieRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*")
	if err != nil {
		return fmt.Errorf("create temp cookie file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cookie file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}

// Set stores or replaces the named cookie with an explicit expiry.
// A corrupt file is overwritten rather than propagated: a broken jar must
// never block a fresh login.
func (c *CookieFile) Set(name, value string, expires time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil && !errors.Is(err, ErrCookieCorrupt) {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	kept = append(kept, cookieRecord{Name: name, Value: value, Expires: expires.UTC()})
	return c.save(kept)
}

// Get returns the named cookie's value. Records past their expiry count as
// absent. A parse failure is reported so the store can self-heal.
func (c *CookieFile) Get(name string, now time.Time) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return "", false, err
	}
	for _, r := range records {
		if r.Name == name && now.Before(r.Expires) {
			return r.Value, true, nil
		}
	}
	return "", false, nil
}

// DeletePrefix removes every cookie whose name starts with prefix. A corrupt
// file is removed outright. Calling it again once nothing matches is a no-op.
func (c *CookieFile) DeletePrefix(prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		if errors.Is(err, ErrCookieCorrupt) {
			return os.Remove(c.path)
		}
		return err
	}
	if records == nil {
		return nil
	}

	kept := records[:0]
	for _, r := range records {
		if !strings.HasPrefix(r.Name, prefix) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return c.save(kept)
}

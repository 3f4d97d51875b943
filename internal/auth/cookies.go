package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/searchscroll/internal/config"
)

// Cookies that must be present for a stored session to be reused.
const (
	cookieAuthToken = "auth_token"
	cookieCSRF      = "ct0"
)

var sessionCookies = []string{cookieAuthToken, cookieCSRF}

// siteDomains are the cookie domains injected back into the browser.
var siteDomains = []string{".twitter.com", "twitter.com", ".x.com", "x.com"}

// CookieStore persists the site login cookies between runs
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies is the on-disk cookie file.
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	// ExpiresAt is the earliest expiry of the persistent login cookies.
	// Zero when every login cookie lives for the browser session only.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// DefaultCookieStorePath returns <config dir>/cookies.json
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// loginExpiry is the earliest expiry among the persistent login cookies.
// Session cookies carry no expiry and are skipped.
func loginExpiry(cookies []*network.Cookie) time.Time {
	var earliest time.Time
	for _, c := range cookies {
		if c.Session || !slices.Contains(sessionCookies, c.Name) {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}
	return earliest
}

// Save writes cookies to the store file with owner-only permissions.
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0700); err != nil {
		return fmt.Errorf("failed to create cookie dir: %w", err)
	}

	data, err := json.MarshalIndent(StoredCookies{
		Cookies:    cookies,
		CapturedAt: cs.now(),
		ExpiresAt:  loginExpiry(cookies),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load reads the store file
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", cs.path, err)
	}
	return &stored, nil
}

// IsValid reports whether the stored set holds non-empty auth_token and ct0
// cookies that have not expired.
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	if !stored.ExpiresAt.IsZero() && !cs.now().Before(stored.ExpiresAt) {
		return false
	}

	for _, name := range sessionCookies {
		if !slices.ContainsFunc(stored.Cookies, func(c *network.Cookie) bool {
			return c.Name == name && c.Value != ""
		}) {
			return false
		}
	}
	return true
}

// Clear removes the store file. A missing file is not an error.
func (cs *CookieStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SiteCookies returns the stored twitter.com and x.com cookies
func (cs *CookieStore) SiteCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var site []*network.Cookie
	for _, c := range stored.Cookies {
		if slices.Contains(siteDomains, c.Domain) {
			site = append(site, c)
		}
	}
	return site, nil
}

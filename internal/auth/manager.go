package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/searchscroll/internal/logging"
)

// Login form selectors
const (
	UsernameField = `input.js-username-field`
	PasswordField = `input.js-password-field`
	SubmitButton  = `.EdgeButtom--medium`
)

// Page is the part of a browser session the login flow drives
type Page interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	SetCookies(ctx context.Context, cookies []*network.Cookie) error
}

// LoginOptions controls the form login timing
type LoginOptions struct {
	URL          string
	FieldTimeout time.Duration // how long to wait for a field to appear
	FieldDelay   time.Duration // pause after filling each field
	Settle       time.Duration // pause after submitting
}

// Manager handles site authentication
type Manager struct {
	cookieStore *CookieStore // nil disables session reuse
	opts        LoginOptions
	log         zerolog.Logger
	sleep       func(context.Context, time.Duration) error
}

// NewManager creates a new auth manager. cookieStore may be nil.
func NewManager(cookieStore *CookieStore, opts LoginOptions, log zerolog.Logger) *Manager {
	return &Manager{
		cookieStore: cookieStore,
		opts:        opts,
		log:         logging.Component(log, "auth"),
		sleep:       sleep,
	}
}

// Login fills and submits the login form, then waits for the page to settle.
// Whether the site accepted the credentials is not checked.
func (m *Manager) Login(ctx context.Context, page Page, creds Credentials) error {
	if !creds.Valid() {
		return ErrMissingCredentials
	}

	m.log.Info().Str("url", m.opts.URL).Stringer("account", creds).Msg("Logging in")

	if err := page.Navigate(ctx, m.opts.URL); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	if err := page.Fill(ctx, UsernameField, creds.Username, m.opts.FieldTimeout); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	if err := m.sleep(ctx, m.opts.FieldDelay); err != nil {
		return err
	}

	if err := page.Fill(ctx, PasswordField, creds.Password, m.opts.FieldTimeout); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	if err := m.sleep(ctx, m.opts.FieldDelay); err != nil {
		return err
	}

	if err := page.Click(ctx, SubmitButton, m.opts.FieldTimeout); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	if err := m.sleep(ctx, m.opts.Settle); err != nil {
		return err
	}

	if m.cookieStore != nil {
		if err := m.saveCookies(ctx, page); err != nil {
			m.log.Warn().Err(err).Msg("Could not persist session cookies")
		}
	}

	return nil
}

// RestoreSession injects stored cookies into page when they are still valid.
// It reports whether a session was restored.
func (m *Manager) RestoreSession(ctx context.Context, page Page) (bool, error) {
	if m.cookieStore == nil || !m.cookieStore.IsValid() {
		return false, nil
	}

	cookies, err := m.cookieStore.SiteCookies()
	if err != nil {
		return false, fmt.Errorf("failed to load cookies: %w", err)
	}
	if len(cookies) == 0 {
		return false, nil
	}

	if err := page.SetCookies(ctx, cookies); err != nil {
		return false, fmt.Errorf("failed to inject cookies: %w", err)
	}

	m.log.Info().Int("cookies", len(cookies)).Msg("Restored stored session")
	return true, nil
}

// Logout clears stored cookies
func (m *Manager) Logout() error {
	if m.cookieStore == nil {
		return nil
	}
	return m.cookieStore.Clear()
}

func (m *Manager) saveCookies(ctx context.Context, page Page) error {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}
	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

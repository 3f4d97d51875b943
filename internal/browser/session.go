package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/searchscroll/internal/logging"
)

// Session is one exclusively owned Chrome tab. Close must be called to
// release the browser process; it is safe to call more than once.
type Session struct {
	ctx         context.Context // chromedp tab context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
	log         zerolog.Logger
}

// Open launches Chrome and attaches a tab. Cancelling ctx tears the browser down.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Session, error) {
	log = logging.Component(log, "browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug().Msgf(format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Debug().Msgf(format, args...)
		}),
	)

	// Run with no actions starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug().Bool("headless", cfg.Headless).Msg("Browser started")
	return &Session{ctx: tabCtx, tabCancel: tabCancel, allocCancel: allocCancel, log: log}, nil
}

// Close shuts the browser down
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.tabCancel()
		s.allocCancel()
		s.log.Debug().Msg("Browser closed")
	})
	return s.closeErr
}

// run executes actions on the tab, aborting when ctx is done.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Session) runWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.run(ctx, actions...)
}

// Navigate loads url in the tab
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

// Fill waits for selector to be visible and types value into it.
func (s *Session) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	return s.runWithTimeout(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// Click waits for selector to be visible and clicks it.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return s.runWithTimeout(ctx, timeout,
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// ScrollToBottom scrolls the window to the current bottom of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

// ScrollHeight returns document.body.scrollHeight.
func (s *Session) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := s.run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &height)); err != nil {
		return 0, err
	}
	return height, nil
}

// HTML returns the outer HTML of the rendered document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Cookies returns all cookies in the browser
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	return cookies, err
}

// SetCookies sets cookies in the browser before navigation
func (s *Session) SetCookies(ctx context.Context, cookies []*network.Cookie) error {
	return s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)
				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

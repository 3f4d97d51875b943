package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/searchscroll/internal/logging"
	"github.com/ibeckermayer/searchscroll/internal/metrics"
)

// Page is the part of a browser session the scroller drives
type Page interface {
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)
	HTML(ctx context.Context) (string, error)
}

// Limits bound a scroll loop. Zero values mean unbounded.
type Limits struct {
	MaxScrolls  int
	MaxDuration time.Duration
}

// ScrollResult is the fully grown page after scrolling stopped
type ScrollResult struct {
	HTML        string
	Scrolls     int
	FinalHeight int64
	Truncated   bool // a limit stopped the loop before the page stopped growing
}

// Scroller grows a timeline page by scrolling until its height stops changing
type Scroller struct {
	pacing  Pacing
	limits  Limits
	log     zerolog.Logger
	metrics *metrics.Recorder

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// NewScroller creates a scroller. rec may be nil.
func NewScroller(pacing Pacing, limits Limits, log zerolog.Logger, rec *metrics.Recorder) *Scroller {
	return &Scroller{
		pacing:  pacing,
		limits:  limits,
		log:     logging.Component(log, "scroller"),
		metrics: rec,
		sleep:   sleep,
		now:     time.Now,
	}
}

// Scroll repeatedly scrolls page to the bottom, waiting the pacing delay
// after each scroll, until two consecutive height reads are equal or a limit
// is reached. It returns the page markup at that point.
func (s *Scroller) Scroll(ctx context.Context, page Page) (*ScrollResult, error) {
	lastHeight, err := page.ScrollHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page height: %w", err)
	}

	result := &ScrollResult{}
	start := s.now()

	for n := 1; ; n++ {
		if s.limits.MaxScrolls > 0 && n > s.limits.MaxScrolls {
			s.log.Warn().Int("max_scrolls", s.limits.MaxScrolls).Msg("Scroll limit reached, stopping early")
			result.Truncated = true
			break
		}
		if s.limits.MaxDuration > 0 && s.now().Sub(start) >= s.limits.MaxDuration {
			s.log.Warn().Dur("max_duration", s.limits.MaxDuration).Msg("Scroll time limit reached, stopping early")
			result.Truncated = true
			break
		}

		if err := page.ScrollToBottom(ctx); err != nil {
			return nil, fmt.Errorf("failed to scroll (scroll %d): %w", n, err)
		}
		result.Scrolls = n
		s.metrics.ScrollIssued()

		if err := s.sleep(ctx, s.pacing.Delay); err != nil {
			return nil, err
		}

		newHeight, err := page.ScrollHeight(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read page height (scroll %d): %w", n, err)
		}

		if newHeight == lastHeight {
			s.log.Debug().Int("scrolls", n).Int64("height", newHeight).Msg("Page stopped growing")
			break
		}
		lastHeight = newHeight

		if pause := s.pacing.Backoff(n); pause > 0 {
			s.log.Info().Int("scrolls", n).Dur("pause", pause).Msg("Cooling down")
			s.metrics.CooldownTaken()
			if err := s.sleep(ctx, pause); err != nil {
				return nil, err
			}
		}
	}

	result.FinalHeight = lastHeight

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page markup: %w", err)
	}
	result.HTML = html

	s.log.Info().
		Int("scrolls", result.Scrolls).
		Int64("height", result.FinalHeight).
		Bool("truncated", result.Truncated).
		Msg("Finished scrolling")

	return result, nil
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

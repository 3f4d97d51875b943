package scraper

import (
	"sort"
	"time"

	"github.com/ibeckermayer/searchscroll/internal/config"
)

// Cooldown is an extra pause taken after every Every-th scroll.
type Cooldown struct {
	Every int
	Pause time.Duration
}

// Pacing is the scroll rate policy: a fixed Delay after every scroll plus
// the cool-down of the longest period that divides the scroll number.
type Pacing struct {
	Delay     time.Duration
	Cooldowns []Cooldown // sorted by Every, descending
}

// NewPacing builds a Pacing, ignoring cooldowns with a non-positive period.
func NewPacing(delay time.Duration, cooldowns []Cooldown) Pacing {
	cs := make([]Cooldown, 0, len(cooldowns))
	for _, c := range cooldowns {
		if c.Every > 0 && c.Pause > 0 {
			cs = append(cs, c)
		}
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Every > cs[j].Every })
	return Pacing{Delay: delay, Cooldowns: cs}
}

// PacingFromConfig converts the scraping section of the config.
func PacingFromConfig(cfg config.ScrapingConfig) Pacing {
	cooldowns := make([]Cooldown, 0, len(cfg.Cooldowns))
	for _, c := range cfg.Cooldowns {
		cooldowns = append(cooldowns, Cooldown{
			Every: c.Every,
			Pause: time.Duration(c.PauseSeconds) * time.Second,
		})
	}
	return NewPacing(cfg.Delay(), cooldowns)
}

// Backoff returns the cool-down owed after scroll n (1-indexed), or zero.
func (p Pacing) Backoff(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	for _, c := range p.Cooldowns {
		if n%c.Every == 0 {
			return c.Pause
		}
	}
	return 0
}

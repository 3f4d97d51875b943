package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/searchscroll/internal/config"
	"github.com/ibeckermayer/searchscroll/internal/metrics"
)

func defaultPacing() Pacing {
	return PacingFromConfig(config.Default().Scraping)
}

func TestBackoff(t *testing.T) {
	p := defaultPacing()

	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 0},
		{1, 0},
		{49, 0},
		{50, 30 * time.Second},
		{100, 30 * time.Second},
		{150, 30 * time.Second},
		{199, 0},
		{200, 120 * time.Second},
		{250, 30 * time.Second},
		{400, 120 * time.Second},
		{1000, 120 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.n), "n=%d", tt.n)
	}
	assert.Equal(t, 5*time.Second, p.Delay)
}

func TestBackoffMatchesRule(t *testing.T) {
	p := defaultPacing()
	for n := 1; n <= 1000; n++ {
		var want time.Duration
		switch {
		case n%200 == 0:
			want = 120 * time.Second
		case n%50 == 0:
			want = 30 * time.Second
		}
		require.Equal(t, want, p.Backoff(n), "n=%d", n)
	}
}

func TestPacingFromConfig(t *testing.T) {
	p := PacingFromConfig(config.ScrapingConfig{
		DelaySeconds: 2,
		Cooldowns:    []config.CooldownConfig{{Every: 50, PauseSeconds: 30}, {Every: 200, PauseSeconds: 120}},
	})
	assert.Equal(t, NewPacing(2*time.Second, []Cooldown{
		{Every: 200, Pause: 120 * time.Second},
		{Every: 50, Pause: 30 * time.Second},
	}), p)

	p = NewPacing(time.Second, []Cooldown{{Every: 0, Pause: time.Hour}, {Every: 3, Pause: 0}})
	assert.Empty(t, p.Cooldowns)
	assert.Zero(t, p.Backoff(3))
}

type fakePage struct {
	heights     []int64
	reads       int
	scrolls     int
	html        string
	scrollErr   error
	onScroll    func(n int)
	heightAfter int64 // returned once heights are exhausted
}

func (p *fakePage) ScrollToBottom(context.Context) error {
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolls++
	if p.onScroll != nil {
		p.onScroll(p.scrolls)
	}
	return nil
}

func (p *fakePage) ScrollHeight(context.Context) (int64, error) {
	p.reads++
	if p.reads <= len(p.heights) {
		return p.heights[p.reads-1], nil
	}
	p.heightAfter += 100
	return p.heightAfter, nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	return p.html, nil
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func newTestScroller(limits Limits, rec *metrics.Recorder) (*Scroller, *sleepRecorder) {
	s := NewScroller(defaultPacing(), limits, zerolog.Nop(), rec)
	sr := &sleepRecorder{}
	s.sleep = sr.sleep
	return s, sr
}

func TestScrollStopsWhenHeightRepeats(t *testing.T) {
	s, sr := newTestScroller(Limits{}, nil)
	page := &fakePage{heights: []int64{100, 200, 200}, html: "<html></html>"}

	res, err := s.Scroll(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, 3, page.reads)
	assert.Equal(t, 2, page.scrolls)
	assert.Equal(t, 2, res.Scrolls)
	assert.Equal(t, int64(200), res.FinalHeight)
	assert.False(t, res.Truncated)
	assert.Equal(t, "<html></html>", res.HTML)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sr.calls)
}

func TestScrollStopsImmediatelyOnStaticPage(t *testing.T) {
	s, _ := newTestScroller(Limits{}, nil)
	page := &fakePage{heights: []int64{500, 500}}

	res, err := s.Scroll(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scrolls)
	assert.Equal(t, 2, page.reads)
}

func TestScrollCooldowns(t *testing.T) {
	rec := metrics.New()
	s, sr := newTestScroller(Limits{}, rec)

	// Grows for 200 scrolls, then stays put.
	heights := []int64{0}
	for i := 1; i <= 200; i++ {
		heights = append(heights, int64(i*100))
	}
	heights = append(heights, 200*100)
	page := &fakePage{heights: heights}

	res, err := s.Scroll(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 201, res.Scrolls)

	var cooldowns []time.Duration
	for _, d := range sr.calls {
		if d != 5*time.Second {
			cooldowns = append(cooldowns, d)
		}
	}
	assert.Equal(t, []time.Duration{
		30 * time.Second,  // 50
		30 * time.Second,  // 100
		30 * time.Second,  // 150
		120 * time.Second, // 200
	}, cooldowns)
}

func TestScrollMaxScrolls(t *testing.T) {
	s, _ := newTestScroller(Limits{MaxScrolls: 3}, nil)
	page := &fakePage{html: "partial"}

	res, err := s.Scroll(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.Scrolls)
	assert.Equal(t, 3, page.scrolls)
	assert.Equal(t, "partial", res.HTML)
}

func TestScrollMaxDuration(t *testing.T) {
	s, _ := newTestScroller(Limits{MaxDuration: time.Minute}, nil)
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	page := &fakePage{onScroll: func(int) { now = now.Add(25 * time.Second) }}

	res, err := s.Scroll(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.Scrolls)
}

func TestScrollCancelled(t *testing.T) {
	s, _ := newTestScroller(Limits{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	page := &fakePage{onScroll: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	_, err := s.Scroll(ctx, page)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, page.scrolls)
}

func TestScrollFailure(t *testing.T) {
	s, _ := newTestScroller(Limits{}, nil)
	boom := errors.New("target closed")
	_, err := s.Scroll(context.Background(), &fakePage{scrollErr: boom})
	assert.ErrorIs(t, err, boom)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}

func TestExtractFixture(t *testing.T) {
	e := NewExtractor(false, zerolog.Nop())
	records, err := e.ExtractFile("testdata/timeline.html")
	require.NoError(t, err)

	// The user module has no item id; the duplicate 1001 is kept without dedupe.
	require.Len(t, records, 4)
	assert.Equal(t, []string{"1001", "1002", "1003", "1001"}, []string{
		records[0].ExternalID, records[1].ExternalID, records[2].ExternalID, records[3].ExternalID,
	})

	first := records[0]
	require.NotNil(t, first.Text)
	assert.Equal(t, "Hello, \"world\"\nsecond line", *first.Text)
	assert.Equal(t, "42", first.AuthorID)
	assert.Equal(t, "sample", first.AuthorHandle)
	assert.Equal(t, `Sample, "the" Account`, first.AuthorName)
	require.NotNil(t, first.CreatedAt)
	assert.Equal(t, 1577836800000.0, *first.CreatedAt)
	assert.Equal(t, 3, first.Replies)
	assert.Equal(t, 12, first.Retweets)
	assert.Equal(t, 99, first.Likes)
	assert.True(t, first.HasText())
	assert.True(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Equal(time.UnixMilli(int64(*first.CreatedAt))))

	noText := records[1]
	assert.Nil(t, noText.Text)
	assert.False(t, noText.HasText())
	assert.Equal(t, "other", noText.AuthorHandle)
	assert.Zero(t, noText.Likes)

	bare := records[2]
	require.NotNil(t, bare.Text)
	assert.Equal(t, "Bare item", *bare.Text)
	assert.Empty(t, bare.AuthorID)
	assert.Nil(t, bare.CreatedAt)
	assert.Zero(t, bare.Likes, "malformed count defaults to zero")
}

func TestExtractDedupe(t *testing.T) {
	e := NewExtractor(true, zerolog.Nop())
	records, err := e.ExtractFile("testdata/timeline.html")
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "Hello, \"world\"\nsecond line", *records[0].Text, "first occurrence wins")
}

func TestExtractEmptyDocument(t *testing.T) {
	e := NewExtractor(true, zerolog.Nop())
	records, err := e.Extract(strings.NewReader("<html><body><p>No results</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

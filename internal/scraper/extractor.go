package scraper

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/searchscroll/internal/logging"
	"github.com/ibeckermayer/searchscroll/internal/types"
)

// Extractor parses timeline markup into records
type Extractor struct {
	dedupe bool
	log    zerolog.Logger
}

// NewExtractor creates an extractor. With dedupe set, only the first item
// with a given id is kept.
func NewExtractor(dedupe bool, log zerolog.Logger) *Extractor {
	return &Extractor{
		dedupe: dedupe,
		log:    logging.Component(log, "extractor"),
	}
}

// Extract parses markup from r
func (e *Extractor) Extract(r io.Reader) ([]types.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}
	return e.ExtractDocument(doc), nil
}

// ExtractFile parses a saved markup file
func (e *Extractor) ExtractFile(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return e.Extract(f)
}

// ExtractDocument returns one record per stream item in document order.
// Items without an id are skipped; every other field is optional.
func (e *Extractor) ExtractDocument(doc *goquery.Document) []types.Record {
	records := []types.Record{}
	seen := make(map[string]bool)
	skipped, duplicates := 0, 0

	doc.Find(StreamItem).Each(func(i int, s *goquery.Selection) {
		id, ok := s.Attr(ItemIDAttr)
		if !ok {
			skipped++
			return
		}
		if e.dedupe {
			if seen[id] {
				duplicates++
				return
			}
			seen[id] = true
		}
		records = append(records, e.parseItem(id, s))
	})

	e.log.Info().
		Int("records", len(records)).
		Int("skipped", skipped).
		Int("duplicates", duplicates).
		Msg("Parsed tweets")

	return records
}

func (e *Extractor) parseItem(id string, s *goquery.Selection) types.Record {
	rec := types.Record{ExternalID: id}

	if text := s.Find(TweetText).First(); text.Length() > 0 {
		t := text.Text()
		rec.Text = &t
	}

	if details := s.Find(TweetDetails).First(); details.Length() > 0 {
		rec.AuthorID = details.AttrOr(AuthorIDAttr, "")
		rec.AuthorHandle = details.AttrOr(AuthorHandleAttr, "")
		rec.AuthorName = details.AttrOr(AuthorNameAttr, "")
	}

	if ts := s.Find(Timestamp).First(); ts.Length() > 0 {
		if raw, ok := ts.Attr(TimestampAttr); ok {
			ms, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				e.log.Warn().Str("id", id).Str("value", raw).Msg("Ignoring malformed timestamp")
			} else {
				rec.CreatedAt = &ms
			}
		}
	}

	rec.Replies = e.parseCount(id, s, ReplyCount)
	rec.Retweets = e.parseCount(id, s, RetweetCount)
	rec.Likes = e.parseCount(id, s, LikeCount)

	return rec
}

// parseCount reads the stat count of the first node matching selector, 0 when absent.
func (e *Extractor) parseCount(id string, s *goquery.Selection, selector string) int {
	node := s.Find(selector).First()
	if node.Length() == 0 {
		return 0
	}
	raw, ok := node.Attr(CountAttr)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		e.log.Warn().Str("id", id).Str("selector", selector).Str("value", raw).Msg("Ignoring malformed count")
		return 0
	}
	return n
}

// Package params collects and validates the parameters of one search run.
package params

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/searchscroll/internal/auth"
)

// DateLayout is the accepted format for range dates.
const DateLayout = "2006-01-02"

var (
	ErrInvalidMode   = errors.New("mode must be \"to\" or \"by\"")
	ErrInvalidHandle = errors.New("handle must start with '@'")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
	ErrInvalidRange  = errors.New("until must be after since")
)

// Mode selects whether the search targets tweets sent to a handle or by it.
type Mode int

const (
	ModeTo Mode = iota
	ModeBy
)

func (m Mode) String() string {
	if m == ModeBy {
		return "by"
	}
	return "to"
}

// ParseMode accepts "to" or "by", ignoring case and surrounding space.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "to":
		return ModeTo, nil
	case "by":
		return ModeBy, nil
	}
	return ModeTo, fmt.Errorf("%w: got %q", ErrInvalidMode, s)
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: got %q", ErrInvalidDate, s)
	}
	return d, nil
}

// RunParameters describes one search run. Build it with New.
type RunParameters struct {
	Credentials auth.Credentials
	Handle      string
	Mode        Mode

	// Since and Until keep the dates exactly as entered.
	Since string
	Until string

	SinceDate time.Time
	UntilDate time.Time
}

// New validates raw input and builds RunParameters.
func New(creds auth.Credentials, handle, mode, since, until string) (*RunParameters, error) {
	handle = strings.TrimSpace(handle)
	if len(handle) < 2 || !strings.HasPrefix(handle, "@") {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidHandle, handle)
	}

	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	sinceDate, err := ParseDate(since)
	if err != nil {
		return nil, fmt.Errorf("since: %w", err)
	}
	untilDate, err := ParseDate(until)
	if err != nil {
		return nil, fmt.Errorf("until: %w", err)
	}
	if !untilDate.After(sinceDate) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, since, until)
	}

	return &RunParameters{
		Credentials: creds,
		Handle:      handle,
		Mode:        m,
		Since:       since,
		Until:       until,
		SinceDate:   sinceDate,
		UntilDate:   untilDate,
	}, nil
}

// Query returns the search expression, e.g. "to:@jack since:2020-01-01 until:2020-01-02 include:retweets".
func (p *RunParameters) Query() string {
	return fmt.Sprintf("%s:%s since:%s until:%s include:retweets",
		p.Mode, p.Handle, p.SinceDate.Format(DateLayout), p.UntilDate.Format(DateLayout))
}

// SearchURL builds the timeline URL against the search endpoint.
func (p *RunParameters) SearchURL(endpoint string) string {
	v := url.Values{}
	v.Set("f", "tweets")
	v.Set("vertical", "default")
	v.Set("q", p.Query())
	v.Set("src", "typd")
	return endpoint + "?" + v.Encode()
}

// OutputFilename derives the CSV name from the mode, handle and the dates as entered.
func (p *RunParameters) OutputFilename() string {
	return fmt.Sprintf("tweets_%s_%s_from_%s_to_%s.csv", p.Mode, p.Handle, p.Since, p.Until)
}

// MarshalZerologObject logs the parameters without the password.
func (p *RunParameters) MarshalZerologObject(e *zerolog.Event) {
	e.Str("mode", p.Mode.String()).
		Str("handle", p.Handle).
		Str("since", p.Since).
		Str("until", p.Until).
		Str("account", p.Credentials.Username)
}

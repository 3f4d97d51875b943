package params

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/searchscroll/internal/auth"
)

var creds = auth.Credentials{Username: "alice", Password: "hunter2"}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"to", ModeTo, false},
		{"BY", ModeBy, false},
		{" by\n", ModeBy, false},
		{"1", ModeTo, true},
		{"0", ModeTo, true},
		{"from", ModeTo, true},
		{"", ModeTo, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidMode, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(creds, "sample", "by", "2020-01-01", "2020-01-02")
	assert.ErrorIs(t, err, ErrInvalidHandle)

	_, err = New(creds, "@", "by", "2020-01-01", "2020-01-02")
	assert.ErrorIs(t, err, ErrInvalidHandle)

	_, err = New(creds, "@sample", "at", "2020-01-01", "2020-01-02")
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = New(creds, "@sample", "by", "2020-1-1", "2020-01-02")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = New(creds, "@sample", "by", "2020-01-01", "2020-02-30")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = New(creds, "@sample", "by", "2020-01-02", "2020-01-02")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestOutputFilename(t *testing.T) {
	p, err := New(creds, "@sample", "by", "2020-01-01", "2020-01-02")
	require.NoError(t, err)
	assert.Equal(t, "tweets_by_@sample_from_2020-01-01_to_2020-01-02.csv", p.OutputFilename())

	p, err = New(creds, "@sample", "to", "2019-12-30", "2020-01-02")
	require.NoError(t, err)
	assert.Equal(t, "tweets_to_@sample_from_2019-12-30_to_2020-01-02.csv", p.OutputFilename())
}

func TestSearchURL(t *testing.T) {
	p, err := New(creds, "@sample", "to", "2020-01-01", "2020-01-31")
	require.NoError(t, err)

	assert.Equal(t, "to:@sample since:2020-01-01 until:2020-01-31 include:retweets", p.Query())

	u, err := url.Parse(p.SearchURL("https://twitter.com/search"))
	require.NoError(t, err)
	assert.Equal(t, "twitter.com", u.Host)
	assert.Equal(t, "/search", u.Path)
	assert.Equal(t, p.Query(), u.Query().Get("q"))
	assert.Equal(t, "tweets", u.Query().Get("f"))
	assert.Equal(t, "typd", u.Query().Get("src"))
}

func TestCollectPromptsInOrder(t *testing.T) {
	in := strings.NewReader("alice\nhunter2\n@sample\nby\n2020-01-01\n2020-01-02\n")
	var out bytes.Buffer

	c := NewCollector(NewPrompter(in, &out), nil)
	p, err := c.Collect(Preset{})
	require.NoError(t, err)

	assert.Equal(t, creds, p.Credentials)
	assert.Equal(t, "@sample", p.Handle)
	assert.Equal(t, ModeBy, p.Mode)
	assert.Equal(t, "2020-01-01", p.Since)
	assert.Equal(t, "2020-01-02", p.Until)

	prompts := out.String()
	userIdx := strings.Index(prompts, "username:")
	passIdx := strings.Index(prompts, "password:")
	untilIdx := strings.Index(prompts, "Until when?")
	assert.True(t, userIdx >= 0 && userIdx < passIdx && passIdx < untilIdx, prompts)
}

func TestCollectUsesPresetAndLookup(t *testing.T) {
	in := strings.NewReader("to\n")
	var out bytes.Buffer

	lookup := func(username string) (string, error) {
		assert.Equal(t, "alice", username)
		return "from-keyring", nil
	}
	c := NewCollector(NewPrompter(in, &out), lookup)
	p, err := c.Collect(Preset{Username: "alice", Handle: "@sample", Since: "2020-01-01", Until: "2020-01-02"})
	require.NoError(t, err)

	assert.Equal(t, "from-keyring", p.Credentials.Password)
	assert.Equal(t, ModeTo, p.Mode)
	assert.NotContains(t, out.String(), "password")
}

func TestCollectFallsBackToPromptWhenNoSecret(t *testing.T) {
	in := strings.NewReader("typed\n")
	lookup := func(string) (string, error) { return "", auth.ErrNoSecret }

	c := NewCollector(NewPrompter(in, &bytes.Buffer{}), lookup)
	p, err := c.Collect(Preset{Username: "alice", Handle: "@s", Mode: "by", Since: "2020-01-01", Until: "2020-01-02"})
	require.NoError(t, err)
	assert.Equal(t, "typed", p.Credentials.Password)
}

func TestCollectLookupError(t *testing.T) {
	boom := errors.New("keychain locked")
	lookup := func(string) (string, error) { return "", boom }

	c := NewCollector(nil, lookup)
	_, err := c.Collect(Preset{Username: "alice"})
	assert.ErrorIs(t, err, boom)
}

func TestCollectNonInteractive(t *testing.T) {
	c := NewCollector(nil, nil)

	_, err := c.Collect(Preset{Username: "alice", Handle: "@s", Mode: "by", Since: "2020-01-01", Until: "2020-01-02"})
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)

	_, err = c.Collect(Preset{Username: "alice", Password: "x", Mode: "by", Since: "2020-01-01", Until: "2020-01-02"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing handle")
}

func TestCollectRejectsInvalidMode(t *testing.T) {
	in := strings.NewReader("1\n")
	c := NewCollector(NewPrompter(in, &bytes.Buffer{}), nil)
	_, err := c.Collect(Preset{Username: "a", Password: "b", Handle: "@s", Since: "2020-01-01", Until: "2020-01-02"})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestPrompterEOF(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), &bytes.Buffer{})
	_, err := p.Ask("? ")
	assert.Error(t, err)

	p = NewPrompter(strings.NewReader("last"), &bytes.Buffer{})
	got, err := p.Ask("? ")
	require.NoError(t, err)
	assert.Equal(t, "last", got)
}

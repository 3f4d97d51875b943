package params

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ibeckermayer/searchscroll/internal/auth"
)

// Prompter asks questions on an input/output pair
type Prompter struct {
	in         *bufio.Reader
	out        io.Writer
	readSecret func() (string, error)
}

// NewPrompter creates a prompter. When in is a terminal, secrets are read
// without echo; otherwise they are read as plain lines.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
	p.readSecret = p.readLine

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			if err != nil {
				return "", err
			}
			return string(b), nil
		}
	}

	return p
}

// Ask prints label and returns the trimmed answer line.
func (p *Prompter) Ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// AskSecret prints label and reads an answer without echoing it on terminals.
func (p *Prompter) AskSecret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	secret, err := p.readSecret()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(secret, "\r\n"), nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Preset holds values already known from flags or the environment.
// Empty fields are prompted for.
type Preset struct {
	Username string
	Password string
	Handle   string
	Mode     string
	Since    string
	Until    string
}

// SecretLookup finds a stored password for username
type SecretLookup func(username string) (string, error)

// Collector gathers RunParameters from a preset, a secret lookup and prompts.
type Collector struct {
	prompter *Prompter    // nil means non-interactive
	lookup   SecretLookup // may be nil
}

// NewCollector creates a collector. prompter and lookup may be nil.
func NewCollector(prompter *Prompter, lookup SecretLookup) *Collector {
	return &Collector{prompter: prompter, lookup: lookup}
}

// Collect fills in missing values in a fixed order and validates the result.
func (c *Collector) Collect(preset Preset) (*RunParameters, error) {
	v := preset
	var err error

	if v.Username, err = c.value(v.Username, "Enter Twitter username: ", "username"); err != nil {
		return nil, err
	}

	if v.Password == "" && c.lookup != nil {
		secret, lookupErr := c.lookup(v.Username)
		if lookupErr == nil {
			v.Password = secret
		} else if !errors.Is(lookupErr, auth.ErrNoSecret) {
			return nil, lookupErr
		}
	}
	if v.Password == "" {
		if c.prompter == nil {
			return nil, fmt.Errorf("%w: no password for %s", auth.ErrMissingCredentials, v.Username)
		}
		if v.Password, err = c.prompter.AskSecret("Enter Twitter password: "); err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
	}

	if v.Handle, err = c.value(v.Handle, "Enter username to analyze (with leading '@'): ", "handle"); err != nil {
		return nil, err
	}
	if v.Mode, err = c.value(v.Mode, "Analyze tweets TO or BY the user (to/by): ", "mode"); err != nil {
		return nil, err
	}
	if v.Since, err = c.value(v.Since, "From when? (YYYY-MM-DD): ", "since"); err != nil {
		return nil, err
	}
	if v.Until, err = c.value(v.Until, "Until when? (YYYY-MM-DD): ", "until"); err != nil {
		return nil, err
	}

	creds := auth.Credentials{Username: v.Username, Password: v.Password}
	if !creds.Valid() {
		return nil, auth.ErrMissingCredentials
	}

	return New(creds, v.Handle, v.Mode, v.Since, v.Until)
}

func (c *Collector) value(current, label, name string) (string, error) {
	if current != "" {
		return current, nil
	}
	if c.prompter == nil {
		return "", fmt.Errorf("missing %s", name)
	}
	answer, err := c.prompter.Ask(label)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return answer, nil
}

package maildir

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/infodancer/maildirs/errors"
)

const (
	// OrphanAge is how old a file in tmp must be before Open removes it.
	OrphanAge = 36 * time.Hour

	// DefaultRetryLimit bounds tmp name collision retries in the write protocol.
	DefaultRetryLimit = 32

	dirPerm  = 0700
	filePerm = 0600
)

// Option configures a Maildir or a Maildirs collection.
type Option func(*config)

type config struct {
	sep            rune
	maildirpp      bool
	retryLimit     int
	strictSelfCopy bool
	ids            *IDGenerator
}

func newConfig(opts []Option) config {
	c := config{
		sep:        DefaultSeparator,
		retryLimit: DefaultRetryLimit,
		ids:        defaultIDGenerator,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// ValidateSeparator reports whether sep can divide identifier from info.
// Path separators, NUL and any character that generated identifiers or the
// info part use are rejected.
func ValidateSeparator(sep rune) error {
	switch {
	case sep == 0, sep == utf8.RuneError, !utf8.ValidRune(sep):
	case sep == '/', sep == '\\', sep == '.', sep == ',', sep == '#', sep == '_':
	case unicode.IsLetter(sep), unicode.IsDigit(sep), unicode.IsSpace(sep):
	default:
		return nil
	}
	return fmt.Errorf("separator %q: %w", sep, errors.ErrInvalidName)
}

// WithSeparator sets the character between identifier and info in file names.
// It panics if sep fails ValidateSeparator; check untrusted input first.
func WithSeparator(sep rune) Option {
	if err := ValidateSeparator(sep); err != nil {
		panic("maildir: " + err.Error())
	}
	return func(c *config) { c.sep = sep }
}

// WithMaildirPP selects Maildir++ naming for a collection: every path segment
// of a folder name maps to a dot-prefixed directory.
func WithMaildirPP(enabled bool) Option {
	return func(c *config) { c.maildirpp = enabled }
}

// WithRetryLimit bounds how many tmp names the write protocol tries before
// giving up with ErrTmpCollision. Zero or less retries forever.
func WithRetryLimit(n int) Option {
	return func(c *config) { c.retryLimit = n }
}

// WithStrictSelfCopy makes copying or moving an entry into the mailbox that
// already holds it an ErrSameLocation error instead of a no-op.
func WithStrictSelfCopy(strict bool) Option {
	return func(c *config) { c.strictSelfCopy = strict }
}

// WithIDGenerator overrides the generator used to name delivered messages.
func WithIDGenerator(g *IDGenerator) Option {
	return func(c *config) { c.ids = g }
}

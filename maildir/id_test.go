package maildir

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/infodancer/maildirs/errors"
)

func TestTmpID_Unique(t *testing.T) {
	g := NewIDGenerator(new(atomic.Uint64))
	seen := make(map[string]bool, 10000)
	for range 10000 {
		id := g.TmpID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestTmpID_FixedClock(t *testing.T) {
	g := NewIDGenerator(new(atomic.Uint64))
	g.now = func() time.Time { return time.Unix(1705678901, 123456789) }
	g.pid = 4242

	assert.Equal(t, "1705678901.#0M123456789P4242", g.TmpID())
	assert.Equal(t, "1705678901.#1M123456789P4242", g.TmpID())
	for range 8 {
		g.TmpID()
	}
	assert.Equal(t, "1705678901.#aM123456789P4242", g.TmpID())
}

func TestID_Format(t *testing.T) {
	g := NewIDGenerator(new(atomic.Uint64))
	g.hostname = func() (string, error) { return "mx.example.com", nil }

	f, err := os.Create(filepath.Join(t.TempDir(), "msg"))
	require.NoError(t, err)
	defer f.Close()

	id, err := g.ID(f, DefaultSeparator)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d+\.#[0-9a-f]+M\d+P\d+V\d+I\d+\.mx\.example\.com$`), id)
	assert.NoError(t, ValidateID(id, DefaultSeparator))
}

func TestID_HostnameFailure(t *testing.T) {
	g := NewIDGenerator(new(atomic.Uint64))
	g.hostname = func() (string, error) { return "", errors.New("no hostname") }

	f, err := os.Create(filepath.Join(t.TempDir(), "msg"))
	require.NoError(t, err)
	defer f.Close()

	_, err = g.ID(f, DefaultSeparator)
	assert.ErrorIs(t, err, mserrors.ErrMetadata)
}

func TestSanitizeHostname(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e", sanitizeHostname("a/b\\c:d;e"))
	assert.Equal(t, "host", sanitizeHostname("ho\x00st"))
}

func TestID_SeparatorInHostname(t *testing.T) {
	g := NewIDGenerator(new(atomic.Uint64))
	g.hostname = func() (string, error) { return "mx-1.example-mail.com", nil }

	f, err := os.Create(filepath.Join(t.TempDir(), "msg"))
	require.NoError(t, err)
	defer f.Close()

	id, err := g.ID(f, '-')
	require.NoError(t, err)
	assert.NotContains(t, id, "-")
	assert.True(t, strings.HasSuffix(id, ".mx_1.example_mail.com"), id)
	assert.NoError(t, ValidateID(id, '-'))
}

func TestValidateSeparator(t *testing.T) {
	for _, sep := range []rune{':', ';', '!', '-', '+'} {
		assert.NoError(t, ValidateSeparator(sep), "%q", sep)
	}
	for _, sep := range []rune{0, '/', '\\', '.', ',', '#', '_', '2', 'M', 'S', ' ', utf8.RuneError} {
		assert.ErrorIs(t, ValidateSeparator(sep), mserrors.ErrInvalidName, "%q", sep)
	}
}

func TestWithSeparator_Invalid(t *testing.T) {
	assert.Panics(t, func() { WithSeparator('/') })
	assert.Panics(t, func() { WithSeparator('2') })
	assert.NotPanics(t, func() { WithSeparator('!') })
}

func TestDeliver_CustomSeparator(t *testing.T) {
	g := NewIDGenerator(new(atomic.Uint64))
	g.hostname = func() (string, error) { return "mail-relay", nil }
	m := newTestMaildir(t, WithSeparator('-'), WithIDGenerator(g))

	e, err := m.WriteCur([]byte("body"), NewFlagSet(FlagSeen))
	require.NoError(t, err)
	id, err := e.ID()
	require.NoError(t, err)
	assert.NotContains(t, id, "-")
	flags, err := e.Flags()
	require.NoError(t, err)
	assert.Equal(t, NewFlagSet(FlagSeen), flags)
	name, err := e.FileName()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, "-2,S"), name)
}

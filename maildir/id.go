package maildir

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/infodancer/maildirs/errors"
)

// deliveryCounter is the process-wide counter behind every generated name.
// Only IDGenerator touches it.
var deliveryCounter atomic.Uint64

// cachedHostname is looked up once, on first use.
var cachedHostname = sync.OnceValues(func() (string, error) {
	h, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return sanitizeHostname(h), nil
})

// IDGenerator produces unique message names from time, a shared counter,
// the process id and, once a file exists, its device and inode numbers.
type IDGenerator struct {
	counter  *atomic.Uint64
	now      func() time.Time
	pid      int
	hostname func() (string, error)
}

// NewIDGenerator returns a generator drawing from counter. A nil counter
// means the process-wide one.
func NewIDGenerator(counter *atomic.Uint64) *IDGenerator {
	if counter == nil {
		counter = &deliveryCounter
	}
	return &IDGenerator{
		counter:  counter,
		now:      time.Now,
		pid:      os.Getpid(),
		hostname: cachedHostname,
	}
}

var defaultIDGenerator = NewIDGenerator(nil)

// TmpID returns a name for a file in tmp.
// Format: secs.#counterM nanosPpid, e.g. 1705678901.#1fM123456789P4242
func (g *IDGenerator) TmpID() string {
	now := g.now()
	n := g.counter.Add(1) - 1
	return fmt.Sprintf("%d.#%xM%dP%d", now.Unix(), n, now.Nanosecond(), g.pid)
}

// ID returns the permanent identifier for a written and synced file.
// Format: tmpidVdevIino.hostname, with sep replaced in the hostname.
func (g *IDGenerator) ID(f *os.File, sep rune) (string, error) {
	dev, ino, err := fileIdentity(f)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w: %w", f.Name(), errors.ErrMetadata, err)
	}
	host, err := g.hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w: %w", errors.ErrMetadata, err)
	}
	host = strings.ReplaceAll(host, string(sep), "_")
	return fmt.Sprintf("%sV%dI%d.%s", g.TmpID(), dev, ino, host), nil
}

// sanitizeHostname replaces characters that are problematic in file names.
func sanitizeHostname(hostname string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", ";", "_", "\x00", "")
	return r.Replace(hostname)
}

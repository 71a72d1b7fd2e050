package maildir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jpillora/backoff"

	mserrors "github.com/infodancer/maildirs/errors"
)

// WriteNew delivers data as a new message in new.
func (m *Maildir) WriteNew(data []byte) (*Entry, error) {
	return m.Deliver(bytes.NewReader(data), false, 0)
}

// WriteCur delivers data straight into cur with the given flags.
func (m *Maildir) WriteCur(data []byte, flags FlagSet) (*Entry, error) {
	return m.Deliver(bytes.NewReader(data), true, flags)
}

// Deliver streams r into tmp, syncs it and renames it into new, or into cur
// carrying flags. The message is visible only once it is complete; on any
// error the tmp file is removed and nothing appears in new or cur.
func (m *Maildir) Deliver(r io.Reader, cur bool, flags FlagSet) (*Entry, error) {
	dir := m.new
	if cur {
		dir = m.cur
	}
	return m.commit(dir, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}, func(f *os.File) (string, error) {
		id, err := m.cfg.ids.ID(f, m.cfg.sep)
		if err != nil {
			return "", err
		}
		if !cur {
			return id, nil
		}
		return FormatName(id, flags, m.cfg.sep), nil
	})
}

// commit runs the write protocol: claim a unique tmp file, fill and sync it,
// name it, rename it into dir and hand back an entry for the result.
func (m *Maildir) commit(dir string, fill func(io.Writer) error, name func(*os.File) (string, error)) (*Entry, error) {
	f, tmpPath, err := m.createTmp()
	if err != nil {
		return nil, err
	}
	pending := &pendingTmp{path: tmpPath, file: f}
	defer pending.release()

	if err := fill(f); err != nil {
		return nil, fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	fileName, err := name(f)
	if err != nil {
		return nil, err
	}
	if err := pending.close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", tmpPath, err)
	}

	dst := filepath.Join(dir, fileName)
	if _, err := os.Lstat(dst); err == nil {
		return nil, fmt.Errorf("deliver %s: %w", dst, mserrors.ErrAlreadyExists)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return nil, fmt.Errorf("deliver %s: %w", dst, err)
	}
	pending.disarm()

	return m.locate(dir, dst)
}

// createTmp claims a fresh file in tmp. Only a name collision is retried,
// with a growing delay, up to the configured limit.
func (m *Maildir) createTmp() (*os.File, string, error) {
	b := &backoff.Backoff{
		Min:    10 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 1; ; attempt++ {
		path := filepath.Join(m.tmp, m.cfg.ids.TmpID())
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create tmp file: %w", err)
		}
		if m.cfg.retryLimit > 0 && attempt >= m.cfg.retryLimit {
			return nil, "", fmt.Errorf("create tmp file in %s after %d attempts: %w", m.tmp, attempt, mserrors.ErrTmpCollision)
		}
		d := b.Duration()
		slog.Debug("tmp name collision", slog.String("path", path), slog.Int("attempt", attempt), slog.Duration("retry_in", d))
		time.Sleep(d)
	}
}

// locate re-reads dir for the freshly renamed file, so the returned entry is
// bound to what is actually on disk.
func (m *Maildir) locate(dir, path string) (*Entry, error) {
	var found *Entry
	var readErr error
	eachFile(dir, func(p string, err error) bool {
		if err != nil {
			readErr = err
			return false
		}
		if p == path {
			found = m.entry(p)
			return false
		}
		return true
	})
	if readErr != nil {
		return nil, readErr
	}
	if found == nil {
		return nil, fmt.Errorf("%s: %w", path, mserrors.ErrEntryVanished)
	}
	return found, nil
}

// pendingTmp is a tmp file that has not yet been renamed into place.
// release removes it unless disarm was called first.
type pendingTmp struct {
	path      string
	file      *os.File
	committed bool
}

func (p *pendingTmp) close() error {
	f := p.file
	p.file = nil
	if f == nil {
		return nil
	}
	return f.Close()
}

func (p *pendingTmp) disarm() { p.committed = true }

func (p *pendingTmp) release() {
	_ = p.close()
	if !p.committed {
		_ = os.Remove(p.path)
	}
}

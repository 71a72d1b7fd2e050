package maildir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	mserrors "github.com/infodancer/maildirs/errors"
)

// readBatch is how many directory entries are fetched per read.
const readBatch = 128

// Read enumerates the messages in new and then cur. Each call re-reads the
// directories; order is whatever the file system returns. A directory that
// cannot be read is reported as an error item.
func (m *Maildir) Read() iter.Seq2[*Entry, error] {
	return m.entries(m.new, m.cur)
}

// ReadNew enumerates the messages in new only.
func (m *Maildir) ReadNew() iter.Seq2[*Entry, error] {
	return m.entries(m.new)
}

// ReadCur enumerates the messages in cur only.
func (m *Maildir) ReadCur() iter.Seq2[*Entry, error] {
	return m.entries(m.cur)
}

func (m *Maildir) entries(dirs ...string) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for _, dir := range dirs {
			ok := eachFile(dir, func(path string, err error) bool {
				if err != nil {
					return yield(nil, err)
				}
				return yield(m.entry(path), nil)
			})
			if !ok {
				return
			}
		}
	}
}

// Entries collects Read into a slice, stopping at the first error.
func (m *Maildir) Entries() ([]*Entry, error) {
	var out []*Entry
	for e, err := range m.Read() {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// eachFile calls fn for every regular file directly inside dir whose name
// does not start with a dot. It returns false once fn does.
func eachFile(dir string, fn func(path string, err error) bool) bool {
	f, err := os.Open(dir)
	if err != nil {
		return fn("", fmt.Errorf("read %s: %w", dir, err))
	}
	defer func() { _ = f.Close() }()

	for {
		batch, err := f.ReadDir(readBatch)
		for _, de := range batch {
			name := de.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			path := filepath.Join(dir, name)
			if !isRegular(path, de) {
				continue
			}
			if !fn(path, nil) {
				return false
			}
		}
		if err == io.EOF {
			return true
		}
		if err != nil {
			return fn("", fmt.Errorf("read %s: %w", dir, err))
		}
	}
}

// isRegular follows symbolic links, so a link to a message counts.
func isRegular(path string, de fs.DirEntry) bool {
	if de.Type()&fs.ModeSymlink == 0 {
		return de.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Find returns the message with the given identifier, searching new and
// then cur. It returns a nil entry and nil error when there is none.
// File names that are not valid text are skipped.
func (m *Maildir) Find(id string) (*Entry, error) {
	var (
		found   *Entry
		findErr error
	)
	for _, dir := range []string{m.new, m.cur} {
		eachFile(dir, func(path string, err error) bool {
			if err != nil {
				findErr = err
				return false
			}
			e := m.entry(path)
			if eid, err := e.ID(); err == nil && eid == id {
				found = e
				return false
			}
			return true
		})
		if found != nil || findErr != nil {
			break
		}
	}
	return found, findErr
}

// Get is Find with a missing message reported as ErrMessageNotFound.
func (m *Maildir) Get(id string) (*Entry, error) {
	e, err := m.Find(id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("message %s: %w", id, mserrors.ErrMessageNotFound)
	}
	return e, nil
}

// Delete removes the message with the given identifier.
func (m *Maildir) Delete(id string) error {
	e, err := m.Get(id)
	if err != nil {
		return err
	}
	return e.Remove()
}

// CopyTo copies the message with the given identifier into dst.
func (m *Maildir) CopyTo(id string, dst *Maildir) (*Entry, error) {
	e, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return e.Copy(dst)
}

// MoveTo moves the message with the given identifier into dst.
func (m *Maildir) MoveTo(id string, dst *Maildir) (*Entry, error) {
	e, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if err := e.Move(dst); err != nil {
		return nil, err
	}
	return e, nil
}

// CountNew returns the number of messages in new.
func (m *Maildir) CountNew() (int, error) { return count(m.new) }

// CountCur returns the number of messages in cur.
func (m *Maildir) CountCur() (int, error) { return count(m.cur) }

// CountTmp returns the number of files in tmp.
func (m *Maildir) CountTmp() (int, error) { return count(m.tmp) }

func count(dir string) (int, error) {
	n := 0
	var countErr error
	eachFile(dir, func(_ string, err error) bool {
		if err != nil {
			countErr = err
			return false
		}
		n++
		return true
	})
	return n, countErr
}

// Unseen moves every message in new into cur and returns the moved entries.
// The moved file gains an info suffix carrying the flags it already had.
// A message whose name is already taken in cur stays in new.
func (m *Maildir) Unseen() ([]*Entry, error) {
	var moved []*Entry
	for e, err := range m.ReadNew() {
		if err != nil {
			return moved, err
		}
		id, err := e.ID()
		if err != nil {
			continue
		}
		flags, _ := e.Flags()
		dst := filepath.Join(m.cur, FormatName(id, flags, m.cfg.sep))
		if _, err := os.Lstat(dst); err == nil {
			slog.Warn("unseen message already in cur", "path", e.path, "dst", dst, "error", mserrors.ErrAlreadyExists)
			continue
		}
		if err := os.Rename(e.path, dst); err != nil {
			// Another reader may have claimed it first.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return moved, fmt.Errorf("move %s to cur: %w", e.path, err)
		}
		e.path = dst
		moved = append(moved, e)
	}
	return moved, nil
}

// CleanTmp removes regular files in tmp last modified more than maxAge ago
// and returns how many were removed. Removal is best effort: failures are
// collected and returned after every candidate was tried.
func (m *Maildir) CleanTmp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.tmp)
	if err != nil {
		return 0, fmt.Errorf("clean tmp: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, de := range entries {
		info, err := de.Info()
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.tmp, de.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("removed orphaned tmp files", slog.String("maildir", m.root), slog.Int("count", removed))
	}
	return removed, errors.Join(errs...)
}

func (m *Maildir) entry(path string) *Entry {
	return &Entry{path: path, cfg: m.cfg}
}

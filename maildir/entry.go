package maildir

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/emersion/go-message/textproto"

	mserrors "github.com/infodancer/maildirs/errors"
)

// Entry is a handle to one message file. It holds only the path; every
// accessor goes back to the file system. Operations that rename the file
// update the handle once the rename has succeeded.
type Entry struct {
	path string
	cfg  config
}

// NewEntry returns a handle for the message file at path.
func NewEntry(path string, opts ...Option) *Entry {
	return &Entry{path: path, cfg: newConfig(opts)}
}

// Path returns the current path of the message file.
func (e *Entry) Path() string { return e.path }

// FileName returns the base name of the message file. Names that are not
// valid UTF-8 are reported as ErrInvalidName.
func (e *Entry) FileName() (string, error) {
	name := filepath.Base(e.path)
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("file name of %q: %w", e.path, mserrors.ErrInvalidName)
	}
	return name, nil
}

// ID returns the unique identifier portion of the file name.
func (e *Entry) ID() (string, error) {
	name, err := e.FileName()
	if err != nil {
		return "", err
	}
	id, _ := ParseName(name, e.cfg.sep)
	return id, nil
}

// Flags returns the flags encoded in the file name.
func (e *Entry) Flags() (FlagSet, error) {
	name, err := e.FileName()
	if err != nil {
		return 0, err
	}
	_, flags := ParseName(name, e.cfg.sep)
	return flags, nil
}

// HasFlag reports whether f is set. Undecodable names have no flags.
func (e *Entry) HasFlag(f Flag) bool {
	flags, err := e.Flags()
	return err == nil && flags.Has(f)
}

// IsTrashed reports whether the message carries the Trashed flag.
func (e *Entry) IsTrashed() bool {
	return e.HasFlag(FlagTrashed)
}

// InsertFlags adds flags. Nothing is renamed when all were already set.
func (e *Entry) InsertFlags(flags FlagSet) error {
	cur, err := e.Flags()
	if err != nil {
		return err
	}
	next := cur.Union(flags)
	if next == cur {
		return nil
	}
	return e.setFlags(next)
}

// RemoveFlags clears flags. Nothing is renamed when none were set.
func (e *Entry) RemoveFlags(flags FlagSet) error {
	cur, err := e.Flags()
	if err != nil {
		return err
	}
	next := cur.Difference(flags)
	if next == cur {
		return nil
	}
	return e.setFlags(next)
}

// UpdateFlags replaces the flags with exactly the given set.
func (e *Entry) UpdateFlags(flags FlagSet) error {
	return e.setFlags(flags)
}

func (e *Entry) setFlags(flags FlagSet) error {
	id, err := e.ID()
	if err != nil {
		return err
	}
	return e.rename(FormatName(id, flags, e.cfg.sep))
}

// SetID gives the message a new identifier, keeping its flags.
func (e *Entry) SetID(id string) error {
	if err := ValidateID(id, e.cfg.sep); err != nil {
		return err
	}
	flags, err := e.Flags()
	if err != nil {
		return err
	}
	return e.rename(FormatName(id, flags, e.cfg.sep))
}

// rename moves the file to name within its directory.
func (e *Entry) rename(name string) error {
	dst := filepath.Join(filepath.Dir(e.path), name)
	if dst == e.path {
		return nil
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("rename %s: %w", dst, mserrors.ErrAlreadyExists)
	}
	if err := os.Rename(e.path, dst); err != nil {
		return fmt.Errorf("rename %s: %w", e.path, err)
	}
	e.path = dst
	return nil
}

// Copy places a copy of the message in the cur directory of dst under the
// same file name and returns a handle to the copy. Copying into the
// directory the message already lives in is a no-op returning e.
func (e *Entry) Copy(dst *Maildir) (*Entry, error) {
	target, same, err := e.target(dst)
	if err != nil {
		return nil, err
	}
	if same {
		return e, nil
	}

	src, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("copy %s: %w", e.path, err)
	}
	defer func() { _ = src.Close() }()

	base := filepath.Base(target)
	return dst.commit(dst.cur, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	}, func(*os.File) (string, error) {
		return base, nil
	})
}

// Move renames the message into the cur directory of dst under the same
// file name. Moving into the directory it already lives in is a no-op.
func (e *Entry) Move(dst *Maildir) error {
	target, same, err := e.target(dst)
	if err != nil || same {
		return err
	}
	if err := os.Rename(e.path, target); err != nil {
		return fmt.Errorf("move %s: %w", e.path, err)
	}
	e.path = target
	return nil
}

// target resolves where a copy or move into dst lands. same reports the
// no-op case; a destination that is the source file reached through a
// different path, or any same-directory request in strict mode, is
// ErrSameLocation.
func (e *Entry) target(dst *Maildir) (target string, same bool, err error) {
	name, err := e.FileName()
	if err != nil {
		return "", false, err
	}
	target = filepath.Join(dst.cur, name)

	if filepath.Clean(filepath.Dir(e.path)) == filepath.Clean(dst.cur) {
		if e.cfg.strictSelfCopy || dst.cfg.strictSelfCopy {
			return "", false, fmt.Errorf("%s: %w", target, mserrors.ErrSameLocation)
		}
		return target, true, nil
	}

	ti, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return target, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("stat %s: %w", target, err)
	}
	if si, err := os.Stat(e.path); err == nil && os.SameFile(si, ti) {
		return "", false, fmt.Errorf("%s: %w", target, mserrors.ErrSameLocation)
	}
	return "", false, fmt.Errorf("%s: %w", target, mserrors.ErrAlreadyExists)
}

// Remove deletes the message file.
func (e *Entry) Remove() error {
	if err := os.Remove(e.path); err != nil {
		return fmt.Errorf("remove %s: %w", e.path, err)
	}
	return nil
}

// Size returns the size of the message in bytes.
func (e *Entry) Size() (int64, error) {
	info, err := os.Stat(e.path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", e.path, err)
	}
	return info.Size(), nil
}

// Open opens the message for streaming reads. The caller closes it.
func (e *Entry) Open() (*os.File, error) {
	return os.Open(e.path)
}

// Read returns the full message.
func (e *Entry) Read() ([]byte, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.path, err)
	}
	return data, nil
}

// ReadHeaders returns the header block: everything up to and including the
// first empty line. Only the header lines are read from disk.
func (e *Entry) ReadHeaders() ([]byte, error) {
	f, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("read headers %s: %w", e.path, err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	var headers []byte
	for {
		line, err := br.ReadBytes('\n')
		headers = append(headers, line...)
		if bytes.Equal(line, []byte("\n")) || bytes.Equal(line, []byte("\r\n")) {
			return headers, nil
		}
		if err == io.EOF {
			return headers, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read headers %s: %w", e.path, err)
		}
	}
}

// Header parses the header block of the message.
func (e *Entry) Header() (textproto.Header, error) {
	raw, err := e.ReadHeaders()
	if err != nil {
		return textproto.Header{}, err
	}
	// A message without a body still needs the terminating empty line.
	if len(raw) > 0 && !bytes.HasSuffix(raw, []byte("\n")) {
		raw = append(raw, "\r\n"...)
	}
	if !bytes.HasSuffix(raw, []byte("\n\n")) && !bytes.HasSuffix(raw, []byte("\n\r\n")) {
		raw = append(raw, "\r\n"...)
	}
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return textproto.Header{}, fmt.Errorf("parse headers %s: %w", e.path, err)
	}
	return h, nil
}

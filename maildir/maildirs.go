package maildir

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	mserrors "github.com/infodancer/maildirs/errors"
)

// Maildirs is a tree of maildirs below one root directory. With Maildir++
// naming, the folder a/b lives at root/.a/.b; otherwise at root/a/b.
type Maildirs struct {
	root string
	cfg  config
}

// Folder is a maildir found in a collection together with its logical name.
type Folder struct {
	Maildir *Maildir
	Name    string
}

// NewMaildirs returns the collection rooted at path.
// It does not touch the file system.
func NewMaildirs(path string, opts ...Option) *Maildirs {
	return &Maildirs{root: path, cfg: newConfig(opts)}
}

// Path returns the collection root.
func (c *Maildirs) Path() string { return c.root }

// MaildirPP reports whether Maildir++ naming is in use.
func (c *Maildirs) MaildirPP() bool { return c.cfg.maildirpp }

// Equal reports whether both collections share root and naming mode.
func (c *Maildirs) Equal(o *Maildirs) bool {
	return o != nil && filepath.Clean(c.root) == filepath.Clean(o.root) && c.cfg.maildirpp == o.cfg.maildirpp
}

// MaildirFor maps a logical folder name to its maildir without touching the
// file system. Segments are separated by '/'; an empty name is the root
// itself. In Maildir++ mode leading dots of each segment are dropped before
// one is added back, so "a/..b" and "a/b" name the same folder. In flat
// mode the segments cur, new and tmp are rejected.
func (c *Maildirs) MaildirFor(name string) (*Maildir, error) {
	path, err := c.pathFor(name)
	if err != nil {
		return nil, err
	}
	return newMaildir(path, c.cfg), nil
}

func (c *Maildirs) pathFor(name string) (string, error) {
	if strings.ContainsRune(name, 0) || filepath.IsAbs(name) {
		return "", fmt.Errorf("folder %q: %w", name, mserrors.ErrInvalidName)
	}
	path := c.root
	for _, seg := range strings.FieldsFunc(name, isPathSeparator) {
		switch seg {
		case ".":
			continue
		case "..":
			return "", fmt.Errorf("folder %q: %w", name, mserrors.ErrPathTraversal)
		}
		if c.cfg.maildirpp {
			trimmed := strings.TrimLeft(seg, ".")
			if trimmed == "" {
				return "", fmt.Errorf("folder %q: %w", name, mserrors.ErrInvalidName)
			}
			seg = "." + trimmed
		} else if seg == curDir || seg == newDir || seg == tmpDir {
			return "", fmt.Errorf("folder %q: %w", name, mserrors.ErrInvalidName)
		}
		path = filepath.Join(path, seg)
	}
	return path, nil
}

func isPathSeparator(r rune) bool {
	return r == '/' || r == filepath.Separator
}

// Create maps name and creates whatever part of the maildir is missing.
func (c *Maildirs) Create(name string) (*Maildir, error) {
	m, err := c.MaildirFor(name)
	if err != nil {
		return nil, err
	}
	if err := m.CreateAll(); err != nil {
		return nil, fmt.Errorf("folder %q: %w", name, err)
	}
	return openMaildir(m.root, c.cfg), nil
}

// Find returns the named maildir, or nil when it does not exist.
func (c *Maildirs) Find(name string) (*Maildir, error) {
	m, err := c.MaildirFor(name)
	if err != nil {
		return nil, err
	}
	if !m.Exists() {
		return nil, nil
	}
	return openMaildir(m.root, c.cfg), nil
}

// Get is Find with a missing maildir reported as ErrMailboxNotFound.
func (c *Maildirs) Get(name string) (*Maildir, error) {
	m, err := c.Find(name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("folder %q: %w", name, mserrors.ErrMailboxNotFound)
	}
	return m, nil
}

// Remove deletes the named maildir and everything below it. Removing a
// folder that does not exist succeeds.
func (c *Maildirs) Remove(name string) error {
	m, err := c.MaildirFor(name)
	if err != nil {
		return err
	}
	return m.RemoveAll()
}

// All walks the collection, following symbolic links, and yields every
// directory that is a complete maildir. In Maildir++ mode only dot-prefixed
// directories are descended into; the root is always considered and is
// named after its base name. In flat mode the root is named "".
// Each call walks the file system again. A missing root yields nothing.
func (c *Maildirs) All() iter.Seq2[Folder, error] {
	return func(yield func(Folder, error) bool) {
		if _, err := os.Stat(c.root); errors.Is(err, fs.ErrNotExist) {
			return
		}
		w := walker{c: c, yield: yield, seen: make(map[string]bool)}
		w.walk(c.root, nil)
	}
}

// List collects All into a slice, stopping at the first error.
func (c *Maildirs) List() ([]Folder, error) {
	var out []Folder
	for f, err := range c.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

type walker struct {
	c     *Maildirs
	yield func(Folder, error) bool
	seen  map[string]bool
}

// walk visits dir, whose logical path below the root is segs. It returns
// false once the consumer stops.
func (w *walker) walk(dir string, segs []string) bool {
	// Links may form cycles; visit each real directory once.
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return w.yield(Folder{}, fmt.Errorf("resolve %s: %w", dir, err))
	}
	if w.seen[resolved] {
		return true
	}
	w.seen[resolved] = true

	m := newMaildir(dir, w.c.cfg)
	isMaildir := m.Exists()
	if isMaildir {
		if !w.yield(Folder{Maildir: m, Name: w.name(segs)}, nil) {
			return false
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return w.yield(Folder{}, fmt.Errorf("read %s: %w", dir, err))
	}
	for _, de := range entries {
		name := de.Name()
		if w.c.cfg.maildirpp {
			if !strings.HasPrefix(name, ".") {
				continue
			}
		} else if isMaildir && (name == curDir || name == newDir || name == tmpDir) {
			continue
		}

		child := filepath.Join(dir, name)
		info, err := os.Stat(child)
		if err != nil {
			// Dangling links are not folders.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if !w.yield(Folder{}, fmt.Errorf("stat %s: %w", child, err)) {
				return false
			}
			continue
		}
		if !info.IsDir() {
			continue
		}
		if !w.walk(child, append(segs[:len(segs):len(segs)], name)) {
			return false
		}
	}
	return true
}

func (w *walker) name(segs []string) string {
	if len(segs) == 0 {
		if w.c.cfg.maildirpp {
			return filepath.Base(w.c.root)
		}
		return ""
	}
	if !w.c.cfg.maildirpp {
		return strings.Join(segs, "/")
	}
	names := make([]string, len(segs))
	for i, s := range segs {
		names[i] = strings.TrimLeft(s, ".")
	}
	return strings.Join(names, "/")
}

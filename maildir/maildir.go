package maildir

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	mserrors "github.com/infodancer/maildirs/errors"
)

const (
	curDir = "cur"
	newDir = "new"
	tmpDir = "tmp"

	// folderMarker marks a directory as a Maildir++ subfolder.
	folderMarker = "maildirfolder"
)

// Maildir represents a single maildir directory.
type Maildir struct {
	root string
	cur  string
	new  string
	tmp  string
	cfg  config
}

// New creates a Maildir instance for the given path.
// It does not touch the file system; use Create or CreateAll for that.
func New(path string, opts ...Option) *Maildir {
	return newMaildir(path, newConfig(opts))
}

func newMaildir(path string, cfg config) *Maildir {
	return &Maildir{
		root: path,
		cur:  filepath.Join(path, curDir),
		new:  filepath.Join(path, newDir),
		tmp:  filepath.Join(path, tmpDir),
		cfg:  cfg,
	}
}

// Open is New followed by a best-effort removal of orphaned tmp files.
func Open(path string, opts ...Option) *Maildir {
	return openMaildir(path, newConfig(opts))
}

func openMaildir(path string, cfg config) *Maildir {
	m := newMaildir(path, cfg)
	if _, err := m.CleanTmp(OrphanAge); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Debug("tmp cleanup failed", slog.String("maildir", path), slog.String("error", err.Error()))
	}
	return m
}

// Path returns the maildir root.
func (m *Maildir) Path() string { return m.root }

// CurDir returns the path of the cur directory.
func (m *Maildir) CurDir() string { return m.cur }

// NewDir returns the path of the new directory.
func (m *Maildir) NewDir() string { return m.new }

// TmpDir returns the path of the tmp directory.
func (m *Maildir) TmpDir() string { return m.tmp }

// Separator returns the info separator used for file names in this maildir.
func (m *Maildir) Separator() rune { return m.cfg.sep }

// Name returns the last path element with Maildir++ leading dots removed.
func (m *Maildir) Name() string {
	return strings.TrimLeft(filepath.Base(m.root), ".")
}

// Equal reports whether both values denote the same maildir.
func (m *Maildir) Equal(o *Maildir) bool {
	return o != nil && filepath.Clean(m.root) == filepath.Clean(o.root) && m.cfg.sep == o.cfg.sep
}

// Exists checks if the maildir exists and has the required structure.
func (m *Maildir) Exists() bool {
	for _, dir := range []string{m.root, m.cur, m.new, m.tmp} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// Create creates the maildir root and its cur, new and tmp directories.
// It fails with ErrAlreadyExists if the root is already present.
func (m *Maildir) Create() error {
	if err := os.Mkdir(m.root, dirPerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create maildir %s: %w: %w", m.root, mserrors.ErrAlreadyExists, err)
		}
		return fmt.Errorf("create maildir: %w", err)
	}
	for _, dir := range []string{m.cur, m.new, m.tmp} {
		if err := os.Mkdir(dir, dirPerm); err != nil {
			return fmt.Errorf("create maildir: %w", err)
		}
	}
	return nil
}

// CreateAll creates whatever part of the maildir structure is missing,
// including parent directories of the root.
func (m *Maildir) CreateAll() error {
	for _, dir := range []string{m.cur, m.new, m.tmp} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create maildir: %w", err)
		}
	}
	return nil
}

// Remove deletes the four maildir directories. Any of them holding files,
// or already missing, makes it fail.
func (m *Maildir) Remove() error {
	for _, dir := range []string{m.cur, m.new, m.tmp, m.root} {
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("remove maildir: %w", err)
		}
	}
	return nil
}

// RemoveAll deletes the maildir root and everything below it.
func (m *Maildir) RemoveAll() error {
	if err := os.RemoveAll(m.root); err != nil {
		return fmt.Errorf("remove maildir: %w", err)
	}
	return nil
}

// Folders lists the Maildir++ subfolders directly below this maildir:
// directories whose name starts with a single dot.
func (m *Maildir) Folders() ([]*Maildir, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	var folders []*Maildir
	for _, de := range entries {
		name := de.Name()
		if !strings.HasPrefix(name, ".") || strings.HasPrefix(name, "..") {
			continue
		}
		path := filepath.Join(m.root, name)
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			continue
		}
		folders = append(folders, newMaildir(path, m.cfg))
	}
	return folders, nil
}

// CreateFolder creates a Maildir++ subfolder. A subfolder of a subfolder
// becomes a sibling named parent.child, as Maildir++ requires.
func (m *Maildir) CreateFolder(name string) (*Maildir, error) {
	if err := ValidateFolder(name); err != nil {
		return nil, err
	}
	path := filepath.Join(m.root, "."+name)
	if _, err := os.Stat(filepath.Join(m.root, folderMarker)); err == nil {
		path = filepath.Join(filepath.Dir(m.root), filepath.Base(m.root)+"."+name)
	}

	folder := newMaildir(path, m.cfg)
	if err := folder.CreateAll(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(path, folderMarker), nil, filePerm); err != nil {
		return nil, fmt.Errorf("create folder marker: %w", err)
	}
	return folder, nil
}

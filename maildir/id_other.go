//go:build !unix

package maildir

import "os"

// fileIdentity has no device or inode to report here; it still fails when
// the file cannot be stat'ed.
func fileIdentity(f *os.File) (dev, ino uint64, err error) {
	if _, err := f.Stat(); err != nil {
		return 0, 0, err
	}
	return 0, 0, nil
}

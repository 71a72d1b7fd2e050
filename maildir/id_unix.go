//go:build unix

package maildir

import (
	"os"

	"golang.org/x/sys/unix"
)

func fileIdentity(f *os.File) (dev, ino uint64, err error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return 0, 0, err
	}
	return uint64(st.Dev), uint64(st.Ino), nil
}

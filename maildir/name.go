package maildir

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/infodancer/maildirs/errors"
)

// DefaultSeparator separates a message identifier from its info suffix.
// Colons are not allowed in Windows file names, so a semicolon is used there.
var DefaultSeparator = defaultSeparator()

func defaultSeparator() rune {
	if runtime.GOOS == "windows" {
		return ';'
	}
	return ':'
}

// infoVersion marks the info suffix as carrying flags.
const infoVersion = "2,"

// ParseName splits a message file name into its identifier and flags.
// The flags follow the last occurrence of sep+"2,"; without that marker the
// whole name is the identifier.
func ParseName(name string, sep rune) (id string, flags FlagSet) {
	marker := string(sep) + infoVersion
	i := strings.LastIndex(name, marker)
	if i < 0 {
		return name, 0
	}
	return name[:i], ParseFlagSet(name[i+len(marker):])
}

// FormatName builds the canonical file name for id carrying flags.
func FormatName(id string, flags FlagSet, sep rune) string {
	return id + string(sep) + infoVersion + flags.String()
}

// ValidateID rejects identifiers that cannot be used as a file name prefix.
func ValidateID(id string, sep rune) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, "/\\\x00") || strings.ContainsRune(id, sep) {
		return fmt.Errorf("id %q: %w", id, errors.ErrInvalidName)
	}
	return nil
}

// ValidateFolder rejects single folder names containing path separators.
func ValidateFolder(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("folder %q: %w", name, errors.ErrInvalidName)
	}
	return nil
}

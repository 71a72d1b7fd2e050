package maildir

import (
	"strconv"
	"unicode/utf8"

	"github.com/infodancer/maildirs"
	"github.com/infodancer/maildirs/errors"
)

func init() {
	maildirs.Register("maildir", func(config maildirs.StoreConfig) (maildirs.MsgStore, error) {
		if config.BasePath == "" {
			return nil, errors.ErrStoreConfigInvalid
		}
		opts, err := storeOptions(config.Options)
		if err != nil {
			return nil, err
		}
		// maildir_subdir specifies the subdirectory under each user (e.g., "Maildir")
		// path_template transforms mailbox names using {domain}, {localpart}, {email}
		layout := Layout{
			Subdir:       config.Options["maildir_subdir"],
			PathTemplate: config.Options["path_template"],
		}
		return NewStore(config.BasePath, layout, opts...), nil
	})
}

// storeOptions reads the engine settings out of the store options:
// maildirpp (default true) and info_separator (a single character).
func storeOptions(options map[string]string) ([]Option, error) {
	maildirpp := true
	if v, ok := options["maildirpp"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.ErrStoreConfigInvalid
		}
		maildirpp = b
	}
	opts := []Option{WithMaildirPP(maildirpp)}

	if v, ok := options["info_separator"]; ok {
		sep, size := utf8.DecodeRuneInString(v)
		if size == 0 || size != len(v) || ValidateSeparator(sep) != nil {
			return nil, errors.ErrStoreConfigInvalid
		}
		opts = append(opts, WithSeparator(sep))
	}
	return opts, nil
}

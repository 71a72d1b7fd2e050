// Package maildir is a Maildir storage engine.
//
// A maildir is a directory holding three children:
//
//	root/
//	├── tmp/     # Messages being written
//	├── new/     # Delivered messages nobody has looked at yet
//	└── cur/     # Messages that have been seen; flags live in the name
//
// Messages are written to tmp, synced, and renamed into new or cur, so a
// reader sees a message completely or not at all. Flags are encoded in the
// file name after the info separator ("id:2,FS") and changed by renaming.
// No lock files or side indexes are used.
//
// Maildirs groups maildirs under one root, either as plain nested paths or
// with Maildir++ naming, where folder a/b lives at root/.a/.b.
//
// The package also registers a store backend with the maildirs registry
// under the name "maildir". Import it with a blank identifier to enable it:
//
//	import _ "github.com/infodancer/maildirs/maildir"
//
// Then open a store:
//
//	store, err := maildirs.Open(maildirs.StoreConfig{
//	    Type:     "maildir",
//	    BasePath: "/var/mail",
//	})
package maildir

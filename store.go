package maildirs

import (
	"context"
	"io"
)

// MessageStore reads and removes messages in a mailbox's inbox. A mailbox
// is an address such as "user@example.com"; the backend maps it to a
// maildir through its layout. UIDs are maildir identifiers and stay stable
// while flags change.
type MessageStore interface {
	// List reports every message in the inbox. Messages still in new are
	// claimed into cur and carry \Recent on this call only.
	List(ctx context.Context, mailbox string) ([]MessageInfo, error)

	// Retrieve opens a message for reading. The caller closes it.
	Retrieve(ctx context.Context, mailbox string, uid string) (io.ReadCloser, error)

	// Delete hides a message from List, Retrieve and Stat until Expunge
	// removes it from disk.
	Delete(ctx context.Context, mailbox string, uid string) error

	// Expunge removes the messages hidden by Delete.
	Expunge(ctx context.Context, mailbox string) error

	// Stat counts the visible messages and sums their file sizes.
	Stat(ctx context.Context, mailbox string) (count int, totalBytes int64, err error)
}

// FolderStore exposes the folder tree of a mailbox and per-message flags.
type FolderStore interface {
	// Folders returns the logical names of the mailbox's folders,
	// not including the inbox itself.
	Folders(ctx context.Context, mailbox string) ([]string, error)

	// SetFlags replaces the flags of a message. Flags without a maildir
	// letter are ignored.
	SetFlags(ctx context.Context, mailbox string, uid string, flags []string) error
}

// MessageInfo describes one message as List sees it.
type MessageInfo struct {
	UID  string
	Size int64
	// Flags uses IMAP names such as \Seen, \Deleted and $Forwarded.
	// \Recent marks a message List moved out of new.
	Flags []string
}

package maildir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/infodancer/maildirs"
	mserrors "github.com/infodancer/maildirs/errors"
)

// deliverConcurrency caps how many recipients are written at once.
const deliverConcurrency = 4

// Layout controls where each mailbox lives below the store's base path.
type Layout struct {
	// Subdir is an optional directory under each mailbox (e.g. "Maildir").
	Subdir string

	// PathTemplate transforms mailbox names using {domain}, {localpart} and
	// {email}, e.g. "{domain}/users/{localpart}".
	PathTemplate string
}

// MaildirStore implements maildirs.MsgStore on a tree of maildirs, one
// Maildirs collection per mailbox. The mailbox root is the inbox; sub-address
// extensions deliver into folders of the collection.
type MaildirStore struct {
	basePath string
	layout   Layout
	opts     []Option

	// deleted tracks messages marked for deletion per mailbox.
	deletedMu sync.Mutex
	deleted   map[string]map[string]bool // mailbox -> uid -> deleted
}

// NewStore creates a MaildirStore with the given base path and layout.
// opts apply to every collection and maildir the store opens.
func NewStore(basePath string, layout Layout, opts ...Option) *MaildirStore {
	return &MaildirStore{
		basePath: basePath,
		layout:   layout,
		opts:     opts,
		deleted:  make(map[string]map[string]bool),
	}
}

// splitEmail splits an email address into localpart and domain.
// If the email doesn't contain @, localpart is the entire input and domain is empty.
func splitEmail(email string) (localpart, domain string) {
	if idx := strings.LastIndex(email, "@"); idx >= 0 {
		return email[:idx], email[idx+1:]
	}
	return email, ""
}

// expandMailbox applies the path template to a mailbox name.
func (s *MaildirStore) expandMailbox(mailbox string) string {
	if s.layout.PathTemplate == "" {
		return mailbox
	}
	localpart, domain := splitEmail(mailbox)
	return strings.NewReplacer(
		"{domain}", domain,
		"{localpart}", localpart,
		"{email}", mailbox,
	).Replace(s.layout.PathTemplate)
}

// mailboxPath returns the collection root for a mailbox.
// Returns an error if the resulting path would escape the base directory.
func (s *MaildirStore) mailboxPath(mailbox string) (string, error) {
	if mailbox == "" {
		return "", fmt.Errorf("empty mailbox: %w", mserrors.ErrInvalidName)
	}
	candidate := filepath.Join(s.basePath, s.expandMailbox(mailbox), s.layout.Subdir)

	cleanBase := filepath.Clean(s.basePath)
	cleanCandidate := filepath.Clean(candidate)
	// The separator suffix stops /base-other from matching /base.
	if !strings.HasPrefix(cleanCandidate+string(filepath.Separator), cleanBase+string(filepath.Separator)) ||
		cleanCandidate == cleanBase {
		return "", mserrors.ErrPathTraversal
	}
	return cleanCandidate, nil
}

// collection returns the folder tree of a mailbox.
func (s *MaildirStore) collection(mailbox string) (*Maildirs, error) {
	path, err := s.mailboxPath(mailbox)
	if err != nil {
		return nil, err
	}
	return NewMaildirs(path, s.opts...), nil
}

// inbox returns the existing root maildir of a mailbox.
func (s *MaildirStore) inbox(mailbox string) (*Maildir, error) {
	c, err := s.collection(mailbox)
	if err != nil {
		return nil, err
	}
	m, err := c.Find("")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, mserrors.ErrMailboxNotFound
	}
	return m, nil
}

// Deliver implements maildirs.DeliveryAgent.
func (s *MaildirStore) Deliver(ctx context.Context, envelope maildirs.Envelope, message io.Reader) error {
	if len(envelope.Recipients) == 0 {
		return mserrors.ErrNoRecipients
	}

	// Read message into memory for multi-recipient delivery
	data, err := io.ReadAll(message)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	var (
		mu        sync.Mutex
		delivered int
		errs      []error
		g         errgroup.Group
	)
	g.SetLimit(deliverConcurrency)
	for _, recipient := range envelope.Recipients {
		g.Go(func() error {
			err := s.deliverOne(ctx, recipient, data)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("delivery failed", slog.String("recipient", recipient), slog.String("error", err.Error()))
				errs = append(errs, fmt.Errorf("%s: %w", recipient, err))
				return nil
			}
			delivered++
			return nil
		})
	}
	_ = g.Wait()

	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}

// deliverOne writes data into new of the recipient's inbox, or of the
// folder named by its sub-address extension.
func (s *MaildirStore) deliverOne(ctx context.Context, recipient string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parsed := maildirs.ParseRecipient(recipient)
	c, err := s.collection(parsed.Address)
	if err != nil {
		return err
	}
	target, err := c.Create("")
	if err != nil {
		return err
	}
	if parsed.Extension != "" {
		if target, err = c.Create(parsed.Extension); err != nil {
			return err
		}
	}
	_, err = target.Deliver(bytes.NewReader(data), false, 0)
	return err
}

// List implements maildirs.MessageStore. Messages still in new are moved to
// cur first and reported as \Recent. A mailbox that never received mail is
// empty.
func (s *MaildirStore) List(ctx context.Context, mailbox string) ([]maildirs.MessageInfo, error) {
	m, err := s.inbox(mailbox)
	if errors.Is(err, mserrors.ErrMailboxNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	recent := make(map[string]bool)
	unseen, err := m.Unseen()
	if err != nil {
		return nil, err
	}
	for _, e := range unseen {
		if id, err := e.ID(); err == nil {
			recent[id] = true
		}
	}

	var messages []maildirs.MessageInfo
	for e, err := range m.ReadCur() {
		if err != nil {
			return nil, err
		}
		id, err := e.ID()
		if err != nil || s.isDeleted(mailbox, id) {
			continue
		}
		size, err := e.Size()
		if err != nil {
			continue // Renamed or removed underneath us
		}
		flags, _ := e.Flags()

		var flagStrings []string
		if recent[id] {
			flagStrings = append(flagStrings, "\\Recent")
		}
		flagStrings = append(flagStrings, convertFlags(flags)...)

		messages = append(messages, maildirs.MessageInfo{
			UID:   id,
			Size:  size,
			Flags: flagStrings,
		})
	}
	return messages, nil
}

// imapFlags pairs maildir flags with their IMAP names.
var imapFlags = []struct {
	flag Flag
	name string
}{
	{FlagSeen, "\\Seen"},
	{FlagReplied, "\\Answered"},
	{FlagFlagged, "\\Flagged"},
	{FlagDraft, "\\Draft"},
	{FlagTrashed, "\\Deleted"},
	{FlagPassed, "$Forwarded"},
}

// convertFlags converts maildir flags to IMAP flag strings.
func convertFlags(flags FlagSet) []string {
	var result []string
	for _, f := range imapFlags {
		if flags.Has(f.flag) {
			result = append(result, f.name)
		}
	}
	return result
}

// parseFlags converts IMAP flag strings to maildir flags, ignoring any
// without a maildir equivalent.
func parseFlags(names []string) FlagSet {
	var set FlagSet
	for _, n := range names {
		for _, f := range imapFlags {
			if strings.EqualFold(n, f.name) {
				set = set.Union(NewFlagSet(f.flag))
			}
		}
	}
	return set
}

// Retrieve implements maildirs.MessageStore.
func (s *MaildirStore) Retrieve(ctx context.Context, mailbox string, uid string) (io.ReadCloser, error) {
	if s.isDeleted(mailbox, uid) {
		return nil, mserrors.ErrMessageDeleted
	}
	m, err := s.inbox(mailbox)
	if err != nil {
		return nil, err
	}
	e, err := m.Get(uid)
	if err != nil {
		return nil, err
	}
	return e.Open()
}

// Delete implements maildirs.MessageStore.
func (s *MaildirStore) Delete(ctx context.Context, mailbox string, uid string) error {
	s.deletedMu.Lock()
	defer s.deletedMu.Unlock()

	if s.deleted[mailbox] == nil {
		s.deleted[mailbox] = make(map[string]bool)
	}
	s.deleted[mailbox][uid] = true
	return nil
}

// Expunge implements maildirs.MessageStore.
func (s *MaildirStore) Expunge(ctx context.Context, mailbox string) error {
	s.deletedMu.Lock()
	deletedUIDs := s.deleted[mailbox]
	delete(s.deleted, mailbox)
	s.deletedMu.Unlock()

	if len(deletedUIDs) == 0 {
		return nil
	}

	m, err := s.inbox(mailbox)
	if err != nil {
		return err
	}

	var errs []error
	for uid := range deletedUIDs {
		err := m.Delete(uid)
		if err != nil && !errors.Is(err, mserrors.ErrMessageNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stat implements maildirs.MessageStore.
func (s *MaildirStore) Stat(ctx context.Context, mailbox string) (count int, totalBytes int64, err error) {
	messages, err := s.List(ctx, mailbox)
	if err != nil {
		return 0, 0, err
	}

	for _, msg := range messages {
		count++
		totalBytes += msg.Size
	}
	return count, totalBytes, nil
}

// Folders implements maildirs.FolderStore. The inbox itself is not listed.
func (s *MaildirStore) Folders(ctx context.Context, mailbox string) ([]string, error) {
	c, err := s.collection(mailbox)
	if err != nil {
		return nil, err
	}
	var names []string
	for f, err := range c.All() {
		if err != nil {
			return nil, err
		}
		if filepath.Clean(f.Maildir.Path()) == filepath.Clean(c.Path()) {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// SetFlags implements maildirs.FolderStore, replacing the message's flags.
func (s *MaildirStore) SetFlags(ctx context.Context, mailbox string, uid string, flags []string) error {
	m, err := s.inbox(mailbox)
	if err != nil {
		return err
	}
	e, err := m.Get(uid)
	if err != nil {
		return err
	}
	return e.UpdateFlags(parseFlags(flags))
}

func (s *MaildirStore) isDeleted(mailbox, uid string) bool {
	s.deletedMu.Lock()
	defer s.deletedMu.Unlock()

	if s.deleted[mailbox] == nil {
		return false
	}
	return s.deleted[mailbox][uid]
}

// Compile-time interface verification.
var _ maildirs.MsgStore = (*MaildirStore)(nil)

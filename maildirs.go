// Package maildirs defines the store interfaces served by the maildir engine
// and a registry for opening stores by type name.
package maildirs

// MsgStore combines delivery, retrieval and folder operations.
// smtpd-style callers use DeliveryAgent; pop3d and imapd use MessageStore
// and FolderStore.
type MsgStore interface {
	DeliveryAgent
	MessageStore
	FolderStore
}

// Package errors provides centralized error definitions for maildirs.
//
// Every fallible operation in the module wraps one of these values with the
// offending path, identifier or name, so callers should compare with
// errors.Is rather than ==.
package errors

import "errors"

// Lookup errors.
var (
	// ErrMessageNotFound indicates no message with the requested identifier exists.
	ErrMessageNotFound = errors.New("message not found")

	// ErrMailboxNotFound indicates the requested mailbox does not exist.
	ErrMailboxNotFound = errors.New("mailbox not found")
)

// Naming errors.
var (
	// ErrAlreadyExists indicates a destination path is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidName indicates a file, identifier or folder name failed validation.
	ErrInvalidName = errors.New("invalid name")

	// ErrPathTraversal indicates a computed path would escape its base directory.
	ErrPathTraversal = errors.New("path escapes base directory")
)

// Entry operation errors.
var (
	// ErrSameLocation indicates a copy or move whose destination is the source itself.
	ErrSameLocation = errors.New("source and destination are the same")

	// ErrEntryVanished indicates a freshly written message was not found at its final path.
	ErrEntryVanished = errors.New("freshly created entry not found")
)

// Delivery errors.
var (
	// ErrMetadata indicates file metadata or host information could not be read
	// while finalizing a message identifier.
	ErrMetadata = errors.New("metadata unavailable")

	// ErrTmpCollision indicates every attempt to claim a unique tmp name collided.
	ErrTmpCollision = errors.New("tmp name collision retries exhausted")

	// ErrNoRecipients indicates no valid recipients were provided.
	ErrNoRecipients = errors.New("no recipients")

	// ErrMessageDeleted indicates the message has been marked for deletion.
	ErrMessageDeleted = errors.New("message deleted")
)

// Store errors.
var (
	// ErrStoreNotRegistered indicates the requested store type is not registered.
	ErrStoreNotRegistered = errors.New("store type not registered")

	// ErrStoreConfigInvalid indicates the store configuration is invalid.
	ErrStoreConfigInvalid = errors.New("invalid store configuration")

	// ErrKeyNotFound indicates no sealing key exists for a recipient.
	ErrKeyNotFound = errors.New("key not found")
)

package maildirs

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/infodancer/maildirs/errors"
)

// StoreFactory builds a MsgStore from a StoreConfig. Backends register one
// from an init function; the maildir package registers itself as "maildir".
type StoreFactory func(config StoreConfig) (MsgStore, error)

// StoreConfig names a backend and its settings.
//
// For "maildir" the recognised Options are:
//
//	maildirpp       "true" (default) or "false": folder naming scheme
//	info_separator  single character between identifier and flags
//	maildir_subdir  directory under each user holding the maildir
//	path_template   mailbox path built from {domain}, {localpart} and {email}
type StoreConfig struct {
	Type     string
	BasePath string
	Options  map[string]string
}

var (
	factoriesMu sync.RWMutex
	factories   = map[string]StoreFactory{}
)

// Register makes a backend available to Open under name.
// Registering an empty name, a nil factory or a name twice panics.
func Register(name string, factory StoreFactory) {
	switch {
	case name == "":
		panic("maildirs: Register called with empty name")
	case factory == nil:
		panic("maildirs: Register called with nil factory for " + name)
	}

	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[name]; dup {
		panic("maildirs: Register called twice for " + name)
	}
	factories[name] = factory
}

// Open builds the store named by config.Type. Unknown types wrap
// ErrStoreNotRegistered; backends report bad settings as ErrStoreConfigInvalid.
func Open(config StoreConfig) (MsgStore, error) {
	factoriesMu.RLock()
	factory := factories[config.Type]
	factoriesMu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("store %q: %w", config.Type, errors.ErrStoreNotRegistered)
	}
	return factory(config)
}

// RegisteredTypes lists the registered backend names in order.
func RegisteredTypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

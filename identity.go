package xplorer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// identityFileName is the fixed name of the persisted secret key.
const identityFileName = "xplorer-identity.key"

// identitySeedSize is the length of an Ed25519 seed, the 32-byte secret key
// a node's identity is derived from.
const identitySeedSize = ed25519.SeedSize

// ErrRunning is returned by identity mutation operations that refuse to
// act while the P2P transport is running.
var ErrRunning = errors.New("xplorer: cannot change identity while running")

// Identity owns the persistent Ed25519 node identity used by the P2P
// transport: the load-or-generate-and-persist lifecycle plus the
// export/import/reset operations.
type Identity struct {
	mu          sync.Mutex
	storagePath string
	running     bool

	seed    []byte // nil until loaded/generated
	watcher *fsnotify.Watcher
}

// NewIdentity returns an Identity rooted at storagePath. The key is not
// loaded or generated until Load is called (typically from the P2P
// transport's start()).
func NewIdentity(storagePath string) *Identity {
	return &Identity{storagePath: storagePath}
}

func (id *Identity) keyPath() string {
	return filepath.Join(id.storagePath, identityFileName)
}

// Load loads the 32-byte secret key if present, otherwise generates a
// cryptographically-secure one and persists it atomically with owner-only
// permissions. If forceNew is true, the storage directory is first cleared
// of everything except (transiently) the key file, then the key file itself
// is deleted, guaranteeing a fresh identity and fresh endpoint state.
func (id *Identity) Load(forceNew bool) (ed25519.PrivateKey, error) {
	id.mu.Lock()
	defer id.mu.Unlock()

	if err := os.MkdirAll(id.storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("xplorer: create storage directory: %w", err)
	}

	if forceNew {
		if err := id.clearStorageExceptKeyLocked(); err != nil {
			return nil, err
		}
		if err := os.Remove(id.keyPath()); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("xplorer: remove identity key: %w", err)
		}
	}

	seed, err := os.ReadFile(id.keyPath())
	if err == nil {
		if len(seed) != identitySeedSize {
			return nil, fmt.Errorf("xplorer: identity key has wrong length %d", len(seed))
		}
		id.seed = seed
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("xplorer: read identity key: %w", err)
	}

	seed = make([]byte, identitySeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("xplorer: generate identity key: %w", err)
	}

	if err := id.persistLocked(seed); err != nil {
		return nil, err
	}

	id.seed = seed
	return ed25519.NewKeyFromSeed(seed), nil
}

// persistLocked writes seed to the key file atomically (write to a temp
// file in the same directory, then rename) with owner-only permissions.
// id.mu must already be held.
func (id *Identity) persistLocked(seed []byte) error {
	tmp, err := os.CreateTemp(id.storagePath, identityFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("xplorer: create temp identity file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("xplorer: chmod temp identity file: %w", err)
	}
	if _, err := tmp.Write(seed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("xplorer: write temp identity file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("xplorer: close temp identity file: %w", err)
	}

	if err := os.Rename(tmpPath, id.keyPath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("xplorer: rename temp identity file: %w", err)
	}

	return nil
}

// clearStorageExceptKeyLocked removes every file in the storage directory
// except the identity key file itself. id.mu must already be held.
func (id *Identity) clearStorageExceptKeyLocked() error {
	entries, err := os.ReadDir(id.storagePath)
	if err != nil {
		return fmt.Errorf("xplorer: list storage directory: %w", err)
	}

	for _, entry := range entries {
		if entry.Name() == identityFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(id.storagePath, entry.Name())); err != nil {
			return fmt.Errorf("xplorer: clear storage directory: %w", err)
		}
	}

	return nil
}

// SetRunning marks whether the owning P2P transport is currently started,
// gating ImportSecretKey/ResetIdentity.
func (id *Identity) SetRunning(running bool) {
	id.mu.Lock()
	id.running = running
	id.mu.Unlock()
}

// ExportSecretKey returns the current 32-byte seed from disk, or (nil,
// false) if no key file of that length exists.
func (id *Identity) ExportSecretKey() ([]byte, bool) {
	id.mu.Lock()
	defer id.mu.Unlock()

	seed, err := os.ReadFile(id.keyPath())
	if err != nil || len(seed) != identitySeedSize {
		return nil, false
	}
	return seed, true
}

// ImportSecretKey refuses while running, requires exactly 32 bytes,
// persists seed atomically, then clears every other file in the storage
// directory so the P2P endpoint re-initializes from scratch against the
// new key on next start.
func (id *Identity) ImportSecretKey(seed []byte) error {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.running {
		return ErrRunning
	}
	if len(seed) != identitySeedSize {
		return fmt.Errorf("xplorer: secret key must be %d bytes, got %d", identitySeedSize, len(seed))
	}

	if err := os.MkdirAll(id.storagePath, 0o755); err != nil {
		return fmt.Errorf("xplorer: create storage directory: %w", err)
	}
	if err := id.persistLocked(seed); err != nil {
		return err
	}
	if err := id.clearStorageExceptKeyLocked(); err != nil {
		return err
	}

	id.seed = append([]byte(nil), seed...)
	return nil
}

// ResetIdentity refuses while running; otherwise deletes the key file and
// clears storage so the next Load generates a brand-new identity.
func (id *Identity) ResetIdentity() error {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.running {
		return ErrRunning
	}

	if err := os.Remove(id.keyPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("xplorer: remove identity key: %w", err)
	}
	if err := id.clearStorageExceptKeyLocked(); err != nil {
		return err
	}

	id.seed = nil
	return nil
}

// PublicIdentity renders the hex-encoded Ed25519 public key derived from
// the currently loaded seed (the node identity string clients connect by),
// or "" if no identity has been loaded yet.
func (id *Identity) PublicIdentity() string {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.seed == nil {
		return ""
	}
	pub := ed25519.NewKeyFromSeed(id.seed).Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub)
}

// WatchExternalReplacement starts watching the storage directory for the
// identity key file being replaced by another process (e.g. a sibling CLI
// process calling ImportSecretKey against the same storage path), invoking
// onChange when that happens. It is a best-effort convenience that returns
// an error if the watcher cannot be started; nothing in this package calls
// it, and the P2P transport functions correctly without it.
func (id *Identity) WatchExternalReplacement(onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xplorer: create identity watcher: %w", err)
	}
	if err := w.Add(id.storagePath); err != nil {
		w.Close()
		return fmt.Errorf("xplorer: watch storage directory: %w", err)
	}

	id.mu.Lock()
	id.watcher = w
	id.mu.Unlock()

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != identityFileName {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}

// StopWatching stops the watcher started by WatchExternalReplacement, if
// any.
func (id *Identity) StopWatching() {
	id.mu.Lock()
	w := id.watcher
	id.watcher = nil
	id.mu.Unlock()

	if w != nil {
		w.Close()
	}
}

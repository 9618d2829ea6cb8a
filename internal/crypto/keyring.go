package crypto

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrNoActiveKey = errors.New("vault is locked")

// Keyring holds the in-memory vault key and locks itself after a period of
// inactivity. It satisfies the encryption capability used by the history store.
type Keyring struct {
	mu       sync.Mutex
	key      []byte
	lastUsed time.Time
	timeout  time.Duration
	now      func() time.Time
	onLock   []func()
}

// KeyringOption configures a Keyring.
type KeyringOption func(*Keyring)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) KeyringOption {
	return func(k *Keyring) { k.now = now }
}

// NewKeyring creates a locked Keyring. A timeout of zero disables auto-lock.
func NewKeyring(timeout time.Duration, opts ...KeyringOption) *Keyring {
	k := &Keyring{
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// OnLock registers fn to run every time the keyring locks.
func (k *Keyring) OnLock(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.onLock = append(k.onLock, fn)
}

// Unlock installs a copy of key, replacing any previous key.
func (k *Keyring) Unlock(key []byte) error {
	if len(key) != KeySize {
		return ErrInvalidKeyLength
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.key != nil {
		Erase(k.key)
	}
	k.key = append([]byte(nil), key...)
	k.lastUsed = k.now()
	return nil
}

// Lock erases the key. Locking an already locked keyring is a no-op.
func (k *Keyring) Lock() {
	k.mu.Lock()
	hooks := k.lockLocked()
	k.mu.Unlock()

	runHooks(hooks)
}

// HasActiveKey reports whether a key is loaded and has not idled out.
func (k *Keyring) HasActiveKey(ctx context.Context) bool {
	k.mu.Lock()
	if k.key != nil && !k.expiredLocked() {
		k.mu.Unlock()
		return true
	}
	hooks := k.lockLocked()
	k.mu.Unlock()

	runHooks(hooks)
	return false
}

// Encrypt seals plaintext with the active key.
func (k *Keyring) Encrypt(ctx context.Context, plaintext string) (string, error) {
	key, err := k.useKey()
	if err != nil {
		return "", err
	}
	defer Erase(key)

	return EncryptString(key, plaintext)
}

// Decrypt opens a token with the active key.
func (k *Keyring) Decrypt(ctx context.Context, token string) (string, error) {
	key, err := k.useKey()
	if err != nil {
		return "", err
	}
	defer Erase(key)

	return DecryptString(key, token)
}

// Watch polls for inactivity and locks the keyring once the timeout passes.
// It returns when ctx is done.
func (k *Keyring) Watch(ctx context.Context, interval time.Duration) {
	if k.timeout <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.mu.Lock()
			var hooks []func()
			if k.key != nil && k.expiredLocked() {
				slog.Info("vault auto-locked", "idle_timeout", k.timeout)
				hooks = k.lockLocked()
			}
			k.mu.Unlock()

			runHooks(hooks)
		}
	}
}

// useKey returns a copy of the active key and refreshes the activity time.
func (k *Keyring) useKey() ([]byte, error) {
	k.mu.Lock()
	if k.key == nil || k.expiredLocked() {
		hooks := k.lockLocked()
		k.mu.Unlock()
		runHooks(hooks)
		return nil, ErrNoActiveKey
	}
	defer k.mu.Unlock()

	k.lastUsed = k.now()
	return append([]byte(nil), k.key...), nil
}

func (k *Keyring) expiredLocked() bool {
	return k.timeout > 0 && k.now().Sub(k.lastUsed) >= k.timeout
}

// lockLocked erases the key and returns the hooks to run once mu is released.
// It returns nil when there was nothing to lock.
func (k *Keyring) lockLocked() []func() {
	if k.key == nil {
		return nil
	}
	Erase(k.key)
	k.key = nil
	return append([]func(){}, k.onLock...)
}

func runHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}

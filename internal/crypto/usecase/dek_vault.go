package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

// DekVault holds plaintext DEKs for users with at least one unlocked
// session. Entries are reference-counted by sessions and wiped when the
// count reaches zero or when the idle watchdog fires. Key bytes are
// overwritten before the entry is released.
//
// Locking: the coarse mutex only guards the maps; each user's key material
// and ref count sit behind a per-user lock, so tenants never contend with
// each other. The per-user lock is also the serialization point for
// password changes.
type DekVault struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*vaultEntry
	locks   map[uuid.UUID]*sync.Mutex

	idle    time.Duration
	onEvict func(userID uuid.UUID)
	logger  *slog.Logger
}

// vaultEntry is one user's resident DEK. lastTouch is written with both the
// coarse and the per-user lock held, so a holder of either may read it.
type vaultEntry struct {
	dek       []byte
	lastTouch time.Time
	refs      int
}

// NewDekVault creates a vault with the given idle eviction window. onEvict is
// called (outside vault locks) whenever a user's entry is wiped, so the
// session store can drop the data-unlocked bit on that user's sessions.
func NewDekVault(idle time.Duration, onEvict func(userID uuid.UUID), logger *slog.Logger) *DekVault {
	if onEvict == nil {
		onEvict = func(uuid.UUID) {}
	}
	return &DekVault{
		entries: make(map[uuid.UUID]*vaultEntry),
		locks:   make(map[uuid.UUID]*sync.Mutex),
		idle:    idle,
		onEvict: onEvict,
		logger:  logger,
	}
}

// SetOnEvict replaces the eviction callback. Called once during wiring,
// before the watchdog starts; breaks the construction cycle between the
// vault and the session store.
func (v *DekVault) SetOnEvict(onEvict func(userID uuid.UUID)) {
	if onEvict == nil {
		onEvict = func(uuid.UUID) {}
	}
	v.onEvict = onEvict
}

// userLock returns the per-user mutex, creating it on first use. These
// mutexes are never removed; the set of users in a process is small.
func (v *DekVault) userLock(userID uuid.UUID) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()

	lock, ok := v.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		v.locks[userID] = lock
	}
	return lock
}

// Install makes a user's DEK resident and increments the session ref count.
// The vault keeps its own copy of the key bytes.
func (v *DekVault) Install(userID uuid.UUID, dek []byte) {
	lock := v.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	v.mu.Lock()
	entry, ok := v.entries[userID]
	if !ok {
		entry = &vaultEntry{dek: append([]byte(nil), dek...)}
		v.entries[userID] = entry
	}
	entry.lastTouch = time.Now()
	v.mu.Unlock()

	entry.refs++
}

// Release decrements the ref count and wipes the entry when it reaches zero.
// Releasing a user without a resident entry is a no-op (the watchdog may
// have evicted it already).
func (v *DekVault) Release(userID uuid.UUID) {
	lock := v.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	v.mu.Lock()
	entry, ok := v.entries[userID]
	v.mu.Unlock()
	if !ok {
		return
	}

	entry.refs--
	if entry.refs > 0 {
		return
	}

	v.wipe(userID, entry)
	v.onEvict(userID)
}

// Get returns a copy of the user's resident DEK, or nil when the user is
// locked. The copy belongs to the caller and stays intact when a concurrent
// release or eviction wipes the vault's bytes. Access refreshes the idle
// timer.
func (v *DekVault) Get(userID uuid.UUID) []byte {
	lock := v.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	v.mu.Lock()
	entry, ok := v.entries[userID]
	if ok {
		entry.lastTouch = time.Now()
	}
	v.mu.Unlock()
	if !ok {
		return nil
	}

	return append([]byte(nil), entry.dek...)
}

// Len returns the number of resident entries.
func (v *DekVault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// WithUserLock runs fn while holding the user's lock. Password change uses
// this to serialize DEK rewrapping against the user's in-flight requests.
func (v *DekVault) WithUserLock(userID uuid.UUID, fn func() error) error {
	lock := v.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// wipe overwrites the key bytes and removes the entry. Caller holds the
// user lock.
func (v *DekVault) wipe(userID uuid.UUID, entry *vaultEntry) {
	cryptoDomain.Zero(entry.dek)
	entry.dek = nil
	entry.refs = 0

	v.mu.Lock()
	delete(v.entries, userID)
	v.mu.Unlock()
}

// EvictIdle wipes every entry untouched for longer than the idle window and
// returns the affected user ids.
func (v *DekVault) EvictIdle(now time.Time) []uuid.UUID {
	v.mu.Lock()
	stale := make([]uuid.UUID, 0)
	for userID, entry := range v.entries {
		if now.Sub(entry.lastTouch) >= v.idle {
			stale = append(stale, userID)
		}
	}
	v.mu.Unlock()

	evicted := make([]uuid.UUID, 0, len(stale))
	for _, userID := range stale {
		lock := v.userLock(userID)
		lock.Lock()

		v.mu.Lock()
		entry, ok := v.entries[userID]
		v.mu.Unlock()

		// Re-check under the user lock: a request may have touched the
		// entry between the scan and now.
		if ok && now.Sub(entry.lastTouch) >= v.idle {
			v.wipe(userID, entry)
			evicted = append(evicted, userID)
		}
		lock.Unlock()
	}

	for _, userID := range evicted {
		if v.logger != nil {
			v.logger.Info("evicted idle data key", slog.String("user_id", userID.String()))
		}
		v.onEvict(userID)
	}

	return evicted
}

// Run drives the idle watchdog until the context is canceled. All remaining
// entries are wiped on shutdown.
func (v *DekVault) Run(ctx context.Context) error {
	interval := v.idle / 10
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			v.Close()
			return ctx.Err()
		case now := <-ticker.C:
			v.EvictIdle(now)
		}
	}
}

// Close wipes every resident entry.
func (v *DekVault) Close() {
	v.mu.Lock()
	users := make([]uuid.UUID, 0, len(v.entries))
	for userID := range v.entries {
		users = append(users, userID)
	}
	v.mu.Unlock()

	for _, userID := range users {
		lock := v.userLock(userID)
		lock.Lock()
		v.mu.Lock()
		entry, ok := v.entries[userID]
		v.mu.Unlock()
		if ok {
			v.wipe(userID, entry)
		}
		lock.Unlock()
	}
}

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/panoraguard/alarm-console/internal/domain/user"
)

// DefaultTTL is the lifetime of a session from its last write.
const DefaultTTL = 30 * time.Minute

// Item keys.
const (
	KeyToken  = "token"
	KeyUserID = "user_id"
	KeyRole   = "role"
)

// Item is a stored value together with its absolute expiry.
type Item struct {
	// Value is the stored string.
	Value string
	// ExpiresAt is the instant after which the item is absent.
	ExpiresAt time.Time
}

// Items maps item keys to their values.
type Items map[string]Item

// Repository persists session items between process runs.
type Repository interface {
	Load(ctx context.Context) (Items, error)
	Save(ctx context.Context, items Items) error
}

// Snapshot is an atomic view of a live session.
type Snapshot struct {
	// Token is the bearer credential.
	Token string
	// UserID identifies the logged in user.
	UserID string
	// Role is the role granted at login.
	Role user.Role
	// ExpiresAt is the earliest expiry of the three items.
	ExpiresAt time.Time
}

// Store holds the current session. The zero value is not usable; call NewStore.
type Store struct {
	// items holds one cache entry per key, without a janitor goroutine. Entries
	// never expire in the cache itself: Item.ExpiresAt against now is the only
	// expiry, so an expired item is still found and deleted on read.
	items *cache.Cache
	// ttl is added to the clock on every write.
	ttl time.Duration
	// now is the store clock.
	now func() time.Time
	// mu makes multi-key writes and expire-then-delete reads atomic.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the clock used for stamping and checking expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		items: cache.New(cache.NoExpiration, 0),
		ttl:   DefaultTTL,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Set replaces the session, stamping all three items with now+TTL.
func (s *Store) Set(token, userID string, role user.Role) {
	s.SetUntil(token, userID, role, time.Time{})
}

// SetUntil is Set with an upper bound on the expiry, such as the credential's own
// expiration. A zero limit means no bound.
func (s *Store) SetUntil(token, userID string, role user.Role, limit time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.now().Add(s.ttl)
	if !limit.IsZero() && limit.Before(expiresAt) {
		expiresAt = limit
	}

	s.items.Flush()
	s.putLocked(KeyToken, Item{Value: token, ExpiresAt: expiresAt})
	s.putLocked(KeyUserID, Item{Value: userID, ExpiresAt: expiresAt})
	s.putLocked(KeyRole, Item{Value: string(role), ExpiresAt: expiresAt})
}

// Token returns the bearer token of a live session.
func (s *Store) Token() (string, bool) {
	return s.get(KeyToken)
}

// UserID returns the user id of a live session.
func (s *Store) UserID() (string, bool) {
	return s.get(KeyUserID)
}

// Role returns the role of a live session.
func (s *Store) Role() (user.Role, bool) {
	v, ok := s.get(KeyRole)
	if !ok {
		return "", false
	}

	return user.Role(v), true
}

// Clear removes every item unconditionally.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.Flush()
}

// HasRole reports whether a live token exists and the role meets req.
// Any only requires the token.
func (s *Store) HasRole(req user.Requirement) bool {
	if _, ok := s.Token(); !ok {
		return false
	}

	if req == user.Any {
		return true
	}

	role, ok := s.Role()

	return ok && req.Satisfied(role)
}

// Snapshot reads all three items under one lock. A session missing any item is
// treated as absent and cleared entirely.
func (s *Store) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, tokenOK := s.liveLocked(KeyToken)
	userID, userOK := s.liveLocked(KeyUserID)
	role, roleOK := s.liveLocked(KeyRole)

	if !tokenOK || !userOK || !roleOK {
		s.items.Flush()

		return Snapshot{}, false
	}

	expiresAt := token.ExpiresAt
	for _, it := range []Item{userID, role} {
		if it.ExpiresAt.Before(expiresAt) {
			expiresAt = it.ExpiresAt
		}
	}

	return Snapshot{
		Token:     token.Value,
		UserID:    userID.Value,
		Role:      user.Role(role.Value),
		ExpiresAt: expiresAt,
	}, true
}

// Restore replaces the store contents with the live items kept by repo.
func (s *Store) Restore(ctx context.Context, repo Repository) error {
	items, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.Flush()

	now := s.now()
	for key, it := range items {
		if now.After(it.ExpiresAt) {
			continue
		}

		s.putLocked(key, it)
	}

	return nil
}

// Save writes the live items to repo. An empty store is saved as an empty session.
func (s *Store) Save(ctx context.Context, repo Repository) error {
	s.mu.Lock()

	items := make(Items, s.items.ItemCount())
	for _, key := range []string{KeyToken, KeyUserID, KeyRole} {
		if it, ok := s.liveLocked(key); ok {
			items[key] = it
		}
	}

	s.mu.Unlock()

	if err := repo.Save(ctx, items); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// get returns the value of a live item, deleting it when expired.
func (s *Store) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.liveLocked(key)
	if !ok {
		return "", false
	}

	return it.Value, true
}

// liveLocked returns a non-expired item, deleting it otherwise.
func (s *Store) liveLocked(key string) (Item, bool) {
	raw, found := s.items.Get(key)
	if !found {
		return Item{}, false
	}

	it, ok := raw.(Item)
	if !ok || s.now().After(it.ExpiresAt) {
		s.items.Delete(key)

		return Item{}, false
	}

	return it, true
}

// putLocked stores an item that is still live.
func (s *Store) putLocked(key string, it Item) {
	if !it.ExpiresAt.After(s.now()) {
		return
	}

	s.items.Set(key, it, cache.NoExpiration)
}

package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/rps-arena/internal/record"
)

// MemoryStore is a map-backed store for tests and ephemeral servers.
// State is lost when the process restarts.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*record.User
	games map[string]record.GameRecord
	h2h   map[string]record.HeadToHead
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*record.User),
		games: make(map[string]record.GameRecord),
		h2h:   make(map[string]record.HeadToHead),
	}
}

// ClaimUser returns the stored user, creating it on first use.
func (m *MemoryStore) ClaimUser(_ context.Context, username string) (record.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneUser(m.ensure(username)), nil
}

// User looks up a stored user.
func (m *MemoryStore) User(_ context.Context, username string) (record.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return record.User{}, fmt.Errorf("storage: user %q: %w", username, record.ErrNotFound)
	}
	return cloneUser(u), nil
}

// ListUsers returns every stored user ordered by username.
func (m *MemoryStore) ListUsers(_ context.Context) ([]record.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]record.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

// AddFriendship stores a symmetric friendship between a and b.
func (m *MemoryStore) AddFriendship(_ context.Context, a, b string) error {
	if a == b {
		return record.ErrSelfFriend
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ua, ok := m.users[a]
	if !ok {
		return fmt.Errorf("storage: user %q: %w", a, record.ErrNotFound)
	}
	ub, ok := m.users[b]
	if !ok {
		return fmt.Errorf("storage: user %q: %w", b, record.ErrNotFound)
	}
	if ua.HasFriend(b) {
		return record.ErrAlreadyFriends
	}

	ua.Friends = append(ua.Friends, b)
	if !ub.HasFriend(a) {
		ub.Friends = append(ub.Friends, a)
	}
	return nil
}

// SaveGame records a finished game and updates both players' tallies.
// Saving a game id that is already stored is a no-op.
func (m *MemoryStore) SaveGame(_ context.Context, g record.GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.games[g.ID]; exists {
		return nil
	}

	m.games[g.ID] = cloneGame(g)
	for _, name := range g.Players {
		u := m.ensure(name)
		u.GameIDs = append(u.GameIDs, g.ID)
		u.Stats.ApplyResult(g.Results[name])
	}

	key := record.HeadToHeadKey(g.Players[0], g.Players[1])
	h, ok := m.h2h[key]
	if !ok {
		h = record.NewHeadToHead(g.Players[0], g.Players[1])
	}
	h.Apply(g)
	m.h2h[key] = h

	return nil
}

// Game retrieves a finished game by id.
func (m *MemoryStore) Game(_ context.Context, id string) (record.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return record.GameRecord{}, fmt.Errorf("storage: game %q: %w", id, record.ErrNotFound)
	}
	return cloneGame(g), nil
}

// Games loads the games with the given ids in order. Unknown ids are skipped.
func (m *MemoryStore) Games(_ context.Context, ids []string) ([]record.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	games := make([]record.GameRecord, 0, len(ids))
	for _, id := range ids {
		if g, ok := m.games[id]; ok {
			games = append(games, cloneGame(g))
		}
	}
	return games, nil
}

// HeadToHead returns the tally for a pair, zero-valued if they never finished a game.
func (m *MemoryStore) HeadToHead(_ context.Context, a, b string) (record.HeadToHead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if h, ok := m.h2h[record.HeadToHeadKey(a, b)]; ok {
		return h, nil
	}
	return record.NewHeadToHead(a, b), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// ensure must be called with the write lock held.
func (m *MemoryStore) ensure(username string) *record.User {
	u, ok := m.users[username]
	if !ok {
		u = &record.User{
			Username:  username,
			Friends:   []string{},
			GameIDs:   []string{},
			CreatedAt: time.Now().UTC(),
		}
		m.users[username] = u
	}
	return u
}

func cloneUser(u *record.User) record.User {
	c := *u
	c.Friends = slices.Clone(u.Friends)
	c.GameIDs = slices.Clone(u.GameIDs)
	if c.Friends == nil {
		c.Friends = []string{}
	}
	if c.GameIDs == nil {
		c.GameIDs = []string{}
	}
	return c
}

func cloneGame(g record.GameRecord) record.GameRecord {
	c := g
	c.Rounds = slices.Clone(g.Rounds)
	c.Results = make(map[string]record.Result, len(g.Results))
	for k, v := range g.Results {
		c.Results[k] = v
	}
	return c
}

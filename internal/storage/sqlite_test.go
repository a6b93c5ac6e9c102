package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/rps-arena/internal/multiplayer"
	"github.com/vovakirdan/rps-arena/internal/record"
	"github.com/vovakirdan/rps-arena/internal/rules"
)

// Ensure both backends satisfy the engine's store contract.
var (
	_ multiplayer.RecordStore = (*Store)(nil)
	_ multiplayer.RecordStore = (*MemoryStore)(nil)
)

// backend is the method set exercised by the shared tests.
type backend interface {
	multiplayer.RecordStore
	Game(ctx context.Context, id string) (record.GameRecord, error)
	ListUsers(ctx context.Context) ([]record.User, error)
	Close() error
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func backends(t *testing.T) map[string]backend {
	return map[string]backend{
		"sqlite": openTestStore(t),
		"memory": NewMemoryStore(),
	}
}

func finishedGame(id, winner, loser string, rounds int) record.GameRecord {
	g := record.GameRecord{
		ID:       id,
		PlayedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Players:  [2]string{winner, loser},
		Results:  map[string]record.Result{winner: record.ResultWin, loser: record.ResultLoss},
	}
	for i := 0; i < rounds; i++ {
		g.Rounds = append(g.Rounds, record.Round{
			Number: i + 1,
			Moves:  map[string]rules.Move{winner: rules.Rock, loser: rules.Scissors},
			Winner: winner,
		})
	}
	return g
}

func TestStoreOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "deep", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() with nested path failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := store.ClaimUser(ctx, "alice"); err != nil {
		t.Fatalf("ClaimUser() failed: %v", err)
	}
	if err := store.SaveGame(ctx, finishedGame("g1", "alice", "bob", 3)); err != nil {
		t.Fatalf("SaveGame() failed: %v", err)
	}
	store.Close()

	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	u, err := store.User(ctx, "alice")
	if err != nil {
		t.Fatalf("User() failed: %v", err)
	}
	if len(u.GameIDs) != 1 || u.Stats.Wins != 1 {
		t.Errorf("Expected persisted game and win, got %+v", u)
	}
}

func TestClaimUser(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.User(ctx, "alice"); !errors.Is(err, record.ErrNotFound) {
				t.Fatalf("Expected ErrNotFound before claim, got %v", err)
			}

			u, err := store.ClaimUser(ctx, "alice")
			if err != nil {
				t.Fatalf("ClaimUser() failed: %v", err)
			}
			if u.Username != "alice" || len(u.Friends) != 0 || len(u.GameIDs) != 0 {
				t.Errorf("Unexpected new user: %+v", u)
			}

			// Reclaiming returns the same identity
			again, err := store.ClaimUser(ctx, "alice")
			if err != nil {
				t.Fatalf("second ClaimUser() failed: %v", err)
			}
			if again.Username != "alice" {
				t.Errorf("Expected alice, got %q", again.Username)
			}

			users, err := store.ListUsers(ctx)
			if err != nil {
				t.Fatalf("ListUsers() failed: %v", err)
			}
			if len(users) != 1 {
				t.Errorf("Expected 1 user, got %d", len(users))
			}
		})
	}
}

func TestAddFriendship(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store.ClaimUser(ctx, "alice")
			store.ClaimUser(ctx, "bob")

			if err := store.AddFriendship(ctx, "alice", "bob"); err != nil {
				t.Fatalf("AddFriendship() failed: %v", err)
			}

			alice, _ := store.User(ctx, "alice")
			bob, _ := store.User(ctx, "bob")
			if !alice.HasFriend("bob") || !bob.HasFriend("alice") {
				t.Errorf("Friendship should be symmetric: alice=%v bob=%v", alice.Friends, bob.Friends)
			}

			if err := store.AddFriendship(ctx, "alice", "bob"); !errors.Is(err, record.ErrAlreadyFriends) {
				t.Errorf("Expected ErrAlreadyFriends, got %v", err)
			}
			if err := store.AddFriendship(ctx, "bob", "alice"); !errors.Is(err, record.ErrAlreadyFriends) {
				t.Errorf("Expected ErrAlreadyFriends in reverse, got %v", err)
			}
			if err := store.AddFriendship(ctx, "alice", "alice"); !errors.Is(err, record.ErrSelfFriend) {
				t.Errorf("Expected ErrSelfFriend, got %v", err)
			}
			if err := store.AddFriendship(ctx, "alice", "ghost"); !errors.Is(err, record.ErrNotFound) {
				t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
			}
		})
	}
}

func TestSaveGameUpdatesEverything(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SaveGame(ctx, finishedGame("g1", "alice", "bob", 3)); err != nil {
				t.Fatalf("SaveGame() failed: %v", err)
			}
			if err := store.SaveGame(ctx, finishedGame("g2", "bob", "alice", 4)); err != nil {
				t.Fatalf("SaveGame() failed: %v", err)
			}
			if err := store.SaveGame(ctx, finishedGame("g3", "alice", "bob", 3)); err != nil {
				t.Fatalf("SaveGame() failed: %v", err)
			}

			alice, err := store.User(ctx, "alice")
			if err != nil {
				t.Fatalf("User() failed: %v", err)
			}
			if len(alice.GameIDs) != 3 || alice.GameIDs[0] != "g1" || alice.GameIDs[2] != "g3" {
				t.Errorf("Unexpected game ids: %v", alice.GameIDs)
			}
			if alice.Stats.Wins != 2 || alice.Stats.Losses != 1 || alice.Stats.GamesPlayed != 3 {
				t.Errorf("Unexpected alice stats: %+v", alice.Stats)
			}

			h, err := store.HeadToHead(ctx, "bob", "alice")
			if err != nil {
				t.Fatalf("HeadToHead() failed: %v", err)
			}
			if h.Key != "alice_vs_bob" || h.GamesPlayed != 3 {
				t.Errorf("Unexpected head-to-head: %+v", h)
			}
			if v := h.For("bob"); v.Wins != 1 || v.Losses != 2 {
				t.Errorf("bob perspective = %+v, expected 1 win 2 losses", v)
			}

			g, err := store.Game(ctx, "g2")
			if err != nil {
				t.Fatalf("Game() failed: %v", err)
			}
			if len(g.Rounds) != 4 || g.Winner() != "bob" {
				t.Errorf("Unexpected game: %+v", g)
			}
			if g.Rounds[0].Moves["bob"] != rules.Rock {
				t.Errorf("Round moves not preserved: %+v", g.Rounds[0])
			}
			if !g.PlayedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
				t.Errorf("PlayedAt not preserved: %v", g.PlayedAt)
			}
		})
	}
}

func TestSaveGameIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			g := finishedGame("dup", "alice", "bob", 3)
			if err := store.SaveGame(ctx, g); err != nil {
				t.Fatalf("SaveGame() failed: %v", err)
			}
			// A retry of a write that actually landed succeeds without counting again
			if err := store.SaveGame(ctx, g); err != nil {
				t.Fatalf("SaveGame() retry failed: %v", err)
			}

			alice, _ := store.User(ctx, "alice")
			if alice.Stats.GamesPlayed != 1 || len(alice.GameIDs) != 1 {
				t.Errorf("Retry double counted: %+v", alice)
			}
			h, _ := store.HeadToHead(ctx, "alice", "bob")
			if h.GamesPlayed != 1 {
				t.Errorf("Retry double counted head-to-head: %+v", h)
			}
		})
	}
}

func TestGamesSkipsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store.SaveGame(ctx, finishedGame("g1", "alice", "bob", 3))

			games, err := store.Games(ctx, []string{"missing", "g1"})
			if err != nil {
				t.Fatalf("Games() failed: %v", err)
			}
			if len(games) != 1 || games[0].ID != "g1" {
				t.Errorf("Expected only g1, got %+v", games)
			}
		})
	}
}

func TestHeadToHeadEmptyPair(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h, err := store.HeadToHead(ctx, "carol", "dave")
			if err != nil {
				t.Fatalf("HeadToHead() failed: %v", err)
			}
			if h.GamesPlayed != 0 || h.PlayerA != "carol" || h.PlayerB != "dave" {
				t.Errorf("Expected empty tally, got %+v", h)
			}
		})
	}
}

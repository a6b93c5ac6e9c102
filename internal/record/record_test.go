package record

import (
	"errors"
	"testing"
)

func TestPairKeysAreOrderIndependent(t *testing.T) {
	if got := PairID("bob", "alice"); got != "alice_bob" {
		t.Errorf("PairID() = %q, expected %q", got, "alice_bob")
	}
	if PairID("alice", "bob") != PairID("bob", "alice") {
		t.Error("PairID should not depend on argument order")
	}
	if got := HeadToHeadKey("bob", "alice"); got != "alice_vs_bob" {
		t.Errorf("HeadToHeadKey() = %q, expected %q", got, "alice_vs_bob")
	}
}

func TestPairIDIsCaseSensitive(t *testing.T) {
	if PairID("Alice", "alice") != "Alice_alice" {
		t.Errorf("PairID() should keep case, got %q", PairID("Alice", "alice"))
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain", "alice", true},
		{"mixed case and digits", "Alice99", true},
		{"hyphen", "a-b", true},
		{"empty", "", false},
		{"separator", "a_b", false},
		{"trailing separator", "bob_", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if tt.ok && err != nil {
				t.Errorf("ValidateUsername(%q) = %v, expected nil", tt.input, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidUsername) {
				t.Errorf("ValidateUsername(%q) = %v, expected ErrInvalidUsername", tt.input, err)
			}
		})
	}
}

// Names that pass validation never share a pair key with another pair.
func TestPairIDsOfValidNamesAreDistinct(t *testing.T) {
	names := []string{"a", "b", "c", "ab", "bc", "a-b", "b-c"}
	seen := make(map[string][2]string)
	for i, x := range names {
		for _, y := range names[i+1:] {
			id := PairID(x, y)
			first, second := SortPair(x, y)
			if prev, dup := seen[id]; dup {
				t.Fatalf("PairID %q shared by %v and [%s %s]", id, prev, first, second)
			}
			seen[id] = [2]string{first, second}
		}
	}
}

func TestHeadToHeadPerspective(t *testing.T) {
	h := NewHeadToHead("bob", "alice")
	if h.PlayerA != "alice" || h.PlayerB != "bob" {
		t.Fatalf("Expected sorted players, got %q/%q", h.PlayerA, h.PlayerB)
	}

	win := func(winner, loser string) GameRecord {
		return GameRecord{
			Players: [2]string{winner, loser},
			Results: map[string]Result{winner: ResultWin, loser: ResultLoss},
		}
	}
	h.Apply(win("alice", "bob"))
	h.Apply(win("alice", "bob"))
	h.Apply(win("bob", "alice"))
	h.Apply(win("carol", "bob")) // not this pair

	if h.GamesPlayed != 3 {
		t.Errorf("Expected 3 games, got %d", h.GamesPlayed)
	}

	alice := h.For("alice")
	if alice.Wins != 2 || alice.Losses != 1 {
		t.Errorf("alice view = %+v, expected 2 wins 1 loss", alice)
	}
	bob := h.For("bob")
	if bob.Wins != 1 || bob.Losses != 2 {
		t.Errorf("bob view = %+v, expected 1 win 2 losses", bob)
	}
}

func TestGameRecordHelpers(t *testing.T) {
	g := GameRecord{
		Players: [2]string{"alice", "bob"},
		Results: map[string]Result{"alice": ResultLoss, "bob": ResultWin},
	}
	if g.Winner() != "bob" {
		t.Errorf("Winner() = %q, expected bob", g.Winner())
	}
	if g.Opponent("alice") != "bob" || g.Opponent("bob") != "alice" {
		t.Error("Opponent() returned wrong player")
	}
	if g.Opponent("carol") != "" || g.Includes("carol") {
		t.Error("carol should not be part of the game")
	}
}

func TestPlayerStatsApplyResult(t *testing.T) {
	var s PlayerStats
	s.ApplyResult(ResultWin)
	s.ApplyResult(ResultLoss)
	s.ApplyResult(ResultWin)

	if s.Wins != 2 || s.Losses != 1 || s.Draws != 0 || s.GamesPlayed != 3 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

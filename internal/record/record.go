// Package record defines the persisted shapes shared by the match engine,
// the stats aggregator and the storage backends.
package record

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vovakirdan/rps-arena/internal/rules"
)

var (
	// ErrNotFound is returned when a user or game does not exist.
	ErrNotFound = errors.New("record: not found")

	// ErrAlreadyFriends is returned when a friendship already exists.
	ErrAlreadyFriends = errors.New("record: already friends")

	// ErrSelfFriend is returned when a user tries to befriend themselves.
	ErrSelfFriend = errors.New("record: cannot befriend yourself")

	// ErrInvalidUsername is returned for names that cannot form unique pair keys.
	ErrInvalidUsername = errors.New("record: invalid username")
)

// PairSeparator joins the two usernames of a pair id. Usernames may not
// contain it, so every pair id maps back to exactly one pair.
const PairSeparator = "_"

// ValidateUsername reports whether name can be claimed.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if strings.Contains(name, PairSeparator) {
		return fmt.Errorf("%w: %q must not contain %q", ErrInvalidUsername, name, PairSeparator)
	}
	return nil
}

// Result is the terminal outcome of a game for one player.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
)

// PlayerStats is a win/loss tally.
type PlayerStats struct {
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
	Draws       int `json:"draws"`
	GamesPlayed int `json:"gamesPlayed"`
}

// User is a stored identity.
type User struct {
	Username  string      `json:"username"`
	Friends   []string    `json:"friends"`
	GameIDs   []string    `json:"gameIds"`
	Stats     PlayerStats `json:"playerStats"`
	CreatedAt time.Time   `json:"createdAt"`
}

// HasFriend reports whether name is in u's friend list.
func (u User) HasFriend(name string) bool {
	for _, f := range u.Friends {
		if f == name {
			return true
		}
	}
	return false
}

// Round is one resolved move exchange.
type Round struct {
	Number int                   `json:"number"`
	Moves  map[string]rules.Move `json:"moves"`
	Winner string                `json:"winner,omitempty"` // Empty on a draw
}

// GameRecord is an immutable snapshot of a finished game.
type GameRecord struct {
	ID       string            `json:"id"`
	PlayedAt time.Time         `json:"playedAt"`
	Players  [2]string         `json:"players"`
	Results  map[string]Result `json:"results"`
	Rounds   []Round           `json:"rounds"`
}

// Includes reports whether username played in the game.
func (g GameRecord) Includes(username string) bool {
	return g.Players[0] == username || g.Players[1] == username
}

// Opponent returns the other participant, or empty if username did not play.
func (g GameRecord) Opponent(username string) string {
	switch username {
	case g.Players[0]:
		return g.Players[1]
	case g.Players[1]:
		return g.Players[0]
	}
	return ""
}

// Winner returns the username whose result is a win, or empty.
func (g GameRecord) Winner() string {
	for name, r := range g.Results {
		if r == ResultWin {
			return name
		}
	}
	return ""
}

// HeadToHead is the cumulative tally for one unordered pair.
// PlayerA is always the lexicographically smaller username.
type HeadToHead struct {
	Key         string `json:"key"`
	PlayerA     string `json:"playerA"`
	PlayerB     string `json:"playerB"`
	WinsA       int    `json:"winsA"`
	WinsB       int    `json:"winsB"`
	Draws       int    `json:"draws"`
	GamesPlayed int    `json:"gamesPlayed"`
}

// NewHeadToHead returns an empty tally for the pair.
func NewHeadToHead(a, b string) HeadToHead {
	first, second := SortPair(a, b)
	return HeadToHead{
		Key:     HeadToHeadKey(a, b),
		PlayerA: first,
		PlayerB: second,
	}
}

// Apply counts a finished game. Games outside the pair are ignored.
func (h *HeadToHead) Apply(g GameRecord) {
	if !g.Includes(h.PlayerA) || !g.Includes(h.PlayerB) {
		return
	}
	switch g.Winner() {
	case h.PlayerA:
		h.WinsA++
	case h.PlayerB:
		h.WinsB++
	default:
		h.Draws++
	}
	h.GamesPlayed++
}

// For returns the tally seen from username's side.
func (h HeadToHead) For(username string) PlayerStats {
	ps := PlayerStats{Draws: h.Draws, GamesPlayed: h.GamesPlayed}
	if username == h.PlayerB {
		ps.Wins, ps.Losses = h.WinsB, h.WinsA
	} else {
		ps.Wins, ps.Losses = h.WinsA, h.WinsB
	}
	return ps
}

// ApplyResult updates a player's tally for one finished game.
func (s *PlayerStats) ApplyResult(r Result) {
	switch r {
	case ResultWin:
		s.Wins++
	case ResultLoss:
		s.Losses++
	default:
		s.Draws++
	}
	s.GamesPlayed++
}

// SortPair orders two usernames lexicographically.
func SortPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}

// PairID identifies a live match between two users, e.g. "alice_bob".
func PairID(a, b string) string {
	first, second := SortPair(a, b)
	return first + PairSeparator + second
}

// HeadToHeadKey identifies a stored head-to-head row, e.g. "alice_vs_bob".
func HeadToHeadKey(a, b string) string {
	first, second := SortPair(a, b)
	return first + PairSeparator + "vs" + PairSeparator + second
}

// Package rules decides rock-paper-scissors rounds.
// It is pure logic with no dependencies on sessions or storage.
package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMove is returned when a move is outside the closed move set.
var ErrInvalidMove = errors.New("rules: invalid move")

// Move is one of rock, paper or scissors.
type Move string

const (
	Rock     Move = "rock"
	Paper    Move = "paper"
	Scissors Move = "scissors"
)

// Moves returns every move in canonical order.
// The order is used to break ties when picking a most-played move.
func Moves() []Move {
	return []Move{Rock, Paper, Scissors}
}

// Valid reports whether m is part of the move set.
func (m Move) Valid() bool {
	switch m {
	case Rock, Paper, Scissors:
		return true
	}
	return false
}

// beats returns the move m defeats.
func (m Move) beats() Move {
	switch m {
	case Rock:
		return Scissors
	case Scissors:
		return Paper
	case Paper:
		return Rock
	}
	return ""
}

// Parse converts client input into a Move.
// Matching is case-insensitive and ignores surrounding whitespace.
func Parse(s string) (Move, error) {
	m := Move(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	return m, nil
}

// Outcome is the result of a round from one player's point of view.
type Outcome string

const (
	Win  Outcome = "win"
	Lose Outcome = "lose"
	Draw Outcome = "draw"
)

// Resolve decides a round between a and b.
// The first returned outcome belongs to a, the second to b.
func Resolve(a, b Move) (Outcome, Outcome, error) {
	if !a.Valid() {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidMove, a)
	}
	if !b.Valid() {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidMove, b)
	}

	switch {
	case a == b:
		return Draw, Draw, nil
	case a.beats() == b:
		return Win, Lose, nil
	default:
		return Lose, Win, nil
	}
}

// Package multiplayer is the match coordination engine: the connection registry,
// the matchmaking queue, direct challenges, the per-game round state machine and
// the record keeping that follows a finished game.
//
// All engine state is owned by a single Coordinator goroutine. Transports only
// enqueue messages and drain per-connection event channels.
package multiplayer

// ConnID uniquely identifies a live connection (WebSocket or SSH session).
type ConnID string

// GameState is the phase of a GameSession.
type GameState int

const (
	StateAwaitingMoves GameState = iota // Waiting for one or both moves
	StateRoundResolved                  // A round was just decided
	StateFinished                       // A player reached the win threshold
)

// String returns a human-readable name for the state.
func (s GameState) String() string {
	switch s {
	case StateAwaitingMoves:
		return "awaiting moves"
	case StateRoundResolved:
		return "round resolved"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// DefaultWinThreshold is the number of round wins that ends a game.
const DefaultWinThreshold = 3

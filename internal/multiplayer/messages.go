package multiplayer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadMessage is returned for inbound payloads that cannot be decoded.
var ErrBadMessage = errors.New("multiplayer: bad message")

// CoordinatorMessage represents a message handled by the coordinator loop.
type CoordinatorMessage interface {
	coordinatorMessage()
}

// ConnectMsg registers a new connection.
type ConnectMsg struct {
	Conn Connection
}

func (ConnectMsg) coordinatorMessage() {}

// DisconnectMsg is sent when a connection ends.
type DisconnectMsg struct {
	ConnID ConnID
}

func (DisconnectMsg) coordinatorMessage() {}

// SetUsernameMsg claims an identity.
type SetUsernameMsg struct {
	ConnID   ConnID `json:"-"`
	Username string `json:"username"`
}

func (SetUsernameMsg) coordinatorMessage() {}

// FindMatchMsg enters the match queue.
type FindMatchMsg struct {
	ConnID ConnID `json:"-"`
}

func (FindMatchMsg) coordinatorMessage() {}

// ChallengePlayerMsg offers a direct challenge.
type ChallengePlayerMsg struct {
	ConnID           ConnID `json:"-"`
	OpponentUsername string `json:"opponentUsername"`
}

func (ChallengePlayerMsg) coordinatorMessage() {}

// AcceptChallengeMsg accepts a direct challenge and starts the game.
type AcceptChallengeMsg struct {
	ConnID     ConnID `json:"-"`
	Challenger string `json:"challenger"`
}

func (AcceptChallengeMsg) coordinatorMessage() {}

// AcceptMatchMsg accepts a queue-originated pending match.
type AcceptMatchMsg struct {
	ConnID   ConnID `json:"-"`
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
}

func (AcceptMatchMsg) coordinatorMessage() {}

// MakeMoveMsg submits a move for the current round.
type MakeMoveMsg struct {
	ConnID   ConnID `json:"-"`
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
	Move     string `json:"move"`
}

func (MakeMoveMsg) coordinatorMessage() {}

// ExitQueueMsg leaves the queue and cancels a pending match.
type ExitQueueMsg struct {
	ConnID   ConnID `json:"-"`
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
}

func (ExitQueueMsg) coordinatorMessage() {}

// ExitMatchMsg abandons an active game.
type ExitMatchMsg struct {
	ConnID   ConnID `json:"-"`
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
}

func (ExitMatchMsg) coordinatorMessage() {}

// RequestRematchMsg starts a new game against the same opponent.
type RequestRematchMsg struct {
	ConnID   ConnID `json:"-"`
	Opponent string `json:"opponent"`
}

func (RequestRematchMsg) coordinatorMessage() {}

// AddFriendMsg adds a symmetric friendship.
type AddFriendMsg struct {
	ConnID ConnID `json:"-"`
	Friend string `json:"friend"`
}

func (AddFriendMsg) coordinatorMessage() {}

// GetStatsMsg requests the sender's stats.
type GetStatsMsg struct {
	ConnID ConnID `json:"-"`
}

func (GetStatsMsg) coordinatorMessage() {}

// BroadcastPresenceMsg resends the available players list to everyone available.
type BroadcastPresenceMsg struct{}

func (BroadcastPresenceMsg) coordinatorMessage() {}

// FlushRecordsMsg retries persisting finished games that failed to save.
type FlushRecordsMsg struct{}

func (FlushRecordsMsg) coordinatorMessage() {}

// envelope reads only the discriminator of an inbound payload.
type envelope struct {
	Type string `json:"type"`
}

// DecodeMessage parses one inbound JSON object from connection id.
// Errors wrap ErrBadMessage and never carry partial state.
func DecodeMessage(id ConnID, data []byte) (CoordinatorMessage, string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	var (
		msg      CoordinatorMessage
		required map[string]string
		err      error
	)

	switch env.Type {
	case "setUsername":
		m := SetUsernameMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		required = map[string]string{"username": strings.TrimSpace(m.Username)}
		msg = m
	case "findMatch":
		msg = FindMatchMsg{ConnID: id}
	case "challengePlayer":
		m := ChallengePlayerMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		required = map[string]string{"opponentUsername": m.OpponentUsername}
		msg = m
	case "acceptChallenge":
		m := AcceptChallengeMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		required = map[string]string{"challenger": m.Challenger}
		msg = m
	case "acceptMatch":
		m := AcceptMatchMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		required = map[string]string{"opponent": m.Opponent}
		msg = m
	case "makeMove":
		m := MakeMoveMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		required = map[string]string{"opponent": m.Opponent, "move": m.Move}
		msg = m
	case "exitQueue":
		m := ExitQueueMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		msg = m
	case "exitMatch":
		m := ExitMatchMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		required = map[string]string{"opponent": m.Opponent}
		msg = m
	case "requestRematch":
		m := RequestRematchMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		required = map[string]string{"opponent": m.Opponent}
		msg = m
	case "addFriend":
		m := AddFriendMsg{ConnID: id}
		err = json.Unmarshal(data, &m)
		required = map[string]string{"friend": m.Friend}
		msg = m
	case "getStats":
		msg = GetStatsMsg{ConnID: id}
	case "":
		return nil, "", fmt.Errorf("%w: missing type", ErrBadMessage)
	default:
		return nil, env.Type, fmt.Errorf("%w: unknown type %q", ErrBadMessage, env.Type)
	}

	if err != nil {
		return nil, env.Type, fmt.Errorf("%w: %s: %v", ErrBadMessage, env.Type, err)
	}
	for field, value := range required {
		if value == "" {
			return nil, env.Type, fmt.Errorf("%w: %s: missing %s", ErrBadMessage, env.Type, field)
		}
	}

	return msg, env.Type, nil
}

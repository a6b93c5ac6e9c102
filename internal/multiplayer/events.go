package multiplayer

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/rps-arena/internal/record"
	"github.com/vovakirdan/rps-arena/internal/rules"
	"github.com/vovakirdan/rps-arena/internal/stats"
)

// Event is an outbound message from the coordinator to one client.
type Event interface {
	// EventType is the wire discriminator written to the "type" field.
	EventType() string
}

// Encode serializes evt as a JSON object with its "type" discriminator first.
func Encode(evt Event) ([]byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("multiplayer: cannot encode %s: %w", evt.EventType(), err)
	}
	head, err := json.Marshal(evt.EventType())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+len(head)+10)
	out = append(out, `{"type":`...)
	out = append(out, head...)
	if len(body) > 2 { // body is at least "{}"
		out = append(out, ',')
		out = append(out, body[1:]...)
		return out, nil
	}
	return append(out, '}'), nil
}

// Error codes carried by ErrorEvent.
const (
	CodeBadMessage           = "badMessage"
	CodeNotLoggedIn          = "notLoggedIn"
	CodeAlreadyLoggedIn      = "alreadyLoggedIn"
	CodeInvalidUsername      = "invalidUsername"
	CodeAlreadyInGame        = "alreadyInGame"
	CodePlayerNotFound       = "playerNotFound"
	CodeMatchNotFound        = "matchNotFound"
	CodeGameNotFound         = "gameNotFound"
	CodeInvalidMove          = "invalidMove"
	CodeNotParticipant       = "notParticipant"
	CodeChallengeUnavailable = "challengeUnavailable"
	CodeRematchUnavailable   = "rematchUnavailable"
	CodeStorageUnavailable   = "storageUnavailable"
)

// ConnectedEvent is sent as soon as a connection is registered.
type ConnectedEvent struct{}

func (ConnectedEvent) EventType() string { return "connected" }

// UsernameTakenEvent rejects a claim for a name held by a live session.
type UsernameTakenEvent struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

func (UsernameTakenEvent) EventType() string { return "usernameTaken" }

// LoggedInEvent carries the stored profile after a successful claim.
type LoggedInEvent struct {
	Username    string             `json:"username"`
	Friends     []string           `json:"friends"`
	PlayerStats record.PlayerStats `json:"playerStats"`
	Stats       stats.Report       `json:"stats"`
}

func (LoggedInEvent) EventType() string { return "loggedIn" }

// PlayerStatsEvent answers a getStats request.
type PlayerStatsEvent struct {
	Username    string             `json:"username"`
	PlayerStats record.PlayerStats `json:"playerStats"`
	Stats       stats.Report       `json:"stats"`
}

func (PlayerStatsEvent) EventType() string { return "playerStats" }

// AvailablePlayersEvent lists players who are online and not in a game.
type AvailablePlayersEvent struct {
	Players []string `json:"players"`
}

func (AvailablePlayersEvent) EventType() string { return "availablePlayers" }

// WaitingForMatchEvent tells a seeker it was queued.
type WaitingForMatchEvent struct{}

func (WaitingForMatchEvent) EventType() string { return "waitingForMatch" }

// MatchFoundEvent pairs two queued players; both must accept.
type MatchFoundEvent struct {
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
}

func (MatchFoundEvent) EventType() string { return "matchFound" }

// ChallengeOfferedEvent is sent to both sides of a direct challenge.
type ChallengeOfferedEvent struct {
	Challenger string             `json:"challenger"`
	Opponent   string             `json:"opponent"`
	HeadToHead record.PlayerStats `json:"headToHeadStats"`
}

func (ChallengeOfferedEvent) EventType() string { return "challengeOffered" }

// GameStartEvent starts a new game. HeadToHead is from the receiver's side.
type GameStartEvent struct {
	Opponent     string             `json:"opponent"`
	GameID       string             `json:"gameId"`
	WinThreshold int                `json:"winThreshold"`
	HeadToHead   record.PlayerStats `json:"headToHeadStats"`
}

func (GameStartEvent) EventType() string { return "gameStart" }

// Score is a round-win count from the receiver's side.
type Score struct {
	You      int `json:"you"`
	Opponent int `json:"opponent"`
}

// RoundResultEvent reports one resolved round.
type RoundResultEvent struct {
	GameID       string        `json:"gameId"`
	Round        int           `json:"round"`
	Result       rules.Outcome `json:"result"`
	YourMove     rules.Move    `json:"yourMove"`
	OpponentMove rules.Move    `json:"opponentMove"`
	Score        Score         `json:"score"`
}

func (RoundResultEvent) EventType() string { return "roundResult" }

// GameResultEvent reports the end of a game.
type GameResultEvent struct {
	GameID   string         `json:"gameId"`
	RecordID string         `json:"recordId"`
	Result   record.Result  `json:"result"`
	Score    Score          `json:"score"`
	Rounds   []record.Round `json:"rounds"`
}

func (GameResultEvent) EventType() string { return "gameResult" }

// OpponentLeftEvent reports that the other side exited or disconnected.
type OpponentLeftEvent struct {
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
}

func (OpponentLeftEvent) EventType() string { return "opponentLeft" }

// ExitedQueueEvent confirms an exitQueue request.
type ExitedQueueEvent struct{}

func (ExitedQueueEvent) EventType() string { return "exitedQueue" }

// FriendAddedEvent confirms a new friendship.
type FriendAddedEvent struct {
	Friend  string   `json:"friend"`
	Friends []string `json:"friends,omitempty"`
}

func (FriendAddedEvent) EventType() string { return "friendAdded" }

// Reasons carried by FriendErrorEvent.
const (
	FriendReasonSelf           = "self"
	FriendReasonAlreadyFriends = "alreadyFriends"
	FriendReasonUnknownUser    = "unknownUser"
	FriendReasonStorage        = "storage"
)

// FriendErrorEvent rejects an addFriend request.
type FriendErrorEvent struct {
	Friend  string `json:"friend"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (FriendErrorEvent) EventType() string { return "friendError" }

// ErrorEvent reports a rejected action. The connection stays usable.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return "error" }

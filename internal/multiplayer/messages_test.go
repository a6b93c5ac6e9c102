package multiplayer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/vovakirdan/rps-arena/internal/record"
	"github.com/vovakirdan/rps-arena/internal/rules"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		input string
		want  CoordinatorMessage
	}{
		{`{"type":"setUsername","username":" alice "}`, SetUsernameMsg{ConnID: "c1", Username: " alice "}},
		{`{"type":"findMatch"}`, FindMatchMsg{ConnID: "c1"}},
		{`{"type":"challengePlayer","opponentUsername":"bob"}`, ChallengePlayerMsg{ConnID: "c1", OpponentUsername: "bob"}},
		{`{"type":"acceptChallenge","challenger":"bob"}`, AcceptChallengeMsg{ConnID: "c1", Challenger: "bob"}},
		{`{"type":"acceptMatch","opponent":"bob","gameId":"alice_bob"}`, AcceptMatchMsg{ConnID: "c1", Opponent: "bob", GameID: "alice_bob"}},
		{`{"type":"makeMove","opponent":"bob","gameId":"alice_bob","move":"rock"}`, MakeMoveMsg{ConnID: "c1", Opponent: "bob", GameID: "alice_bob", Move: "rock"}},
		{`{"type":"exitQueue"}`, ExitQueueMsg{ConnID: "c1"}},
		{`{"type":"exitMatch","opponent":"bob"}`, ExitMatchMsg{ConnID: "c1", Opponent: "bob"}},
		{`{"type":"requestRematch","opponent":"bob"}`, RequestRematchMsg{ConnID: "c1", Opponent: "bob"}},
		{`{"type":"addFriend","friend":"bob"}`, AddFriendMsg{ConnID: "c1", Friend: "bob"}},
		{`{"type":"getStats"}`, GetStatsMsg{ConnID: "c1"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, _, err := DecodeMessage("c1", []byte(tt.input))
			if err != nil {
				t.Fatalf("DecodeMessage() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeMessage() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeMessageRejects(t *testing.T) {
	inputs := []string{
		`not json`,
		`{}`,
		`{"type":"dance"}`,
		`{"type":"setUsername"}`,
		`{"type":"setUsername","username":"   "}`,
		`{"type":"makeMove","opponent":"bob"}`,
		`{"type":"acceptMatch","gameId":"alice_bob"}`,
		`{"type":"addFriend","friend":42}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if _, _, err := DecodeMessage("c1", []byte(input)); !errors.Is(err, ErrBadMessage) {
				t.Errorf("err = %v, want ErrBadMessage", err)
			}
		})
	}
}

func TestEncodeAddsTypeFirst(t *testing.T) {
	data, err := Encode(ConnectedEvent{})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if string(data) != `{"type":"connected"}` {
		t.Errorf("Encode(connected) = %s", data)
	}

	data, err = Encode(RoundResultEvent{
		GameID:       "alice_bob",
		Round:        1,
		Result:       rules.Win,
		YourMove:     rules.Rock,
		OpponentMove: rules.Scissors,
		Score:        Score{You: 1},
	})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("encoded event is not JSON: %v (%s)", err, data)
	}
	if decoded["type"] != "roundResult" || decoded["opponentMove"] != "scissors" {
		t.Errorf("decoded = %v", decoded)
	}
	if string(data[:21]) != `{"type":"roundResult"` {
		t.Errorf("type must lead the object: %s", data)
	}
}

func TestEncodeHeadToHeadField(t *testing.T) {
	data, err := Encode(ChallengeOfferedEvent{
		Challenger: "alice",
		Opponent:   "bob",
		HeadToHead: record.PlayerStats{Wins: 2, GamesPlayed: 3},
	})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	var decoded struct {
		Type       string             `json:"type"`
		HeadToHead record.PlayerStats `json:"headToHeadStats"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if decoded.Type != "challengeOffered" || decoded.HeadToHead.Wins != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

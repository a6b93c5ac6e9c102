package multiplayer

import "testing"

func TestMatchQueueFIFO(t *testing.T) {
	q := NewMatchQueue()

	if _, ok := q.Enter("w1"); ok {
		t.Fatal("first entrant should wait")
	}
	if opp, ok := q.Enter("w2"); !ok || opp != "w1" {
		t.Fatalf("Enter(w2) = %q, %v; want w1, true", opp, ok)
	}

	// W1 then W2 waiting, a new arrival takes W1.
	q = NewMatchQueue()
	q.Enter("w1")
	q.waiting = append(q.waiting, "w2")
	opp, ok := q.Enter("new")
	if !ok || opp != "w1" {
		t.Fatalf("Enter(new) = %q, %v; want w1, true", opp, ok)
	}
	if !q.Contains("w2") || q.Len() != 1 {
		t.Errorf("w2 should remain queued, waiting = %v", q.waiting)
	}
}

func TestMatchQueueEnterTwice(t *testing.T) {
	q := NewMatchQueue()
	q.Enter("w1")

	if _, ok := q.Enter("w1"); ok {
		t.Fatal("a waiter must not be matched with itself")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestMatchQueueLeave(t *testing.T) {
	q := NewMatchQueue()
	q.Enter("w1")

	if !q.Leave("w1") {
		t.Error("Leave() should report removal")
	}
	if q.Leave("w1") {
		t.Error("second Leave() should be a no-op")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestPendingMatchAccept(t *testing.T) {
	pm := NewPendingMatch("bob", "alice")

	if pm.ID != "alice_bob" {
		t.Errorf("ID = %q, want alice_bob", pm.ID)
	}
	if pm.Accept("alice") {
		t.Error("one accept must not be ready")
	}
	if pm.Accept("alice") {
		t.Error("repeated accept must stay idempotent")
	}
	if pm.Accept("carol") {
		t.Error("outsider accept must be ignored")
	}
	if !pm.Accept("bob") {
		t.Error("both accepts should be ready")
	}
	if pm.Other("alice") != "bob" || pm.Other("bob") != "alice" {
		t.Error("Other() mismatch")
	}
}

func TestExitQueueCancelsPendingMatch(t *testing.T) {
	c := newTestCoordinator(t, nil)
	alice := login(t, c, "alice")
	bob := login(t, c, "bob")
	c.handleMessage(FindMatchMsg{ConnID: alice.ID()})
	c.handleMessage(FindMatchMsg{ConnID: bob.ID()})
	drain(alice)
	drain(bob)

	c.handleMessage(ExitQueueMsg{ConnID: bob.ID(), Opponent: "alice", GameID: "alice_bob"})

	findEvent[ExitedQueueEvent](t, drain(bob))
	left := findEvent[OpponentLeftEvent](t, drain(alice))
	if left.Opponent != "bob" || left.GameID != "alice_bob" {
		t.Errorf("opponentLeft = %+v", left)
	}
	if _, ok := c.pending["alice_bob"]; ok {
		t.Error("pending match should be dropped")
	}

	c.handleMessage(AcceptMatchMsg{ConnID: alice.ID(), Opponent: "bob"})
	if code := errorCode(t, drain(alice)); code != CodeMatchNotFound {
		t.Errorf("code = %q, want %q", code, CodeMatchNotFound)
	}
}

func TestExitQueueWhileWaiting(t *testing.T) {
	c := newTestCoordinator(t, nil)
	alice := login(t, c, "alice")
	c.handleMessage(FindMatchMsg{ConnID: alice.ID()})
	drain(alice)

	c.handleMessage(ExitQueueMsg{ConnID: alice.ID()})

	findEvent[ExitedQueueEvent](t, drain(alice))
	if c.queue.Len() != 0 {
		t.Errorf("queue length = %d, want 0", c.queue.Len())
	}
}

func TestFindMatchWhileInGame(t *testing.T) {
	c := newTestCoordinator(t, nil)
	alice, _ := startChallengeGame(t, c)

	c.handleMessage(FindMatchMsg{ConnID: alice.ID()})
	if code := errorCode(t, drain(alice)); code != CodeAlreadyInGame {
		t.Errorf("code = %q, want %q", code, CodeAlreadyInGame)
	}
}

func TestChallengeFlow(t *testing.T) {
	c := newTestCoordinator(t, nil)
	alice := login(t, c, "alice")
	bob := login(t, c, "bob")
	drain(alice)

	c.handleMessage(ChallengePlayerMsg{ConnID: alice.ID(), OpponentUsername: "bob"})

	offer := findEvent[ChallengeOfferedEvent](t, drain(bob))
	if offer.Challenger != "alice" || offer.Opponent != "bob" {
		t.Errorf("offer = %+v", offer)
	}
	findEvent[ChallengeOfferedEvent](t, drain(alice))
	if _, ok := c.Game("alice_bob"); ok {
		t.Fatal("a challenge alone must not start a game")
	}

	c.handleMessage(AcceptChallengeMsg{ConnID: bob.ID(), Challenger: "alice"})
	if findEvent[GameStartEvent](t, drain(alice)).Opponent != "bob" {
		t.Error("alice should start against bob")
	}
	st, _ := c.Sessions().Find("bob")
	if !st.InGame || st.Opponent != "alice" {
		t.Errorf("bob state = %+v", st)
	}
}

func TestChallengeRejections(t *testing.T) {
	c := newTestCoordinator(t, nil)
	alice, bob := startChallengeGame(t, c)
	carol := login(t, c, "carol")

	tests := []struct {
		name string
		msg  CoordinatorMessage
		conn *ChannelConn
		code string
	}{
		{"self", ChallengePlayerMsg{ConnID: carol.ID(), OpponentUsername: "carol"}, carol, CodeChallengeUnavailable},
		{"offline", ChallengePlayerMsg{ConnID: carol.ID(), OpponentUsername: "dave"}, carol, CodePlayerNotFound},
		{"target in game", ChallengePlayerMsg{ConnID: carol.ID(), OpponentUsername: "alice"}, carol, CodeChallengeUnavailable},
		{"accept busy challenger", AcceptChallengeMsg{ConnID: carol.ID(), Challenger: "alice"}, carol, CodeChallengeUnavailable},
		{"accept offline challenger", AcceptChallengeMsg{ConnID: carol.ID(), Challenger: "dave"}, carol, CodeChallengeUnavailable},
		{"accept while in game", AcceptChallengeMsg{ConnID: bob.ID(), Challenger: "carol"}, bob, CodeAlreadyInGame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drain(tt.conn)
			c.handleMessage(tt.msg)
			if code := errorCode(t, drain(tt.conn)); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}

	if hasEvent[ErrorEvent](drain(alice)) {
		t.Error("failed accepts are reported to the accepting side only")
	}
}

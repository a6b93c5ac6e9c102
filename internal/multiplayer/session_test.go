package multiplayer

import (
	"errors"
	"testing"
)

func TestSessionRegistryClaimUnique(t *testing.T) {
	r := NewSessionRegistry()
	r.Register(NewChannelConn("c1", 4))
	r.Register(NewChannelConn("c2", 4))

	if err := r.Claim("c1", "alice"); err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	if err := r.Claim("c2", "alice"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("second claim: err = %v, want ErrUsernameTaken", err)
	}
	if err := r.Claim("c1", "alicia"); !errors.Is(err, ErrAlreadyNamed) {
		t.Errorf("rename: err = %v, want ErrAlreadyNamed", err)
	}
	if err := r.Claim("c9", "carol"); !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("unknown conn: err = %v, want ErrUnknownConnection", err)
	}

	// Names are case-sensitive.
	if err := r.Claim("c2", "Alice"); err != nil {
		t.Errorf("Claim(Alice) failed: %v", err)
	}
}

func TestSessionRegistryReleaseFreesName(t *testing.T) {
	r := NewSessionRegistry()
	r.Register(NewChannelConn("c1", 4))
	r.Claim("c1", "alice")

	st, ok := r.Release("c1")
	if !ok || st.Username != "alice" {
		t.Fatalf("Release() = %+v, %v", st, ok)
	}
	if _, ok := r.Find("alice"); ok {
		t.Error("released name should be free")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}

	r.Register(NewChannelConn("c2", 4))
	if err := r.Claim("c2", "alice"); err != nil {
		t.Errorf("reclaim failed: %v", err)
	}
}

func TestSessionRegistryAvailable(t *testing.T) {
	r := NewSessionRegistry()
	for _, id := range []ConnID{"c1", "c2", "c3", "c4"} {
		r.Register(NewChannelConn(id, 4))
	}
	r.Claim("c1", "carol")
	r.Claim("c2", "alice")
	r.Claim("c3", "bob")
	// c4 stays unnamed

	st, _ := r.Find("bob")
	st.InGame = true

	got := r.Available()
	want := []string{"alice", "carol"}
	if len(got) != len(want) {
		t.Fatalf("Available() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Available()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChannelConnDropsOldest(t *testing.T) {
	conn := NewChannelConn("c1", 2)

	conn.Send(ErrorEvent{Code: "1"})
	conn.Send(ErrorEvent{Code: "2"})
	conn.Send(ErrorEvent{Code: "3"})

	first := (<-conn.Events()).(ErrorEvent)
	second := (<-conn.Events()).(ErrorEvent)
	if first.Code != "2" || second.Code != "3" {
		t.Errorf("got %q, %q; want 2, 3", first.Code, second.Code)
	}
}

func TestChannelConnClose(t *testing.T) {
	conn := NewChannelConn("c1", 2)
	conn.Close()
	conn.Close()

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done() should be closed")
	}

	conn.Send(ConnectedEvent{})
	if len(conn.Events()) != 0 {
		t.Error("Send after Close should be dropped")
	}
}

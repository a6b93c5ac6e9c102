package multiplayer

import (
	"errors"
	"sort"
	"sync"

	"github.com/vovakirdan/rps-arena/internal/rules"
)

var (
	// ErrUsernameTaken is returned when a live session already holds the name.
	ErrUsernameTaken = errors.New("multiplayer: username taken")

	// ErrAlreadyNamed is returned when a connection tries to claim a second name.
	ErrAlreadyNamed = errors.New("multiplayer: connection already has a username")

	// ErrUnknownConnection is returned for connections that were never registered.
	ErrUnknownConnection = errors.New("multiplayer: unknown connection")
)

// Connection is the transport-neutral interface for talking to one client.
// It allows the coordinator to send events without depending on WebSocket or SSH.
type Connection interface {
	// ID returns the unique connection identifier.
	ID() ConnID

	// Send sends an event to the client asynchronously.
	// Must be non-blocking; implementations should use buffered channels.
	Send(evt Event)

	// Close ends the connection.
	Close()

	// Done returns a channel that closes when the connection ends.
	Done() <-chan struct{}
}

// ChannelConn is a Connection implementation using Go channels.
// Transports drain Events() and write each event to the wire.
type ChannelConn struct {
	id       ConnID
	events   chan Event
	done     chan struct{}
	doneOnce sync.Once
}

// NewChannelConn creates a new channel-based connection.
// eventBufferSize controls how many events can be buffered before dropping.
func NewChannelConn(id ConnID, eventBufferSize int) *ChannelConn {
	if eventBufferSize < 1 {
		eventBufferSize = 64 // Default buffer size
	}
	return &ChannelConn{
		id:     id,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (c *ChannelConn) ID() ConnID {
	return c.id
}

// Send queues an event for the client.
// If the buffer is full, the oldest event is dropped to prevent blocking.
func (c *ChannelConn) Send(evt Event) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.events <- evt:
	default:
		select {
		case <-c.events:
		default:
		}
		select {
		case c.events <- evt:
		default:
		}
	}
}

// Events returns the channel to receive events from.
func (c *ChannelConn) Events() <-chan Event {
	return c.events
}

// Done returns the done channel.
func (c *ChannelConn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection as done.
// Safe to call multiple times.
func (c *ChannelConn) Close() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// PlayerState is the transient per-connection state owned by the registry.
type PlayerState struct {
	Conn        Connection
	Username    string // Empty until claimed
	InGame      bool
	CurrentMove rules.Move // Empty when no move is pending

	// Opponent is the current opponent while InGame, otherwise the last one.
	Opponent string
}

// Named reports whether the connection has claimed a username.
func (p *PlayerState) Named() bool {
	return p.Username != ""
}

// SessionRegistry tracks live connections and the usernames they hold.
// It is owned by the coordinator goroutine and is not safe for concurrent use.
type SessionRegistry struct {
	byConn map[ConnID]*PlayerState
	byName map[string]ConnID
}

// NewSessionRegistry creates a new session registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byConn: make(map[ConnID]*PlayerState),
		byName: make(map[string]ConnID),
	}
}

// Register adds a connection with no username.
func (r *SessionRegistry) Register(conn Connection) *PlayerState {
	st := &PlayerState{Conn: conn}
	r.byConn[conn.ID()] = st
	return st
}

// Claim binds name to the connection.
// Only live sessions block a name; stored identities can always be reclaimed.
func (r *SessionRegistry) Claim(id ConnID, name string) error {
	st, ok := r.byConn[id]
	if !ok {
		return ErrUnknownConnection
	}
	if st.Named() {
		return ErrAlreadyNamed
	}
	if _, taken := r.byName[name]; taken {
		return ErrUsernameTaken
	}
	st.Username = name
	r.byName[name] = id
	return nil
}

// Get retrieves the state for a connection.
func (r *SessionRegistry) Get(id ConnID) (*PlayerState, bool) {
	st, ok := r.byConn[id]
	return st, ok
}

// Find retrieves the live session holding name.
func (r *SessionRegistry) Find(name string) (*PlayerState, bool) {
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// Release removes a connection and frees its username.
func (r *SessionRegistry) Release(id ConnID) (*PlayerState, bool) {
	st, ok := r.byConn[id]
	if !ok {
		return nil, false
	}
	delete(r.byConn, id)
	if st.Named() && r.byName[st.Username] == id {
		delete(r.byName, st.Username)
	}
	return st, true
}

// Available returns the sorted usernames of named sessions not in a game.
func (r *SessionRegistry) Available() []string {
	names := make([]string, 0, len(r.byName))
	for name, id := range r.byName {
		if st := r.byConn[id]; st != nil && !st.InGame {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered connections.
func (r *SessionRegistry) Count() int {
	return len(r.byConn)
}

package multiplayer

import (
	"github.com/vovakirdan/rps-arena/internal/metrics"
	"github.com/vovakirdan/rps-arena/internal/record"
)

// MatchQueue is a strict FIFO of connections waiting for an opponent.
type MatchQueue struct {
	waiting []ConnID
}

// NewMatchQueue creates an empty queue.
func NewMatchQueue() *MatchQueue {
	return &MatchQueue{}
}

// Enter pairs id with the longest waiter and returns it. When nobody else is
// waiting, id is appended and ok is false. Entering twice is a no-op.
func (q *MatchQueue) Enter(id ConnID) (opponent ConnID, ok bool) {
	if q.Contains(id) {
		return "", false
	}
	if len(q.waiting) == 0 {
		q.waiting = append(q.waiting, id)
		return "", false
	}
	opponent = q.waiting[0]
	q.waiting = q.waiting[1:]
	return opponent, true
}

// Leave removes id from the queue. It reports whether id was queued.
func (q *MatchQueue) Leave(id ConnID) bool {
	for i, w := range q.waiting {
		if w == id {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether id is waiting.
func (q *MatchQueue) Contains(id ConnID) bool {
	for _, w := range q.waiting {
		if w == id {
			return true
		}
	}
	return false
}

// Len returns the number of waiters.
func (q *MatchQueue) Len() int {
	return len(q.waiting)
}

// PendingMatch is a queue pairing waiting for both players to accept.
type PendingMatch struct {
	ID       string
	Players  [2]string
	accepted map[string]bool
}

// NewPendingMatch creates a pending match keyed by the pair-id of a and b.
func NewPendingMatch(a, b string) *PendingMatch {
	first, second := record.SortPair(a, b)
	return &PendingMatch{
		ID:       record.PairID(a, b),
		Players:  [2]string{first, second},
		accepted: make(map[string]bool, 2),
	}
}

// Includes reports whether username is one of the pair.
func (p *PendingMatch) Includes(username string) bool {
	return p.Players[0] == username || p.Players[1] == username
}

// Other returns the other player of the pair.
func (p *PendingMatch) Other(username string) string {
	if p.Players[0] == username {
		return p.Players[1]
	}
	return p.Players[0]
}

// Accept records username's acceptance and reports whether both accepted.
// Repeated accepts are idempotent.
func (p *PendingMatch) Accept(username string) bool {
	if p.Includes(username) {
		p.accepted[username] = true
	}
	return p.accepted[p.Players[0]] && p.accepted[p.Players[1]]
}

// Accepted reports whether username has accepted.
func (p *PendingMatch) Accepted(username string) bool {
	return p.accepted[username]
}

func (c *Coordinator) handleFindMatch(msg FindMatchMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}
	if st.InGame {
		c.sendError(st, CodeAlreadyInGame, "finish or exit your game first")
		return
	}

	for {
		oppID, matched := c.queue.Enter(msg.ConnID)
		metrics.QueueLength.Set(float64(c.queue.Len()))
		if !matched {
			st.Conn.Send(WaitingForMatchEvent{})
			return
		}

		opp, ok := c.sessions.Get(oppID)
		if !ok || opp.InGame {
			c.log.Warn("dropping stale queue entry", "conn", oppID)
			continue
		}

		pm := NewPendingMatch(st.Username, opp.Username)
		c.pending[pm.ID] = pm
		st.Conn.Send(MatchFoundEvent{Opponent: opp.Username, GameID: pm.ID})
		opp.Conn.Send(MatchFoundEvent{Opponent: st.Username, GameID: pm.ID})
		c.log.Info("match found", "game", pm.ID)
		return
	}
}

func (c *Coordinator) handleAcceptMatch(msg AcceptMatchMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}

	id := record.PairID(st.Username, msg.Opponent)
	if msg.GameID != "" && msg.GameID != id {
		c.notFound(st, CodeMatchNotFound, "no pending match", "game", msg.GameID)
		return
	}
	pm, ok := c.pending[id]
	if !ok {
		c.notFound(st, CodeMatchNotFound, "no pending match", "game", id)
		return
	}
	if st.InGame {
		c.sendError(st, CodeAlreadyInGame, "finish or exit your game first")
		return
	}

	if !pm.Accept(st.Username) {
		c.log.Debug("match accepted, waiting for opponent", "game", id, "username", st.Username)
		return
	}

	opp, online := c.sessions.Find(msg.Opponent)
	if !online || opp.InGame {
		delete(c.pending, id)
		c.notFound(st, CodePlayerNotFound, "opponent is no longer available", "opponent", msg.Opponent)
		return
	}
	c.startGame(opp, st)
}

func (c *Coordinator) handleExitQueue(msg ExitQueueMsg) {
	st, ok := c.sessions.Get(msg.ConnID)
	if !ok {
		return
	}

	c.queue.Leave(msg.ConnID)
	metrics.QueueLength.Set(float64(c.queue.Len()))
	if st.Named() {
		c.dropPendingFor(st.Username)
	}
	st.Conn.Send(ExitedQueueEvent{})
}

// dropPendingFor cancels every pending match involving username and tells the
// other side.
func (c *Coordinator) dropPendingFor(username string) {
	for id, pm := range c.pending {
		if !pm.Includes(username) {
			continue
		}
		delete(c.pending, id)
		if other, ok := c.sessions.Find(pm.Other(username)); ok {
			other.Conn.Send(OpponentLeftEvent{Opponent: username, GameID: id})
		}
	}
}

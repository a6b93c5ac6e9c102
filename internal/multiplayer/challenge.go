package multiplayer

import "strings"

// handleChallengePlayer offers a direct game to an online player.
func (c *Coordinator) handleChallengePlayer(msg ChallengePlayerMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}

	target := strings.TrimSpace(msg.OpponentUsername)
	if target == st.Username {
		c.sendError(st, CodeChallengeUnavailable, "you cannot challenge yourself")
		return
	}
	if st.InGame {
		c.sendError(st, CodeAlreadyInGame, "finish or exit your game first")
		return
	}
	opp, online := c.sessions.Find(target)
	if !online {
		c.notFound(st, CodePlayerNotFound, "player is not online", "opponent", target)
		return
	}
	if opp.InGame {
		c.sendError(st, CodeChallengeUnavailable, target+" is in a game")
		return
	}

	h := c.headToHead(st.Username, target)
	st.Conn.Send(ChallengeOfferedEvent{
		Challenger: st.Username,
		Opponent:   target,
		HeadToHead: h.For(st.Username),
	})
	opp.Conn.Send(ChallengeOfferedEvent{
		Challenger: st.Username,
		Opponent:   target,
		HeadToHead: h.For(target),
	})
	c.log.Info("challenge offered", "challenger", st.Username, "opponent", target)
}

// handleAcceptChallenge starts a game with the challenger. Failures are
// reported to the accepting side only.
func (c *Coordinator) handleAcceptChallenge(msg AcceptChallengeMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}
	if st.InGame {
		c.sendError(st, CodeAlreadyInGame, "finish or exit your game first")
		return
	}

	challenger, online := c.sessions.Find(msg.Challenger)
	if !online || challenger.InGame || challenger == st {
		c.log.Warn("challenge unavailable", "username", st.Username, "challenger", msg.Challenger, "online", online)
		c.sendError(st, CodeChallengeUnavailable, "challenge is no longer available")
		return
	}
	c.startGame(challenger, st)
}

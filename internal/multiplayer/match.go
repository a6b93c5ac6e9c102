package multiplayer

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/rps-arena/internal/metrics"
	"github.com/vovakirdan/rps-arena/internal/record"
	"github.com/vovakirdan/rps-arena/internal/rules"
)

var (
	// ErrNotParticipant is returned when a move comes from outside the pair.
	ErrNotParticipant = errors.New("multiplayer: not a participant")

	// ErrGameFinished is returned for moves after the win threshold was reached.
	ErrGameFinished = errors.New("multiplayer: game finished")
)

// GameSession drives first-to-threshold round play between two players.
type GameSession struct {
	ID      string
	Players [2]string

	threshold int
	state     GameState
	moves     map[string]rules.Move // pending moves, cleared after each round
	wins      map[string]int
	rounds    []record.Round
	results   map[string]record.Result
}

// RoundReport describes a round resolved by SubmitMove.
type RoundReport struct {
	Round    record.Round
	Outcomes map[string]rules.Outcome
	Finished bool
}

// NewGameSession creates a session for a and b, keyed by their pair-id.
func NewGameSession(a, b string, threshold int) *GameSession {
	if threshold < 1 {
		threshold = DefaultWinThreshold
	}
	first, second := record.SortPair(a, b)
	return &GameSession{
		ID:        record.PairID(a, b),
		Players:   [2]string{first, second},
		threshold: threshold,
		state:     StateAwaitingMoves,
		moves:     make(map[string]rules.Move, 2),
		wins:      make(map[string]int, 2),
	}
}

// State returns the current phase.
func (g *GameSession) State() GameState {
	return g.state
}

// Threshold returns the round wins needed to finish.
func (g *GameSession) Threshold() int {
	return g.threshold
}

// Includes reports whether username plays in this session.
func (g *GameSession) Includes(username string) bool {
	return g.Players[0] == username || g.Players[1] == username
}

// Opponent returns the other player.
func (g *GameSession) Opponent(username string) string {
	if g.Players[0] == username {
		return g.Players[1]
	}
	return g.Players[0]
}

// Pending returns username's pending move, empty when none.
func (g *GameSession) Pending(username string) rules.Move {
	return g.moves[username]
}

// Score returns the round-win tally from username's side.
func (g *GameSession) Score(username string) Score {
	return Score{You: g.wins[username], Opponent: g.wins[g.Opponent(username)]}
}

// Rounds returns a copy of the completed rounds.
func (g *GameSession) Rounds() []record.Round {
	out := make([]record.Round, len(g.rounds))
	copy(out, g.rounds)
	return out
}

// Result returns username's terminal result, empty until Finished.
func (g *GameSession) Result(username string) record.Result {
	return g.results[username]
}

// SubmitMove records player's move. When both moves are present the round is
// resolved and returned; otherwise the report is nil. A second submission
// before the opponent moves replaces the first.
func (g *GameSession) SubmitMove(player string, move rules.Move) (*RoundReport, error) {
	if !g.Includes(player) {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotParticipant, player, g.ID)
	}
	if g.state == StateFinished {
		return nil, ErrGameFinished
	}
	if !move.Valid() {
		return nil, fmt.Errorf("%w: %q", rules.ErrInvalidMove, move)
	}

	g.moves[player] = move
	g.state = StateAwaitingMoves

	a, b := g.Players[0], g.Players[1]
	moveA, okA := g.moves[a]
	moveB, okB := g.moves[b]
	if !okA || !okB {
		return nil, nil
	}

	outA, outB, err := rules.Resolve(moveA, moveB)
	if err != nil {
		return nil, err
	}

	round := record.Round{
		Number: len(g.rounds) + 1,
		Moves:  map[string]rules.Move{a: moveA, b: moveB},
	}
	switch outA {
	case rules.Win:
		round.Winner = a
	case rules.Lose:
		round.Winner = b
	}
	if round.Winner != "" {
		g.wins[round.Winner]++
	}
	g.rounds = append(g.rounds, round)
	g.moves = make(map[string]rules.Move, 2)
	g.state = StateRoundResolved

	report := &RoundReport{
		Round:    round,
		Outcomes: map[string]rules.Outcome{a: outA, b: outB},
	}
	if round.Winner != "" && g.wins[round.Winner] >= g.threshold {
		loser := g.Opponent(round.Winner)
		g.results = map[string]record.Result{
			round.Winner: record.ResultWin,
			loser:        record.ResultLoss,
		}
		g.state = StateFinished
		report.Finished = true
	} else {
		g.state = StateAwaitingMoves
	}
	return report, nil
}

// Record snapshots a finished session.
func (g *GameSession) Record(id string, at time.Time) record.GameRecord {
	results := make(map[string]record.Result, len(g.results))
	for k, v := range g.results {
		results[k] = v
	}
	return record.GameRecord{
		ID:       id,
		PlayedAt: at.UTC(),
		Players:  g.Players,
		Results:  results,
		Rounds:   g.Rounds(),
	}
}

// startGame puts a and b into a fresh session, replacing any existing one.
func (c *Coordinator) startGame(a, b *PlayerState) {
	gs := NewGameSession(a.Username, b.Username, c.config.WinThreshold)

	delete(c.pending, gs.ID)
	for _, st := range []*PlayerState{a, b} {
		c.queue.Leave(st.Conn.ID())
		c.dropPendingFor(st.Username)
		st.InGame = true
		st.CurrentMove = ""
	}
	a.Opponent, b.Opponent = b.Username, a.Username
	metrics.QueueLength.Set(float64(c.queue.Len()))

	if _, replaced := c.games[gs.ID]; replaced {
		c.log.Debug("replacing active game", "game", gs.ID)
	}
	c.games[gs.ID] = gs
	metrics.ActiveGames.Set(float64(len(c.games)))
	metrics.GamesTotal.WithLabelValues("started").Inc()

	h := c.headToHead(a.Username, b.Username)
	for _, st := range []*PlayerState{a, b} {
		st.Conn.Send(GameStartEvent{
			Opponent:     st.Opponent,
			GameID:       gs.ID,
			WinThreshold: gs.Threshold(),
			HeadToHead:   h.For(st.Username),
		})
	}
	c.log.Info("game started", "game", gs.ID, "threshold", gs.Threshold())
	c.broadcastAvailable()
}

func (c *Coordinator) handleMakeMove(msg MakeMoveMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}

	gs, ok := c.activeGame(st, msg.Opponent, msg.GameID)
	if !ok {
		return
	}

	move, err := rules.Parse(msg.Move)
	if err != nil {
		c.sendError(st, CodeInvalidMove, err.Error())
		return
	}

	report, err := gs.SubmitMove(st.Username, move)
	if err != nil {
		c.sendError(st, moveErrorCode(err), err.Error())
		return
	}
	st.CurrentMove = move
	if report == nil {
		return
	}

	outcome := "decided"
	if report.Round.Winner == "" {
		outcome = "draw"
	}
	metrics.RoundsTotal.WithLabelValues(outcome).Inc()

	for _, name := range gs.Players {
		opp := gs.Opponent(name)
		if ps, online := c.sessions.Find(name); online {
			ps.CurrentMove = ""
			ps.Conn.Send(RoundResultEvent{
				GameID:       gs.ID,
				Round:        report.Round.Number,
				Result:       report.Outcomes[name],
				YourMove:     report.Round.Moves[name],
				OpponentMove: report.Round.Moves[opp],
				Score:        gs.Score(name),
			})
		}
	}

	if report.Finished {
		c.finishGame(gs)
	}
}

// finishGame announces the result, persists the record and frees both players.
func (c *Coordinator) finishGame(gs *GameSession) {
	rec := gs.Record(c.newID(), c.now())
	delete(c.games, gs.ID)
	metrics.ActiveGames.Set(float64(len(c.games)))
	metrics.GamesTotal.WithLabelValues("finished").Inc()

	players := make([]*PlayerState, 0, 2)
	for _, name := range gs.Players {
		if st, online := c.sessions.Find(name); online {
			st.InGame = false
			st.CurrentMove = ""
			players = append(players, st)
			st.Conn.Send(GameResultEvent{
				GameID:   gs.ID,
				RecordID: rec.ID,
				Result:   gs.Result(name),
				Score:    gs.Score(name),
				Rounds:   rec.Rounds,
			})
		}
	}
	c.log.Info("game finished", "game", gs.ID, "record", rec.ID, "winner", rec.Winner(), "rounds", len(rec.Rounds))

	if err := c.saveRecord(rec); err != nil {
		c.unsaved = append(c.unsaved, rec)
		metrics.PendingRecords.Set(float64(len(c.unsaved)))
		for _, st := range players {
			c.sendError(st, CodeStorageUnavailable, "game result will be saved later")
		}
	}

	c.broadcastAvailable()
}

// saveRecord tries SaveGame up to SaveAttempts times.
func (c *Coordinator) saveRecord(rec record.GameRecord) error {
	var err error
	for attempt := 1; attempt <= c.config.SaveAttempts; attempt++ {
		if err = c.saveOnce(rec); err == nil {
			return nil
		}
		c.log.Warn("save game failed", "record", rec.ID, "attempt", attempt, "err", err)
	}
	return err
}

func (c *Coordinator) saveOnce(rec record.GameRecord) error {
	ctx, cancel := c.storeContext()
	defer cancel()

	if err := c.store.SaveGame(ctx, rec); err != nil {
		metrics.StoreErrors.WithLabelValues("save_game").Inc()
		return err
	}
	return nil
}

func (c *Coordinator) handleRequestRematch(msg RequestRematchMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}

	opp, online := c.sessions.Find(msg.Opponent)
	if !online || opp == st {
		c.notFound(st, CodeRematchUnavailable, "opponent is not online", "opponent", msg.Opponent)
		return
	}

	together := st.InGame && opp.InGame && st.Opponent == opp.Username && opp.Opponent == st.Username
	afterGame := !st.InGame && !opp.InGame && opp.Opponent == st.Username
	if !together && !afterGame {
		c.sendError(st, CodeRematchUnavailable, "no game to rematch with "+msg.Opponent)
		return
	}

	if together {
		metrics.GamesTotal.WithLabelValues("abandoned").Inc()
	}
	c.log.Info("rematch", "username", st.Username, "opponent", opp.Username)
	c.startGame(st, opp)
}

func (c *Coordinator) handleExitMatch(msg ExitMatchMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}

	gs, ok := c.activeGame(st, msg.Opponent, msg.GameID)
	if !ok {
		return
	}
	c.abandonGame(gs, st.Username)
	c.broadcastAvailable()
}

// abandonGame discards gs without recording it and frees both players.
func (c *Coordinator) abandonGame(gs *GameSession, leaver string) {
	delete(c.games, gs.ID)
	metrics.ActiveGames.Set(float64(len(c.games)))
	metrics.GamesTotal.WithLabelValues("abandoned").Inc()

	for _, name := range gs.Players {
		st, online := c.sessions.Find(name)
		if !online {
			continue
		}
		st.InGame = false
		st.CurrentMove = ""
		if name != leaver {
			st.Conn.Send(OpponentLeftEvent{Opponent: leaver, GameID: gs.ID})
		}
	}
	c.log.Info("game abandoned", "game", gs.ID, "by", leaver)
}

// activeGame finds the sender's game with opponent, replying gameNotFound when
// there is none or gameID does not match.
func (c *Coordinator) activeGame(st *PlayerState, opponent, gameID string) (*GameSession, bool) {
	id := record.PairID(st.Username, opponent)
	if gameID != "" && gameID != id {
		c.notFound(st, CodeGameNotFound, "no such game", "game", gameID)
		return nil, false
	}
	gs, ok := c.games[id]
	if !ok || !gs.Includes(st.Username) || !gs.Includes(opponent) {
		c.notFound(st, CodeGameNotFound, "no such game", "game", id)
		return nil, false
	}
	return gs, true
}

// moveErrorCode maps a SubmitMove error to the code sent to the client.
func moveErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotParticipant):
		return CodeNotParticipant
	case errors.Is(err, ErrGameFinished):
		return CodeGameNotFound
	default:
		return CodeInvalidMove
	}
}

// gamesOf returns the active games username plays in.
func (c *Coordinator) gamesOf(username string) []*GameSession {
	var out []*GameSession
	for _, gs := range c.games {
		if gs.Includes(username) {
			out = append(out, gs)
		}
	}
	return out
}

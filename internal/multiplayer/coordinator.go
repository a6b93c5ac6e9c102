package multiplayer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vovakirdan/rps-arena/internal/metrics"
	"github.com/vovakirdan/rps-arena/internal/record"
	"github.com/vovakirdan/rps-arena/internal/stats"
)

// RecordStore is the persistence the coordinator needs.
// This allows the coordinator to save results without depending on the storage package.
type RecordStore interface {
	// ClaimUser loads the stored user, creating it on first claim.
	ClaimUser(ctx context.Context, username string) (record.User, error)

	// User loads a stored user or returns record.ErrNotFound.
	User(ctx context.Context, username string) (record.User, error)

	// AddFriendship stores a symmetric friendship.
	AddFriendship(ctx context.Context, a, b string) error

	// SaveGame atomically stores a finished game, links it to both users and
	// updates their player stats and head-to-head tally.
	SaveGame(ctx context.Context, g record.GameRecord) error

	// Games loads games by id, skipping unknown ids.
	Games(ctx context.Context, ids []string) ([]record.GameRecord, error)

	// HeadToHead returns the tally for a pair, zero-valued when absent.
	HeadToHead(ctx context.Context, a, b string) (record.HeadToHead, error)
}

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	WinThreshold int           // Round wins that end a game
	EventBuffer  int           // Inbound message channel capacity
	StoreTimeout time.Duration // Deadline for each store call
	SaveAttempts int           // Tries per finished game before parking it for retry
}

// DefaultCoordinatorConfig returns sensible defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		WinThreshold: DefaultWinThreshold,
		EventBuffer:  256,
		StoreTimeout: 5 * time.Second,
		SaveAttempts: 3,
	}
}

// Coordinator owns the registry, queue, pending matches and active games.
// All state is touched only from the processMessages goroutine.
type Coordinator struct {
	config   CoordinatorConfig
	store    RecordStore
	log      *log.Logger
	sessions *SessionRegistry
	queue    *MatchQueue

	pending map[string]*PendingMatch // pair-id -> match awaiting accepts
	games   map[string]*GameSession  // pair-id -> active game
	unsaved []record.GameRecord      // finished games the store rejected

	now   func() time.Time
	newID func() string

	msgChan  chan CoordinatorMessage
	done     chan struct{}
	stopped  chan struct{} // closed when processMessages returns
	started  atomic.Bool
	stopOnce sync.Once
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(cfg CoordinatorConfig, store RecordStore, logger *log.Logger) *Coordinator {
	defaults := DefaultCoordinatorConfig()
	if cfg.WinThreshold < 1 {
		cfg.WinThreshold = defaults.WinThreshold
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = defaults.EventBuffer
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaults.StoreTimeout
	}
	if cfg.SaveAttempts < 1 {
		cfg.SaveAttempts = defaults.SaveAttempts
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Coordinator{
		config:   cfg,
		store:    store,
		log:      logger,
		sessions: NewSessionRegistry(),
		queue:    NewMatchQueue(),
		pending:  make(map[string]*PendingMatch),
		games:    make(map[string]*GameSession),
		now:      time.Now,
		newID:    uuid.NewString,
		msgChan:  make(chan CoordinatorMessage, cfg.EventBuffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins the coordinator's background processing.
func (c *Coordinator) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.processMessages()
	}
}

// Stop shuts down the coordinator. Messages already queued are handled
// before Stop returns. Safe to call multiple times.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	if c.started.Load() {
		<-c.stopped
	}
}

// Send sends a message to the coordinator for async processing.
func (c *Coordinator) Send(msg CoordinatorMessage) {
	select {
	case c.msgChan <- msg:
	case <-c.done:
	}
}

// processMessages handles incoming messages.
func (c *Coordinator) processMessages() {
	defer close(c.stopped)
	for {
		select {
		case msg := <-c.msgChan:
			c.handleMessage(msg)
		case <-c.done:
			for {
				select {
				case msg := <-c.msgChan:
					c.handleMessage(msg)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) handleMessage(msg CoordinatorMessage) {
	switch m := msg.(type) {
	case ConnectMsg:
		c.handleConnect(m)
	case DisconnectMsg:
		c.handleDisconnect(m)
	case SetUsernameMsg:
		c.handleSetUsername(m)
	case FindMatchMsg:
		c.handleFindMatch(m)
	case AcceptMatchMsg:
		c.handleAcceptMatch(m)
	case ExitQueueMsg:
		c.handleExitQueue(m)
	case ChallengePlayerMsg:
		c.handleChallengePlayer(m)
	case AcceptChallengeMsg:
		c.handleAcceptChallenge(m)
	case MakeMoveMsg:
		c.handleMakeMove(m)
	case ExitMatchMsg:
		c.handleExitMatch(m)
	case RequestRematchMsg:
		c.handleRequestRematch(m)
	case AddFriendMsg:
		c.handleAddFriend(m)
	case GetStatsMsg:
		c.handleGetStats(m)
	case BroadcastPresenceMsg:
		c.broadcastAvailable()
	case FlushRecordsMsg:
		c.handleFlushRecords()
	default:
		c.log.Warn("unhandled coordinator message", "msg", msg)
	}
}

func (c *Coordinator) handleConnect(msg ConnectMsg) {
	c.sessions.Register(msg.Conn)
	metrics.Connections.Set(float64(c.sessions.Count()))
	msg.Conn.Send(ConnectedEvent{})
	c.log.Debug("connection registered", "conn", msg.Conn.ID())
}

// handleDisconnect unwinds everything the connection took part in.
func (c *Coordinator) handleDisconnect(msg DisconnectMsg) {
	st, ok := c.sessions.Get(msg.ConnID)
	if !ok {
		return
	}

	if c.queue.Leave(msg.ConnID) {
		metrics.QueueLength.Set(float64(c.queue.Len()))
	}
	if st.Named() {
		c.dropPendingFor(st.Username)
		for _, gs := range c.gamesOf(st.Username) {
			c.abandonGame(gs, st.Username)
		}
	}

	c.sessions.Release(msg.ConnID)
	metrics.Connections.Set(float64(c.sessions.Count()))
	c.log.Info("connection released", "conn", msg.ConnID, "username", st.Username)

	if st.Named() {
		c.broadcastAvailable()
	}
}

func (c *Coordinator) handleSetUsername(msg SetUsernameMsg) {
	st, ok := c.sessions.Get(msg.ConnID)
	if !ok {
		return
	}

	name := strings.TrimSpace(msg.Username)
	if st.Named() {
		c.sendError(st, CodeAlreadyLoggedIn, "already logged in as "+st.Username)
		return
	}
	if err := record.ValidateUsername(name); err != nil {
		c.sendError(st, CodeInvalidUsername, err.Error())
		return
	}
	if _, taken := c.sessions.Find(name); taken {
		st.Conn.Send(UsernameTakenEvent{
			Username: name,
			Message:  "Username is already in use",
		})
		return
	}

	ctx, cancel := c.storeContext()
	defer cancel()

	user, err := c.store.ClaimUser(ctx, name)
	if err != nil {
		c.storeFailed("claim_user", err, "username", name)
		c.sendError(st, CodeStorageUnavailable, "could not load profile")
		return
	}
	report, err := c.report(ctx, user)
	if err != nil {
		c.storeFailed("games", err, "username", name)
	}

	if err := c.sessions.Claim(msg.ConnID, name); err != nil {
		// Find above rules out a live holder, so only an unknown conn lands here.
		c.log.Error("claim failed after store load", "username", name, "err", err)
		return
	}

	st.Conn.Send(LoggedInEvent{
		Username:    user.Username,
		Friends:     user.Friends,
		PlayerStats: user.Stats,
		Stats:       report,
	})
	c.log.Info("user logged in", "conn", msg.ConnID, "username", name)
	c.broadcastAvailable()
}

func (c *Coordinator) handleAddFriend(msg AddFriendMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}

	friend := strings.TrimSpace(msg.Friend)
	reject := func(reason, message string) {
		st.Conn.Send(FriendErrorEvent{Friend: friend, Reason: reason, Message: message})
	}
	if friend == st.Username {
		reject(FriendReasonSelf, "You cannot add yourself as a friend")
		return
	}

	ctx, cancel := c.storeContext()
	defer cancel()

	err := c.store.AddFriendship(ctx, st.Username, friend)
	switch {
	case errors.Is(err, record.ErrSelfFriend):
		reject(FriendReasonSelf, "You cannot add yourself as a friend")
		return
	case errors.Is(err, record.ErrAlreadyFriends):
		reject(FriendReasonAlreadyFriends, friend+" is already your friend")
		return
	case errors.Is(err, record.ErrNotFound):
		reject(FriendReasonUnknownUser, "No user named "+friend)
		return
	case err != nil:
		c.storeFailed("add_friendship", err, "username", st.Username, "friend", friend)
		reject(FriendReasonStorage, "Could not save friendship")
		return
	}

	c.log.Info("friendship added", "username", st.Username, "friend", friend)
	st.Conn.Send(FriendAddedEvent{Friend: friend, Friends: c.friendsOf(ctx, st.Username)})
	if other, online := c.sessions.Find(friend); online {
		other.Conn.Send(FriendAddedEvent{Friend: st.Username, Friends: c.friendsOf(ctx, friend)})
	}
}

func (c *Coordinator) handleGetStats(msg GetStatsMsg) {
	st, ok := c.named(msg.ConnID)
	if !ok {
		return
	}

	ctx, cancel := c.storeContext()
	defer cancel()

	user, err := c.store.User(ctx, st.Username)
	if err != nil {
		c.storeFailed("user", err, "username", st.Username)
		c.sendError(st, CodeStorageUnavailable, "could not load stats")
		return
	}
	report, err := c.report(ctx, user)
	if err != nil {
		c.storeFailed("games", err, "username", st.Username)
	}

	st.Conn.Send(PlayerStatsEvent{
		Username:    user.Username,
		PlayerStats: user.Stats,
		Stats:       report,
	})
}

// handleFlushRecords retries parked game records once each.
func (c *Coordinator) handleFlushRecords() {
	if len(c.unsaved) == 0 {
		return
	}

	var still []record.GameRecord
	for _, rec := range c.unsaved {
		if err := c.saveOnce(rec); err != nil {
			still = append(still, rec)
			continue
		}
		c.log.Info("parked game record saved", "record", rec.ID, "players", rec.Players)
	}
	c.unsaved = still
	metrics.PendingRecords.Set(float64(len(c.unsaved)))
}

// broadcastAvailable sends the available list to every available player.
func (c *Coordinator) broadcastAvailable() {
	players := c.sessions.Available()
	evt := AvailablePlayersEvent{Players: players}
	for _, name := range players {
		if st, ok := c.sessions.Find(name); ok {
			st.Conn.Send(evt)
		}
	}
}

// named returns the sender's state, replying notLoggedIn if it has no name.
func (c *Coordinator) named(id ConnID) (*PlayerState, bool) {
	st, ok := c.sessions.Get(id)
	if !ok {
		return nil, false
	}
	if !st.Named() {
		c.sendError(st, CodeNotLoggedIn, "set a username first")
		return nil, false
	}
	return st, true
}

func (c *Coordinator) sendError(st *PlayerState, code, message string) {
	st.Conn.Send(ErrorEvent{Code: code, Message: message})
}

// notFound logs a reference to something absent and tells the sender.
func (c *Coordinator) notFound(st *PlayerState, code, message string, keyvals ...any) {
	c.log.Warn(message, append([]any{"username", st.Username}, keyvals...)...)
	c.sendError(st, code, message)
}

func (c *Coordinator) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.config.StoreTimeout)
}

func (c *Coordinator) storeFailed(op string, err error, keyvals ...any) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	c.log.Error("store call failed", append([]any{"op", op, "err", err}, keyvals...)...)
}

// report computes stats for a stored user. On a store error it returns the
// zero report along with the error.
func (c *Coordinator) report(ctx context.Context, user record.User) (stats.Report, error) {
	games, err := c.store.Games(ctx, user.GameIDs)
	if err != nil {
		return stats.Compute(user.Username, user.Friends, nil), err
	}
	return stats.Compute(user.Username, user.Friends, games), nil
}

func (c *Coordinator) friendsOf(ctx context.Context, username string) []string {
	user, err := c.store.User(ctx, username)
	if err != nil {
		c.storeFailed("user", err, "username", username)
		return nil
	}
	return user.Friends
}

// headToHead loads the pair tally, falling back to an empty one.
func (c *Coordinator) headToHead(a, b string) record.HeadToHead {
	ctx, cancel := c.storeContext()
	defer cancel()

	h, err := c.store.HeadToHead(ctx, a, b)
	if err != nil {
		c.storeFailed("head_to_head", err, "a", a, "b", b)
		return record.NewHeadToHead(a, b)
	}
	return h
}

// Sessions exposes the registry (for testing/debug).
func (c *Coordinator) Sessions() *SessionRegistry {
	return c.sessions
}

// Game returns the active game for a pair-id (for testing/debug).
func (c *Coordinator) Game(id string) (*GameSession, bool) {
	gs, ok := c.games[id]
	return gs, ok
}

// Unsaved returns the number of parked game records (for testing/debug).
func (c *Coordinator) Unsaved() int {
	return len(c.unsaved)
}

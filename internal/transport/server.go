package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"

	"github.com/vovakirdan/rps-arena/internal/config"
	"github.com/vovakirdan/rps-arena/internal/multiplayer"
	"github.com/vovakirdan/rps-arena/internal/storage"
)

// Store is a record store the server owns and closes.
type Store interface {
	multiplayer.RecordStore
	Close() error
}

// OpenStore opens the backend selected by cfg.
func OpenStore(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverSQLite, "":
		return storage.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Server runs the coordinator with its HTTP and SSH transports and jobs.
type Server struct {
	config    config.ServerConfig
	store     Store
	coord     *multiplayer.Coordinator
	http      *http.Server
	ssh       *SSHServer // nil when disabled
	scheduler gocron.Scheduler
	logger    *log.Logger
}

// NewServer assembles a server around store. The server takes ownership of
// store and closes it on shutdown.
func NewServer(cfg config.ServerConfig, store Store, logger *log.Logger) (*Server, error) {
	coord := multiplayer.NewCoordinator(multiplayer.CoordinatorConfig{
		WinThreshold: cfg.Game.WinThreshold,
		EventBuffer:  cfg.Coordinator.EventBuffer,
		StoreTimeout: cfg.Store.Timeout,
		SaveAttempts: cfg.Store.SaveAttempts,
	}, store, logger.WithPrefix("coordinator"))

	ws := NewWSHandler(coord, logger.WithPrefix("ws"), cfg.Coordinator.EventBuffer)
	router := NewRouter(ws, store, logger.WithPrefix("http"))

	s := &Server{
		config: cfg,
		store:  store,
		coord:  coord,
		http: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	if cfg.Server.SSHAddr != "" {
		sshSrv, err := NewSSHServer(SSHServerConfig{
			Address:     cfg.Server.SSHAddr,
			HostKeyPath: cfg.Server.HostKey,
			EventBuffer: cfg.Coordinator.EventBuffer,
		}, coord, logger.WithPrefix("ssh"))
		if err != nil {
			return nil, err
		}
		s.ssh = sshSrv
	}

	sched, err := newScheduler(coord, cfg)
	if err != nil {
		return nil, err
	}
	s.scheduler = sched

	return s, nil
}

// newScheduler registers the presence broadcast and record flush jobs.
func newScheduler(coord Dispatcher, cfg config.ServerConfig) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("cannot create scheduler: %w", err)
	}

	jobs := []struct {
		every time.Duration
		msg   multiplayer.CoordinatorMessage
	}{
		{cfg.Coordinator.PresenceInterval, multiplayer.BroadcastPresenceMsg{}},
		{cfg.Store.RetryInterval, multiplayer.FlushRecordsMsg{}},
	}
	for _, job := range jobs {
		msg := job.msg
		if _, err := sched.NewJob(
			gocron.DurationJob(job.every),
			gocron.NewTask(func() { coord.Send(msg) }),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("cannot schedule job: %w", err)
		}
	}
	return sched, nil
}

// Start starts the coordinator and scheduler and begins serving on the given
// listeners. sshLn may be nil when SSH is disabled.
func (s *Server) Start(httpLn, sshLn net.Listener) {
	s.coord.Start()
	s.scheduler.Start()

	go func() {
		if err := s.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	if s.ssh != nil && sshLn != nil {
		go func() {
			if err := s.ssh.Serve(sshLn); err != nil {
				s.logger.Error("ssh server error", "error", err)
			}
		}()
	}
}

// ListenAndServe listens on the configured addresses and blocks until
// SIGINT or SIGTERM, then shuts down.
func (s *Server) ListenAndServe() error {
	httpLn, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", s.config.Server.HTTPAddr, err)
	}
	var sshLn net.Listener
	if s.ssh != nil {
		sshLn, err = net.Listen("tcp", s.ssh.Addr())
		if err != nil {
			httpLn.Close()
			return fmt.Errorf("cannot listen on %s: %w", s.ssh.Addr(), err)
		}
	}

	s.logger.Info("starting server", "http", s.config.Server.HTTPAddr, "ssh", s.config.Server.SSHAddr)
	s.Start(httpLn, sshLn)

	// Setup signal handling for graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	s.logger.Info("shutting down...")
	return s.Shutdown(context.Background())
}

// Shutdown gracefully stops transports, jobs, coordinator and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.ssh != nil {
		if err := s.ssh.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.scheduler.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	// Let the loop drain everything the transports sent while closing, then
	// try once more to persist parked records before the store goes away.
	s.coord.Send(multiplayer.FlushRecordsMsg{})
	s.coord.Stop()
	if n := s.coord.Unsaved(); n > 0 {
		s.logger.Warn("finished games were not persisted", "count", n)
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

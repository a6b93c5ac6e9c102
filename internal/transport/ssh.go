package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/google/uuid"

	"github.com/vovakirdan/rps-arena/internal/multiplayer"
	"github.com/vovakirdan/rps-arena/internal/storage"
)

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	// Address is the host:port to listen on (e.g., ":2222").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.rps/ssh_host_ed25519.
	HostKeyPath string

	// EventBuffer is the per-session outbound event buffer.
	EventBuffer int
}

// SSHServer exposes the coordinator over SSH, one JSON object per line.
type SSHServer struct {
	config SSHServerConfig
	server *ssh.Server
	coord  Dispatcher
	logger *log.Logger
}

// NewSSHServer creates a new SSH server with the given configuration.
func NewSSHServer(cfg SSHServerConfig, coord Dispatcher, logger *log.Logger) (*SSHServer, error) {
	srv := &SSHServer{
		config: cfg,
		coord:  coord,
		logger: logger,
	}

	// Resolve host key path
	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		hostKeyPath = "~/.rps/ssh_host_ed25519"
	}
	hostKeyPath, err := storage.ExpandPath(hostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve host key path: %w", err)
	}

	// Ensure host key directory exists
	if err := os.MkdirAll(filepath.Dir(hostKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", err)
	}

	server, err := wish.NewServer(
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithMiddleware(
			srv.sessionMiddleware,
			srv.loggingMiddleware,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// sessionMiddleware turns each SSH session into one coordinator connection.
func (s *SSHServer) sessionMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.serveSession(sshSession)
		next(sshSession)
	}
}

func (s *SSHServer) serveSession(sshSession ssh.Session) {
	id := multiplayer.ConnID("ssh-" + uuid.NewString())
	conn := multiplayer.NewChannelConn(id, s.config.EventBuffer)
	s.coord.Send(multiplayer.ConnectMsg{Conn: conn})

	written := make(chan struct{})
	go func() {
		defer close(written)
		err := pumpEvents(conn, func(data []byte) error {
			_, err := sshSession.Write(append(data, '\n'))
			return err
		})
		if err != nil {
			s.logger.Debug("ssh write failed", "conn", id, "err", err)
			sshSession.Close()
		}
	}()

	scanner := bufio.NewScanner(sshSession)
	scanner.Buffer(make([]byte, 0, maxMessageSize), maxMessageSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dispatch(s.coord, conn, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("ssh read failed", "conn", id, "err", err)
	}

	s.coord.Send(multiplayer.DisconnectMsg{ConnID: id})
	conn.Close()
	<-written
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
		next(sshSession)
		s.logger.Info("session ended",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
	}
}

// ListenAndServe starts the SSH server and blocks until it is shut down.
func (s *SSHServer) ListenAndServe() error {
	s.logger.Info("starting SSH server", "address", s.config.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts sessions on l until shut down.
func (s *SSHServer) Serve(l net.Listener) error {
	if err := s.server.Serve(l); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Address
}

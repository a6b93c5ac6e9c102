package transport

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/rps-arena/internal/multiplayer"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WSHandler upgrades requests to WebSocket connections, one JSON object per frame.
type WSHandler struct {
	coord    Dispatcher
	logger   *log.Logger
	buffer   int
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WebSocket handler feeding coord.
func NewWSHandler(coord Dispatcher, logger *log.Logger, eventBuffer int) *WSHandler {
	return &WSHandler{
		coord:  coord,
		logger: logger,
		buffer: eventBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP runs one connection until the client goes away.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	id := multiplayer.ConnID("ws-" + uuid.NewString())
	conn := multiplayer.NewChannelConn(id, h.buffer)
	h.logger.Info("websocket connected", "conn", id, "remote", r.RemoteAddr)
	h.coord.Send(multiplayer.ConnectMsg{Conn: conn})

	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writeLoop(ws, conn)
	}()

	h.readLoop(ws, conn)

	h.coord.Send(multiplayer.DisconnectMsg{ConnID: id})
	conn.Close()
	<-written
	ws.Close()
	h.logger.Info("websocket disconnected", "conn", id)
}

func (h *WSHandler) readLoop(ws *websocket.Conn, conn *multiplayer.ChannelConn) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "conn", conn.ID(), "err", err)
			}
			return
		}
		dispatch(h.coord, conn, data)
	}
}

func (h *WSHandler) writeLoop(ws *websocket.Conn, conn *multiplayer.ChannelConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-ticker.C:
				// Control frames may be written concurrently with data frames.
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	err := pumpEvents(conn, func(data []byte) error {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteMessage(websocket.TextMessage, data)
	})
	if err != nil {
		h.logger.Debug("websocket write failed", "conn", conn.ID(), "err", err)
		ws.Close() // unblocks readLoop
	}
}

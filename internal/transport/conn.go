// Package transport carries coordinator events over WebSocket and SSH, serves
// the read-only HTTP API and runs the background jobs that feed the coordinator.
package transport

import (
	"github.com/vovakirdan/rps-arena/internal/metrics"
	"github.com/vovakirdan/rps-arena/internal/multiplayer"
)

// Dispatcher accepts inbound messages for the coordinator loop.
type Dispatcher interface {
	Send(msg multiplayer.CoordinatorMessage)
}

// dispatch decodes one inbound payload and forwards it. Malformed payloads are
// answered on the connection directly and never reach the coordinator.
func dispatch(d Dispatcher, conn *multiplayer.ChannelConn, data []byte) {
	msg, typ, err := multiplayer.DecodeMessage(conn.ID(), data)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("invalid").Inc()
		conn.Send(multiplayer.ErrorEvent{
			Code:    multiplayer.CodeBadMessage,
			Message: err.Error(),
		})
		return
	}
	metrics.MessagesTotal.WithLabelValues(typ).Inc()
	d.Send(msg)
}

// pumpEvents writes events until the connection is closed or write fails.
func pumpEvents(conn *multiplayer.ChannelConn, write func([]byte) error) error {
	for {
		select {
		case evt := <-conn.Events():
			data, err := multiplayer.Encode(evt)
			if err != nil {
				continue
			}
			if err := write(data); err != nil {
				return err
			}
		case <-conn.Done():
			return nil
		}
	}
}

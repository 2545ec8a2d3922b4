// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/voicecab/internal/callstate"
	"github.com/ManuGH/voicecab/internal/log"
	"github.com/gorilla/websocket"
)

const (
	statusWriteWait    = 5 * time.Second
	statusPongWait     = 60 * time.Second
	statusPingInterval = 25 * time.Second
	statusReadLimit    = 512
)

// handleStatusStream pushes the current call view, then one frame per model
// change, until the client goes away or the server shuts down.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "status-stream")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		logger.Debug().Err(err).Msg("status stream upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(s.rootCtx)
	defer cancel()

	// Subscribe before the first snapshot so no change between them is lost.
	sub, err := s.ctrl.Subscribe(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("status subscription failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"),
			time.Now().Add(statusWriteWait))
		_ = conn.Close()
		return
	}

	s.wsWG.Add(1)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.drainStatusReads(conn, cancel)
	}()
	defer func() {
		_ = sub.Close()
		_ = conn.Close()
		<-readDone
		s.wsWG.Done()
		logger.Debug().Str(log.FieldEvent, "status_stream.closed").Msg("status stream closed")
	}()

	logger.Debug().Str(log.FieldEvent, "status_stream.opened").Msg("status stream opened")

	if err := s.writeStatus(conn, s.ctrl.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(statusPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(statusWriteWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(statusWriteWait)); err != nil {
				return
			}
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			m, isModel := msg.(callstate.Model)
			if !isModel {
				continue
			}
			if err := s.writeStatus(conn, m); err != nil {
				logger.Debug().Err(err).Msg("status stream write failed")
				return
			}
		}
	}
}

func (s *Server) writeStatus(conn *websocket.Conn, m callstate.Model) error {
	_ = conn.SetWriteDeadline(time.Now().Add(statusWriteWait))
	return conn.WriteJSON(s.callResponse(m))
}

// drainStatusReads consumes client frames so pongs and close frames are
// processed; it cancels the stream when the peer goes away.
func (s *Server) drainStatusReads(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(statusReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(statusPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(statusPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ChileCris2011/Walkie-Server/internal/lifecycle"
	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

const (
	sendQueueSize = 256
	writeTimeout  = 5 * time.Second

	// Inline audio-data payloads are base64 blobs; the default read limit
	// is far too small for them.
	maxMessageSize = 1 << 20
)

// handleWebSocket upgrades the connection, registers it with the hub, and
// runs the read loop until the transport closes. Every read message is one
// JSON envelope dispatched to the hub's single event stream.
func (s *Server) handleWebSocket(c *gin.Context) {
	if s.lifecycle.State() != lifecycle.Running {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &types.Client{
		Conn: conn,
		ID:   uuid.New().String(),
		Send: make(chan []byte, sendQueueSize),
	}
	if _, err := s.hub.Connect(client); err != nil {
		s.logger.Error().Err(err).Str("connID", client.ID).Msg("registration failed")
		_ = conn.Close(websocket.StatusInternalError, "registration failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.writePump(ctx, client)

	s.readLoop(ctx, client)

	cancel()
	s.hub.Disconnect(client.ID)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readLoop(ctx context.Context, client *types.Client) {
	for {
		msgType, data, err := client.Conn.Read(ctx)
		if err != nil {
			s.logger.Debug().Err(err).Str("connID", client.ID).Msg("read loop ended")
			return
		}
		if msgType != websocket.MessageText {
			s.logger.Warn().Str("connID", client.ID).Msg("unexpected binary frame ignored")
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn().Err(err).Str("connID", client.ID).Msg("unparseable event ignored")
			continue
		}
		s.hub.Dispatch(ctx, client.ID, env)
	}
}

// writePump drains the outbound queue onto the websocket. It is the only
// writer for this connection.
func (s *Server) writePump(ctx context.Context, client *types.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-client.Send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := client.Conn.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				s.logger.Debug().Err(err).Str("connID", client.ID).Msg("write pump ended")
				return
			}
		}
	}
}

package hub

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/ChileCris2011/Walkie-Server/internal/state"
	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

const defaultQueueSize = 256

// Hub routes every inbound event to the presence, signaling, or relay
// handlers. All handlers run on a single dispatch goroutine, so registry and
// directory mutations within one event are atomic with respect to every
// other event.
type Hub struct {
	registry  *state.Registry
	directory *state.Directory
	logger    zerolog.Logger
	events    chan inbound
}

type inbound struct {
	connID string
	env    types.Envelope
}

func New(registry *state.Registry, directory *state.Directory, logger *zerolog.Logger) *Hub {
	return &Hub{
		registry:  registry,
		directory: directory,
		logger:    logger.With().Str("component", "hub").Logger(),
		events:    make(chan inbound, defaultQueueSize),
	}
}

func (h *Hub) Registry() *state.Registry   { return h.registry }
func (h *Hub) Directory() *state.Directory { return h.directory }

// Run consumes the event queue until the context is canceled. Handler
// panics are logged and survived; only explicit shutdown stops the loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Msg("dispatch loop stopped")
			return
		case ev := <-h.events:
			h.dispatch(ev.connID, ev.env)
		}
	}
}

func (h *Hub) dispatch(connID string, env types.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error().
				Str("connID", connID).
				Str("type", env.Type).
				Any("panic", rec).
				Msg("handler fault")
		}
	}()
	h.Handle(connID, env)
}

// Dispatch enqueues one inbound event. Blocking keeps per-sender order; the
// queue is consumed by the single Run goroutine.
func (h *Hub) Dispatch(ctx context.Context, connID string, env types.Envelope) {
	select {
	case h.events <- inbound{connID: connID, env: env}:
	case <-ctx.Done():
	}
}

// Handle processes one event to completion. Exported so tests can drive the
// hub synchronously without the dispatch goroutine.
func (h *Hub) Handle(connID string, env types.Envelope) {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		// Late event from an already removed connection: absorbed.
		h.logger.Debug().Str("connID", connID).Str("type", env.Type).Msg("event from unknown connection")
		return
	}

	switch env.Type {
	case types.EventJoinChannel:
		h.handleJoin(conn, env)
	case types.EventLeaveChannel:
		h.handleLeave(conn, env)
	case eventDisconnect:
		h.handleDisconnect(conn)
	case types.EventGetChannelUsers:
		h.handleGetChannelUsers(conn, env)
	case types.EventPing:
		h.send(conn, types.Envelope{Type: types.EventPong, Timestamp: types.Now()})
	case types.EventAudioData, types.EventAudioURL, types.EventAudioChunk,
		types.EventTransmissionStart, types.EventTransmissionEnd:
		h.handleRelay(conn, env)
	case types.EventWebRTCOffer, types.EventWebRTCAnswer,
		types.EventWebRTCICE, types.EventICECandidate:
		h.handleSignal(conn, env)
	case types.EventRequestWebRTC:
		h.handleConnectionRequest(conn, env)
	default:
		h.logger.Warn().Str("connID", connID).Str("type", env.Type).Msg("unknown event type")
		h.sendError(conn, types.CodeUnknownEvent, "unknown event type: "+env.Type)
	}
}

// Connect registers a freshly accepted transport link and greets it with the
// assigned connection id.
func (h *Hub) Connect(client *types.Client) (*types.Connection, error) {
	conn, err := h.registry.Register(client.ID, client)
	if err != nil {
		return nil, err
	}
	h.logger.Info().Str("connID", client.ID).Msg("connection registered")
	h.send(conn, types.Envelope{
		Type:         types.EventConnected,
		ConnectionID: client.ID,
		Timestamp:    types.Now(),
	})
	return conn, nil
}

// Disconnect enqueues the implicit leave + removal for a closed transport
// link. Safe to call more than once; the second pass finds nothing.
func (h *Hub) Disconnect(connID string) {
	h.events <- inbound{connID: connID, env: types.Envelope{Type: eventDisconnect}}
}

// Stats is the read-only aggregate used by the stats sweep and the HTTP
// surface.
func (h *Hub) Stats() types.ServerStats {
	return types.ServerStats{
		Connections:   h.registry.Count(),
		Channels:      h.directory.Count(),
		TotalMessages: h.directory.TotalMessages(),
	}
}

// send marshals and queues one envelope for a single connection. Delivery is
// best-effort: a full outbound queue drops the event.
func (h *Hub) send(conn *types.Connection, env types.Envelope) {
	if conn.Client == nil {
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		h.logger.Error().Err(err).Str("type", env.Type).Msg("failed to marshal outbound event")
		return
	}
	select {
	case conn.Client.Send <- b:
	default:
		h.logger.Warn().
			Str("connID", conn.ID).
			Str("type", env.Type).
			Msg("outbound queue full, event dropped")
	}
}

// broadcastToChannel fans one envelope out to every channel member except
// one connection (the sender, or nobody when exceptConnID is empty).
func (h *Hub) broadcastToChannel(channelID, exceptConnID string, env types.Envelope) int {
	delivered := 0
	for _, connID := range h.directory.MemberConnIDs(channelID) {
		if connID == exceptConnID {
			continue
		}
		member, ok := h.registry.Lookup(connID)
		if !ok {
			continue
		}
		h.send(member, env)
		delivered++
	}
	return delivered
}

// BroadcastAll delivers one envelope to every live connection. Used by the
// lifecycle controller for the shutdown notice.
func (h *Hub) BroadcastAll(env types.Envelope) {
	for _, conn := range h.registry.All() {
		h.send(conn, env)
	}
}

func (h *Hub) sendError(conn *types.Connection, code, message string) {
	h.send(conn, types.Envelope{Type: types.EventError, Code: code, Message: message})
}

// identity returns the server-known identity for a connection, enforcing
// that channel operations never run without one.
func (h *Hub) identity(conn *types.Connection) (string, bool) {
	if conn.UserID == "" {
		h.sendError(conn, types.CodeIdentityNotSet, "join a channel before sending this event")
		return "", false
	}
	return conn.UserID, true
}

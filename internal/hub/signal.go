package hub

import (
	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

// destination is the unified addressing result for signaling events. The
// two schemes observed on the wire collapse into it: channel-scoped
// (implicit broadcast, or targetUserId within the channel) and global
// (explicit to, resolved through the registry with no channel scoping).
type destination struct {
	broadcast bool
	channelID string
	target    *types.Connection
}

// resolve applies the addressing rules in precedence order. A false result
// means the payload has nowhere to go and is silently dropped.
func (h *Hub) resolve(conn *types.Connection, env types.Envelope) (destination, bool) {
	if env.To != "" {
		target, ok := h.registry.LookupByUserID(env.To)
		if !ok {
			h.logger.Debug().
				Str("connID", conn.ID).
				Str("to", env.To).
				Str("type", env.Type).
				Msg("signaling destination not connected, dropped")
			return destination{}, false
		}
		if target.Channel != conn.Channel {
			// Global addressing can cross channels. Kept as observed, but
			// loud: this reaches outside the sender's trust boundary.
			h.logger.Warn().
				Str("from", conn.UserID).
				Str("fromChannel", conn.Channel).
				Str("to", env.To).
				Str("toChannel", target.Channel).
				Msg("cross-channel signaling delivery")
		}
		return destination{target: target}, true
	}

	channelID := env.ChannelID
	if channelID == "" {
		channelID = conn.Channel
	}
	if channelID == "" {
		return destination{}, false
	}

	if env.TargetUserID != "" {
		connID, ok := h.directory.FindMember(channelID, env.TargetUserID)
		if !ok {
			h.logger.Debug().
				Str("connID", conn.ID).
				Str("targetUserID", env.TargetUserID).
				Str("channelID", channelID).
				Str("type", env.Type).
				Msg("target not in channel, dropped")
			return destination{}, false
		}
		target, ok := h.registry.Lookup(connID)
		if !ok {
			return destination{}, false
		}
		return destination{target: target, channelID: channelID}, true
	}

	return destination{broadcast: true, channelID: channelID}, true
}

// handleSignal relays an offer, answer, or ICE candidate unchanged to its
// resolved destination. Payloads are never inspected; resolution failure
// never errors back to the sender.
func (h *Hub) handleSignal(conn *types.Connection, env types.Envelope) {
	userID, ok := h.identity(conn)
	if !ok {
		return
	}
	dest, ok := h.resolve(conn, env)
	if !ok {
		return
	}

	// Same event name the sender used, so both ice-candidate spellings
	// round-trip untouched.
	out := types.Envelope{
		Type:      env.Type,
		ChannelID: dest.channelID,
		UserID:    userID,
		Offer:     env.Offer,
		Answer:    env.Answer,
		Candidate: env.Candidate,
	}
	if dest.broadcast {
		h.broadcastToChannel(dest.channelID, conn.ID, out)
		return
	}
	h.send(dest.target, out)
}

// handleConnectionRequest notifies a channel member that a peer wants to
// negotiate a direct connection with it.
func (h *Hub) handleConnectionRequest(conn *types.Connection, env types.Envelope) {
	userID, ok := h.identity(conn)
	if !ok {
		return
	}
	if env.TargetUserID == "" {
		h.sendError(conn, types.CodeInvalidEvent, "request-webrtc-connection requires targetUserId")
		return
	}
	dest, ok := h.resolve(conn, env)
	if !ok || dest.target == nil {
		return
	}
	h.send(dest.target, types.Envelope{
		Type:      types.EventWebRTCRequest,
		ChannelID: dest.channelID,
		UserID:    userID,
		Timestamp: types.Now(),
	})
}

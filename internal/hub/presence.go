package hub

import (
	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

// eventDisconnect is the transport-driven pseudo event queued when a
// websocket closes. It never arrives from a client.
const eventDisconnect = "disconnect"

// handleJoin runs the join protocol: directory + registry mutation, then the
// membership snapshot to the joiner, then the user-joined fan-out. The
// snapshot always precedes any later user-joined the joiner might observe
// because both happen inside this single dispatched event.
func (h *Hub) handleJoin(conn *types.Connection, env types.Envelope) {
	if env.ChannelID == "" || env.UserID == "" {
		h.sendError(conn, types.CodeInvalidEvent, "join-channel requires channelId and userId")
		return
	}

	// A connection is in at most one channel; joining a new one leaves the
	// old one first.
	if conn.Channel != "" && conn.Channel != env.ChannelID {
		h.leaveChannel(conn, conn.Channel, conn.UserID)
	}

	h.directory.GetOrCreate(env.ChannelID)
	joined := h.directory.AddMember(env.ChannelID, conn.ID, env.UserID)
	if err := h.registry.SetIdentity(conn.ID, env.UserID); err != nil {
		h.logger.Error().Err(err).Str("connID", conn.ID).Msg("identity update failed")
		return
	}
	h.registry.SetChannel(conn.ID, env.ChannelID)

	h.send(conn, types.Envelope{
		Type:      types.EventChannelUsers,
		ChannelID: env.ChannelID,
		Users:     h.directory.ListMembersExcept(env.ChannelID, conn.ID),
	})
	// A repeated join of the same channel resends the snapshot but must not
	// announce the member a second time.
	if joined {
		h.broadcastToChannel(env.ChannelID, conn.ID, types.Envelope{
			Type:      types.EventUserJoined,
			ChannelID: env.ChannelID,
			UserID:    env.UserID,
			Timestamp: types.Now(),
		})
	}

	h.logger.Info().
		Str("connID", conn.ID).
		Str("userID", env.UserID).
		Str("channelID", env.ChannelID).
		Msg("user joined channel")
}

// handleLeave is the explicit leave. Leaving an unknown channel, or one the
// connection never joined, is a no-op.
func (h *Hub) handleLeave(conn *types.Connection, env types.Envelope) {
	channelID := env.ChannelID
	if channelID == "" {
		channelID = conn.Channel
	}
	if channelID == "" {
		return
	}
	userID := conn.UserID
	if userID == "" {
		userID = env.UserID
	}
	if h.leaveChannel(conn, channelID, userID) {
		h.registry.ClearChannel(conn.ID)
	}
}

// handleDisconnect is the implicit leave plus registry removal.
func (h *Hub) handleDisconnect(conn *types.Connection) {
	if conn.Channel != "" {
		h.leaveChannel(conn, conn.Channel, conn.UserID)
	}
	h.registry.Remove(conn.ID)
	h.logger.Info().Str("connID", conn.ID).Str("userID", conn.UserID).Msg("connection removed")
}

// leaveChannel removes the membership and notifies the remaining members.
// The directory deletes the channel itself when the last member leaves.
// Reports whether a membership was actually removed.
func (h *Hub) leaveChannel(conn *types.Connection, channelID, userID string) bool {
	remaining, removed := h.directory.RemoveMember(channelID, conn.ID)
	if !removed {
		return false
	}
	if remaining > 0 {
		h.broadcastToChannel(channelID, conn.ID, types.Envelope{
			Type:      types.EventUserLeft,
			ChannelID: channelID,
			UserID:    userID,
			Timestamp: types.Now(),
		})
	}
	h.logger.Info().
		Str("connID", conn.ID).
		Str("userID", userID).
		Str("channelID", channelID).
		Int("remaining", remaining).
		Msg("user left channel")
	return true
}

func (h *Hub) handleGetChannelUsers(conn *types.Connection, env types.Envelope) {
	if env.ChannelID == "" {
		h.sendError(conn, types.CodeInvalidEvent, "get-channel-users requires channelId")
		return
	}
	h.send(conn, types.Envelope{
		Type:      types.EventChannelUsers,
		ChannelID: env.ChannelID,
		Users:     h.directory.ListMembers(env.ChannelID),
	})
}

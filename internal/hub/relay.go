package hub

import (
	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

// outboundFor maps inbound media/transmission event names to their broadcast
// names. Transmission and chunk events keep their name on the way out.
func outboundFor(inType string) string {
	switch inType {
	case types.EventAudioData:
		return types.EventAudioReceived
	case types.EventAudioURL:
		return types.EventAudioMessage
	default:
		return inType
	}
}

// handleRelay is the pure fan-out path for transmission state and audio
// payloads: channel minus sender, fire-and-forget, no destination
// resolution. Chunks pass through verbatim, sequence included.
func (h *Hub) handleRelay(conn *types.Connection, env types.Envelope) {
	userID, ok := h.identity(conn)
	if !ok {
		return
	}
	channelID := env.ChannelID
	if channelID == "" {
		channelID = conn.Channel
	}
	if channelID == "" {
		h.sendError(conn, types.CodeInvalidEvent, env.Type+" requires channelId")
		return
	}

	out := types.Envelope{
		Type:      outboundFor(env.Type),
		ChannelID: channelID,
		UserID:    userID,
		Timestamp: env.Timestamp,
		Sequence:  env.Sequence,
		Chunk:     env.Chunk,
		AudioData: env.AudioData,
		AudioURL:  env.AudioURL,
	}
	if out.Timestamp == 0 {
		out.Timestamp = types.Now()
	}

	h.broadcastToChannel(channelID, conn.ID, out)
	h.directory.IncrementMessageCount(channelID)
}

// AnnounceAudio bridges an externally uploaded clip into the channel as an
// audio-message broadcast, excluding the uploader's own connection when it
// has one. Used by the HTTP upload handler.
func (h *Hub) AnnounceAudio(channelID, userID, audioURL string) int {
	exceptConnID := ""
	if uploader, ok := h.registry.LookupByUserID(userID); ok {
		exceptConnID = uploader.ID
	}
	delivered := h.broadcastToChannel(channelID, exceptConnID, types.Envelope{
		Type:      types.EventAudioMessage,
		ChannelID: channelID,
		UserID:    userID,
		AudioURL:  audioURL,
		Timestamp: types.Now(),
	})
	if delivered > 0 {
		h.directory.IncrementMessageCount(channelID)
	}
	return delivered
}

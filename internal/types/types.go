package types

import (
	"encoding/json"
	"time"

	"github.com/coder/websocket"
)

// Envelope is the single wire shape used in both directions. Every event is
// a flat JSON object with a type tag; unused fields are omitted. Negotiation
// payloads (offer, answer, candidate) and audio chunks are opaque to the
// server and carried as raw JSON.
type Envelope struct {
	Type         string          `json:"type"`
	ConnectionID string          `json:"connectionId,omitempty"`
	ChannelID    string          `json:"channelId,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	To           string          `json:"to,omitempty"`
	Timestamp    int64           `json:"timestamp,omitempty"`
	Sequence     json.RawMessage `json:"sequence,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	Chunk        json.RawMessage `json:"chunk,omitempty"`
	AudioData    string          `json:"audioData,omitempty"`
	AudioURL     string          `json:"audioUrl,omitempty"`
	Users        []string        `json:"users,omitempty"`
	Code         string          `json:"code,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// Inbound event types.
const (
	EventJoinChannel       = "join-channel"
	EventLeaveChannel      = "leave-channel"
	EventAudioData         = "audio-data"
	EventAudioURL          = "audio-url"
	EventAudioChunk        = "audio-chunk"
	EventTransmissionStart = "transmission-start"
	EventTransmissionEnd   = "transmission-end"
	EventWebRTCOffer       = "webrtc-offer"
	EventWebRTCAnswer      = "webrtc-answer"
	EventWebRTCICE         = "webrtc-ice-candidate"
	EventICECandidate      = "ice-candidate"
	EventRequestWebRTC     = "request-webrtc-connection"
	EventGetChannelUsers   = "get-channel-users"
	EventPing              = "ping"
)

// Outbound event types.
const (
	EventConnected      = "connected"
	EventChannelUsers   = "channel-users"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventAudioReceived  = "audio-received"
	EventAudioMessage   = "audio-message"
	EventPong           = "pong"
	EventWebRTCRequest  = "webrtc-connection-request"
	EventServerShutdown = "server-shutdown"
	EventError          = "error"
)

// Error codes carried on error envelopes.
const (
	CodeInvalidEvent   = "invalid-event"
	CodeIdentityNotSet = "identity-not-set"
	CodeUnknownEvent   = "unknown-event"
)

// Client is the transport handle for one live websocket. The hub only ever
// touches Send; the read/write pumps in cmd/server own Conn.
type Client struct {
	Conn *websocket.Conn
	ID   string
	Send chan []byte
}

// Connection is the session record owned by the registry. UserID is empty
// until the first join; Channel is empty while the connection is not joined
// anywhere.
type Connection struct {
	ID          string
	UserID      string
	Channel     string
	ConnectedAt time.Time
	Client      *Client
}

// Member is one channel membership entry.
type Member struct {
	UserID   string
	JoinedAt time.Time
}

// Channel exists only while it has at least one member. MessageCount is an
// approximate counter of relayed media/transmission events, never persisted.
type Channel struct {
	ID           string
	Members      map[string]*Member
	CreatedAt    time.Time
	MessageCount int64
}

// ServerStats is the read-only aggregate reported by the stats sweep and the
// HTTP health endpoints.
type ServerStats struct {
	Connections   int   `json:"connections"`
	Channels      int   `json:"channels"`
	TotalMessages int64 `json:"totalMessages"`
}

// Now returns the server timestamp in unix milliseconds, the unit used on
// every stamped envelope.
func Now() int64 {
	return time.Now().UnixMilli()
}

package hub_test

import (
	"encoding/json"
	"testing"

	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

func TestRelay_TransmissionStampsServerTimestamp(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "c-a")
	b := connect(t, h, "c-b")
	join(t, h, a, "room1", "userA")
	join(t, h, b, "room1", "userB")
	_ = next(t, a)

	h.Handle(b.ID, types.Envelope{Type: types.EventTransmissionStart, ChannelID: "room1"})

	got := next(t, a)
	if got.Type != types.EventTransmissionStart || got.UserID != "userB" {
		t.Fatalf("expected transmission-start from userB, got %+v", got)
	}
	if got.Timestamp == 0 {
		t.Fatalf("server must stamp a timestamp when the client omitted it")
	}
	expectNone(t, b)
}

func TestRelay_ClientTimestampPreserved(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "c-a")
	b := connect(t, h, "c-b")
	join(t, h, a, "room1", "userA")
	join(t, h, b, "room1", "userB")
	_ = next(t, a)

	h.Handle(b.ID, types.Envelope{
		Type:      types.EventTransmissionEnd,
		ChannelID: "room1",
		Timestamp: 1234567890,
	})

	got := next(t, a)
	if got.Timestamp != 1234567890 {
		t.Fatalf("client timestamp must be preserved, got %d", got.Timestamp)
	}
}

func TestRelay_AudioDataBecomesAudioReceived(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "c-a")
	b := connect(t, h, "c-b")
	join(t, h, a, "room1", "userA")
	join(t, h, b, "room1", "userB")
	_ = next(t, a)

	h.Handle(a.ID, types.Envelope{
		Type:      types.EventAudioData,
		ChannelID: "room1",
		AudioData: "b64-opus-payload",
	})

	got := next(t, b)
	if got.Type != types.EventAudioReceived || got.AudioData != "b64-opus-payload" {
		t.Fatalf("expected audio-received with payload, got %+v", got)
	}
	ch, _ := h.Directory().Get("room1")
	if ch.MessageCount != 1 {
		t.Fatalf("expected messageCount 1, got %d", ch.MessageCount)
	}
}

func TestRelay_ChunkSequencePassthrough(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "c-a")
	b := connect(t, h, "c-b")
	join(t, h, a, "room1", "userA")
	join(t, h, b, "room1", "userB")
	_ = next(t, a)

	h.Handle(a.ID, types.Envelope{
		Type:      types.EventAudioChunk,
		ChannelID: "room1",
		Chunk:     json.RawMessage(`"chunkdata"`),
		Sequence:  json.RawMessage(`0`),
	})

	got := next(t, b)
	if got.Type != types.EventAudioChunk {
		t.Fatalf("expected audio-chunk, got %+v", got)
	}
	if string(got.Sequence) != "0" || string(got.Chunk) != `"chunkdata"` {
		t.Fatalf("sequence and chunk must pass through verbatim, got %s %s", got.Sequence, got.Chunk)
	}
	if got.UserID != "userA" {
		t.Fatalf("sender identity must be attached server-side, got %q", got.UserID)
	}
}

func TestRelay_AudioURLBecomesAudioMessage(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "c-a")
	b := connect(t, h, "c-b")
	join(t, h, a, "room1", "userA")
	join(t, h, b, "room1", "userB")
	_ = next(t, a)

	h.Handle(a.ID, types.Envelope{
		Type:      types.EventAudioURL,
		ChannelID: "room1",
		AudioURL:  "/media/clip.ogg",
	})

	got := next(t, b)
	if got.Type != types.EventAudioMessage || got.AudioURL != "/media/clip.ogg" {
		t.Fatalf("expected audio-message broadcast, got %+v", got)
	}
}

func TestRelay_RequiresIdentity(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "c-a")

	h.Handle(a.ID, types.Envelope{Type: types.EventTransmissionStart, ChannelID: "room1"})
	reply := next(t, a)
	if reply.Type != types.EventError || reply.Code != types.CodeIdentityNotSet {
		t.Fatalf("expected identity-not-set, got %+v", reply)
	}
}

func TestAnnounceAudio_ExcludesUploader(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "c-a")
	b := connect(t, h, "c-b")
	join(t, h, a, "room1", "userA")
	join(t, h, b, "room1", "userB")
	_ = next(t, a)

	delivered := h.AnnounceAudio("room1", "userA", "/media/clip.webm")
	if delivered != 1 {
		t.Fatalf("expected delivery to 1 member, got %d", delivered)
	}

	got := next(t, b)
	if got.Type != types.EventAudioMessage || got.AudioURL != "/media/clip.webm" || got.UserID != "userA" {
		t.Fatalf("expected audio-message announcement, got %+v", got)
	}
	expectNone(t, a)
}

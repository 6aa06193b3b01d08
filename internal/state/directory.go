package state

import (
	"sort"
	"sync"
	"time"

	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

// Directory owns the channel records. Channels are created lazily on first
// join and deleted synchronously when the last member leaves; the janitor
// sweep only backstops that path.
type Directory struct {
	mu       sync.RWMutex
	channels map[string]*types.Channel
}

func NewDirectory() *Directory {
	return &Directory{
		channels: make(map[string]*types.Channel),
	}
}

func (d *Directory) GetOrCreate(channelID string) *types.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getOrCreate(channelID)
}

func (d *Directory) getOrCreate(channelID string) *types.Channel {
	if ch, ok := d.channels[channelID]; ok {
		return ch
	}
	ch := &types.Channel{
		ID:        channelID,
		Members:   make(map[string]*types.Member),
		CreatedAt: time.Now(),
	}
	d.channels[channelID] = ch
	return ch
}

func (d *Directory) Get(channelID string) (*types.Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[channelID]
	return ch, ok
}

// AddMember inserts a membership record and reports whether it was new.
// Re-adding an existing member is a no-op so joins stay idempotent.
func (d *Directory) AddMember(channelID, connID, userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := d.getOrCreate(channelID)
	if _, ok := ch.Members[connID]; ok {
		return false
	}
	ch.Members[connID] = &types.Member{
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	return true
}

// RemoveMember deletes the membership entry and returns the remaining member
// count. An emptied channel is deleted here, immediately. Unknown channel or
// non-member is a no-op.
func (d *Directory) RemoveMember(channelID, connID string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.channels[channelID]
	if !ok {
		return 0, false
	}
	if _, ok := ch.Members[connID]; !ok {
		return len(ch.Members), false
	}
	delete(ch.Members, connID)
	remaining := len(ch.Members)
	if remaining == 0 {
		delete(d.channels, channelID)
	}
	return remaining, true
}

// ListMembers returns the userIds of a channel sorted for consistent
// enumeration. Unknown channel yields an empty list, not an error.
func (d *Directory) ListMembers(channelID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ch, ok := d.channels[channelID]
	if !ok {
		return []string{}
	}
	users := make([]string, 0, len(ch.Members))
	for _, m := range ch.Members {
		users = append(users, m.UserID)
	}
	sort.Strings(users)
	return users
}

// ListMembersExcept is ListMembers minus one connection, used for the
// pre-join style snapshot delivered to a joiner.
func (d *Directory) ListMembersExcept(channelID, exceptConnID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ch, ok := d.channels[channelID]
	if !ok {
		return []string{}
	}
	users := make([]string, 0, len(ch.Members))
	for connID, m := range ch.Members {
		if connID == exceptConnID {
			continue
		}
		users = append(users, m.UserID)
	}
	sort.Strings(users)
	return users
}

// MemberConnIDs returns the connection ids of a channel's members, sorted.
func (d *Directory) MemberConnIDs(channelID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ch, ok := d.channels[channelID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(ch.Members))
	for connID := range ch.Members {
		ids = append(ids, connID)
	}
	sort.Strings(ids)
	return ids
}

// FindMember resolves a userId to a member connection within one channel.
// When duplicates exist the lexically first connection wins; resolution
// among shared identities is unspecified.
func (d *Directory) FindMember(channelID, userID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ch, ok := d.channels[channelID]
	if !ok {
		return "", false
	}
	var found []string
	for connID, m := range ch.Members {
		if m.UserID == userID {
			found = append(found, connID)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	sort.Strings(found)
	return found[0], true
}

// MemberSnapshot is one entry of the read-only membership view exposed to
// the HTTP layer.
type MemberSnapshot struct {
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ChannelSnapshot is the read-only channel view exposed to the HTTP layer.
type ChannelSnapshot struct {
	ID        string           `json:"id"`
	UserCount int              `json:"userCount"`
	Users     []MemberSnapshot `json:"users"`
}

// Snapshot returns all channels with their members, sorted by channel id and
// join time.
func (d *Directory) Snapshot() []ChannelSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]ChannelSnapshot, 0, len(d.channels))
	for _, ch := range d.channels {
		cs := ChannelSnapshot{
			ID:        ch.ID,
			UserCount: len(ch.Members),
			Users:     make([]MemberSnapshot, 0, len(ch.Members)),
		}
		for _, m := range ch.Members {
			cs.Users = append(cs.Users, MemberSnapshot{UserID: m.UserID, JoinedAt: m.JoinedAt})
		}
		sort.Slice(cs.Users, func(i, j int) bool {
			if cs.Users[i].JoinedAt.Equal(cs.Users[j].JoinedAt) {
				return cs.Users[i].UserID < cs.Users[j].UserID
			}
			return cs.Users[i].JoinedAt.Before(cs.Users[j].JoinedAt)
		})
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Directory) IncrementMessageCount(channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.channels[channelID]; ok {
		ch.MessageCount++
	}
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.channels)
}

// TotalMessages sums the per-channel relay counters. Approximate: counters
// die with their channels.
func (d *Directory) TotalMessages() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var total int64
	for _, ch := range d.channels {
		total += ch.MessageCount
	}
	return total
}

// SweepEmpty deletes channels with no members and reports how many it
// cleaned. RemoveMember already deletes empty channels, so this closes races
// left by partially applied handlers and must be safe to run redundantly.
func (d *Directory) SweepEmpty() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cleaned := 0
	for id, ch := range d.channels {
		if len(ch.Members) == 0 {
			delete(d.channels, id)
			cleaned++
		}
	}
	return cleaned
}

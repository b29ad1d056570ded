// Package cache holds the client's in-memory view of the server: users,
// guilds, channels, members, roles, relationships, presences, unread
// state and per-channel message groupers. It is rebuilt wholesale from
// each ready snapshot and mutated incrementally by dispatched events.
//
// The cache is owned by a single session. All entity mutation happens on
// the session's dispatch goroutine; readers outside that goroutine must
// go through the session's listener mechanism. Message groupers and
// typing trackers lock internally because fetches and expiry timers run
// on other goroutines.
package cache

import (
	"slices"

	"github.com/accordlabs/accord-go/pkg/snowflake"
	"github.com/accordlabs/accord-go/pkg/wire"
)

// MemberKey maps a (guild, user) pair to a single map key using the
// Cantor pairing function.
func MemberKey(guildID, userID uint64) uint64 {
	s := guildID + userID
	return s*(s+1)/2 + guildID
}

// Cache is the normalized entity store.
type Cache struct {
	fetcher MessageFetcher

	clientUser wire.ClientUser
	hydrated   bool

	users         map[uint64]wire.User
	guilds        map[uint64]*wire.Guild
	guildList     []uint64
	members       map[uint64]*wire.Member
	memberIDs     map[uint64][]uint64
	roles         map[uint64]*wire.Role
	channels      map[uint64]*wire.Channel
	guildChannels map[uint64][]uint64
	dmOrder       []uint64
	messages      map[uint64]*MessageGrouper
	typing        map[uint64]*TypingTracker
	presences     map[uint64]wire.Presence
	relationships map[uint64]wire.RelationshipType
	lastMessages  map[uint64]uint64
	lastAcked     map[uint64]uint64
	guildMentions map[uint64]map[uint64][]uint64
	dmMentions    map[uint64][]uint64
}

// New returns an empty cache. fetcher backs older-message pagination and
// may be nil.
func New(fetcher MessageFetcher) *Cache {
	c := &Cache{fetcher: fetcher}
	c.reset()
	return c
}

func (c *Cache) reset() {
	for _, t := range c.typing {
		t.Close()
	}
	c.clientUser = wire.ClientUser{}
	c.hydrated = false
	c.users = make(map[uint64]wire.User)
	c.guilds = make(map[uint64]*wire.Guild)
	c.guildList = nil
	c.members = make(map[uint64]*wire.Member)
	c.memberIDs = make(map[uint64][]uint64)
	c.roles = make(map[uint64]*wire.Role)
	c.channels = make(map[uint64]*wire.Channel)
	c.guildChannels = make(map[uint64][]uint64)
	c.dmOrder = nil
	c.messages = make(map[uint64]*MessageGrouper)
	c.typing = make(map[uint64]*TypingTracker)
	c.presences = make(map[uint64]wire.Presence)
	c.relationships = make(map[uint64]wire.RelationshipType)
	c.lastMessages = make(map[uint64]uint64)
	c.lastAcked = make(map[uint64]uint64)
	c.guildMentions = make(map[uint64]map[uint64][]uint64)
	c.dmMentions = make(map[uint64][]uint64)
}

// HydrateFromReady rebuilds the cache from a full snapshot, replacing
// all previous state.
func (c *Cache) HydrateFromReady(ready *wire.ReadyEvent) {
	c.reset()
	c.hydrated = true
	c.clientUser = ready.User
	c.UpdateUser(ready.User.User)

	for _, rel := range ready.Relationships {
		c.UpdateRelationship(rel)
	}
	for i := range ready.Guilds {
		c.UpdateGuild(&ready.Guilds[i])
	}
	for _, p := range ready.Presences {
		c.UpdatePresence(p)
	}
	for i := range ready.DMChannels {
		c.UpdateChannel(&ready.DMChannels[i])
	}

	// DM channels surface most recently active first.
	order := make([]uint64, 0, len(ready.DMChannels))
	for _, ch := range ready.DMChannels {
		order = append(order, ch.ID)
	}
	slices.SortStableFunc(order, func(a, b uint64) int {
		la, lb := c.lastMessages[a], c.lastMessages[b]
		switch {
		case lb > la:
			return 1
		case lb < la:
			return -1
		}
		return 0
	})
	c.dmOrder = order

	for _, un := range ready.Unacked {
		c.lastAcked[un.ChannelID] = un.LastMessageID
		ch, ok := c.channels[un.ChannelID]
		if !ok {
			continue
		}
		if ch.DM() {
			c.dmMentions[un.ChannelID] = slices.Clone(un.Mentions)
			continue
		}
		byChannel, ok := c.guildMentions[ch.GuildID]
		if !ok {
			byChannel = make(map[uint64][]uint64)
			c.guildMentions[ch.GuildID] = byChannel
		}
		byChannel[un.ChannelID] = slices.Clone(un.Mentions)
	}
}

// Hydrated reports whether a ready snapshot has been applied since the
// last reset.
func (c *Cache) Hydrated() bool { return c.hydrated }

// ClientUser returns the logged-in user's account.
func (c *Cache) ClientUser() wire.ClientUser { return c.clientUser }

// ClientID returns the logged-in user's ID, zero before hydration.
func (c *Cache) ClientID() uint64 { return c.clientUser.ID }

// UpdateClientUser folds an updated identity into the client user.
func (c *Cache) UpdateClientUser(u wire.User) {
	if u.ID != c.clientUser.ID {
		return
	}
	c.clientUser.User = u
	c.UpdateUser(u)
}

// UpdateUser stores a user identity. Partial payloads without a
// username are ignored.
func (c *Cache) UpdateUser(u wire.User) {
	if u.Username == "" {
		return
	}
	c.users[u.ID] = u
}

// User returns a cached user.
func (c *Cache) User(id uint64) (wire.User, bool) {
	u, ok := c.users[id]
	return u, ok
}

// UpdateGuild stores a guild and folds in whatever sub-entities the
// payload resolved.
func (c *Cache) UpdateGuild(g *wire.Guild) {
	stored := *g
	c.guilds[g.ID] = &stored

	if g.Members != nil {
		ids := make([]uint64, 0, len(g.Members))
		for i := range g.Members {
			m := &g.Members[i]
			ids = append(ids, m.ID)
			c.UpdateMember(m)
			if u, ok := m.ResolvedUser(); ok {
				c.UpdateUser(u)
			}
		}
		slices.Sort(ids)
		c.memberIDs[g.ID] = ids
	}

	if g.Channels != nil {
		chIDs := make([]uint64, 0, len(g.Channels))
		for i := range g.Channels {
			c.UpdateChannel(&g.Channels[i])
			chIDs = append(chIDs, g.Channels[i].ID)
		}
		c.guildChannels[g.ID] = chIDs
	}

	for i := range g.Roles {
		role := g.Roles[i]
		c.roles[role.ID] = &role
	}

	if i, ok := slices.BinarySearch(c.guildList, g.ID); !ok {
		c.guildList = slices.Insert(c.guildList, i, g.ID)
	}
}

// Guild returns a cached guild.
func (c *Cache) Guild(id uint64) (*wire.Guild, bool) {
	g, ok := c.guilds[id]
	return g, ok
}

// GuildList returns guild IDs ordered by creation date.
func (c *Cache) GuildList() []uint64 { return slices.Clone(c.guildList) }

// RemoveGuild deletes a guild and every dependent entry: its channels
// and their message state, its memberships, its roles and its mention
// counters.
func (c *Cache) RemoveGuild(guildID uint64) {
	for _, chID := range c.guildChannels[guildID] {
		c.dropChannelState(chID)
		delete(c.channels, chID)
	}
	delete(c.guildChannels, guildID)

	for _, userID := range c.memberIDs[guildID] {
		delete(c.members, MemberKey(guildID, userID))
	}
	delete(c.memberIDs, guildID)

	if g, ok := c.guilds[guildID]; ok {
		for i := range g.Roles {
			delete(c.roles, g.Roles[i].ID)
		}
	}

	delete(c.guildMentions, guildID)
	delete(c.guilds, guildID)
	if i, ok := slices.BinarySearch(c.guildList, guildID); ok {
		c.guildList = slices.Delete(c.guildList, i, i+1)
	}
}

// UpdateMember merges a member payload into the cached record,
// preserving existing fields the payload left empty.
func (c *Cache) UpdateMember(m *wire.Member) {
	key := MemberKey(m.GuildID, m.ID)
	base, ok := c.members[key]
	if !ok {
		stored := *m
		c.members[key] = &stored
		return
	}
	if m.Nick != "" {
		base.Nick = m.Nick
	}
	if m.RoleIDs != nil {
		base.RoleIDs = m.RoleIDs
	}
	if m.JoinedAt != "" {
		base.JoinedAt = m.JoinedAt
	}
	if m.Permissions != 0 {
		base.Permissions = m.Permissions
	}
	if m.Username != "" {
		base.Username = m.Username
		base.DisplayName = m.DisplayName
		base.Avatar = m.Avatar
		base.Flags = m.Flags
	}
}

// Member returns a cached membership record.
func (c *Cache) Member(guildID, userID uint64) (*wire.Member, bool) {
	m, ok := c.members[MemberKey(guildID, userID)]
	return m, ok
}

// MemberIDs returns the sorted user IDs known to be members of a guild.
func (c *Cache) MemberIDs(guildID uint64) []uint64 {
	return slices.Clone(c.memberIDs[guildID])
}

// TrackMember records userID as a member of guildID.
func (c *Cache) TrackMember(guildID, userID uint64) {
	ids := c.memberIDs[guildID]
	if i, ok := slices.BinarySearch(ids, userID); !ok {
		c.memberIDs[guildID] = slices.Insert(ids, i, userID)
	}
}

// UntrackMember removes userID from guildID's member list and drops the
// membership record.
func (c *Cache) UntrackMember(guildID, userID uint64) {
	ids := c.memberIDs[guildID]
	if i, ok := slices.BinarySearch(ids, userID); ok {
		c.memberIDs[guildID] = slices.Delete(ids, i, i+1)
	}
	delete(c.members, MemberKey(guildID, userID))
}

// UpdateRole stores a role and keeps the guild's role list positioned
// consistently: an inserted role shifts the positions of every role at
// or above its own.
func (c *Cache) UpdateRole(r wire.Role) {
	stored := r
	c.roles[r.ID] = &stored

	g, ok := c.guilds[r.GuildID]
	if !ok || g.Roles == nil {
		return
	}

	if i := slices.IndexFunc(g.Roles, func(gr wire.Role) bool { return gr.ID == r.ID }); i >= 0 {
		g.Roles[i] = r
		return
	}
	at := r.Position
	if at < 0 {
		at = 0
	}
	if at > len(g.Roles) {
		at = len(g.Roles)
	}
	for i := at; i < len(g.Roles); i++ {
		g.Roles[i].Position++
		if gr, ok := c.roles[g.Roles[i].ID]; ok {
			gr.Position++
		}
	}
	g.Roles = slices.Insert(g.Roles, at, r)
}

// Role returns a cached role.
func (c *Cache) Role(id uint64) (*wire.Role, bool) {
	r, ok := c.roles[id]
	return r, ok
}

// DeleteRole removes a role and closes the position gap it leaves in
// its guild's role list.
func (c *Cache) DeleteRole(roleID uint64) {
	r, ok := c.roles[roleID]
	if !ok {
		return
	}
	if g, ok := c.guilds[r.GuildID]; ok && g.Roles != nil {
		if i := slices.IndexFunc(g.Roles, func(gr wire.Role) bool { return gr.ID == roleID }); i >= 0 {
			g.Roles = slices.Delete(g.Roles, i, i+1)
			for j := i; j < len(g.Roles); j++ {
				g.Roles[j].Position--
				if gr, ok := c.roles[g.Roles[j].ID]; ok {
					gr.Position--
				}
			}
		}
	}
	delete(c.roles, roleID)
}

// ApplyRolePositions renumbers a guild's roles to match a new ordering,
// lowest precedence first, and re-sorts the guild's cached role list.
// The default role keeps position zero and always sorts first.
func (c *Cache) ApplyRolePositions(guildID uint64, roleIDs []uint64) {
	g, ok := c.guilds[guildID]
	if !ok {
		return
	}
	for i, id := range roleIDs {
		if r, ok := c.roles[id]; ok {
			r.Position = i + 1
		}
		if j := slices.IndexFunc(g.Roles, func(gr wire.Role) bool { return gr.ID == id }); j >= 0 {
			g.Roles[j].Position = i + 1
		}
	}
	slices.SortStableFunc(g.Roles, func(a, b wire.Role) int {
		return a.Position - b.Position
	})
}

// UpdateChannel stores a channel, indexes it under its guild when it
// has one, and records its last message.
func (c *Cache) UpdateChannel(ch *wire.Channel) {
	stored := *ch
	c.channels[ch.ID] = &stored

	if !ch.DM() {
		ids := c.guildChannels[ch.GuildID]
		if !slices.Contains(ids, ch.ID) {
			c.guildChannels[ch.GuildID] = append(ids, ch.ID)
		}
	}
	if ch.LastMessage != nil {
		c.SetLastMessage(ch.ID, ch.LastMessage.ID)
	}
}

// Channel returns a cached channel.
func (c *Cache) Channel(id uint64) (*wire.Channel, bool) {
	ch, ok := c.channels[id]
	return ch, ok
}

// GuildChannels returns a guild's channel IDs in payload order.
func (c *Cache) GuildChannels(guildID uint64) []uint64 {
	return slices.Clone(c.guildChannels[guildID])
}

// RemoveChannel deletes a channel and all per-channel state hanging off
// it.
func (c *Cache) RemoveChannel(channelID uint64) {
	if ch, ok := c.channels[channelID]; ok && !ch.DM() {
		ids := c.guildChannels[ch.GuildID]
		if i := slices.Index(ids, channelID); i >= 0 {
			c.guildChannels[ch.GuildID] = slices.Delete(ids, i, i+1)
		}
		if byChannel, ok := c.guildMentions[ch.GuildID]; ok {
			delete(byChannel, channelID)
		}
	}
	c.dropChannelState(channelID)
	delete(c.channels, channelID)
	c.RemoveDMChannel(channelID)
}

func (c *Cache) dropChannelState(channelID uint64) {
	if t, ok := c.typing[channelID]; ok {
		t.Close()
		delete(c.typing, channelID)
	}
	delete(c.messages, channelID)
	delete(c.lastMessages, channelID)
	delete(c.lastAcked, channelID)
	delete(c.dmMentions, channelID)
}

// DMOrder returns DM channel IDs, most recently active first.
func (c *Cache) DMOrder() []uint64 { return slices.Clone(c.dmOrder) }

// TouchDMChannel moves a DM channel to the front of the DM order,
// inserting it if absent.
func (c *Cache) TouchDMChannel(channelID uint64) {
	if i := slices.Index(c.dmOrder, channelID); i >= 0 {
		c.dmOrder = slices.Delete(c.dmOrder, i, i+1)
	}
	c.dmOrder = slices.Insert(c.dmOrder, 0, channelID)
}

// RemoveDMChannel drops a channel from the DM order.
func (c *Cache) RemoveDMChannel(channelID uint64) {
	if i := slices.Index(c.dmOrder, channelID); i >= 0 {
		c.dmOrder = slices.Delete(c.dmOrder, i, i+1)
	}
}

// UpdateRelationship stores a relationship and the user it resolves.
func (c *Cache) UpdateRelationship(rel wire.Relationship) {
	c.UpdateUser(rel.User)
	c.relationships[rel.User.ID] = rel.Type
}

// Relationship returns the client's relationship with a user.
func (c *Cache) Relationship(userID uint64) (wire.RelationshipType, bool) {
	t, ok := c.relationships[userID]
	return t, ok
}

// RemoveRelationship drops the relationship with a user.
func (c *Cache) RemoveRelationship(userID uint64) {
	delete(c.relationships, userID)
}

// UpdatePresence stores a user's presence.
func (c *Cache) UpdatePresence(p wire.Presence) {
	c.presences[p.UserID] = p
}

// Presence returns a user's observed presence, defaulting to offline.
func (c *Cache) Presence(userID uint64) wire.Presence {
	if p, ok := c.presences[userID]; ok {
		return p
	}
	return wire.Presence{UserID: userID, Status: wire.StatusOffline}
}

// Messages returns the message grouper for a channel, creating it on
// first use. cached reports whether the grouper already existed.
func (c *Cache) Messages(channelID uint64) (grouper *MessageGrouper, cached bool) {
	grouper, cached = c.messages[channelID]
	if !cached {
		grouper = NewMessageGrouper(c.fetcher, channelID)
		c.messages[channelID] = grouper
	}
	return grouper, cached
}

// CachedMessages returns the grouper for a channel only if one exists.
func (c *Cache) CachedMessages(channelID uint64) (*MessageGrouper, bool) {
	g, ok := c.messages[channelID]
	return g, ok
}

// Typing returns the typing tracker for a channel, creating it on first
// use.
func (c *Cache) Typing(channelID uint64) *TypingTracker {
	t, ok := c.typing[channelID]
	if !ok {
		t = NewTypingTracker()
		c.typing[channelID] = t
	}
	return t
}

// SetTyping folds a typing signal into the channel's tracker. The
// client's own typing signals are ignored.
func (c *Cache) SetTyping(channelID, userID uint64, typing bool) {
	if userID == c.ClientID() {
		return
	}
	c.Typing(channelID).Set(userID, typing)
}

// SetLastMessage records the newest message seen in a channel.
func (c *Cache) SetLastMessage(channelID, messageID uint64) {
	if messageID > c.lastMessages[channelID] {
		c.lastMessages[channelID] = messageID
	}
}

// LastMessage returns the newest message ID seen in a channel.
func (c *Cache) LastMessage(channelID uint64) (uint64, bool) {
	id, ok := c.lastMessages[channelID]
	return id, ok
}

// Ack advances a channel's last-acknowledged message and clears mention
// markers at or before it. Acks are monotonic: one carrying an ID lower
// than the current mark is ignored. It reports whether the mark moved.
func (c *Cache) Ack(channelID, messageID uint64) bool {
	if messageID <= c.lastAcked[channelID] {
		return false
	}
	c.lastAcked[channelID] = messageID

	ch, ok := c.channels[channelID]
	if !ok {
		return true
	}
	keep := func(ids []uint64) []uint64 {
		out := ids[:0]
		for _, id := range ids {
			if id > messageID {
				out = append(out, id)
			}
		}
		return out
	}
	if ch.DM() {
		if ids, ok := c.dmMentions[channelID]; ok {
			c.dmMentions[channelID] = keep(ids)
		}
		return true
	}
	if byChannel, ok := c.guildMentions[ch.GuildID]; ok {
		if ids, ok := byChannel[channelID]; ok {
			byChannel[channelID] = keep(ids)
		}
	}
	return true
}

// LastAcked returns a channel's last-acknowledged message ID.
func (c *Cache) LastAcked(channelID uint64) (uint64, bool) {
	id, ok := c.lastAcked[channelID]
	return id, ok
}

// IsChannelUnread reports whether a channel holds messages newer than
// the last acknowledgment.
func (c *Cache) IsChannelUnread(channelID uint64) bool {
	last, ok := c.lastMessages[channelID]
	if !ok {
		return false
	}
	acked, ok := c.lastAcked[channelID]
	if !ok {
		return true
	}
	return last > acked
}

// IsMentioned reports whether a message mentions the client directly,
// via everyone, or via one of the client's roles in the channel's
// guild.
func (c *Cache) IsMentioned(msg *wire.Message) bool {
	if slices.Contains(msg.Mentions, c.ClientID()) {
		return true
	}
	ch, ok := c.channels[msg.ChannelID]
	if !ok || ch.DM() {
		return false
	}
	if slices.Contains(msg.Mentions, ch.GuildID) {
		return true
	}
	m, ok := c.members[MemberKey(ch.GuildID, c.ClientID())]
	if !ok {
		return false
	}
	for _, id := range msg.Mentions {
		if slices.Contains(m.RoleIDs, id) {
			return true
		}
	}
	return false
}

// RegisterMention records an unread mention for a channel.
func (c *Cache) RegisterMention(channelID, messageID uint64) {
	ch, ok := c.channels[channelID]
	if !ok {
		return
	}
	if ch.DM() {
		c.dmMentions[channelID] = append(c.dmMentions[channelID], messageID)
		return
	}
	byChannel, ok := c.guildMentions[ch.GuildID]
	if !ok {
		byChannel = make(map[uint64][]uint64)
		c.guildMentions[ch.GuildID] = byChannel
	}
	byChannel[channelID] = append(byChannel[channelID], messageID)
}

// GuildMentionCount returns the number of unread mentions in one guild
// channel.
func (c *Cache) GuildMentionCount(guildID, channelID uint64) int {
	return len(c.guildMentions[guildID][channelID])
}

// DMMentionCount returns the number of unread mentions in a DM channel.
func (c *Cache) DMMentionCount(channelID uint64) int {
	return len(c.dmMentions[channelID])
}

// DirectDMRecipient resolves the other party of a direct DM channel.
func (c *Cache) DirectDMRecipient(ch *wire.Channel) (wire.User, bool) {
	for _, id := range ch.RecipientIDs {
		if id != c.ClientID() {
			u, ok := c.users[id]
			return u, ok
		}
	}
	return wire.User{}, false
}

// DefaultRoleID returns the synthetic ID of a guild's everyone role.
func DefaultRoleID(guildID uint64) uint64 {
	return snowflake.WithModelType(guildID, snowflake.ModelRole)
}

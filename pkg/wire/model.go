package wire

// Status is a user's presence status.
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusDND     Status = "dnd"
	StatusOffline Status = "offline"
)

// RelationshipType describes how the client relates to another user.
type RelationshipType string

const (
	RelationFriend          RelationshipType = "friend"
	RelationBlocked         RelationshipType = "blocked"
	RelationIncomingRequest RelationshipType = "incoming_request"
	RelationOutgoingRequest RelationshipType = "outgoing_request"
)

// User is a global user identity.
type User struct {
	ID          uint64 `msgpack:"id" json:"id"`
	Username    string `msgpack:"username" json:"username"`
	DisplayName string `msgpack:"display_name" json:"display_name"`
	Avatar      string `msgpack:"avatar" json:"avatar"`
	Banner      string `msgpack:"banner" json:"banner"`
	Bio         string `msgpack:"bio" json:"bio"`
	Flags       uint32 `msgpack:"flags" json:"flags"`
}

// ClientUser is the logged-in user's own account, with private fields.
type ClientUser struct {
	User          `msgpack:",inline"`
	Email         string         `msgpack:"email" json:"email"`
	Relationships []Relationship `msgpack:"relationships" json:"relationships"`
}

// Relationship links the client to another user.
type Relationship struct {
	User User             `msgpack:"user" json:"user"`
	Type RelationshipType `msgpack:"type" json:"type"`
}

// Presence is the observed status of a user.
type Presence struct {
	UserID       uint64 `msgpack:"user_id" json:"user_id"`
	Status       Status `msgpack:"status" json:"status"`
	CustomStatus string `msgpack:"custom_status" json:"custom_status"`
	Devices      uint32 `msgpack:"devices" json:"devices"`
	OnlineSince  string `msgpack:"online_since" json:"online_since"`
}

// PermissionPair is an allow/deny permission bitset pair. Roles carry a
// flat allow set; the deny half is only meaningful on overwrites.
type PermissionPair struct {
	Allow uint64 `msgpack:"allow" json:"allow"`
	Deny  uint64 `msgpack:"deny" json:"deny"`
}

// Overwrite is a per-channel permission delta for one role or user,
// applied after role-derived base permissions.
type Overwrite struct {
	ID          uint64         `msgpack:"id" json:"id"`
	Permissions PermissionPair `msgpack:"permissions" json:"permissions"`
}

// Role is a guild role. Position defines override precedence: higher
// position wins, and the default (everyone) role is always position 0.
type Role struct {
	ID          uint64         `msgpack:"id" json:"id"`
	GuildID     uint64         `msgpack:"guild_id" json:"guild_id"`
	Name        string         `msgpack:"name" json:"name"`
	Color       *uint32        `msgpack:"color" json:"color"`
	Permissions PermissionPair `msgpack:"permissions" json:"permissions"`
	Position    int            `msgpack:"position" json:"position"`
	Flags       uint32         `msgpack:"flags" json:"flags"`
}

// ChannelType discriminates channel payloads.
type ChannelType string

const (
	ChannelText         ChannelType = "text"
	ChannelAnnouncement ChannelType = "announcement"
	ChannelVoice        ChannelType = "voice"
	ChannelCategory     ChannelType = "category"
	ChannelDM           ChannelType = "dm"
	ChannelGroup        ChannelType = "group"
)

// Channel is a guild channel or a DM/group channel. GuildID is zero for
// DM and group channels.
type Channel struct {
	ID           uint64      `msgpack:"id" json:"id"`
	Type         ChannelType `msgpack:"type" json:"type"`
	GuildID      uint64      `msgpack:"guild_id" json:"guild_id"`
	Name         string      `msgpack:"name" json:"name"`
	Position     int         `msgpack:"position" json:"position"`
	ParentID     uint64      `msgpack:"parent_id" json:"parent_id"`
	Topic        string      `msgpack:"topic" json:"topic"`
	NSFW         bool        `msgpack:"nsfw" json:"nsfw"`
	Locked       bool        `msgpack:"locked" json:"locked"`
	Slowmode     uint32      `msgpack:"slowmode" json:"slowmode"`
	UserLimit    uint32      `msgpack:"user_limit" json:"user_limit"`
	Overwrites   []Overwrite `msgpack:"permission_overwrites" json:"permission_overwrites"`
	RecipientIDs []uint64    `msgpack:"recipient_ids" json:"recipient_ids"`
	LastMessage  *Message    `msgpack:"last_message" json:"last_message"`
}

// DM reports whether the channel lives outside any guild.
func (c *Channel) DM() bool {
	return c.GuildID == 0
}

// Member is a user's membership within one guild. The payload may resolve
// the user inline, in which case Username is non-empty.
type Member struct {
	ID          uint64   `msgpack:"id" json:"id"`
	GuildID     uint64   `msgpack:"guild_id" json:"guild_id"`
	Nick        string   `msgpack:"nick" json:"nick"`
	RoleIDs     []uint64 `msgpack:"roles" json:"roles"`
	JoinedAt    string   `msgpack:"joined_at" json:"joined_at"`
	Permissions uint64   `msgpack:"permissions" json:"permissions"`

	Username    string `msgpack:"username" json:"username"`
	DisplayName string `msgpack:"display_name" json:"display_name"`
	Avatar      string `msgpack:"avatar" json:"avatar"`
	Flags       uint32 `msgpack:"flags" json:"flags"`
}

// ResolvedUser returns the user identity carried inline with the member,
// if the payload included one.
func (m *Member) ResolvedUser() (User, bool) {
	if m.Username == "" {
		return User{}, false
	}
	return User{
		ID:          m.ID,
		Username:    m.Username,
		DisplayName: m.DisplayName,
		Avatar:      m.Avatar,
		Flags:       m.Flags,
	}, true
}

// Guild is a guild, possibly partial: Members, Roles and Channels are nil
// when the payload did not resolve them.
type Guild struct {
	ID          uint64    `msgpack:"id" json:"id"`
	Name        string    `msgpack:"name" json:"name"`
	Description string    `msgpack:"description" json:"description"`
	Icon        string    `msgpack:"icon" json:"icon"`
	Banner      string    `msgpack:"banner" json:"banner"`
	OwnerID     uint64    `msgpack:"owner_id" json:"owner_id"`
	Flags       uint32    `msgpack:"flags" json:"flags"`
	VanityURL   string    `msgpack:"vanity_url" json:"vanity_url"`
	Members     []Member  `msgpack:"members" json:"members"`
	Roles       []Role    `msgpack:"roles" json:"roles"`
	Channels    []Channel `msgpack:"channels" json:"channels"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       uint64 `msgpack:"id" json:"id"`
	Filename string `msgpack:"filename" json:"filename"`
	Size     uint64 `msgpack:"size" json:"size"`
	Alt      string `msgpack:"alt" json:"alt"`
}

// SendState tracks the lifecycle of an optimistically sent message.
// It is client-local and never serialized.
type SendState int

const (
	SendConfirmed SendState = iota
	SendPending
	SendFailed
)

// Message is a text or system message.
type Message struct {
	ID          uint64       `msgpack:"id" json:"id"`
	RevisionID  uint64       `msgpack:"revision_id" json:"revision_id"`
	ChannelID   uint64       `msgpack:"channel_id" json:"channel_id"`
	AuthorID    uint64       `msgpack:"author_id" json:"author_id"`
	Author      *Member      `msgpack:"author" json:"author"`
	Type        string       `msgpack:"type" json:"type"`
	Content     string       `msgpack:"content" json:"content"`
	Attachments []Attachment `msgpack:"attachments" json:"attachments"`
	Mentions    []uint64     `msgpack:"mentions" json:"mentions"`
	Flags       uint32       `msgpack:"flags" json:"flags"`
	Stars       uint32       `msgpack:"stars" json:"stars"`
	EditedAt    string       `msgpack:"edited_at" json:"edited_at"`

	// Client-side optimistic-send state.
	State     SendState `msgpack:"-" json:"-"`
	SendError string    `msgpack:"-" json:"-"`
}

package wire

// Event is one inbound gateway event. The set is closed: every known
// event kind has its own struct, and anything else decodes to
// UnknownEvent so newer server events pass through without breaking old
// clients.
type Event interface {
	// EventName returns the wire tag of the event, e.g. "message_create".
	EventName() string
}

// Event name constants, matching the envelope's event tag.
const (
	EventHello               = "hello"
	EventPong                = "pong"
	EventReady               = "ready"
	EventUserUpdate          = "user_update"
	EventGuildCreate         = "guild_create"
	EventGuildUpdate         = "guild_update"
	EventGuildRemove         = "guild_remove"
	EventChannelCreate       = "channel_create"
	EventChannelUpdate       = "channel_update"
	EventChannelDelete       = "channel_delete"
	EventChannelAck          = "channel_ack"
	EventMessageCreate       = "message_create"
	EventMessageUpdate       = "message_update"
	EventMessageDelete       = "message_delete"
	EventMemberJoin          = "member_join"
	EventMemberRemove        = "member_remove"
	EventRoleCreate          = "role_create"
	EventRoleUpdate          = "role_update"
	EventRoleDelete          = "role_delete"
	EventRolePositionsUpdate = "role_positions_update"
	EventRelationshipCreate  = "relationship_create"
	EventRelationshipRemove  = "relationship_remove"
	EventPresenceUpdate      = "presence_update"
	EventTypingStart         = "typing_start"
	EventTypingStop          = "typing_stop"
)

// HelloEvent greets the client after the socket opens; the client answers
// with an identify frame.
type HelloEvent struct{}

func (HelloEvent) EventName() string { return EventHello }

// PongEvent answers a ping. It carries no data.
type PongEvent struct{}

func (PongEvent) EventName() string { return EventPong }

// UnackedChannel is one entry of the ready snapshot's unread state.
type UnackedChannel struct {
	ChannelID     uint64   `msgpack:"channel_id"`
	LastMessageID uint64   `msgpack:"last_message_id"`
	Mentions      []uint64 `msgpack:"mentions"`
}

// ReadyEvent is the full session snapshot sent once identification
// succeeds. The cache is rebuilt wholesale from it.
type ReadyEvent struct {
	SessionID     string           `msgpack:"session_id"`
	User          ClientUser       `msgpack:"user"`
	Guilds        []Guild          `msgpack:"guilds"`
	DMChannels    []Channel        `msgpack:"dm_channels"`
	Presences     []Presence       `msgpack:"presences"`
	Relationships []Relationship   `msgpack:"relationships"`
	Unacked       []UnackedChannel `msgpack:"unacked"`
}

func (*ReadyEvent) EventName() string { return EventReady }

// UserUpdateEvent reports a change to an observable user.
type UserUpdateEvent struct {
	Before User `msgpack:"before"`
	After  User `msgpack:"after"`
}

func (*UserUpdateEvent) EventName() string { return EventUserUpdate }

// GuildCreateEvent reports a guild created or joined.
type GuildCreateEvent struct {
	Guild Guild  `msgpack:"guild"`
	Nonce string `msgpack:"nonce"`
}

func (*GuildCreateEvent) EventName() string { return EventGuildCreate }

// GuildUpdateEvent reports changed guild metadata.
type GuildUpdateEvent struct {
	Before Guild `msgpack:"before"`
	After  Guild `msgpack:"after"`
}

func (*GuildUpdateEvent) EventName() string { return EventGuildUpdate }

// RemoveReason describes why the client lost access to a guild.
type RemoveReason string

const (
	RemoveDelete RemoveReason = "delete"
	RemoveLeave  RemoveReason = "leave"
	RemoveKick   RemoveReason = "kick"
	RemoveBan    RemoveReason = "ban"
)

// GuildRemoveEvent reports a guild the client no longer belongs to.
type GuildRemoveEvent struct {
	GuildID     uint64       `msgpack:"guild_id"`
	Type        RemoveReason `msgpack:"type"`
	ModeratorID uint64       `msgpack:"moderator_id"`
}

func (*GuildRemoveEvent) EventName() string { return EventGuildRemove }

// ChannelCreateEvent reports a new channel.
type ChannelCreateEvent struct {
	Channel Channel `msgpack:"channel"`
	Nonce   string  `msgpack:"nonce"`
}

func (*ChannelCreateEvent) EventName() string { return EventChannelCreate }

// ChannelUpdateEvent reports changed channel metadata.
type ChannelUpdateEvent struct {
	Before Channel `msgpack:"before"`
	After  Channel `msgpack:"after"`
}

func (*ChannelUpdateEvent) EventName() string { return EventChannelUpdate }

// ChannelDeleteEvent reports a removed channel.
type ChannelDeleteEvent struct {
	ChannelID uint64 `msgpack:"channel_id"`
	GuildID   uint64 `msgpack:"guild_id"`
}

func (*ChannelDeleteEvent) EventName() string { return EventChannelDelete }

// ChannelAckEvent acknowledges all messages in a channel up to an ID.
type ChannelAckEvent struct {
	ChannelID     uint64 `msgpack:"channel_id"`
	LastMessageID uint64 `msgpack:"last_message_id"`
}

func (*ChannelAckEvent) EventName() string { return EventChannelAck }

// MessageCreateEvent reports a sent message. Nonce is present when the
// message was sent by this client and should reconcile an optimistic
// placeholder instead of appending.
type MessageCreateEvent struct {
	Message Message `msgpack:"message"`
	Nonce   string  `msgpack:"nonce"`
}

func (*MessageCreateEvent) EventName() string { return EventMessageCreate }

// MessageUpdateEvent reports an edited message.
type MessageUpdateEvent struct {
	Before Message `msgpack:"before"`
	After  Message `msgpack:"after"`
}

func (*MessageUpdateEvent) EventName() string { return EventMessageUpdate }

// MessageDeleteEvent reports a deleted message.
type MessageDeleteEvent struct {
	ChannelID uint64 `msgpack:"channel_id"`
	MessageID uint64 `msgpack:"message_id"`
}

func (*MessageDeleteEvent) EventName() string { return EventMessageDelete }

// MemberJoinEvent reports a user joining a guild.
type MemberJoinEvent struct {
	Member Member `msgpack:"member"`
}

func (*MemberJoinEvent) EventName() string { return EventMemberJoin }

// MemberRemoveEvent reports a user leaving a guild.
type MemberRemoveEvent struct {
	GuildID     uint64       `msgpack:"guild_id"`
	UserID      uint64       `msgpack:"user_id"`
	Type        RemoveReason `msgpack:"type"`
	ModeratorID uint64       `msgpack:"moderator_id"`
}

func (*MemberRemoveEvent) EventName() string { return EventMemberRemove }

// RoleCreateEvent reports a new role.
type RoleCreateEvent struct {
	Role Role `msgpack:"role"`
}

func (*RoleCreateEvent) EventName() string { return EventRoleCreate }

// RoleUpdateEvent reports changed role metadata or permissions.
type RoleUpdateEvent struct {
	Before Role `msgpack:"before"`
	After  Role `msgpack:"after"`
}

func (*RoleUpdateEvent) EventName() string { return EventRoleUpdate }

// RoleDeleteEvent reports a deleted role.
type RoleDeleteEvent struct {
	RoleID  uint64 `msgpack:"role_id"`
	GuildID uint64 `msgpack:"guild_id"`
}

func (*RoleDeleteEvent) EventName() string { return EventRoleDelete }

// RolePositionsUpdateEvent carries the full new ordering of a guild's
// roles, ordered lowest precedence first.
type RolePositionsUpdateEvent struct {
	GuildID uint64   `msgpack:"guild_id"`
	RoleIDs []uint64 `msgpack:"role_ids"`
}

func (*RolePositionsUpdateEvent) EventName() string { return EventRolePositionsUpdate }

// RelationshipCreateEvent reports a created or updated relationship.
type RelationshipCreateEvent struct {
	Relationship Relationship `msgpack:"relationship"`
}

func (*RelationshipCreateEvent) EventName() string { return EventRelationshipCreate }

// RelationshipRemoveEvent reports a removed relationship.
type RelationshipRemoveEvent struct {
	UserID uint64 `msgpack:"user_id"`
}

func (*RelationshipRemoveEvent) EventName() string { return EventRelationshipRemove }

// PresenceUpdateEvent reports an observed user's new presence.
type PresenceUpdateEvent struct {
	Presence Presence `msgpack:"presence"`
}

func (*PresenceUpdateEvent) EventName() string { return EventPresenceUpdate }

// TypingStartEvent reports a user typing in a channel.
type TypingStartEvent struct {
	ChannelID uint64 `msgpack:"channel_id"`
	UserID    uint64 `msgpack:"user_id"`
}

func (*TypingStartEvent) EventName() string { return EventTypingStart }

// TypingStopEvent reports a user no longer typing in a channel.
type TypingStopEvent struct {
	ChannelID uint64 `msgpack:"channel_id"`
	UserID    uint64 `msgpack:"user_id"`
}

func (*TypingStopEvent) EventName() string { return EventTypingStop }

// UnknownEvent is the forward-compatibility fallback for event kinds this
// client has no schema for. Data is the loosely decoded payload with
// snowflake fields normalized, or nil when the event carried none.
type UnknownEvent struct {
	Name string
	Data any
}

func (e *UnknownEvent) EventName() string { return e.Name }

// decoded discards the event value when its payload failed to decode.
func decoded[E Event](e E, err error) (Event, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeEvent maps an envelope onto the typed event set.
// Unrecognized event tags become *UnknownEvent rather than an error;
// a recognized tag with an undecodable payload is a malformed frame.
func DecodeEvent(env *Envelope) (Event, error) {
	switch env.Event {
	case EventHello:
		return HelloEvent{}, nil
	case EventPong:
		return PongEvent{}, nil
	case EventReady:
		e := new(ReadyEvent)
		return decoded(e, decodeData(env, e))
	case EventUserUpdate:
		e := new(UserUpdateEvent)
		return decoded(e, decodeData(env, e))
	case EventGuildCreate:
		e := new(GuildCreateEvent)
		return decoded(e, decodeData(env, e))
	case EventGuildUpdate:
		e := new(GuildUpdateEvent)
		return decoded(e, decodeData(env, e))
	case EventGuildRemove:
		e := new(GuildRemoveEvent)
		return decoded(e, decodeData(env, e))
	case EventChannelCreate:
		e := new(ChannelCreateEvent)
		return decoded(e, decodeData(env, e))
	case EventChannelUpdate:
		e := new(ChannelUpdateEvent)
		return decoded(e, decodeData(env, e))
	case EventChannelDelete:
		e := new(ChannelDeleteEvent)
		return decoded(e, decodeData(env, e))
	case EventChannelAck:
		e := new(ChannelAckEvent)
		return decoded(e, decodeData(env, e))
	case EventMessageCreate:
		e := new(MessageCreateEvent)
		return decoded(e, decodeData(env, e))
	case EventMessageUpdate:
		e := new(MessageUpdateEvent)
		return decoded(e, decodeData(env, e))
	case EventMessageDelete:
		e := new(MessageDeleteEvent)
		return decoded(e, decodeData(env, e))
	case EventMemberJoin:
		e := new(MemberJoinEvent)
		return decoded(e, decodeData(env, e))
	case EventMemberRemove:
		e := new(MemberRemoveEvent)
		return decoded(e, decodeData(env, e))
	case EventRoleCreate:
		e := new(RoleCreateEvent)
		return decoded(e, decodeData(env, e))
	case EventRoleUpdate:
		e := new(RoleUpdateEvent)
		return decoded(e, decodeData(env, e))
	case EventRoleDelete:
		e := new(RoleDeleteEvent)
		return decoded(e, decodeData(env, e))
	case EventRolePositionsUpdate:
		e := new(RolePositionsUpdateEvent)
		return decoded(e, decodeData(env, e))
	case EventRelationshipCreate:
		e := new(RelationshipCreateEvent)
		return decoded(e, decodeData(env, e))
	case EventRelationshipRemove:
		e := new(RelationshipRemoveEvent)
		return decoded(e, decodeData(env, e))
	case EventPresenceUpdate:
		e := new(PresenceUpdateEvent)
		return decoded(e, decodeData(env, e))
	case EventTypingStart:
		e := new(TypingStartEvent)
		return decoded(e, decodeData(env, e))
	case EventTypingStop:
		e := new(TypingStopEvent)
		return decoded(e, decodeData(env, e))
	default:
		data, err := decodeLoose(env)
		if err != nil {
			return nil, err
		}
		return &UnknownEvent{Name: env.Event, Data: NormalizeSnowflakes(data)}, nil
	}
}

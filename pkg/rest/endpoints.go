package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/accordlabs/accord-go/pkg/wire"
)

// DefaultMessageLimit is the page size for message history fetches.
const DefaultMessageLimit = 100

// Messages fetches up to limit messages from a channel, newest first.
// A non-zero before restricts the page to messages older than that ID.
func (c *Client) Messages(ctx context.Context, channelID uint64, limit int, before uint64) ([]wire.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if before != 0 {
		query.Set("before", strconv.FormatUint(before, 10))
	}

	var messages []wire.Message
	path := fmt.Sprintf("/channels/%d/messages", channelID)
	if err := c.do(ctx, http.MethodGet, path, query, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateMessage sends a message to a channel. The nonce, when non-empty,
// is echoed back in the resulting message_create gateway event so the
// client can reconcile its optimistic placeholder.
func (c *Client) CreateMessage(ctx context.Context, channelID uint64, content, nonce string) (*wire.Message, error) {
	body := map[string]any{"content": content}
	if nonce != "" {
		body["nonce"] = nonce
	}

	var message wire.Message
	path := fmt.Sprintf("/channels/%d/messages", channelID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// Guilds fetches all guilds the client belongs to, with channels, members
// and roles resolved. Used by the force-ready hydration path.
func (c *Client) Guilds(ctx context.Context) ([]wire.Guild, error) {
	query := url.Values{
		"channels": {"true"},
		"members":  {"true"},
		"roles":    {"true"},
	}

	var guilds []wire.Guild
	if err := c.do(ctx, http.MethodGet, "/guilds", query, nil, &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

// DMChannels fetches the client's DM and group channels.
func (c *Client) DMChannels(ctx context.Context) ([]wire.Channel, error) {
	var channels []wire.Channel
	if err := c.do(ctx, http.MethodGet, "/users/me/channels", nil, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// Self fetches the client's own user profile.
func (c *Client) Self(ctx context.Context) (*wire.ClientUser, error) {
	var user wire.ClientUser
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Relationships fetches the client's friend/block/request list.
func (c *Client) Relationships(ctx context.Context) ([]wire.Relationship, error) {
	var relationships []wire.Relationship
	if err := c.do(ctx, http.MethodGet, "/relationships", nil, nil, &relationships); err != nil {
		return nil, err
	}
	return relationships, nil
}

// Ack marks all messages in a channel up to messageID as read.
func (c *Client) Ack(ctx context.Context, channelID, messageID uint64) error {
	path := fmt.Sprintf("/channels/%d/ack/%d", channelID, messageID)
	return c.do(ctx, http.MethodPut, path, nil, nil, nil)
}

// PutTyping signals that the client is typing in a channel. The signal is
// valid for about ten seconds; TypingKeepAlive throttles repeats.
func (c *Client) PutTyping(ctx context.Context, channelID uint64) error {
	path := fmt.Sprintf("/channels/%d/typing", channelID)
	return c.do(ctx, http.MethodPut, path, nil, nil, nil)
}

// DeleteTyping clears the client's typing indicator in a channel.
func (c *Client) DeleteTyping(ctx context.Context, channelID uint64) error {
	path := fmt.Sprintf("/channels/%d/typing", channelID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// RegisterPushKey registers a push-notification key for this account.
// Fire-and-forget from the engine's point of view; the push subsystem
// owns everything past this call.
func (c *Client) RegisterPushKey(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, "/users/me/notifications", nil, map[string]string{"key": key}, nil)
}

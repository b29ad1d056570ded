package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/accordlabs/accord-go/pkg/snowflake"
	"github.com/accordlabs/accord-go/pkg/wire"
)

// ErrHydration wraps failures of the force-ready bootstrap.
var ErrHydration = errors.New("gateway: hydration failed")

// Hydrate rebuilds the cache from REST instead of waiting for a ready
// frame. It is the recovery path for a session whose socket is up but
// whose snapshot was lost, and works without any socket at all.
func (c *Client) Hydrate(ctx context.Context) error {
	if c.rest == nil {
		return fmt.Errorf("%w: no rest client configured", ErrHydration)
	}

	var (
		wg    sync.WaitGroup
		ready wire.ReadyEvent

		guildsErr, dmsErr, selfErr, relsErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		ready.Guilds, guildsErr = c.rest.Guilds(ctx)
	}()
	go func() {
		defer wg.Done()
		ready.DMChannels, dmsErr = c.rest.DMChannels(ctx)
	}()
	go func() {
		defer wg.Done()
		var self *wire.ClientUser
		if self, selfErr = c.rest.Self(ctx); selfErr == nil {
			ready.User = *self
		}
	}()
	go func() {
		defer wg.Done()
		ready.Relationships, relsErr = c.rest.Relationships(ctx)
	}()
	wg.Wait()

	if err := errors.Join(guildsErr, dmsErr, selfErr, relsErr); err != nil {
		return fmt.Errorf("%w: %w", ErrHydration, err)
	}

	c.applyReady(&ready)
	return nil
}

// SendMessage sends a message optimistically: a pending placeholder is
// visible in the channel's message cache immediately, then reconciled
// with the server copy or marked failed. The placeholder's nonce is
// returned so callers can correlate the eventual message_create.
func (c *Client) SendMessage(ctx context.Context, channelID uint64, content string) (string, error) {
	if c.rest == nil {
		return "", errors.New("gateway: send: no rest client configured")
	}

	nonce := uuid.NewString()

	c.cacheMu.Lock()
	grouper, cached := c.cache.CachedMessages(channelID)
	if cached {
		// The placeholder needs a current-time snowflake so the grouping
		// boundary policy reads the right timestamp out of it.
		grouper.PushPending(nonce, wire.Message{
			ID:        snowflake.New(time.Now(), 0, snowflake.ModelMessage),
			ChannelID: channelID,
			AuthorID:  c.cache.ClientID(),
			Content:   content,
		})
	}
	c.cacheMu.Unlock()

	msg, err := c.rest.CreateMessage(ctx, channelID, content, nonce)
	if err != nil {
		c.cacheMu.Lock()
		if cached {
			grouper.AckNonceError(nonce, err.Error())
		}
		c.cacheMu.Unlock()
		return nonce, fmt.Errorf("gateway: send: %w", err)
	}

	// The message_create event usually reconciles the placeholder first;
	// this pass covers the race where the REST response wins.
	c.cacheMu.Lock()
	if cached && grouper.HasNonce(nonce) {
		grouper.AckNonce(nonce, *msg)
	}
	c.cache.SetLastMessage(channelID, msg.ID)
	c.cacheMu.Unlock()

	return nonce, nil
}

// UpdatePresence sets the client's own presence, persists it, and pushes
// it to the server if connected. The persisted value is replayed on every
// ready so the status survives restarts and reconnects.
func (c *Client) UpdatePresence(status wire.Status, custom string) error {
	if c.presence != nil {
		if err := c.presence.Set(presencePref{Status: status, CustomStatus: custom}); err != nil {
			c.logger.Warn("persisting presence failed", "error", err)
		}
	}
	if err := c.writeFrame(wire.NewPresenceUpdate(status, custom)); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return nil
		}
		return err
	}
	return nil
}

// AckChannel marks a channel read up to messageID, locally and on the
// server. Stale acks are dropped without a round trip.
func (c *Client) AckChannel(ctx context.Context, channelID, messageID uint64) error {
	c.cacheMu.Lock()
	advanced := c.cache.Ack(channelID, messageID)
	c.cacheMu.Unlock()
	if !advanced {
		return nil
	}
	if c.rest == nil {
		return nil
	}
	if err := c.rest.Ack(ctx, channelID, messageID); err != nil {
		return fmt.Errorf("gateway: ack: %w", err)
	}
	return nil
}

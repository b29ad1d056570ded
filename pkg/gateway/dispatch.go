package gateway

import (
	"errors"

	"github.com/accordlabs/accord-go/pkg/wire"
)

// Listener receives dispatched events for one event name. Calling
// remove unsubscribes the listener after the current dispatch pass
// completes.
type Listener func(ev wire.Event, remove func())

type listenerEntry struct {
	fn      Listener
	removed bool
}

// On registers a listener for an event name and returns its cancel
// function. Listeners run on the dispatch goroutine, in registration
// order, after the event has been folded into the cache.
func (c *Client) On(event string, fn Listener) (cancel func()) {
	e := &listenerEntry{fn: fn}

	c.lmu.Lock()
	c.listeners[event] = append(c.listeners[event], e)
	c.lmu.Unlock()

	return func() {
		c.lmu.Lock()
		e.removed = true
		c.sweepLocked(event)
		c.lmu.Unlock()
	}
}

// notify runs every listener registered for event over a snapshot of
// the registry. Removals requested during the pass, by any listener,
// take effect only after the whole pass has run.
func (c *Client) notify(event string, ev wire.Event) {
	c.lmu.Lock()
	entries := c.listeners[event]
	snapshot := make([]*listenerEntry, len(entries))
	copy(snapshot, entries)
	c.lmu.Unlock()

	for _, e := range snapshot {
		e.fn(ev, func() {
			c.lmu.Lock()
			e.removed = true
			c.lmu.Unlock()
		})
	}

	c.lmu.Lock()
	c.sweepLocked(event)
	c.lmu.Unlock()
}

func (c *Client) sweepLocked(event string) {
	entries := c.listeners[event]
	kept := entries[:0]
	for _, e := range entries {
		if !e.removed {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(c.listeners, event)
		return
	}
	c.listeners[event] = kept
}

// handleFrame decodes one inbound frame and dispatches it. Malformed
// frames are dropped with a diagnostic, never fatal.
func (c *Client) handleFrame(data []byte) {
	env, err := wire.DecodeEnvelope(data)
	if err != nil {
		c.metrics.droppedFrames.Inc()
		if errors.Is(err, wire.ErrMalformedFrame) {
			c.logger.Warn("dropping malformed frame", "error", err, "bytes", len(data))
		} else {
			c.logger.Warn("dropping undecodable frame", "error", err)
		}
		return
	}

	ev, err := wire.DecodeEvent(env)
	if err != nil {
		c.metrics.droppedFrames.Inc()
		c.logger.Warn("dropping malformed event", "event", env.Event, "error", err)
		return
	}

	label := env.Event
	if _, unknown := ev.(*wire.UnknownEvent); unknown {
		label = "unknown"
	}
	c.metrics.eventsTotal.WithLabelValues(label).Inc()

	c.cacheMu.Lock()
	c.fold(ev)
	c.cacheMu.Unlock()

	c.notify(env.Event, ev)
}

// fold applies one event's cache mutation. Events targeting entities
// the cache never saw are no-ops; the cache is best-effort and may lag
// the server.
func (c *Client) fold(ev wire.Event) {
	switch e := ev.(type) {
	case wire.HelloEvent:
		c.logger.Debug("hello received")
		c.sendIdentify()

	case wire.PongEvent:
		// Heartbeat answered; the read deadline already advanced.

	case *wire.ReadyEvent:
		c.cache.HydrateFromReady(e)
		c.finishReady(e)

	case *wire.UserUpdateEvent:
		if e.After.ID == c.cache.ClientID() {
			c.cache.UpdateClientUser(e.After)
		} else {
			c.cache.UpdateUser(e.After)
		}

	case *wire.GuildCreateEvent:
		c.cache.UpdateGuild(&e.Guild)

	case *wire.GuildUpdateEvent:
		c.cache.UpdateGuild(&e.After)

	case *wire.GuildRemoveEvent:
		c.cache.RemoveGuild(e.GuildID)

	case *wire.ChannelCreateEvent:
		c.cache.UpdateChannel(&e.Channel)
		if e.Channel.DM() {
			c.cache.TouchDMChannel(e.Channel.ID)
		}

	case *wire.ChannelUpdateEvent:
		c.cache.UpdateChannel(&e.After)

	case *wire.ChannelDeleteEvent:
		c.cache.RemoveChannel(e.ChannelID)

	case *wire.ChannelAckEvent:
		if !c.cache.Ack(e.ChannelID, e.LastMessageID) {
			c.logger.Debug("ignoring stale ack",
				"channel_id", e.ChannelID, "message_id", e.LastMessageID)
		}

	case *wire.MessageCreateEvent:
		c.foldMessageCreate(e)

	case *wire.MessageUpdateEvent:
		if g, ok := c.cache.CachedMessages(e.After.ChannelID); ok {
			g.Edit(e.After.ID, e.After)
		}

	case *wire.MessageDeleteEvent:
		if g, ok := c.cache.CachedMessages(e.ChannelID); ok {
			g.Remove(e.MessageID)
		}

	case *wire.MemberJoinEvent:
		c.cache.UpdateMember(&e.Member)
		if u, ok := e.Member.ResolvedUser(); ok {
			c.cache.UpdateUser(u)
		}
		c.cache.TrackMember(e.Member.GuildID, e.Member.ID)

	case *wire.MemberRemoveEvent:
		c.cache.UntrackMember(e.GuildID, e.UserID)

	case *wire.RoleCreateEvent:
		c.cache.UpdateRole(e.Role)

	case *wire.RoleUpdateEvent:
		c.cache.UpdateRole(e.After)

	case *wire.RoleDeleteEvent:
		c.cache.DeleteRole(e.RoleID)

	case *wire.RolePositionsUpdateEvent:
		c.cache.ApplyRolePositions(e.GuildID, e.RoleIDs)

	case *wire.RelationshipCreateEvent:
		c.cache.UpdateRelationship(e.Relationship)

	case *wire.RelationshipRemoveEvent:
		c.cache.RemoveRelationship(e.UserID)

	case *wire.PresenceUpdateEvent:
		c.cache.UpdatePresence(e.Presence)

	case *wire.TypingStartEvent:
		c.cache.SetTyping(e.ChannelID, e.UserID, true)

	case *wire.TypingStopEvent:
		c.cache.SetTyping(e.ChannelID, e.UserID, false)

	case *wire.UnknownEvent:
		c.logger.Debug("ignoring unknown event", "event", e.Name)
	}
}

func (c *Client) foldMessageCreate(e *wire.MessageCreateEvent) {
	msg := e.Message
	c.cache.SetLastMessage(msg.ChannelID, msg.ID)
	if ch, ok := c.cache.Channel(msg.ChannelID); ok && ch.DM() {
		c.cache.TouchDMChannel(msg.ChannelID)
	}

	if g, ok := c.cache.CachedMessages(msg.ChannelID); ok {
		if e.Nonce == "" || !g.AckNonce(e.Nonce, msg) {
			g.Push(msg)
		}
	}

	if msg.AuthorID == c.cache.ClientID() {
		c.cache.Ack(msg.ChannelID, msg.ID)
	} else if c.cache.IsMentioned(&msg) {
		c.cache.RegisterMention(msg.ChannelID, msg.ID)
	}
}

package cache

import (
	"context"
	"sync"

	"github.com/accordlabs/accord-go/pkg/snowflake"
	"github.com/accordlabs/accord-go/pkg/wire"
)

// FetchLimit is the page size for older-message fetches.
const FetchLimit = 100

// MessageFetcher fetches a page of messages for a channel, newest first.
// rest.Client satisfies it.
type MessageFetcher interface {
	Messages(ctx context.Context, channelID uint64, limit int, before uint64) ([]wire.Message, error)
}

// Group is one run of consecutive messages from a single author, or a
// date divider between two calendar days. A divider group carries no
// messages.
type Group struct {
	Divider  bool
	Label    string
	Messages []wire.Message
}

// MessageGrouper maintains the ordered group sequence for one channel.
// A new group starts when the author changes, when the snowflake gap
// between two messages exceeds roughly fifteen minutes, or when a
// calendar day boundary is crossed (which also inserts a divider).
//
// Methods are safe for concurrent use; older-page fetches may run on a
// different goroutine than event dispatch.
type MessageGrouper struct {
	channelID uint64
	fetcher   MessageFetcher

	mu          sync.Mutex
	groups      []*Group
	nonced      map[string][2]int
	fetchBefore uint64
	fetching    bool
	noMore      bool
}

// NewMessageGrouper returns an empty grouper for channelID. fetcher may
// be nil if FetchOlder is never used.
func NewMessageGrouper(fetcher MessageFetcher, channelID uint64) *MessageGrouper {
	return &MessageGrouper{
		channelID: channelID,
		fetcher:   fetcher,
		nonced:    make(map[string][2]int),
	}
}

// splitBefore reports whether msg must start a new group after prev. A
// non-empty label means a date divider carrying that label precedes the
// new group. The day-boundary check wins over the author and gap checks.
func splitBefore(prev, msg wire.Message) (label string, split bool) {
	ts := snowflake.Timestamp(msg.ID)
	if !snowflake.SameDay(snowflake.Timestamp(prev.ID), ts) {
		return snowflake.HumanDate(ts), true
	}
	if msg.AuthorID != prev.AuthorID || msg.ID-prev.ID > snowflake.Boundary {
		return "", true
	}
	return "", false
}

// Push appends a just-received message, starting a new group (and date
// divider) when the boundary policy demands one. It returns the group
// and message indices the message landed at.
func (g *MessageGrouper) Push(msg wire.Message) (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.push(msg)
}

func (g *MessageGrouper) push(msg wire.Message) (int, int) {
	if prev, ok := g.last(); ok {
		if label, split := splitBefore(prev, msg); split {
			if label != "" {
				g.groups = append(g.groups, &Group{Divider: true, Label: label})
			}
			g.groups = append(g.groups, &Group{})
		}
	} else if n := len(g.groups); n == 0 || g.groups[n-1].Divider {
		g.groups = append(g.groups, &Group{})
	}

	tail := g.groups[len(g.groups)-1]
	tail.Messages = append(tail.Messages, msg)
	return len(g.groups) - 1, len(tail.Messages) - 1
}

// PushPending appends an optimistically sent message and records its
// position under nonce for later reconciliation.
func (g *MessageGrouper) PushPending(nonce string, msg wire.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()

	msg.State = wire.SendPending
	gi, mi := g.push(msg)
	g.nonced[nonce] = [2]int{gi, mi}
}

// HasNonce reports whether nonce refers to a pending optimistic send.
func (g *MessageGrouper) HasNonce(nonce string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.nonced[nonce]
	return ok
}

// AckNonce replaces the optimistic placeholder recorded under nonce with
// the server's authoritative message, in place. It reports whether a
// placeholder was found; when it returns false the caller should append
// the message normally instead.
func (g *MessageGrouper) AckNonce(nonce string, msg wire.Message) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	gi, mi, ok := g.takeNonce(nonce)
	if !ok {
		return false
	}
	msg.State = wire.SendConfirmed
	g.groups[gi].Messages[mi] = msg
	return true
}

// AckNonceError marks the placeholder recorded under nonce as failed.
func (g *MessageGrouper) AckNonceError(nonce, sendErr string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	gi, mi, ok := g.takeNonce(nonce)
	if !ok {
		return false
	}
	m := &g.groups[gi].Messages[mi]
	m.State = wire.SendFailed
	m.SendError = sendErr
	return true
}

func (g *MessageGrouper) takeNonce(nonce string) (gi, mi int, ok bool) {
	idx, ok := g.nonced[nonce]
	if !ok {
		return 0, 0, false
	}
	delete(g.nonced, nonce)
	gi, mi = idx[0], idx[1]
	if gi >= len(g.groups) || g.groups[gi].Divider || mi >= len(g.groups[gi].Messages) {
		return 0, 0, false
	}
	return gi, mi, true
}

// Remove deletes the message with the given ID. Unknown IDs are a no-op.
func (g *MessageGrouper) Remove(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gi, mi := g.findClose(id)
	if gi < 0 || mi < 0 || g.groups[gi].Messages[mi].ID != id {
		return
	}
	grp := g.groups[gi]
	grp.Messages = append(grp.Messages[:mi], grp.Messages[mi+1:]...)
	if len(grp.Messages) == 0 {
		g.groups = append(g.groups[:gi], g.groups[gi+1:]...)
		g.shiftNonced(gi, -1)
	}
}

// Edit replaces the message with the given ID. Unknown IDs are a no-op.
func (g *MessageGrouper) Edit(id uint64, msg wire.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gi, mi := g.findClose(id)
	if gi < 0 || mi < 0 || g.groups[gi].Messages[mi].ID != id {
		return
	}
	g.groups[gi].Messages[mi] = msg
}

// findClose returns the group and message indices of the newest message
// with ID at most id, skipping dividers. It returns (-1, -1) when every
// cached message is newer than id, or the cache holds no messages.
func (g *MessageGrouper) findClose(id uint64) (int, int) {
	gi := len(g.groups) - 1
	if gi < 0 {
		return -1, -1
	}
	mi := 0
	if grp := g.groups[gi]; !grp.Divider {
		mi = len(grp.Messages) - 1
	}

	for gi >= 0 && mi >= 0 {
		grp := g.groups[gi]
		if grp.Divider {
			if gi--; gi < 0 {
				return -1, -1
			}
			if prev := g.groups[gi]; prev.Divider {
				mi = 0
			} else {
				mi = len(prev.Messages) - 1
			}
			continue
		}
		if grp.Messages[mi].ID <= id {
			return gi, mi
		}
		if mi--; mi < 0 {
			if gi--; gi < 0 {
				return -1, -1
			}
			if prev := g.groups[gi]; prev.Divider {
				mi = 0
			} else {
				mi = len(prev.Messages) - 1
			}
		}
	}
	return -1, -1
}

// InsertOlder splices a page of older messages, sorted oldest to newest,
// into the group sequence at the position their IDs dictate, applying
// the boundary policy between every adjacent pair. Messages already
// cached are skipped, so re-inserting a fully cached page changes
// nothing.
func (g *MessageGrouper) InsertOlder(msgs []wire.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.insertOlder(msgs)
}

func (g *MessageGrouper) insertOlder(msgs []wire.Message) {
	msgs = g.withoutCached(msgs)
	if len(msgs) == 0 {
		return
	}

	groups := g.groups
	gi, mi := g.findClose(msgs[0].ID)
	var prev *wire.Message
	if len(groups) == 0 {
		groups = []*Group{{}}
		gi, mi = 0, -1
	} else if gi <= 0 {
		first := groups[0]
		if first.Divider || gi < 0 {
			first = &Group{}
			groups = append([]*Group{first}, groups...)
			g.shiftNonced(0, 1)
			mi = -1
		}
		gi = 0
		if mi >= 0 && mi < len(first.Messages) {
			prev = &first.Messages[mi]
		}
	} else {
		prev = &groups[gi].Messages[mi]
	}

	oldTail := len(groups) - gi
	for i := range msgs {
		msg := msgs[i]
		if prev != nil {
			if label, split := splitBefore(*prev, msg); split {
				if label != "" {
					gi++
					groups = insertGroup(groups, gi, &Group{Divider: true, Label: label})
				}
				gi++
				groups = insertGroup(groups, gi, &Group{})
				mi = -1
			}
		}
		mi++
		grp := groups[gi]
		grp.Messages = append(grp.Messages, wire.Message{})
		copy(grp.Messages[mi+1:], grp.Messages[mi:])
		grp.Messages[mi] = msg
		prev = &grp.Messages[mi]
	}
	// Pending-send placeholders all live in newer groups than the splice
	// point; shift their recorded group indices by the groups added.
	if added := len(groups) - gi - oldTail; added > 0 {
		g.shiftNonced(gi+1, added)
	}
	g.groups = groups

	if mi == len(groups[gi].Messages)-1 {
		g.joinTail(gi)
	}
}

// joinTail re-evaluates the boundary between group gi and the group
// after it. Splicing a batch in front of existing messages can leave
// two runs that belong together, or a missing date divider between
// them.
func (g *MessageGrouper) joinTail(gi int) {
	if gi < 0 || gi >= len(g.groups)-1 {
		return
	}
	cur, next := g.groups[gi], g.groups[gi+1]
	if cur.Divider || len(cur.Messages) == 0 || next.Divider || len(next.Messages) == 0 {
		return
	}

	label, split := splitBefore(cur.Messages[len(cur.Messages)-1], next.Messages[0])
	switch {
	case !split:
		base := len(cur.Messages)
		cur.Messages = append(cur.Messages, next.Messages...)
		g.groups = append(g.groups[:gi+1], g.groups[gi+2:]...)
		for nonce, idx := range g.nonced {
			switch {
			case idx[0] == gi+1:
				g.nonced[nonce] = [2]int{gi, idx[1] + base}
			case idx[0] > gi+1:
				g.nonced[nonce] = [2]int{idx[0] - 1, idx[1]}
			}
		}
	case label != "":
		g.groups = insertGroup(g.groups, gi+1, &Group{Divider: true, Label: label})
		g.shiftNonced(gi+1, 1)
	}
}

func insertGroup(groups []*Group, at int, grp *Group) []*Group {
	groups = append(groups, nil)
	copy(groups[at+1:], groups[at:])
	groups[at] = grp
	return groups
}

// shiftNonced adjusts recorded nonce positions after groups were added
// or removed at indices >= from.
func (g *MessageGrouper) shiftNonced(from, delta int) {
	for nonce, idx := range g.nonced {
		if idx[0] >= from {
			g.nonced[nonce] = [2]int{idx[0] + delta, idx[1]}
		}
	}
}

func (g *MessageGrouper) withoutCached(msgs []wire.Message) []wire.Message {
	if len(msgs) == 0 {
		return msgs
	}
	cached := make(map[uint64]struct{})
	for _, grp := range g.groups {
		for _, m := range grp.Messages {
			cached[m.ID] = struct{}{}
		}
	}
	out := msgs[:0:0]
	for _, m := range msgs {
		if _, ok := cached[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// FetchOlder retrieves the next older page from the fetcher and splices
// it in. A call while a fetch is already in flight, or after the channel
// history is exhausted, is a no-op.
func (g *MessageGrouper) FetchOlder(ctx context.Context) error {
	g.mu.Lock()
	if g.noMore || g.fetching || g.fetcher == nil {
		g.mu.Unlock()
		return nil
	}
	g.fetching = true
	before := g.fetchBefore
	g.mu.Unlock()

	msgs, err := g.fetcher.Messages(ctx, g.channelID, FetchLimit, before)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetching = false
	if err != nil {
		return err
	}

	// Pages arrive newest first; the last entry is the oldest and anchors
	// the next fetch.
	if len(msgs) > 0 {
		g.fetchBefore = msgs[len(msgs)-1].ID
	}
	if len(msgs) < FetchLimit {
		g.noMore = true
	}
	reverseMessages(msgs)
	g.insertOlder(msgs)
	return nil
}

func reverseMessages(msgs []wire.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// NoMore reports whether the channel's full history has been fetched.
func (g *MessageGrouper) NoMore() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.noMore
}

// Last returns the newest cached message, if the last group holds one.
func (g *MessageGrouper) Last() (wire.Message, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last()
}

func (g *MessageGrouper) last() (wire.Message, bool) {
	if len(g.groups) == 0 {
		return wire.Message{}, false
	}
	grp := g.groups[len(g.groups)-1]
	if grp.Divider || len(grp.Messages) == 0 {
		return wire.Message{}, false
	}
	return grp.Messages[len(grp.Messages)-1], true
}

// Groups returns a snapshot of the group sequence. Callers must treat
// the returned groups as read-only.
func (g *MessageGrouper) Groups() []*Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Group, len(g.groups))
	copy(out, g.groups)
	return out
}

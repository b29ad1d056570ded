package rest

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TypingRefreshInterval is how long a typing signal stays valid server
// side; repeated signals inside the window are suppressed locally.
const TypingRefreshInterval = 10 * time.Second

// TypingKeepAlive keeps the client's typing indicator alive in one
// channel while suppressing redundant requests. Call Signal on every
// keystroke; at most one PUT goes out per refresh interval. Stop clears
// the indicator and re-arms the throttle so the next Signal fires
// immediately.
type TypingKeepAlive struct {
	client    *Client
	channelID uint64
	limiter   *rate.Limiter
}

// NewTypingKeepAlive returns a keep-alive for one channel.
func NewTypingKeepAlive(client *Client, channelID uint64) *TypingKeepAlive {
	return &TypingKeepAlive{
		client:    client,
		channelID: channelID,
		limiter:   newTypingLimiter(),
	}
}

func newTypingLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(TypingRefreshInterval), 1)
}

// Signal refreshes the typing indicator if the throttle window has
// elapsed; otherwise it is a no-op.
func (t *TypingKeepAlive) Signal(ctx context.Context) error {
	if !t.limiter.Allow() {
		return nil
	}
	return t.client.PutTyping(ctx, t.channelID)
}

// Stop clears the typing indicator and resets the throttle.
func (t *TypingKeepAlive) Stop(ctx context.Context) error {
	t.limiter = newTypingLimiter()
	return t.client.DeleteTyping(ctx, t.channelID)
}

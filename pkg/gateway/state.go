package gateway

// State is the session's connection state.
type State int32

const (
	// StateDisconnected means no connection exists and none is wanted.
	StateDisconnected State = iota

	// StateConnecting means a socket is being opened.
	StateConnecting

	// StateAwaitingReady means identification was sent and the session
	// is waiting for the ready snapshot.
	StateAwaitingReady

	// StateReady means the session is live and the cache is hydrated.
	StateReady

	// StateReconnecting means the connection dropped while keep-alive
	// was set and a backoff-scheduled reconnect is pending.
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

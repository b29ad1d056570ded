package wire

// Opcodes for outbound control frames.
const (
	OpIdentify       = "identify"
	OpPing           = "ping"
	OpUpdatePresence = "update_presence"
)

// Device tags the kind of client identifying to the gateway.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceWeb     Device = "web"
)

// Identify is the handshake frame sent immediately after the socket opens,
// before the session is ready.
type Identify struct {
	Op     string `msgpack:"op"`
	Token  string `msgpack:"token"`
	Device Device `msgpack:"device"`
}

// NewIdentify builds an identify frame for the given bearer credential.
func NewIdentify(token string, device Device) Identify {
	return Identify{Op: OpIdentify, Token: token, Device: device}
}

// Ping is the keepalive frame sent on a fixed interval.
type Ping struct {
	Op string `msgpack:"op"`
}

// NewPing builds a ping frame.
func NewPing() Ping {
	return Ping{Op: OpPing}
}

// PresenceUpdate asks the gateway to change the client's own presence.
type PresenceUpdate struct {
	Op           string `msgpack:"op"`
	Status       Status `msgpack:"status"`
	CustomStatus string `msgpack:"custom_status,omitempty"`
}

// NewPresenceUpdate builds an update_presence frame.
func NewPresenceUpdate(status Status, custom string) PresenceUpdate {
	return PresenceUpdate{Op: OpUpdatePresence, Status: status, CustomStatus: custom}
}

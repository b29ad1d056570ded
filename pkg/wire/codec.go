package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformedFrame reports an inbound frame that could not be decoded.
// The gateway drops such frames after logging; they are never fatal.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// Envelope is the {event, data} wrapper around every inbound message.
// Data is retained raw so each event kind can decode its own payload.
type Envelope struct {
	Event string             `msgpack:"event"`
	Data  msgpack.RawMessage `msgpack:"data"`
}

// Encode serializes an outbound control message to msgpack.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeEnvelope parses an inbound binary frame into its envelope.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event tag", ErrMalformedFrame)
	}
	return &env, nil
}

// decodeData decodes an envelope payload into a typed event struct.
func decodeData(env *Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s event carries no data", ErrMalformedFrame, env.Event)
	}
	if err := msgpack.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedFrame, env.Event, err)
	}
	return nil
}

// decodeLoose decodes an envelope payload into generic maps and slices,
// used for events the client has no schema for.
func decodeLoose(env *Envelope) (any, error) {
	if len(env.Data) == 0 {
		return nil, nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(env.Data))
	dec.UseLooseInterfaceDecoding(true)
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedFrame, env.Event, err)
	}
	return v, nil
}

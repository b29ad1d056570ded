package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestEncodeDecodeEnvelope(t *testing.T) {
	payload, err := msgpack.Marshal(map[string]any{
		"channel_id": uint64(1) << 60,
		"user_id":    uint64(42),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	b, err := Encode(map[string]any{
		"event": "typing_start",
		"data":  msgpack.RawMessage(payload),
	})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	env, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error: %v", err)
	}
	if env.Event != "typing_start" {
		t.Errorf("Event = %q; want %q", env.Event, "typing_start")
	}

	var ts TypingStartEvent
	if err := msgpack.Unmarshal(env.Data, &ts); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if ts.ChannelID != uint64(1)<<60 || ts.UserID != 42 {
		t.Errorf("payload = %+v; want channel_id=%d user_id=42", ts, uint64(1)<<60)
	}
}

func TestLargeIdentifierRoundTrip(t *testing.T) {
	// IDs beyond 2^53 must survive exactly; float64 handling would not do.
	ids := []uint64{
		1 << 53,
		(1 << 53) + 1,
		1<<63 - 1,
		1 << 63,
		^uint64(0),
	}

	for _, id := range ids {
		b, err := Encode(map[string]any{"id": id})
		if err != nil {
			t.Fatalf("Encode(%d) error: %v", id, err)
		}

		var out map[string]uint64
		if err := msgpack.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if out["id"] != id {
			t.Errorf("round trip of %d = %d", id, out["id"])
		}
	}
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"garbage", []byte{0xc1, 0xff, 0x00}},
		{"truncated", func() []byte {
			b, _ := Encode(map[string]any{"event": "ready"})
			return b[:len(b)-2]
		}()},
		{"missing event tag", func() []byte {
			b, _ := Encode(map[string]any{"data": 1})
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tt.in)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("DecodeEnvelope() error = %v; want ErrMalformedFrame", err)
			}
		})
	}
}

func TestDecodeEventTyped(t *testing.T) {
	payload, _ := msgpack.Marshal(MessageCreateEvent{
		Message: Message{
			ID:        1 << 55,
			ChannelID: 77,
			AuthorID:  42,
			Content:   "hello",
			Mentions:  []uint64{42, 43},
		},
		Nonce: "abc",
	})
	b, _ := Encode(map[string]any{
		"event": EventMessageCreate,
		"data":  msgpack.RawMessage(payload),
	})

	env, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error: %v", err)
	}
	ev, err := DecodeEvent(env)
	if err != nil {
		t.Fatalf("DecodeEvent() error: %v", err)
	}

	mc, ok := ev.(*MessageCreateEvent)
	if !ok {
		t.Fatalf("DecodeEvent() = %T; want *MessageCreateEvent", ev)
	}
	if mc.Message.ID != 1<<55 || mc.Nonce != "abc" || mc.Message.Content != "hello" {
		t.Errorf("decoded event = %+v", mc)
	}
}

func TestDecodeEventNoData(t *testing.T) {
	for _, name := range []string{EventHello, EventPong} {
		b, _ := Encode(map[string]any{"event": name})
		env, err := DecodeEnvelope(b)
		if err != nil {
			t.Fatalf("DecodeEnvelope(%s) error: %v", name, err)
		}
		ev, err := DecodeEvent(env)
		if err != nil {
			t.Fatalf("DecodeEvent(%s) error: %v", name, err)
		}
		if ev.EventName() != name {
			t.Errorf("EventName() = %q; want %q", ev.EventName(), name)
		}
	}
}

func TestDecodeEventUnknown(t *testing.T) {
	payload, _ := msgpack.Marshal(map[string]any{
		"id":    uint64(9),
		"value": "something new",
	})
	b, _ := Encode(map[string]any{
		"event": "reaction_burst",
		"data":  msgpack.RawMessage(payload),
	})

	env, _ := DecodeEnvelope(b)
	ev, err := DecodeEvent(env)
	if err != nil {
		t.Fatalf("DecodeEvent() error: %v", err)
	}

	unk, ok := ev.(*UnknownEvent)
	if !ok {
		t.Fatalf("DecodeEvent() = %T; want *UnknownEvent", ev)
	}
	if unk.Name != "reaction_burst" {
		t.Errorf("Name = %q; want %q", unk.Name, "reaction_burst")
	}
	data, ok := unk.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data = %T; want map", unk.Data)
	}
	if data["id"] != uint64(9) {
		t.Errorf("id = %v (%T); want uint64(9)", data["id"], data["id"])
	}
}

func TestDecodeEventMalformedPayload(t *testing.T) {
	b, _ := Encode(map[string]any{
		"event": EventChannelAck,
		"data":  msgpack.RawMessage([]byte{0xc1}),
	})
	env, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error: %v", err)
	}
	if _, err := DecodeEvent(env); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("DecodeEvent() error = %v; want ErrMalformedFrame", err)
	}
}

func TestIdentifyFrameShape(t *testing.T) {
	b, err := Encode(NewIdentify("tok123", DeviceWeb))
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	var out map[string]string
	if err := msgpack.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]string{"op": "identify", "token": "tok123", "device": "web"}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("identify frame = %v; want %v", out, want)
	}
}

func TestPresenceUpdateOmitsEmptyCustomStatus(t *testing.T) {
	b, err := Encode(NewPresenceUpdate(StatusIdle, ""))
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var out map[string]any
	if err := msgpack.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := out["custom_status"]; present {
		t.Errorf("custom_status present in %v; want omitted", out)
	}
	if out["status"] != "idle" {
		t.Errorf("status = %v; want idle", out["status"])
	}
}

func TestReadyEventRoundTrip(t *testing.T) {
	ready := ReadyEvent{
		SessionID: "s1",
		User: ClientUser{
			User:  User{ID: 100, Username: "ada"},
			Email: "ada@example.com",
		},
		Guilds: []Guild{{
			ID:      200,
			Name:    "engineering",
			OwnerID: 100,
			Roles:   []Role{{ID: 201, GuildID: 200, Position: 0}},
			Channels: []Channel{{
				ID: 202, Type: ChannelText, GuildID: 200, Name: "general",
			}},
		}},
		DMChannels: []Channel{{
			ID: 300, Type: ChannelDM, RecipientIDs: []uint64{100, 101},
		}},
		Unacked: []UnackedChannel{{ChannelID: 202, LastMessageID: 400, Mentions: []uint64{399}}},
	}

	raw, err := msgpack.Marshal(&ready)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, _ := Encode(map[string]any{"event": EventReady, "data": msgpack.RawMessage(raw)})

	env, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error: %v", err)
	}
	ev, err := DecodeEvent(env)
	if err != nil {
		t.Fatalf("DecodeEvent() error: %v", err)
	}
	got, ok := ev.(*ReadyEvent)
	if !ok {
		t.Fatalf("DecodeEvent() = %T; want *ReadyEvent", ev)
	}
	if !reflect.DeepEqual(*got, ready) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, ready)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	v := map[string]any{"op": "ping", "z": 1, "a": 2}
	b1, _ := Encode(v)
	b2, _ := Encode(v)
	if !bytes.Equal(b1, b2) {
		t.Errorf("Encode() not deterministic: % x vs % x", b1, b2)
	}
}

package call

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestMessageCodec(t *testing.T) {
	msg, err := NewMessage(MessageTypeHello, HelloPayload{Text: "hi", SentAt: 42})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	wire, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := DecodeMessage(wire)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if got.Type != MessageTypeHello {
		t.Fatalf("type = %q", got.Type)
	}
	var hello HelloPayload
	if err := got.DecodePayload(&hello); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if hello.Text != "hi" || hello.SentAt != 42 {
		t.Fatalf("hello = %+v", hello)
	}
}

func TestMessageFieldNames(t *testing.T) {
	msg, _ := NewMessage(MessageTypeReply, ReplyPayload{Text: "yo", EchoedAt: 7})
	wire, _ := msg.Encode()

	var generic map[string]any
	if err := msgpack.Unmarshal(wire, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if generic["type"] != MessageTypeReply {
		t.Fatalf("envelope = %v", generic)
	}

	var payload map[string]any
	if err := msgpack.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if _, ok := payload["echoedAt"]; !ok {
		t.Fatalf("payload keys = %v, want echoedAt", payload)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	untyped, _ := msgpack.Marshal(map[string]string{"payload": "x"})

	for name, data := range map[string][]byte{
		"not msgpack":  {0xc1},
		"missing type": untyped,
	} {
		if _, err := DecodeMessage(data); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

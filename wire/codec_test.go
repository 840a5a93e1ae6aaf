package wire

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"stagecraft"
)

type wireWorld struct {
	stagecraft.World
}

type ping struct {
	stagecraft.MessageCore
	Note string `json:"note"`
}

func (p *ping) Check(stagecraft.AnyWorld) error { return nil }
func (p *ping) Execute(stagecraft.AnyWorld)     {}

type flag struct {
	stagecraft.Token
	Color string `json:"color"`
}

// stray is deliberately never registered.
type stray struct {
	stagecraft.MessageCore
}

func (s *stray) Check(stagecraft.AnyWorld) error { return nil }
func (s *stray) Execute(stagecraft.AnyWorld)     {}

func init() {
	RegisterMessage(&ping{})
	RegisterToken(&flag{})
}

func TestWelcomeRoundTrip(t *testing.T) {
	codec := NewCodec(&wireWorld{})

	data, err := codec.Encode(stagecraft.Frame{
		Kind:    stagecraft.FrameWelcome,
		Welcome: &stagecraft.Welcome{Offset: 3, Spacing: 4},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	frame, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if frame.Kind != stagecraft.FrameWelcome {
		t.Fatalf("expected a welcome frame, got %q", frame.Kind)
	}
	if frame.Welcome.Offset != 3 || frame.Welcome.Spacing != 4 {
		t.Fatalf("expected offset 3 spacing 4, got %+v", frame.Welcome)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	codec := NewCodec(&wireWorld{})

	data, err := codec.Encode(stagecraft.Frame{
		Kind: stagecraft.FrameResponse,
		Response: &stagecraft.ServerResponse{
			ResponseID: 7,
			Accepted:   false,
			Reason:     "over capacity",
		},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	frame, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if frame.Kind != stagecraft.FrameResponse {
		t.Fatalf("expected a response frame, got %q", frame.Kind)
	}
	resp := frame.Response
	if resp.ResponseID != 7 || resp.Accepted || resp.Reason != "over capacity" {
		t.Fatalf("verdict did not survive the round trip: %+v", resp)
	}
}

func TestMessageRoundTripWithStagedToken(t *testing.T) {
	codec := NewCodec(&wireWorld{})

	m := &ping{Note: "hello"}
	stagecraft.RestoreMessage(m, 2, 5, 9)
	stagecraft.RestoreStagedAdd(m, &flag{Color: "red"}, 6)

	data, err := codec.Encode(stagecraft.Frame{Kind: stagecraft.FrameMessage, Message: m})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	frame, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	decoded, ok := frame.Message.(*ping)
	if !ok {
		t.Fatalf("expected a *ping, got %T", frame.Message)
	}
	if decoded.Note != "hello" {
		t.Fatalf("expected note %q, got %q", "hello", decoded.Note)
	}
	core := stagecraft.MessageCoreOf(decoded)
	if core.SenderID() != 2 || core.ResponseID() != 5 || core.Seq() != 9 {
		t.Fatalf("routing metadata did not survive: sender %d response %d seq %d",
			core.SenderID(), core.ResponseID(), core.Seq())
	}
	adds := core.StagedAdds()
	if len(adds) != 1 {
		t.Fatalf("expected 1 staged token, got %d", len(adds))
	}
	tok, ok := adds[0].(*flag)
	if !ok {
		t.Fatalf("expected a *flag, got %T", adds[0])
	}
	if tok.Color != "red" {
		t.Fatalf("expected color %q, got %q", "red", tok.Color)
	}
	if stagecraft.TokenCoreOf(tok).ID() != 6 {
		t.Fatalf("expected the staged token to keep id 6, got %d", stagecraft.TokenCoreOf(tok).ID())
	}
}

func TestEncodeRefusesUnsentMessages(t *testing.T) {
	codec := NewCodec(&wireWorld{})
	_, err := codec.Encode(stagecraft.Frame{Kind: stagecraft.FrameMessage, Message: &ping{}})
	if err == nil {
		t.Fatalf("expected an error for an unsent message")
	}
	if _, ok := err.(*SerializationError); !ok {
		t.Fatalf("expected a *SerializationError, got %T: %v", err, err)
	}
}

func TestEncodeRefusesUnregisteredMessages(t *testing.T) {
	codec := NewCodec(&wireWorld{})
	m := &stray{}
	stagecraft.RestoreMessage(m, 1, 0, 1)
	_, err := codec.Encode(stagecraft.Frame{Kind: stagecraft.FrameMessage, Message: m})
	if err == nil {
		t.Fatalf("expected an error for an unregistered message type")
	}
}

func TestDecodeRefusesForeignProtocolVersions(t *testing.T) {
	codec := NewCodec(&wireWorld{})
	_, err := codec.Decode([]byte(`{"ver":99,"kind":"welcome","welcome":{"offset":1,"spacing":1}}`))
	if err == nil {
		t.Fatalf("expected an error for a foreign protocol version")
	}
}

func TestDecodeRefusesUnknownMessageTypes(t *testing.T) {
	codec := NewCodec(&wireWorld{})
	_, err := codec.Decode([]byte(`{"ver":1,"kind":"message","type":"NoSuchMessage","sender":1}`))
	if err == nil {
		t.Fatalf("expected an error for an unknown message type")
	}
}

func TestDecodeRefusesRemovalOfUnknownTokens(t *testing.T) {
	codec := NewCodec(&wireWorld{})
	_, err := codec.Decode([]byte(`{"ver":1,"kind":"message","type":"ping","sender":1,"removeTokens":[42]}`))
	if err == nil {
		t.Fatalf("expected an error for removing a token the world doesn't hold")
	}
	if _, ok := err.(*SerializationError); !ok {
		t.Fatalf("expected a *SerializationError, got %T: %v", err, err)
	}
}

func TestRegistryRejectsNonStructPrototypes(t *testing.T) {
	defer func() {
		// A nil prototype must hit the registry's own diagnostic, not a
		// nil dereference inside reflect.
		v := recover()
		if v == nil {
			t.Fatalf("expected a panic for a nil prototype")
		}
		text, ok := v.(string)
		if !ok || !strings.Contains(text, "prototype must be a struct pointer") {
			t.Fatalf("expected the registry's diagnostic, got %v", v)
		}
	}()
	RegisterMessage(nil)
}

func TestRegisteredNamesAreSorted(t *testing.T) {
	names := RegisteredMessages()
	found := false
	for i, name := range names {
		if name == "ping" {
			found = true
		}
		if i > 0 && names[i-1] > name {
			t.Fatalf("expected sorted names, got %v", names)
		}
	}
	if !found {
		t.Fatalf("expected %q in the registered messages, got %v", "ping", names)
	}
}

func TestSchemaDescribesTheEnvelope(t *testing.T) {
	schema := Schema()
	if schema.Title != "Stagecraft Wire Protocol" {
		t.Fatalf("unexpected schema title %q", schema.Title)
	}
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	for _, field := range []string{"ver", "kind", "addTokens", "removeTokens"} {
		if !bytes.Contains(data, []byte(field)) {
			t.Fatalf("expected the schema to mention %q", field)
		}
	}
}

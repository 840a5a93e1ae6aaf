// Package wire frames engine traffic as versioned JSON envelopes. A codec
// is bound to one world so it can resolve token ids on the way in; both
// ends of a pipe must register the same message and token types.
package wire

import (
	"encoding/json"
	"fmt"
	"reflect"

	"stagecraft"
)

// ProtocolVersion is stamped on every envelope. Peers with a different
// version refuse each other's frames.
const ProtocolVersion = 1

// Envelope is the wire shape of a frame. Exactly one of the payload groups
// is populated, selected by Kind.
type Envelope struct {
	Ver  int    `json:"ver" jsonschema:"description=Protocol version stamped on every frame"`
	Kind string `json:"kind" jsonschema:"enum=welcome,enum=message,enum=response,description=Which payload group is populated"`

	Type     string          `json:"type,omitempty" jsonschema:"description=Registered message type name"`
	Sender   uint64          `json:"sender,omitempty" jsonschema:"description=Actor id of the message sender"`
	Response uint64          `json:"response,omitempty" jsonschema:"description=Sender-local id echoed by the verdict"`
	Seq      uint64          `json:"seq,omitempty" jsonschema:"description=Position in the server's total order"`
	Payload  json.RawMessage `json:"payload,omitempty" jsonschema:"description=Message fields"`
	Adds     []StagedToken   `json:"addTokens,omitempty" jsonschema:"description=Tokens this message creates"`
	Removes  []uint64        `json:"removeTokens,omitempty" jsonschema:"description=Ids of tokens this message destroys"`

	Verdict *Verdict `json:"verdict,omitempty"`
	Welcome *Welcome `json:"welcome,omitempty"`
}

// StagedToken replicates one token a message adds to the world.
type StagedToken struct {
	Type    string          `json:"type" jsonschema:"description=Registered token type name"`
	ID      uint64          `json:"id" jsonschema:"description=World-unique id minted by the sender"`
	Payload json.RawMessage `json:"payload" jsonschema:"description=Token fields"`
}

// Verdict is the server's answer to a client-sent message.
type Verdict struct {
	Response uint64 `json:"response"`
	Accepted bool   `json:"accepted"`
	Seq      uint64 `json:"seq,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Welcome hands a client its slice of the id space.
type Welcome struct {
	Offset  uint64 `json:"offset"`
	Spacing uint64 `json:"spacing"`
}

// SerializationError reports a frame that can't be encoded or decoded:
// unregistered types, version mismatches, or references to tokens the
// receiving world doesn't hold. Transports treat these as fatal.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string {
	return "wire: " + e.Reason
}

func errorf(format string, args ...any) *SerializationError {
	return &SerializationError{Reason: fmt.Sprintf(format, args...)}
}

// Codec implements stagecraft.Codec over JSON envelopes. One codec serves
// one world for the lifetime of a game.
type Codec struct {
	world stagecraft.AnyWorld
}

// NewCodec binds a codec to the world it decodes into.
func NewCodec(world stagecraft.AnyWorld) *Codec {
	return &Codec{world: world}
}

func (c *Codec) Encode(frame stagecraft.Frame) ([]byte, error) {
	env := Envelope{Ver: ProtocolVersion, Kind: string(frame.Kind)}
	switch frame.Kind {
	case stagecraft.FrameWelcome:
		if frame.Welcome == nil {
			return nil, errorf("welcome frame without a welcome payload")
		}
		env.Welcome = &Welcome{Offset: frame.Welcome.Offset, Spacing: frame.Welcome.Spacing}
	case stagecraft.FrameResponse:
		if frame.Response == nil {
			return nil, errorf("response frame without a verdict payload")
		}
		env.Verdict = &Verdict{
			Response: frame.Response.ResponseID,
			Accepted: frame.Response.Accepted,
			Seq:      frame.Response.Seq,
			Reason:   frame.Response.Reason,
		}
	case stagecraft.FrameMessage:
		if err := c.encodeMessage(&env, frame.Message); err != nil {
			return nil, err
		}
	default:
		return nil, errorf("unknown frame kind %q", frame.Kind)
	}
	return json.Marshal(env)
}

func (c *Codec) encodeMessage(env *Envelope, m stagecraft.Message) error {
	if m == nil {
		return errorf("message frame without a message")
	}
	name, err := registeredMessageName(m)
	if err != nil {
		return err
	}
	core := stagecraft.MessageCoreOf(m)
	if !core.WasSent() {
		return errorf("message %s was never sent", name)
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return errorf("marshal %s: %v", name, err)
	}
	env.Type = name
	env.Sender = core.SenderID()
	env.Response = core.ResponseID()
	env.Seq = core.Seq()
	env.Payload = payload

	for _, tok := range core.StagedAdds() {
		tc := stagecraft.TokenCoreOf(tok)
		if !tc.HasID() {
			return errorf("%s stages a token with no id", name)
		}
		tokName, err := registeredTokenName(tok)
		if err != nil {
			return err
		}
		tokPayload, err := json.Marshal(tok)
		if err != nil {
			return errorf("marshal token %s: %v", tokName, err)
		}
		env.Adds = append(env.Adds, StagedToken{Type: tokName, ID: tc.ID(), Payload: tokPayload})
	}
	for _, tok := range core.StagedRemoves() {
		tc := stagecraft.TokenCoreOf(tok)
		if !tc.HasID() {
			return errorf("%s removes a token that was never in the world", name)
		}
		env.Removes = append(env.Removes, tc.ID())
	}
	return nil
}

func (c *Codec) Decode(data []byte) (stagecraft.Frame, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return stagecraft.Frame{}, errorf("unmarshal envelope: %v", err)
	}
	if env.Ver != ProtocolVersion {
		return stagecraft.Frame{}, errorf("protocol version %d, want %d", env.Ver, ProtocolVersion)
	}

	switch stagecraft.FrameKind(env.Kind) {
	case stagecraft.FrameWelcome:
		if env.Welcome == nil {
			return stagecraft.Frame{}, errorf("welcome frame without a welcome payload")
		}
		return stagecraft.Frame{
			Kind:    stagecraft.FrameWelcome,
			Welcome: &stagecraft.Welcome{Offset: env.Welcome.Offset, Spacing: env.Welcome.Spacing},
		}, nil
	case stagecraft.FrameResponse:
		if env.Verdict == nil {
			return stagecraft.Frame{}, errorf("response frame without a verdict payload")
		}
		return stagecraft.Frame{
			Kind: stagecraft.FrameResponse,
			Response: &stagecraft.ServerResponse{
				ResponseID: env.Verdict.Response,
				Accepted:   env.Verdict.Accepted,
				Seq:        env.Verdict.Seq,
				Reason:     env.Verdict.Reason,
			},
		}, nil
	case stagecraft.FrameMessage:
		m, err := c.decodeMessage(env)
		if err != nil {
			return stagecraft.Frame{}, err
		}
		return stagecraft.Frame{Kind: stagecraft.FrameMessage, Message: m}, nil
	default:
		return stagecraft.Frame{}, errorf("unknown frame kind %q", env.Kind)
	}
}

func (c *Codec) decodeMessage(env Envelope) (stagecraft.Message, error) {
	msgType, ok := lookupMessage(env.Type)
	if !ok {
		return nil, errorf("unknown message type %q", env.Type)
	}
	value := reflect.New(msgType).Interface()
	m, ok := value.(stagecraft.Message)
	if !ok {
		return nil, errorf("registered type %q is not a message", env.Type)
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, m); err != nil {
			return nil, errorf("unmarshal %s: %v", env.Type, err)
		}
	}
	stagecraft.RestoreMessage(m, env.Sender, env.Response, env.Seq)

	for _, staged := range env.Adds {
		tokType, ok := lookupToken(staged.Type)
		if !ok {
			return nil, errorf("unknown token type %q", staged.Type)
		}
		tokValue := reflect.New(tokType).Interface()
		tok, ok := tokValue.(stagecraft.AnyToken)
		if !ok {
			return nil, errorf("registered type %q is not a token", staged.Type)
		}
		if len(staged.Payload) > 0 {
			if err := json.Unmarshal(staged.Payload, tok); err != nil {
				return nil, errorf("unmarshal token %s: %v", staged.Type, err)
			}
		}
		stagecraft.RestoreStagedAdd(m, tok, staged.ID)
	}
	for _, id := range env.Removes {
		tok, ok := stagecraft.CoreOf(c.world).Token(id)
		if !ok {
			return nil, errorf("%s removes token %d, which is not in the world", env.Type, id)
		}
		stagecraft.RestoreStagedRemove(m, tok)
	}
	return m, nil
}

func registeredMessageName(m stagecraft.Message) (string, error) {
	name, t := typeName(m)
	registered, ok := lookupMessage(name)
	if !ok || registered != t {
		return "", errorf("message type %s is not registered", t)
	}
	return name, nil
}

func registeredTokenName(tok stagecraft.AnyToken) (string, error) {
	name, t := typeName(tok)
	registered, ok := lookupToken(name)
	if !ok || registered != t {
		return "", errorf("token type %s is not registered", t)
	}
	return name, nil
}

func typeName(v any) (string, reflect.Type) {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name(), t
}

var _ stagecraft.Codec = (*Codec)(nil)

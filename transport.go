package stagecraft

// Pipe is the transport collaborator: a reliable, ordered, framed byte
// stream between one client and the server. Implementations live outside
// the core (see the relay package); the core only ever drains and fills
// them between frame ticks.
type Pipe interface {
	// Send queues one frame for delivery.
	Send(frame []byte) error
	// Receive drains every frame that has arrived since the last call
	// without blocking. A TransportError from here is fatal to the
	// session.
	Receive() ([][]byte, error)
	Close() error
}

// FrameKind discriminates the payloads that cross a pipe.
type FrameKind string

const (
	// FrameWelcome carries a client's IDFactory parameters, sent once by
	// the server before the game starts.
	FrameWelcome FrameKind = "welcome"
	// FrameMessage carries a replicated message.
	FrameMessage FrameKind = "message"
	// FrameResponse carries the server's verdict on a client-sent message.
	FrameResponse FrameKind = "response"
)

// Welcome assigns a client its slice of the id space.
type Welcome struct {
	Offset  uint64
	Spacing uint64
}

// ServerResponse is the verdict on a message a client submitted. Accepted
// messages report the sequence number they were given in the server's total
// order; rejected ones carry the reason so the client can surface it.
type ServerResponse struct {
	ResponseID uint64
	Accepted   bool
	Seq        uint64
	Reason     string
}

// Frame is one decoded unit of pipe traffic.
type Frame struct {
	Kind     FrameKind
	Message  Message
	Response *ServerResponse
	Welcome  *Welcome
}

// Codec turns frames into wire bytes and back. The canonical implementation
// is wire.Codec, which is bound to a world so it can resolve token ids and
// refuse to serialize dangling references.
type Codec interface {
	Encode(frame Frame) ([]byte, error)
	Decode(data []byte) (Frame, error)
}

// ResponseID returns the client-local id the server echoes in its verdict.
// It is zero for messages that never crossed a client pipe.
func (m *MessageCore) ResponseID() uint64 {
	return m.responseID
}

// MessageCoreOf returns the embedded MessageCore of any message. It exists
// for engine collaborators like wire codecs; game code reaches the same
// methods through embedding.
func MessageCoreOf(m Message) *MessageCore {
	return m.messageCore()
}

// TokenCoreOf returns the embedded Token of any game token, for the same
// collaborators.
func TokenCoreOf(t AnyToken) *Token {
	return t.tokenCore()
}

// The Restore functions below exist for wire codecs: a decoded message has
// to be returned to the exact state it held on the sending machine, which
// includes engine bookkeeping no ordinary caller may touch.

// RestoreMessage marks a freshly decoded message as sent and reinstates its
// routing metadata.
func RestoreMessage(m Message, sender, responseID, seq uint64) {
	core := m.messageCore()
	core.sent = true
	core.senderID = sender
	core.responseID = responseID
	core.seq = seq
}

// RestoreStagedAdd re-stages a decoded token under its replicated id.
func RestoreStagedAdd(m Message, tok AnyToken, id uint64) {
	tok.tokenCore().forceID(id)
	core := m.messageCore()
	core.adds = append(core.adds, tok)
}

// RestoreStagedRemove re-stages a token (resolved from the local world's id
// table) for removal.
func RestoreStagedRemove(m Message, tok AnyToken) {
	core := m.messageCore()
	core.removes = append(core.removes, tok)
}

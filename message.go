package stagecraft

import "fmt"

// Message is a serializable intent to mutate the world. Concrete messages
// embed MessageCore, carry their parameters as exported fields (these are
// what travels over the wire), and implement the two hooks:
//
//   - Check validates the message against the current world. It must not
//     mutate anything; returning a Rejection vetoes the message. It runs on
//     the sender, again on the server, and on every other replica before
//     execution, so it has to be deterministic.
//   - Execute applies the mutation. It is the only place world and token
//     state may change, and it must produce identical results on every
//     replica given the same world and the same message fields.
//
// From the engine's perspective a message is immutable once sent.
type Message interface {
	Check(w AnyWorld) error
	Execute(w AnyWorld)
	messageCore() *MessageCore
}

// UndoableMessage is a message whose effect can be reverted. It is required
// for any message a client wants to execute speculatively, ahead of server
// confirmation.
//
// Undo must be relative, not a snapshot: by the time a rejection arrives,
// other accepted messages may have executed on top of the speculative one,
// and their effects have to survive the rollback. Subtract what Execute
// added, re-derive from the current world, but never restore values captured
// before Execute ran.
type UndoableMessage interface {
	Message
	Undo(w AnyWorld)
}

// MessageCore is embedded by every message type. It records who sent the
// message and which tokens the message creates or destroys.
type MessageCore struct {
	senderID   uint64
	sent       bool
	responseID uint64
	seq        uint64
	adds       []AnyToken
	removes    []AnyToken
}

func (m *MessageCore) messageCore() *MessageCore { return m }

// AddToken stages a token to be added to the world when this message
// executes. The token receives its id when the message is sent, and its
// full payload is replicated along with the message.
func (m *MessageCore) AddToken(tok AnyToken) {
	m.requireUnsent("AddToken")
	m.adds = append(m.adds, tok)
}

// RemoveToken stages a live token to be removed from the world when this
// message executes.
func (m *MessageCore) RemoveToken(tok AnyToken) {
	m.requireUnsent("RemoveToken")
	m.removes = append(m.removes, tok)
}

// StagedAdds returns the tokens this message will add. Wire codecs use this
// to replicate the token payloads.
func (m *MessageCore) StagedAdds() []AnyToken {
	return m.adds
}

// StagedRemoves returns the tokens this message will remove.
func (m *MessageCore) StagedRemoves() []AnyToken {
	return m.removes
}

// SenderID returns the id of the actor that sent the message. It panics if
// the message has not been sent yet.
func (m *MessageCore) SenderID() uint64 {
	if !m.sent {
		panicUsage(
			"message has not been sent yet.",
			`The sender id is stamped onto a message when an actor sends it.
Before that point there is no sender to report. If you need this value in a
reaction, you already have it: reactions only ever see sent messages.`)
	}
	return m.senderID
}

// WasSent reports whether the message has entered the pipeline.
func (m *MessageCore) WasSent() bool {
	return m.sent
}

// SentByReferee reports whether the message originated from the referee,
// the privileged server-side actor.
func (m *MessageCore) SentByReferee() bool {
	return m.SenderID() == RefereeID
}

// Seq returns the position of this message in the server's total order. It
// is zero until the server accepts the message.
func (m *MessageCore) Seq() uint64 {
	return m.seq
}

func (m *MessageCore) requireUnsent(op string) {
	if m.sent {
		panicUsage(
			fmt.Sprintf("MessageCore.%s called after the message was sent.", op),
			`Messages are immutable once sent: the bytes that were relayed to
the other participants can no longer change, so neither may the message.
Build a new message instead of reusing this one.`)
	}
}

// setSender stamps the sending actor's id. A message can be sent once.
func (m *MessageCore) setSender(ids *IDFactory) {
	if m.sent {
		panicUsage(
			"message has already been sent.",
			`Sending the same message twice would give it two positions in
the server's order and double-apply its effect. Construct a fresh message
for each send.`)
	}
	m.senderID = ids.Actor()
	m.sent = true
}

// assignTokenIDs mints ids for staged tokens from the sender's factory.
// Runs before the local check so the check can verify the ids.
func (m *MessageCore) assignTokenIDs(ids *IDFactory) {
	for _, tok := range m.adds {
		tok.tokenCore().giveID(ids)
	}
}

// checkMessage verifies the staged token bookkeeping, then defers to the
// message's own Check hook. Any failure is a veto, not a fault: the caller
// rejects (or undoes) the message and the game carries on.
func checkMessage(m Message, w AnyWorld, ids *IDFactory) error {
	core := w.worldCore()
	for _, tok := range m.messageCore().adds {
		tc := tok.tokenCore()
		if !tc.hasID {
			return Reject("staged token was never assigned an id")
		}
		if _, live := core.tokens[tc.id]; live {
			return Reject("token %d is already in the world", tc.id)
		}
		if ids != nil && !ids.Owns(tc.id) {
			return Reject("token %d was not created by the sending actor", tc.id)
		}
	}
	for _, tok := range m.messageCore().removes {
		tc := tok.tokenCore()
		if _, live := core.tokens[tc.id]; !live || !tc.hasID {
			return Reject("token %d is not in the world", tc.id)
		}
	}
	return m.Check(w)
}

// executeMessage unlocks the world, applies the staged token changes, and
// runs the message's Execute hook.
func executeMessage(m Message, w AnyWorld) {
	core := w.worldCore()
	relock := core.unlock()
	defer relock()
	endExecute := core.beginExecute(m)
	defer endExecute()

	for _, tok := range m.messageCore().adds {
		core.AddToken(tok)
	}
	for _, tok := range m.messageCore().removes {
		core.RemoveToken(tok)
	}
	m.Execute(w)
}

// undoMessage reverts a speculative execution after a server rejection:
// staged adds are pulled back out of the world, staged removes are restored
// under their old ids, and the message's Undo hook reverts the rest.
func undoMessage(m Message, w AnyWorld) {
	undoable, ok := m.(UndoableMessage)
	if !ok {
		panicUsage(
			fmt.Sprintf("message %T has no Undo hook.", m),
			`A message may only be executed ahead of server confirmation if
it knows how to revert itself. The client forum refuses to speculate on
messages without an Undo hook, so reaching this point means the engine's
bookkeeping went wrong; please report it.`)
	}

	core := w.worldCore()
	relock := core.unlock()
	defer relock()
	endExecute := core.beginExecute(m)
	defer endExecute()

	// The tokens staged for adding are live now; remove the instances that
	// actually made it into the world.
	for _, tok := range m.messageCore().adds {
		if live, found := core.tokens[tok.tokenCore().id]; found {
			core.RemoveToken(live)
		}
	}

	// The tokens staged for removal are expired; bring them back under the
	// ids they had before.
	for _, tok := range m.messageCore().removes {
		tc := tok.tokenCore()
		id := tc.id
		tc.ResetRegistration()
		tc.forceID(id)
		core.AddToken(tok)
	}

	undoable.Undo(w)
}

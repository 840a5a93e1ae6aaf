package stagecraft

import (
	"context"
	"time"

	"stagecraft/logging"
	"stagecraft/logging/gameflow"
)

// pendingMessage is a sent message waiting for the server's verdict.
type pendingMessage struct {
	message    Message
	speculated bool
}

// ClientForum is a client's view of a remote Forum. Messages submitted here
// are framed and sent up the pipe; messages and verdicts coming down the
// pipe are applied during update. A message with an Undo hook is executed
// speculatively the moment it is sent, so the local player never waits on
// the network; if the server rejects it, the execution is rolled back and
// the ReactToUndo subscriptions fire. Messages without an Undo hook only
// execute once the server accepts them.
type ClientForum struct {
	// Log receives pipeline events. Nil disables logging.
	Log logging.Publisher
	// Telemetry counts pipeline traffic. Nil disables counting.
	Telemetry *Telemetry
	// WelcomeTimeout bounds how long start waits for the server's id
	// assignment. Zero means the default of ten seconds.
	WelcomeTimeout time.Duration

	pipe  Pipe
	codec Codec

	world  AnyWorld
	actors []Actor

	ids       *IDFactory
	responses *IDFactory
	welcomed  bool

	inFlight []pendingMessage
	backlog  []Frame
	lastSeq  uint64
}

// NewClientForum wraps a connected pipe. The codec must be bound to the same
// world the game will run.
func NewClientForum(pipe Pipe, codec Codec) *ClientForum {
	return &ClientForum{
		pipe:      pipe,
		codec:     codec,
		responses: NewIDFactory(1, 1),
	}
}

// ReceiveID pumps the pipe looking for the server's id assignment. It
// returns true once the assignment has arrived; connection stages call this
// every frame until it does. Any game traffic that arrives behind the
// welcome is held and applied on the first update.
func (c *ClientForum) ReceiveID() (bool, error) {
	if c.welcomed {
		return true, nil
	}
	frames, err := c.receive()
	if err != nil {
		return false, err
	}
	for _, frame := range frames {
		if frame.Kind == FrameWelcome && !c.welcomed {
			c.ids = NewIDFactory(frame.Welcome.Offset, frame.Welcome.Spacing)
			c.welcomed = true
			gameflow.ClientConnected(context.Background(), c.Log, "", gameflow.ConnectedPayload{
				Offset:  frame.Welcome.Offset,
				Spacing: frame.Welcome.Spacing,
			})
			continue
		}
		c.backlog = append(c.backlog, frame)
	}
	return c.welcomed, nil
}

func (c *ClientForum) connect(world AnyWorld, actors []Actor) {
	for _, actor := range actors {
		if IsReferee(actor) {
			panicUsage(
				"a client game can't have a referee.",
				`The referee runs on the server, where it holds authority over
the whole game. Keep the referee out of the client's actor list; the client
will see the referee's messages arrive over the pipe like everyone else's.`)
		}
	}
	c.world = world
	c.actors = actors
}

// start waits for the id assignment if it hasn't arrived yet, then binds
// every local actor. All of a client's actors share the assigned factory.
func (c *ClientForum) start() error {
	timeout := c.WelcomeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for !c.welcomed {
		if _, err := c.ReceiveID(); err != nil {
			return err
		}
		if c.welcomed {
			break
		}
		if time.Now().After(deadline) {
			return transportf("welcome", "no id assignment within %s", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
	for _, actor := range c.actors {
		actor.actorCore().bind(c.world, c, c.ids)
	}
	return nil
}

// update applies everything that has come down the pipe since the last
// frame. Any error from here is a TransportError and fatal to the session.
func (c *ClientForum) update(dt float64) error {
	c.Telemetry.RecordTickDuration(time.Duration(dt * float64(time.Second)))
	frames := c.backlog
	c.backlog = nil
	fresh, err := c.receive()
	if err != nil {
		return err
	}
	frames = append(frames, fresh...)
	for _, frame := range frames {
		if err := c.apply(frame); err != nil {
			return err
		}
	}
	return nil
}

func (c *ClientForum) finish() error {
	return c.pipe.Close()
}

// submit frames the message, sends it to the server, and executes it
// speculatively if it can be undone.
func (c *ClientForum) submit(m Message) error {
	core := m.messageCore()
	core.responseID = c.responses.Next()
	_, undoable := m.(UndoableMessage)
	c.inFlight = append(c.inFlight, pendingMessage{message: m, speculated: undoable})

	data, err := c.codec.Encode(Frame{Kind: FrameMessage, Message: m})
	if err != nil {
		return &TransportError{Op: "encode", Err: err}
	}
	if err := c.pipe.Send(data); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	c.Telemetry.RecordSubmitted()
	c.Telemetry.RecordSent(len(data))

	if undoable {
		c.execute(m)
	}
	return nil
}

// receive drains the pipe and decodes every frame.
func (c *ClientForum) receive() ([]Frame, error) {
	raw, err := c.pipe.Receive()
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}
	frames := make([]Frame, 0, len(raw))
	for _, data := range raw {
		c.Telemetry.RecordReceived(len(data))
		frame, err := c.codec.Decode(data)
		if err != nil {
			return nil, &TransportError{Op: "decode", Err: err}
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (c *ClientForum) apply(frame Frame) error {
	switch frame.Kind {
	case FrameWelcome:
		// A duplicate assignment is harmless; the first one won.
		return nil
	case FrameMessage:
		return c.applyMessage(frame.Message)
	case FrameResponse:
		return c.applyResponse(frame.Response)
	default:
		return transportf("receive", "unknown frame kind %q", frame.Kind)
	}
}

// applyMessage executes a message relayed from another participant. The
// server's order is gapless, so any skip means frames were lost and the
// session can't continue.
func (c *ClientForum) applyMessage(m Message) error {
	core := m.messageCore()
	if core.seq != c.lastSeq+1 {
		return transportf("receive", "message out of order: got seq %d, want %d", core.seq, c.lastSeq+1)
	}
	c.lastSeq = core.seq
	c.execute(m)
	return nil
}

// applyResponse settles one of our own in-flight messages. Verdicts settle
// in arrival order, so a rejection's undo may run after later messages have
// already executed; the UndoableMessage contract (undo relatively, never
// restore snapshots) is what keeps that sound.
func (c *ClientForum) applyResponse(resp *ServerResponse) error {
	pending, ok := c.takePending(resp.ResponseID)
	if !ok {
		return transportf("receive", "response for unknown message %d", resp.ResponseID)
	}
	core := pending.message.messageCore()

	if !resp.Accepted {
		c.Telemetry.RecordRejected()
		gameflow.MessageRejected(context.Background(), c.Log, 0, gameflow.RejectedPayload{
			Kind:   messageKind(pending.message),
			Sender: core.senderID,
			Reason: resp.Reason,
		})
		if pending.speculated {
			undoMessage(pending.message, c.world)
			c.Telemetry.RecordUndone()
			gameflow.MessageUndone(context.Background(), c.Log, gameflow.MessagePayload{
				Kind:   messageKind(pending.message),
				Sender: core.senderID,
			})
			for _, actor := range c.actors {
				actor.actorCore().reactToUndo(pending.message)
			}
		}
		return nil
	}

	if resp.Seq != c.lastSeq+1 {
		return transportf("receive", "response out of order: got seq %d, want %d", resp.Seq, c.lastSeq+1)
	}
	c.lastSeq = resp.Seq
	core.seq = resp.Seq
	if !pending.speculated {
		c.execute(pending.message)
	}
	return nil
}

// execute applies a message locally and fires the reactions.
func (c *ClientForum) execute(m Message) {
	executeMessage(m, c.world)
	c.Telemetry.RecordExecuted()
	core := m.messageCore()
	gameflow.MessageExecuted(context.Background(), c.Log, core.seq, gameflow.MessagePayload{
		Kind:   messageKind(m),
		Sender: core.senderID,
	})
	for _, actor := range c.actors {
		actor.actorCore().reactTo(m)
	}
}

func (c *ClientForum) takePending(responseID uint64) (pendingMessage, bool) {
	for i, pending := range c.inFlight {
		if pending.message.messageCore().responseID == responseID {
			c.inFlight = append(c.inFlight[:i], c.inFlight[i+1:]...)
			return pending, true
		}
	}
	return pendingMessage{}, false
}

var _ Bus = (*ClientForum)(nil)

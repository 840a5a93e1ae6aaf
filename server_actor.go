package stagecraft

import (
	"context"

	"stagecraft/logging"
	"stagecraft/logging/gameflow"
)

// ServerActor is the server-side stand-in for one remote client. It owns the
// client's pipe: it hands out the client's id assignment when the game
// starts, vets and forwards the client's messages into the forum, answers
// each one with a verdict, and relays everyone else's messages back down.
//
// A ServerActor runs no game logic of its own, so it is muted: it can't
// subscribe to messages and its reactions never fire.
type ServerActor struct {
	ActorCore

	// Log receives vetting events. Nil disables logging.
	Log logging.Publisher
	// Telemetry counts this client's traffic. Nil disables counting.
	Telemetry *Telemetry

	pipe    Pipe
	codec   Codec
	session string
	err     error
}

// NewServerActor wraps a connected client pipe. The codec must be bound to
// the server's world.
func NewServerActor(pipe Pipe, codec Codec) *ServerActor {
	a := &ServerActor{pipe: pipe, codec: codec}
	a.muted = true
	return a
}

// SetSession attaches a transport session id for logging.
func (a *ServerActor) SetSession(session string) {
	a.session = session
}

// Err returns the first fatal transport error this client hit, if any. The
// game loop checks it after every update.
func (a *ServerActor) Err() error {
	return a.err
}

// OnStartGame sends the client its slice of the id space. Nothing else may
// cross the pipe before this frame; the client blocks on it.
func (a *ServerActor) OnStartGame() {
	welcome := Welcome{Offset: a.ids.Actor(), Spacing: a.ids.Spacing()}
	data, err := a.codec.Encode(Frame{Kind: FrameWelcome, Welcome: &welcome})
	if err == nil {
		if err = a.pipe.Send(data); err == nil {
			a.Telemetry.RecordSent(len(data))
		}
	}
	if err != nil {
		a.fail("welcome", err)
		return
	}
	gameflow.ClientConnected(context.Background(), a.Log, a.session, gameflow.ConnectedPayload{
		Offset:  welcome.Offset,
		Spacing: welcome.Spacing,
	})
}

// OnUpdateGame drains the client's pipe and settles each incoming message.
func (a *ServerActor) OnUpdateGame(dt float64) {
	if a.err != nil {
		return
	}
	raw, err := a.pipe.Receive()
	if err != nil {
		a.fail("receive", err)
		return
	}
	for _, data := range raw {
		a.Telemetry.RecordReceived(len(data))
		frame, err := a.codec.Decode(data)
		if err != nil {
			a.fail("decode", err)
			return
		}
		if frame.Kind != FrameMessage {
			a.fail("receive", transportf("receive", "client sent frame kind %q", frame.Kind))
			return
		}
		a.settle(frame.Message)
		if a.err != nil {
			return
		}
	}
}

// settle vets one client message: the sender id must be the one this client
// was assigned, and the message must pass its check against the server's
// world. Accepted messages join the total order; either way the client gets
// a verdict.
func (a *ServerActor) settle(m Message) {
	core := m.messageCore()
	resp := ServerResponse{ResponseID: core.responseID}

	var err error
	if core.SenderID() != a.ids.Actor() {
		err = Reject("message claims sender %d, but this client is %d", core.SenderID(), a.ids.Actor())
	} else {
		err = checkMessage(m, a.world, a.ids)
	}

	if err != nil {
		a.Telemetry.RecordRejected()
		resp.Reason = err.Error()
		gameflow.MessageRejected(context.Background(), a.Log, 0, gameflow.RejectedPayload{
			Kind:   messageKind(m),
			Sender: core.senderID,
			Reason: resp.Reason,
		})
	} else {
		if err := a.bus.submit(m); err != nil {
			a.fail("submit", err)
			return
		}
		resp.Accepted = true
		resp.Seq = core.seq
	}
	a.respond(resp)
}

func (a *ServerActor) respond(resp ServerResponse) {
	data, err := a.codec.Encode(Frame{Kind: FrameResponse, Response: &resp})
	if err == nil {
		if err = a.pipe.Send(data); err == nil {
			a.Telemetry.RecordSent(len(data))
		}
	}
	if err != nil {
		a.fail("respond", err)
	}
}

// relayMessage forwards a dispatched message to the client, unless the
// client sent it: the sender already executed it (or will, on its verdict).
func (a *ServerActor) relayMessage(m Message) {
	if a.err != nil {
		return
	}
	if m.messageCore().SenderID() == a.ids.Actor() {
		return
	}
	data, err := a.codec.Encode(Frame{Kind: FrameMessage, Message: m})
	if err == nil {
		if err = a.pipe.Send(data); err == nil {
			a.Telemetry.RecordSent(len(data))
		}
	}
	if err != nil {
		a.fail("relay", err)
	}
}

// OnFinishGame closes the client's pipe.
func (a *ServerActor) OnFinishGame() {
	_ = a.pipe.Close()
}

func (a *ServerActor) fail(op string, err error) {
	if a.err != nil {
		return
	}
	if _, ok := err.(*TransportError); ok {
		a.err = err
	} else {
		a.err = &TransportError{Op: op, Err: err}
	}
}

var _ messageRelayer = (*ServerActor)(nil)

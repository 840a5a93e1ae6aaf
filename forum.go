package stagecraft

import (
	"context"
	"reflect"
	"time"

	"stagecraft/logging"
	"stagecraft/logging/gameflow"
)

// Bus is the message pipeline an actor sends into. The two implementations
// are Forum (authoritative: uniplayer games and the server side of
// multiplayer games) and ClientForum (a client's view of a remote Forum).
// The game loop drives the lifecycle hooks; actors only ever see submit,
// through ActorCore.Send.
type Bus interface {
	connect(world AnyWorld, actors []Actor)
	start() error
	update(dt float64) error
	finish() error
	submit(m Message) error
}

// Journal records every message accepted into the total order, in order.
// The canonical implementation is journal.Store; a Forum with a nil Journal
// simply doesn't record.
type Journal interface {
	Append(seq uint64, sender uint64, frame []byte) error
	Close() error
}

// messageRelayer is implemented by actors that forward executed messages to
// another machine (ServerActor). The forum calls it for every dispatched
// message; the relayer decides whether its peer needs a copy.
type messageRelayer interface {
	relayMessage(m Message)
}

// Forum is the authoritative message bus. Every message submitted to it is
// assigned the next position in the total order, executed against the world,
// offered to each relaying actor, and finally delivered to the reaction
// subscriptions. In a uniplayer game the forum is the whole pipeline; on a
// server it sits behind one ServerActor per client.
type Forum struct {
	// Log receives pipeline events. Nil disables logging.
	Log logging.Publisher
	// Telemetry counts pipeline traffic. Nil disables counting.
	Telemetry *Telemetry
	// Journal, when set, records every accepted message. Codec must be set
	// alongside it so the forum can frame messages for the record.
	Journal Journal
	Codec   Codec

	world   AnyWorld
	actors  []Actor
	nextSeq uint64
}

// NewForum returns an empty authoritative forum. Configure the exported
// fields before the game starts.
func NewForum() *Forum {
	return &Forum{}
}

// connect assigns every actor its slice of the id space and wires it into
// the game. The referee always sorts first, so it always receives RefereeID;
// the remaining actors keep their given order.
func (f *Forum) connect(world AnyWorld, actors []Actor) {
	f.world = world
	f.actors = orderRefereeFirst(actors)

	firstID := world.worldCore().LastID() + 1
	spacing := uint64(len(f.actors))
	for i, actor := range f.actors {
		ids := NewIDFactory(firstID+uint64(i), spacing)
		actor.actorCore().bind(world, f, ids)
	}
}

func orderRefereeFirst(actors []Actor) []Actor {
	ordered := make([]Actor, 0, len(actors))
	var referee Actor
	for _, actor := range actors {
		if IsReferee(actor) {
			if referee != nil {
				panicUsage(
					"the game has two referees.",
					`Exactly one referee runs per game, and it holds the only
privileged actor id. Merge the two referees' responsibilities into one type,
or demote one of them to a regular actor.`)
			}
			referee = actor
			continue
		}
		ordered = append(ordered, actor)
	}
	if referee == nil {
		panicUsage(
			"the game has no referee.",
			`Every authoritative game needs exactly one referee: it is the only
actor allowed to end the game or make other global decisions. Add a type
embedding Referee to the actor list.`)
	}
	return append([]Actor{referee}, ordered...)
}

func (f *Forum) start() error {
	if f.Journal != nil && f.Codec == nil {
		panicUsage(
			"forum has a Journal but no Codec.",
			`The journal records wire frames, so the forum needs a codec to
produce them. Set Forum.Codec to the same codec the transports use.`)
	}
	gameflow.GameStarted(context.Background(), f.Log, gameflow.StartedPayload{
		Actors: len(f.actors),
	})
	return nil
}

func (f *Forum) update(dt float64) error {
	f.Telemetry.RecordTickDuration(time.Duration(dt * float64(time.Second)))
	return nil
}

func (f *Forum) finish() error {
	gameflow.GameFinished(context.Background(), f.Log, f.nextSeq)
	if f.Journal != nil {
		return f.Journal.Close()
	}
	return nil
}

// submit accepts a checked message into the total order and dispatches it.
// The caller (ActorCore.Send locally, ServerActor for remote clients) has
// already run the check; by this point the message cannot fail.
func (f *Forum) submit(m Message) error {
	f.Telemetry.RecordSubmitted()
	f.dispatch(m)
	return nil
}

// dispatch is the single place a message joins the authoritative order.
func (f *Forum) dispatch(m Message) {
	f.nextSeq++
	core := m.messageCore()
	core.seq = f.nextSeq

	f.record(m)
	executeMessage(m, f.world)
	f.Telemetry.RecordExecuted()
	gameflow.MessageExecuted(context.Background(), f.Log, core.seq, gameflow.MessagePayload{
		Kind:   messageKind(m),
		Sender: core.senderID,
	})

	for _, actor := range f.actors {
		if relayer, ok := actor.(messageRelayer); ok {
			relayer.relayMessage(m)
		}
		actor.actorCore().reactTo(m)
	}
}

// record appends the message's wire frame to the journal, if one is
// configured. A failing journal is reported but never stops the game.
func (f *Forum) record(m Message) {
	if f.Journal == nil {
		return
	}
	core := m.messageCore()
	frame, err := f.Codec.Encode(Frame{Kind: FrameMessage, Message: m})
	if err == nil {
		err = f.Journal.Append(core.seq, core.senderID, frame)
	}
	if err != nil {
		if f.Log != nil {
			f.Log.Publish(context.Background(), logging.Event{
				Type:     "gameflow.journal_error",
				Seq:      core.seq,
				Severity: logging.SeverityError,
				Category: logging.CategorySystem,
				Payload:  map[string]any{"error": err.Error()},
			})
		}
	}
}

func messageKind(m Message) string {
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

var _ Bus = (*Forum)(nil)

package stagecraft

import (
	"fmt"
	"reflect"
)

// Actor is a participant in the game: a human interface, an AI, or the
// referee. Concrete actors embed ActorCore (which supplies no-op lifecycle
// hooks and the Send/React machinery) and override the hooks they care
// about.
//
// The lifecycle hooks are driven by the surrounding game loop, not by the
// core: OnStartGame once at the beginning, OnUpdateGame once per frame tick,
// OnFinishGame once after the world ends.
type Actor interface {
	OnStartGame()
	OnUpdateGame(dt float64)
	OnFinishGame()
	actorCore() *ActorCore
}

// reaction pairs a message type with a subscribed callback.
type reaction struct {
	msgType reflect.Type
	fn      func(Message)
}

// ActorCore is embedded by every actor.
type ActorCore struct {
	world AnyWorld
	bus   Bus
	ids   *IDFactory

	reactions     []reaction
	undoReactions []reaction
	muted         bool
}

func (a *ActorCore) actorCore() *ActorCore { return a }

// OnStartGame is a no-op unless the embedding actor overrides it.
func (a *ActorCore) OnStartGame() {}

// OnUpdateGame is a no-op unless the embedding actor overrides it.
func (a *ActorCore) OnUpdateGame(dt float64) {}

// OnFinishGame is a no-op unless the embedding actor overrides it.
func (a *ActorCore) OnFinishGame() {}

// ID returns the actor's stable id, assigned when the game is connected.
// The referee always holds RefereeID.
func (a *ActorCore) ID() uint64 {
	if a.ids == nil {
		panicUsage(
			"actor does not have an id yet.",
			`Actor ids are assigned when the game starts and the forum
connects every participant. Query the id from a lifecycle hook or a
reaction, not from the actor's constructor.`)
	}
	return a.ids.Actor()
}

// World returns the game world this actor participates in.
func (a *ActorCore) World() AnyWorld {
	return a.world
}

// Send submits a drafted message to the actor's forum. The message is
// checked against the local world first; a Rejection is returned
// immediately and nothing else happens. Once the local check passes the
// outcome is asynchronous: the forum executes the message (possibly
// speculatively) and the server's verdict, if it ever differs, arrives via
// the undo path and ReactToUndo subscriptions — not as a return value here.
func (a *ActorCore) Send(m Message) error {
	if a.bus == nil {
		panicUsage(
			fmt.Sprintf("actor can't send %T before the game starts.", m),
			`Sending requires a connected forum, which exists only between
OnStartGame and OnFinishGame. Construct messages early if you like, but send
them from a lifecycle hook or a reaction.`)
	}
	core := m.messageCore()
	core.setSender(a.ids)
	core.assignTokenIDs(a.ids)
	if err := checkMessage(m, a.world, a.ids); err != nil {
		return err
	}
	return a.bus.submit(m)
}

// React subscribes a callback to every executed message of the prototype's
// type. Callbacks fire synchronously during message execution, across all
// interested actors, in the order they were registered.
func (a *ActorCore) React(prototype Message, fn func(Message)) {
	a.requireObserving()
	a.reactions = append(a.reactions, reaction{
		msgType: reflect.TypeOf(prototype),
		fn:      fn,
	})
}

// ReactToUndo subscribes a callback to messages of the prototype's type
// that the server rejected after this client speculatively executed them.
// The callback fires after the undo has been applied, so the world is
// already consistent again.
func (a *ActorCore) ReactToUndo(prototype Message, fn func(Message)) {
	a.requireObserving()
	a.undoReactions = append(a.undoReactions, reaction{
		msgType: reflect.TypeOf(prototype),
		fn:      fn,
	})
}

func (a *ActorCore) requireObserving() {
	if a.muted {
		panicUsage(
			"this actor can't subscribe to messages.",
			`Server-side proxy actors only shuttle messages between machines;
reacting to game traffic from one would run game logic that no other replica
runs. Subscribe from a regular actor (or the referee) instead.`)
	}
}

// bind wires the actor into a starting game.
func (a *ActorCore) bind(world AnyWorld, bus Bus, ids *IDFactory) {
	if a.bus != nil {
		panicUsage(
			"actor is already part of a game.",
			`Each actor instance participates in exactly one game. Construct
a fresh actor for a fresh game instead of reusing this one.`)
	}
	a.world = world
	a.bus = bus
	a.ids = ids
}

// reactTo fires the ordered message subscriptions.
func (a *ActorCore) reactTo(m Message) {
	if a.muted {
		return
	}
	t := reflect.TypeOf(m)
	for _, r := range a.reactions {
		if r.msgType == t {
			r.fn(m)
		}
	}
}

// reactToUndo fires the ordered undo subscriptions.
func (a *ActorCore) reactToUndo(m Message) {
	if a.muted {
		return
	}
	t := reflect.TypeOf(m)
	for _, r := range a.undoReactions {
		if r.msgType == t {
			r.fn(m)
		}
	}
}

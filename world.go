package stagecraft

import (
	"fmt"
	"sort"
)

// World is the authoritative container of all tokens and game state. Game
// worlds embed World and add their own fields; the embedded base satisfies
// AnyWorld, which is what the engine and every message hook receive.
//
// The world spends almost all of its time locked. It is unlocked only while
// a message executes (and during the per-frame token update), so any state
// change that matters has to travel through a message. AddToken, RemoveToken
// and EndGame enforce this themselves; game worlds should call Guard at the
// top of their own mutating methods to get the same protection.
//
// The zero value is a locked, empty world ready for use.
type World struct {
	tokens    map[uint64]AnyToken
	lastID    uint64
	unlocked  bool
	over      bool
	executing Message
	self      AnyWorld
}

// AnyWorld is satisfied by any type that embeds World.
type AnyWorld interface {
	worldCore() *World
}

func (w *World) worldCore() *World { return w }

// Token returns the live token with the given id.
func (w *World) Token(id uint64) (AnyToken, bool) {
	tok, ok := w.tokens[id]
	return tok, ok
}

// Tokens returns the live tokens in ascending id order. The order is the
// same on every replica, so it is safe to iterate during execution.
func (w *World) Tokens() []AnyToken {
	ids := make([]uint64, 0, len(w.tokens))
	for id := range w.tokens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	tokens := make([]AnyToken, len(ids))
	for i, id := range ids {
		tokens[i] = w.tokens[id]
	}
	return tokens
}

// Len returns the number of live tokens.
func (w *World) Len() int {
	return len(w.tokens)
}

// Contains reports whether the token is a live member of this world.
func (w *World) Contains(tok AnyToken) bool {
	core := tok.tokenCore()
	if !core.hasID {
		return false
	}
	held, ok := w.tokens[core.id]
	return ok && held == tok
}

// LastID returns the largest token id ever registered with the world.
func (w *World) LastID() uint64 {
	return w.lastID
}

// Locked reports whether the world currently refuses mutation.
func (w *World) Locked() bool {
	return !w.unlocked
}

// GameOver reports whether EndGame has executed.
func (w *World) GameOver() bool {
	return w.over
}

// Winner-style fields and other scalar state live on the embedding game
// world; Guard is the hook its mutating methods use to stay honest.
//
// Guard panics with a UsageError if the world is locked.
func (w *World) Guard() {
	if !w.unlocked {
		panicUsage(
			"can't modify the world while it is locked.",
			`World state may only change inside a message's Execute step.
Anywhere else the change would not be replicated to the other participants
and the game would silently fall out of sync. Wrap the mutation in a message
and send it instead.`)
	}
}

// AddToken registers a token staged by the currently executing message. It
// is only legal mid-execute, and the token must already carry an id minted
// by the sender's IDFactory (which happens when the staging message is
// sent).
func (w *World) AddToken(tok AnyToken) {
	w.requireExecuting("AddToken")
	core := tok.tokenCore()
	switch core.Registration() {
	case RegistrationActive:
		panicUsage(
			fmt.Sprintf("token %d has already been added to the world.", core.id),
			`Adding the same token twice would corrupt the world's id table.
If you want a second copy, construct a second token and stage it on its own
message.`)
	case RegistrationExpired:
		panicUsage(
			fmt.Sprintf("token %d was removed and can't be re-added.", core.id),
			`Removed tokens are dead on every replica. If you really mean to
bring this token back, call ResetRegistration on it and stage it on a new
add-message so it is replicated afresh.`)
	}
	if !core.hasID {
		panicUsage(
			"token doesn't have an id.",
			`Tokens receive their id when the message that stages them (via
MessageCore.AddToken) is sent. Passing an unstaged token directly to
World.AddToken skips that step, so the id — and the token itself — would
never reach the other replicas.`)
	}
	if w.tokens == nil {
		w.tokens = make(map[uint64]AnyToken)
	}
	w.tokens[core.id] = tok
	core.world = w
	core.removed = false
	if core.id > w.lastID {
		w.lastID = core.id
	}
	if observer, ok := tok.(TokenObserver); ok {
		observer.OnAddToWorld(w.self)
	}
}

// RemoveToken unregisters a live token. Only legal mid-execute. The token is
// expired afterwards: further use panics until ResetRegistration.
func (w *World) RemoveToken(tok AnyToken) {
	w.requireExecuting("RemoveToken")
	core := tok.tokenCore()
	switch core.Registration() {
	case RegistrationPending:
		panicUsage(
			"can't remove a token that was never added to the world.",
			`Only live tokens can be removed. This token is still pending:
either it was never staged on an add-message, or that message has not
executed yet.`)
	case RegistrationExpired:
		panicUsage(
			fmt.Sprintf("token %d has already been removed from the world.", core.id),
			`Double-removal usually means two copies of a remove-message were
sent, or a stale token reference was used a second time.`)
	}
	if observer, ok := tok.(TokenObserver); ok {
		observer.OnRemoveFromWorld(w.self)
	}
	delete(w.tokens, core.id)
	core.world = nil
	core.removed = true
}

// EndGame marks the world terminal. It is only legal from the execute step
// of a referee-sent message: ending the game is irreversible (there is no
// undo path), so arbitrary participants can't be allowed to trigger it. The
// surrounding game loop notices GameOver after the current update and calls
// OnFinishGame on every actor.
func (w *World) EndGame() {
	w.requireExecuting("EndGame")
	if !w.executing.messageCore().SentByReferee() {
		panicUsage(
			"only the referee may end the game.",
			`EndGame is irreversible, so it can never be part of a message
that might be speculatively executed and later undone. Route game-ending
decisions through the referee: have the relevant token or actor report the
condition, and let the referee send the closing message.`)
	}
	w.over = true
}

// requireExecuting panics unless a message's execute step is on the stack.
func (w *World) requireExecuting(op string) {
	if w.unlocked && w.executing != nil {
		return
	}
	panicUsage(
		fmt.Sprintf("World.%s called outside a message's execute step.", op),
		`Structural world changes must replicate to every participant, which
only happens when they are carried by a message. Move this call into a
message's Execute hook and send the message instead of calling it directly.`)
}

// CoreOf returns the embedded World of any game world. It exists for engine
// collaborators like wire codecs; game code reaches the same methods through
// embedding.
func CoreOf(w AnyWorld) *World {
	return w.worldCore()
}

// adopt records the outer (embedding) world value so observers can be handed
// the game's own world type. Engine use only.
func (w *World) adopt(self AnyWorld) {
	w.self = self
}

// unlock opens the world for mutation and returns the matching relock
// function. Engine use only.
func (w *World) unlock() func() {
	if w.unlocked {
		return func() {}
	}
	w.unlocked = true
	return func() { w.unlocked = false }
}

// beginExecute records the in-flight message so AddToken/RemoveToken/EndGame
// can verify they are being driven by message execution.
func (w *World) beginExecute(m Message) func() {
	prev := w.executing
	w.executing = m
	return func() { w.executing = prev }
}

// updateTokens drives the per-frame hook on every token that wants one. The
// world is unlocked for the duration; these updates must stay deterministic,
// they run independently on every replica.
func (w *World) updateTokens(dt float64) {
	relock := w.unlock()
	defer relock()
	for _, tok := range w.Tokens() {
		if ticker, ok := tok.(TokenTicker); ok {
			ticker.OnUpdateGame(dt)
		}
	}
}

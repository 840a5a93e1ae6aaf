package stagecraft

import "fmt"

// Registration tracks where a token is in its lifecycle.
type Registration int

const (
	// RegistrationPending: constructed, not yet added to a world.
	RegistrationPending Registration = iota
	// RegistrationActive: live member of exactly one world.
	RegistrationActive
	// RegistrationExpired: removed from the world; almost any further use
	// is a UsageError.
	RegistrationExpired
)

func (r Registration) String() string {
	switch r {
	case RegistrationPending:
		return "pending"
	case RegistrationActive:
		return "active"
	case RegistrationExpired:
		return "expired"
	default:
		return fmt.Sprintf("registration(%d)", int(r))
	}
}

// Token is the embeddable base for every replicated game object. Game tokens
// embed Token and add their own fields; the embedded base satisfies AnyToken,
// which is what the engine passes around.
//
// A token is constructed freely off-world, becomes live when an add-message
// executes, and dies when a remove-message executes. It must never be mutated
// outside a message's execute step: call Guard at the top of every mutating
// method to enforce that.
type Token struct {
	id      uint64
	hasID   bool
	world   *World
	removed bool
}

// AnyToken is satisfied by any type that embeds Token.
type AnyToken interface {
	tokenCore() *Token
}

func (t *Token) tokenCore() *Token { return t }

// ID returns the token's world-unique id. It is zero until an IDFactory
// assigns one at send time.
func (t *Token) ID() uint64 {
	return t.id
}

// HasID reports whether an id has been assigned yet.
func (t *Token) HasID() bool {
	return t.hasID
}

// Registration returns the token's lifecycle state.
func (t *Token) Registration() Registration {
	switch {
	case t.removed:
		return RegistrationExpired
	case t.world != nil:
		return RegistrationActive
	default:
		return RegistrationPending
	}
}

// Guard panics with a UsageError unless the token may be mutated right now:
// it must be an active member of a world and the world must be unlocked,
// which is only the case inside a message's execute step. Game tokens call
// Guard at the top of every mutating method.
func (t *Token) Guard() {
	switch t.Registration() {
	case RegistrationPending:
		panicUsage(
			"can't modify a token that isn't in the world.",
			`This token has not been added to the world yet, so mutating it
would not replicate anywhere. Stage the token on a message with
MessageCore.AddToken, send the message, and mutate the token from that
message's Execute step (or a later one).`)
	case RegistrationExpired:
		panicUsage(
			fmt.Sprintf("using a removed token (id %d).", t.id),
			`This token was removed from the world, so it no longer exists on
any replica. Holding onto removed tokens almost always indicates a stale
reference; drop the reference when you see the remove-message execute.`)
	}
	if t.world.Locked() {
		panicUsage(
			fmt.Sprintf("can't modify token %d while the world is locked.", t.id),
			`World and token state may only change inside a message's Execute
step. Anywhere else the change would be invisible to the other replicas and
the game would silently fall out of sync. Wrap the mutation in a message and
send it instead.`)
	}
}

// ResetRegistration returns an expired token to the pending state so it can
// be added to the world again (by sending a message, as usual). It is a
// UsageError to reset a token that hasn't been removed.
func (t *Token) ResetRegistration() {
	if t.Registration() != RegistrationExpired {
		panicUsage(
			"can't reset a token that is still in use.",
			`ResetRegistration exists so a token that was removed from the
world can be added back later. This token was never removed, so there is
nothing to reset.`)
	}
	*t = Token{}
}

// giveID assigns an id from the sender's factory. Called exactly once, when
// the message staging this token is sent.
func (t *Token) giveID(ids *IDFactory) {
	if t.hasID {
		panicUsage(
			fmt.Sprintf("token already has id %d.", t.id),
			`Each token is assigned an id exactly once, when the message that
adds it to the world is sent. Sending the same token in two add-messages (or
re-sending a message) would break the world's id table on every replica.`)
	}
	t.id = ids.Next()
	t.hasID = true
}

// forceID restores a replicated id on a freshly decoded token. For use by
// wire codecs only.
func (t *Token) forceID(id uint64) {
	t.id = id
	t.hasID = true
}

// TokenTicker is implemented by tokens that want a per-frame update. The
// world is unlocked while these run, the same as during message execution.
type TokenTicker interface {
	AnyToken
	OnUpdateGame(dt float64)
}

// TokenObserver is implemented by tokens that react to entering or leaving
// the world.
type TokenObserver interface {
	AnyToken
	OnAddToWorld(w AnyWorld)
	OnRemoveFromWorld(w AnyWorld)
}

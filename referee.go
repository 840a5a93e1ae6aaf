package stagecraft

// RefereeID is the actor id reserved for the referee. Id assignment always
// hands the first offset to the referee, so every replica agrees on this
// value and SentByReferee is a plain comparison.
const RefereeID uint64 = 1

// Referee is the privileged actor. It exists only on the server, and it is
// the sole legitimate origin of game-lifecycle messages: picking the
// opening state, ending the game, and anything else no individual player
// should be able to decide. Game referees embed Referee the same way other
// actors embed ActorCore.
type Referee struct {
	ActorCore
}

// isReferee marks the type for the forum's id assignment.
func (r *Referee) isReferee() {}

// refereeActor is how the engine recognizes a referee among the actors.
type refereeActor interface {
	Actor
	isReferee()
}

// IsReferee reports whether the actor is (or embeds) a Referee.
func IsReferee(a Actor) bool {
	_, ok := a.(refereeActor)
	return ok
}

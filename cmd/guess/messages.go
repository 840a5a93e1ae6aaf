package main

import (
	"stagecraft"
	"stagecraft/wire"
)

func init() {
	wire.RegisterMessage(&PickNumber{})
	wire.RegisterMessage(&GuessNumber{})
	wire.RegisterMessage(&DeclareWinner{})
	wire.RegisterToken(&Scoreboard{})
}

// PickNumber is the referee's opening move: it sets the secret number and
// the starting range, and brings the scoreboard into the world.
type PickNumber struct {
	stagecraft.MessageCore

	Number     int `json:"number"`
	LowerBound int `json:"lowerBound"`
	UpperBound int `json:"upperBound"`
}

func (m *PickNumber) Check(w stagecraft.AnyWorld) error {
	world := w.(*GuessWorld)
	if !m.SentByReferee() {
		return stagecraft.Reject("only the referee picks the number")
	}
	if world.Number != 0 {
		return stagecraft.Reject("number already picked")
	}
	if m.Number <= m.LowerBound || m.Number >= m.UpperBound {
		return stagecraft.Reject("number %d is outside (%d, %d)", m.Number, m.LowerBound, m.UpperBound)
	}
	return nil
}

func (m *PickNumber) Execute(w stagecraft.AnyWorld) {
	world := w.(*GuessWorld)
	world.Guard()
	world.Number = m.Number
	world.LowerBound = m.LowerBound
	world.UpperBound = m.UpperBound
	world.Scoreboard = m.StagedAdds()[0].(*Scoreboard)
}

// GuessNumber is a player's guess. A wrong guess narrows the range for
// everyone; a right one leaves the world to the referee, who reacts by
// declaring the winner. Guesses carry no undo: the bound-clamping below is
// absolute, so a speculative copy rolled back after someone else's guess
// landed would reopen a range the server already closed. A guess applies
// once the server confirms it.
type GuessNumber struct {
	stagecraft.MessageCore

	Player uint64 `json:"player"`
	Guess  int    `json:"guess"`
}

func (m *GuessNumber) Check(w stagecraft.AnyWorld) error {
	world := w.(*GuessWorld)
	if world.Number == 0 {
		return stagecraft.Reject("no number has been picked yet")
	}
	if m.Guess <= world.LowerBound || m.Guess >= world.UpperBound {
		return stagecraft.Reject("guess %d is outside (%d, %d)", m.Guess, world.LowerBound, world.UpperBound)
	}
	return nil
}

func (m *GuessNumber) Execute(w stagecraft.AnyWorld) {
	world := w.(*GuessWorld)
	world.Guard()
	switch {
	case m.Guess < world.Number:
		world.LowerBound = max(m.Guess, world.LowerBound)
	case m.Guess > world.Number:
		world.UpperBound = min(m.Guess, world.UpperBound)
	}
	world.Scoreboard.RecordGuess(m.Player)
}

// DeclareWinner closes the game. Only the referee sends it, which is what
// lets it call EndGame; it takes the scoreboard out of the world on its way
// through.
type DeclareWinner struct {
	stagecraft.MessageCore

	Winner uint64 `json:"winner"`
}

func (m *DeclareWinner) Check(w stagecraft.AnyWorld) error {
	world := w.(*GuessWorld)
	if !m.SentByReferee() {
		return stagecraft.Reject("only the referee declares the winner")
	}
	if world.Winner != 0 {
		return stagecraft.Reject("winner already declared")
	}
	return nil
}

func (m *DeclareWinner) Execute(w stagecraft.AnyWorld) {
	world := w.(*GuessWorld)
	world.Guard()
	world.Winner = m.Winner
	world.Scoreboard = nil
	world.EndGame()
}

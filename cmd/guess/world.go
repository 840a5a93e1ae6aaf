package main

import "stagecraft"

// GuessWorld holds the secret number, the range that hasn't been eliminated
// yet, and the winner once there is one.
type GuessWorld struct {
	stagecraft.World

	Number     int
	LowerBound int
	UpperBound int
	Winner     uint64

	Scoreboard *Scoreboard
}

// NewGuessWorld returns an empty world; the referee's opening message fills
// it in.
func NewGuessWorld() *GuessWorld {
	return &GuessWorld{}
}

// Scoreboard tracks how many guesses each player has burned. It rides into
// the world on the referee's opening message and leaves when the winner is
// declared.
type Scoreboard struct {
	stagecraft.Token

	Attempts map[uint64]int `json:"attempts"`
}

// RecordGuess counts one guess against a player.
func (s *Scoreboard) RecordGuess(player uint64) {
	s.Guard()
	if s.Attempts == nil {
		s.Attempts = make(map[uint64]int)
	}
	s.Attempts[player]++
}

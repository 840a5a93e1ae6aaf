package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"stagecraft"
)

// GuessReferee picks the secret number when the game starts and watches the
// guesses; the first correct one wins.
type GuessReferee struct {
	stagecraft.Referee

	LowerBound int
	UpperBound int
}

func NewGuessReferee(lower, upper int) *GuessReferee {
	return &GuessReferee{LowerBound: lower, UpperBound: upper}
}

func (r *GuessReferee) OnStartGame() {
	r.React(&GuessNumber{}, r.onGuess)

	pick := &PickNumber{
		Number:     r.LowerBound + 1 + rand.Intn(r.UpperBound-r.LowerBound-1),
		LowerBound: r.LowerBound,
		UpperBound: r.UpperBound,
	}
	pick.AddToken(&Scoreboard{})
	if err := r.Send(pick); err != nil {
		panic(err)
	}
}

func (r *GuessReferee) onGuess(m stagecraft.Message) {
	guess := m.(*GuessNumber)
	world := r.World().(*GuessWorld)
	if world.GameOver() || guess.Guess != world.Number {
		return
	}
	declare := &DeclareWinner{Winner: guess.Player}
	declare.RemoveToken(world.Scoreboard)
	if err := r.Send(declare); err != nil {
		// Another declaration beat this one; the game is already over.
		return
	}
}

// AIActor waits a moment, then guesses a random number within the remaining
// range.
type AIActor struct {
	stagecraft.ActorCore

	timer float64
}

func NewAIActor() *AIActor {
	return &AIActor{}
}

func (a *AIActor) OnStartGame() {
	a.resetTimer()
}

func (a *AIActor) OnUpdateGame(dt float64) {
	world := a.World().(*GuessWorld)
	if world.Number == 0 || world.GameOver() {
		return
	}
	a.timer -= dt
	if a.timer > 0 {
		return
	}
	a.resetTimer()

	lower, upper := world.LowerBound+1, world.UpperBound-1
	if upper < lower {
		return
	}
	guess := &GuessNumber{
		Player: a.ID(),
		Guess:  lower + rand.Intn(upper-lower+1),
	}
	// A rejection just means another guess got there first.
	_ = a.Send(guess)
}

func (a *AIActor) resetTimer() {
	a.timer = 0.5 + rand.Float64()
}

// ConsoleActor narrates the game on the terminal. In interactive mode it
// also reads guesses from stdin, one number per line.
type ConsoleActor struct {
	stagecraft.ActorCore

	out     io.Writer
	guesses chan int
}

func NewConsoleActor(out io.Writer, interactive bool) *ConsoleActor {
	a := &ConsoleActor{out: out}
	if interactive {
		a.guesses = make(chan int, 4)
		go a.readGuesses()
	}
	return a
}

func (a *ConsoleActor) readGuesses() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		guess, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil {
			continue
		}
		a.guesses <- guess
	}
}

func (a *ConsoleActor) OnStartGame() {
	a.React(&PickNumber{}, func(m stagecraft.Message) {
		pick := m.(*PickNumber)
		fmt.Fprintf(a.out, "I'm thinking of a number between %d and %d.\n", pick.LowerBound, pick.UpperBound)
	})
	a.React(&GuessNumber{}, func(m stagecraft.Message) {
		guess := m.(*GuessNumber)
		world := a.World().(*GuessWorld)
		fmt.Fprintf(a.out, "player %d guessed %d: %d < ? < %d\n",
			guess.Player, guess.Guess, world.LowerBound, world.UpperBound)
	})
}

func (a *ConsoleActor) OnUpdateGame(dt float64) {
	if a.guesses == nil {
		return
	}
	world := a.World().(*GuessWorld)
	for {
		select {
		case guess := <-a.guesses:
			if world.Number == 0 || world.GameOver() {
				continue
			}
			m := &GuessNumber{Player: a.ID(), Guess: guess}
			if err := a.Send(m); err != nil {
				fmt.Fprintf(a.out, "guess %d not allowed: %v\n", guess, err)
			}
		default:
			return
		}
	}
}

func (a *ConsoleActor) OnFinishGame() {
	world := a.World().(*GuessWorld)
	if world.Winner == a.ID() {
		fmt.Fprintln(a.out, "You won!")
	} else {
		fmt.Fprintf(a.out, "Player %d won. The number was %d.\n", world.Winner, world.Number)
	}
}

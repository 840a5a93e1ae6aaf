package stagecraft

import "time"

// Stage is one phase of a program's life: connecting, playing, anything
// else. A theater runs exactly one stage at a time; the stage decides when
// to hand over by returning its successor from OnUpdateStage.
type Stage interface {
	OnEnterStage() error
	// OnUpdateStage advances the stage by one frame and names the stage to
	// run next: itself to keep going, another stage to hand over, or nil to
	// bring the theater down.
	OnUpdateStage(dt float64) (Stage, error)
	OnExitStage() error
}

// Theater drives stages. The caller owns the loop, the same as with Game:
// construct with the opening stage, call Update every frame, stop when Done
// reports true (or use Run, which does the looping).
type Theater struct {
	stage   Stage
	entered bool
	done    bool
}

// NewTheater returns a theater that will open with the given stage.
func NewTheater(opening Stage) *Theater {
	return &Theater{stage: opening}
}

// Done reports whether the final stage has exited.
func (t *Theater) Done() bool {
	return t.done
}

// Update advances the current stage one frame, switching stages when the
// current one hands over.
func (t *Theater) Update(dt float64) error {
	if t.done {
		return nil
	}
	if !t.entered {
		if err := t.stage.OnEnterStage(); err != nil {
			return err
		}
		t.entered = true
	}
	next, err := t.stage.OnUpdateStage(dt)
	if err != nil {
		return err
	}
	if next == t.stage {
		return nil
	}
	if err := t.stage.OnExitStage(); err != nil {
		return err
	}
	t.stage = next
	t.entered = false
	if next == nil {
		t.done = true
	}
	return nil
}

// Run loops Update at the given frame interval until the theater is done.
func (t *Theater) Run(interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for !t.done {
		now := <-ticker.C
		dt := now.Sub(last).Seconds()
		last = now
		if err := t.Update(dt); err != nil {
			return err
		}
	}
	return nil
}

// GameStage runs a game to completion inside a theater.
type GameStage struct {
	game      *Game
	successor Stage
}

// NewGameStage wraps a game. The stage hands over to nil when the game
// finishes, closing the theater; use Successor to chain another stage
// instead.
func NewGameStage(game *Game) *GameStage {
	return &GameStage{game: game}
}

// Successor names the stage to run after the game finishes.
func (s *GameStage) Successor(next Stage) *GameStage {
	s.successor = next
	return s
}

func (s *GameStage) OnEnterStage() error {
	return s.game.Start()
}

func (s *GameStage) OnUpdateStage(dt float64) (Stage, error) {
	if err := s.game.Update(dt); err != nil {
		return nil, err
	}
	if s.game.Finished() {
		return s.successor, nil
	}
	return s, nil
}

func (s *GameStage) OnExitStage() error {
	return s.game.Finish()
}

// ClientConnectionStage pumps a client forum until the server assigns the
// client its id, then hands over to the game stage. The game is built
// lazily, once the connection is ready.
type ClientConnectionStage struct {
	forum *ClientForum
	build func() *Game
}

// NewClientConnectionStage waits on the forum's id assignment, then runs
// the game the builder returns.
func NewClientConnectionStage(forum *ClientForum, build func() *Game) *ClientConnectionStage {
	return &ClientConnectionStage{forum: forum, build: build}
}

func (s *ClientConnectionStage) OnEnterStage() error {
	return nil
}

func (s *ClientConnectionStage) OnUpdateStage(dt float64) (Stage, error) {
	ready, err := s.forum.ReceiveID()
	if err != nil {
		return nil, err
	}
	if !ready {
		return s, nil
	}
	return NewGameStage(s.build()), nil
}

func (s *ClientConnectionStage) OnExitStage() error {
	return nil
}

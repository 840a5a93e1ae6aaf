package stagecraft

// Game ties a world, a bus, and a set of actors into one running instance.
// The caller owns the loop: Start once, Update every frame, and the game
// finishes itself when the world ends (or when Finish is called early, e.g.
// on shutdown).
//
// Every replica of a multiplayer game is its own Game: the server runs one
// with a Forum, a referee, and a ServerActor per client; each client runs
// one with a ClientForum and its local actors.
type Game struct {
	world    AnyWorld
	bus      Bus
	actors   []Actor
	started  bool
	finished bool
}

// NewGame assembles a game. The world must be fresh; the actors are bound
// when Start connects them.
func NewGame(world AnyWorld, bus Bus, actors ...Actor) *Game {
	world.worldCore().adopt(world)
	return &Game{world: world, bus: bus, actors: actors}
}

// NewUniplayerGame wires a single-process game: one forum, no networking.
// The actor list must include the referee.
func NewUniplayerGame(world AnyWorld, actors ...Actor) *Game {
	return NewGame(world, NewForum(), actors...)
}

// World returns the game's world.
func (g *Game) World() AnyWorld {
	return g.world
}

// Finished reports whether OnFinishGame has run.
func (g *Game) Finished() bool {
	return g.finished
}

// Start connects everyone and fires OnStartGame. For a client game this
// blocks until the server's id assignment arrives.
func (g *Game) Start() error {
	if g.started {
		panicUsage(
			"the game has already started.",
			`Start may only run once per Game. To play again, build a fresh
world, fresh actors, and a fresh Game.`)
	}
	g.started = true

	g.bus.connect(g.world, g.actors)
	if err := g.bus.start(); err != nil {
		return err
	}
	for _, actor := range g.actors {
		actor.OnStartGame()
	}
	return g.checkActors()
}

// Update advances the game one frame: remote traffic first, then the
// actors, then the per-token updates. When the world has ended the game
// finishes itself and Finished starts reporting true.
func (g *Game) Update(dt float64) error {
	if !g.started || g.finished {
		panicUsage(
			"the game isn't running.",
			`Update may only be called between Start and the end of the game.
Check Finished before updating, or stop the loop once Update reports the
game is over.`)
	}

	if err := g.bus.update(dt); err != nil {
		return err
	}
	for _, actor := range g.actors {
		actor.OnUpdateGame(dt)
	}
	if err := g.checkActors(); err != nil {
		return err
	}
	g.world.worldCore().updateTokens(dt)

	if g.world.worldCore().GameOver() {
		return g.Finish()
	}
	return nil
}

// Finish runs the closing hooks. Update calls this itself when the world
// ends; calling it directly tears a game down early.
func (g *Game) Finish() error {
	if g.finished {
		return nil
	}
	g.finished = true
	for _, actor := range g.actors {
		actor.OnFinishGame()
	}
	return g.bus.finish()
}

// checkActors surfaces fatal transport errors from actors that own pipes.
func (g *Game) checkActors() error {
	for _, actor := range g.actors {
		if faulty, ok := actor.(interface{ Err() error }); ok {
			if err := faulty.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

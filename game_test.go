package stagecraft

import "testing"

type closingReferee struct {
	Referee
	closeAfter int
	updates    int
}

func (r *closingReferee) OnUpdateGame(dt float64) {
	r.updates++
	if r.updates == r.closeAfter {
		if err := r.Send(&closeGame{}); err != nil {
			panic(err)
		}
	}
}

func TestGameFinishesWhenTheWorldEnds(t *testing.T) {
	w := newCounterWorld()
	referee := &closingReferee{closeAfter: 3}
	actor := &watchingActor{journal: new([]string)}

	game := NewUniplayerGame(w, referee, actor)
	if err := game.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if game.Finished() {
			t.Fatalf("game finished after %d updates, expected 3", i)
		}
		if err := game.Update(0.1); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}
	if !game.Finished() {
		t.Fatalf("expected the game to finish once the referee closed it")
	}
	if actor.finish != 1 {
		t.Fatalf("expected OnFinishGame exactly once, got %d", actor.finish)
	}

	// Finish is idempotent.
	if err := game.Finish(); err != nil {
		t.Fatalf("second finish failed: %v", err)
	}
	if actor.finish != 1 {
		t.Fatalf("expected no second OnFinishGame, got %d", actor.finish)
	}
}

func TestGameRefusesDoubleStart(t *testing.T) {
	game := NewUniplayerGame(newCounterWorld(), &testReferee{}, &watchingActor{journal: new([]string)})
	if err := game.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	expectUsageError(t, func() { game.Start() })
}

func TestGameRefusesUpdateBeforeStart(t *testing.T) {
	game := NewUniplayerGame(newCounterWorld(), &testReferee{}, &watchingActor{journal: new([]string)})
	expectUsageError(t, func() { game.Update(0.1) })
}

func TestGameDrivesTokenTickers(t *testing.T) {
	w := newCounterWorld()
	referee := &testReferee{}
	actor := &watchingActor{journal: new([]string)}

	game := NewUniplayerGame(w, referee, actor)
	if err := game.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	tok := &tickerToken{}
	add := &addAmount{}
	add.AddToken(tok)
	if err := actor.Send(add); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if err := game.Update(0.1); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	if tok.ticks != 4 {
		t.Fatalf("expected 4 token ticks, got %d", tok.ticks)
	}
}

package stagecraft

import "testing"

// counterWorld is the minimal game world the engine tests play in.
type counterWorld struct {
	World
	Total int
}

func newCounterWorld() *counterWorld {
	w := &counterWorld{}
	w.adopt(w)
	return w
}

// noteToken observes its own lifecycle.
type noteToken struct {
	Token
	Label   string `json:"label"`
	added   int
	removed int
}

func (n *noteToken) OnAddToWorld(w AnyWorld)      { n.added++ }
func (n *noteToken) OnRemoveFromWorld(w AnyWorld) { n.removed++ }

// tickerToken counts frame updates.
type tickerToken struct {
	Token
	ticks int
}

func (n *tickerToken) OnUpdateGame(dt float64) { n.ticks++ }

// addAmount bumps the world total and can undo itself.
type addAmount struct {
	MessageCore
	Amount int `json:"amount"`
}

func (m *addAmount) Check(w AnyWorld) error {
	if m.Amount < 0 {
		return Reject("amount %d is negative", m.Amount)
	}
	return nil
}

func (m *addAmount) Execute(w AnyWorld) {
	cw := w.(*counterWorld)
	cw.Guard()
	cw.Total += m.Amount
}

func (m *addAmount) Undo(w AnyWorld) {
	cw := w.(*counterWorld)
	cw.Guard()
	cw.Total -= m.Amount
}

// oneWay has no undo hook.
type oneWay struct {
	MessageCore
	Amount int `json:"amount"`
}

func (m *oneWay) Check(w AnyWorld) error { return nil }

func (m *oneWay) Execute(w AnyWorld) {
	cw := w.(*counterWorld)
	cw.Guard()
	cw.Total += m.Amount
}

// closeGame ends the world; only the referee gets away with sending it.
type closeGame struct {
	MessageCore
}

func (m *closeGame) Check(w AnyWorld) error { return nil }

func (m *closeGame) Execute(w AnyWorld) {
	w.worldCore().EndGame()
}

// sendMessage pushes a drafted message through the unexported send path the
// way an actor would, without needing a whole game.
func sendMessage(t *testing.T, w *counterWorld, ids *IDFactory, m Message) {
	t.Helper()
	m.messageCore().setSender(ids)
	m.messageCore().assignTokenIDs(ids)
	if err := checkMessage(m, w, ids); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	executeMessage(m, w)
}

func expectUsageError(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a usage error panic")
		}
		if _, ok := r.(*UsageError); !ok {
			t.Fatalf("expected *UsageError panic, got %T: %v", r, r)
		}
	}()
	fn()
}

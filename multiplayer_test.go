package stagecraft_test

import (
	"errors"
	"strings"
	"testing"

	"stagecraft"
	"stagecraft/journal"
	"stagecraft/relay"
	"stagecraft/wire"
)

// The test game: a shared total with a capacity. Players bump the total;
// the server rejects bumps that would overflow. The referee opens the match
// (staging a marker token) and closes it (removing the marker again).

type matchWorld struct {
	stagecraft.World
	Total  int
	Cap    int
	Marker *markerToken
}

type markerToken struct {
	stagecraft.Token
	Name string `json:"name"`
}

type openMatch struct {
	stagecraft.MessageCore
	Cap int `json:"cap"`
}

func (m *openMatch) Check(w stagecraft.AnyWorld) error {
	world := w.(*matchWorld)
	if !m.SentByReferee() {
		return stagecraft.Reject("only the referee opens the match")
	}
	if world.Cap != 0 {
		return stagecraft.Reject("match already open")
	}
	if m.Cap <= 0 {
		return stagecraft.Reject("capacity %d is not positive", m.Cap)
	}
	return nil
}

func (m *openMatch) Execute(w stagecraft.AnyWorld) {
	world := w.(*matchWorld)
	world.Guard()
	world.Cap = m.Cap
	world.Marker = m.StagedAdds()[0].(*markerToken)
}

type bumpTotal struct {
	stagecraft.MessageCore
	Amount int `json:"amount"`
}

func (m *bumpTotal) Check(w stagecraft.AnyWorld) error {
	world := w.(*matchWorld)
	if world.Cap == 0 {
		return stagecraft.Reject("match is not open")
	}
	if m.Amount <= 0 {
		return stagecraft.Reject("amount %d is not positive", m.Amount)
	}
	if world.Total+m.Amount > world.Cap {
		return stagecraft.Reject("total %d plus %d is over capacity %d", world.Total, m.Amount, world.Cap)
	}
	return nil
}

func (m *bumpTotal) Execute(w stagecraft.AnyWorld) {
	world := w.(*matchWorld)
	world.Guard()
	world.Total += m.Amount
}

func (m *bumpTotal) Undo(w stagecraft.AnyWorld) {
	world := w.(*matchWorld)
	world.Guard()
	world.Total -= m.Amount
}

type closeMatch struct {
	stagecraft.MessageCore
}

func (m *closeMatch) Check(w stagecraft.AnyWorld) error {
	if !m.SentByReferee() {
		return stagecraft.Reject("only the referee closes the match")
	}
	return nil
}

func (m *closeMatch) Execute(w stagecraft.AnyWorld) {
	world := w.(*matchWorld)
	world.Guard()
	world.Marker = nil
	world.EndGame()
}

func init() {
	wire.RegisterMessage(&openMatch{})
	wire.RegisterMessage(&bumpTotal{})
	wire.RegisterMessage(&closeMatch{})
	wire.RegisterToken(&markerToken{})
}

type matchReferee struct {
	stagecraft.Referee
	cap int
}

func (r *matchReferee) OnStartGame() {
	open := &openMatch{Cap: r.cap}
	open.AddToken(&markerToken{Name: "marker"})
	if err := r.Send(open); err != nil {
		panic(err)
	}
}

func (r *matchReferee) closeTheMatch() error {
	msg := &closeMatch{}
	world := r.World().(*matchWorld)
	msg.RemoveToken(world.Marker)
	return r.Send(msg)
}

type matchPlayer struct {
	stagecraft.ActorCore
	undone int
	finish int
}

func (p *matchPlayer) OnStartGame() {
	p.ReactToUndo(&bumpTotal{}, func(stagecraft.Message) {
		p.undone++
	})
}

func (p *matchPlayer) OnFinishGame() { p.finish++ }

// clientRig is one simulated client machine.
type clientRig struct {
	world      *matchWorld
	forum      *stagecraft.ClientForum
	game       *stagecraft.Game
	player     *matchPlayer
	serverSide stagecraft.Pipe
	clientSide stagecraft.Pipe
}

// matchRig wires a server and N clients over in-memory pipes.
type matchRig struct {
	serverWorld *matchWorld
	serverGame  *stagecraft.Game
	forum       *stagecraft.Forum
	referee     *matchReferee
	clients     []*clientRig
}

func newMatchRig(t *testing.T, clientCount int, store stagecraft.Journal) *matchRig {
	t.Helper()

	rig := &matchRig{
		serverWorld: &matchWorld{},
		forum:       stagecraft.NewForum(),
		referee:     &matchReferee{cap: 10},
	}
	rig.forum.Telemetry = stagecraft.NewTelemetry()
	serverCodec := wire.NewCodec(rig.serverWorld)
	if store != nil {
		rig.forum.Journal = store
		rig.forum.Codec = serverCodec
	}

	actors := []stagecraft.Actor{rig.referee}
	for i := 0; i < clientCount; i++ {
		serverSide, clientSide := relay.NewMemoryPipePair()

		proxy := stagecraft.NewServerActor(serverSide, serverCodec)
		actors = append(actors, proxy)

		world := &matchWorld{}
		client := &clientRig{
			world:      world,
			forum:      stagecraft.NewClientForum(clientSide, wire.NewCodec(world)),
			player:     &matchPlayer{},
			serverSide: serverSide,
			clientSide: clientSide,
		}
		client.game = stagecraft.NewGame(world, client.forum, client.player)
		rig.clients = append(rig.clients, client)
	}

	rig.serverGame = stagecraft.NewGame(rig.serverWorld, rig.forum, actors...)
	if err := rig.serverGame.Start(); err != nil {
		t.Fatalf("server start failed: %v", err)
	}
	for i, client := range rig.clients {
		if err := client.game.Start(); err != nil {
			t.Fatalf("client %d start failed: %v", i, err)
		}
	}
	return rig
}

// pump runs one frame on the server and then on every client.
func (rig *matchRig) pump(t *testing.T) {
	t.Helper()
	if !rig.serverGame.Finished() {
		if err := rig.serverGame.Update(0.05); err != nil {
			t.Fatalf("server update failed: %v", err)
		}
	}
	for i, client := range rig.clients {
		if client.game.Finished() {
			continue
		}
		if err := client.game.Update(0.05); err != nil {
			t.Fatalf("client %d update failed: %v", i, err)
		}
	}
}

func TestMultiplayerMatchConverges(t *testing.T) {
	rig := newMatchRig(t, 2, nil)
	p1 := rig.clients[0]
	p2 := rig.clients[1]

	// The opening message reaches both clients on the first frame.
	rig.pump(t)
	for i, client := range rig.clients {
		if client.world.Cap != 10 {
			t.Fatalf("client %d never saw the match open, cap is %d", i, client.world.Cap)
		}
		if client.world.Marker == nil || client.world.Marker.Name != "marker" {
			t.Fatalf("client %d is missing the staged marker token", i)
		}
		if client.world.Len() != 1 {
			t.Fatalf("client %d should hold 1 token, holds %d", i, client.world.Len())
		}
	}

	// Ids: the referee holds RefereeID, clients get the following offsets.
	if got := p1.player.ID(); got != 2 {
		t.Fatalf("expected first client id 2, got %d", got)
	}
	if got := p2.player.ID(); got != 3 {
		t.Fatalf("expected second client id 3, got %d", got)
	}

	// Both players bump by 6. Each speculates locally; only the first
	// survives the server's capacity check.
	if err := p1.player.Send(&bumpTotal{Amount: 6}); err != nil {
		t.Fatalf("player 1 send failed: %v", err)
	}
	if err := p2.player.Send(&bumpTotal{Amount: 6}); err != nil {
		t.Fatalf("player 2 send failed: %v", err)
	}
	if p1.world.Total != 6 {
		t.Fatalf("expected player 1 to speculate its bump, total is %d", p1.world.Total)
	}
	if p2.world.Total != 6 {
		t.Fatalf("expected player 2 to speculate its bump, total is %d", p2.world.Total)
	}

	rig.pump(t)

	if rig.serverWorld.Total != 6 {
		t.Fatalf("expected server total 6, got %d", rig.serverWorld.Total)
	}
	if p1.world.Total != 6 {
		t.Fatalf("expected player 1 total 6 after confirmation, got %d", p1.world.Total)
	}
	if p2.world.Total != 6 {
		t.Fatalf("expected player 2 total 6 after undo plus relay, got %d", p2.world.Total)
	}
	if p2.player.undone != 1 {
		t.Fatalf("expected player 2's undo reaction to fire once, got %d", p2.player.undone)
	}
	if p1.player.undone != 0 {
		t.Fatalf("player 1's bump was accepted, but its undo reaction fired %d times", p1.player.undone)
	}

	// The referee closes the match; the marker token leaves every world and
	// every replica finishes.
	if err := rig.referee.closeTheMatch(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	rig.pump(t)
	rig.pump(t)

	if !rig.serverGame.Finished() {
		t.Fatalf("expected the server game to finish")
	}
	for i, client := range rig.clients {
		if !client.game.Finished() {
			t.Fatalf("expected client %d to finish", i)
		}
		if client.player.finish != 1 {
			t.Fatalf("expected client %d OnFinishGame exactly once, got %d", i, client.player.finish)
		}
		if client.world.Len() != 0 {
			t.Fatalf("expected client %d world to be empty after the close, holds %d tokens", i, client.world.Len())
		}
	}

	snap := rig.forum.Telemetry.Snapshot()
	if snap.MessagesExecuted != 3 {
		t.Fatalf("expected 3 executed messages on the server, got %d", snap.MessagesExecuted)
	}
	if snap.MessagesRejected != 0 {
		// Rejections are counted by the per-client proxies, not the forum.
		t.Fatalf("expected no forum-level rejections, got %d", snap.MessagesRejected)
	}
}

func TestClientRefusesSequenceGaps(t *testing.T) {
	rig := newMatchRig(t, 1, nil)
	client := rig.clients[0]
	rig.pump(t)

	// Impersonate the server: relay a message with a sequence far ahead of
	// the client's view of the order.
	forged := &bumpTotal{Amount: 1}
	stagecraft.RestoreMessage(forged, stagecraft.RefereeID, 0, 99)
	serverCodec := wire.NewCodec(rig.serverWorld)
	frame, err := serverCodec.Encode(stagecraft.Frame{Kind: stagecraft.FrameMessage, Message: forged})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := client.serverSide.Send(frame); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	err = client.game.Update(0.05)
	if err == nil {
		t.Fatalf("expected a transport error for the sequence gap")
	}
	var transportErr *stagecraft.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected a *TransportError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "out of order") {
		t.Fatalf("expected an out-of-order error, got %v", err)
	}
}

func TestServerSurfacesTransportFailure(t *testing.T) {
	rig := newMatchRig(t, 1, nil)
	rig.pump(t)

	// The client drops. The next relay to it fails, and the server's game
	// loop reports the dead session.
	if err := rig.clients[0].clientSide.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := rig.referee.closeTheMatch(); err != nil {
		t.Fatalf("close match failed: %v", err)
	}

	err := rig.serverGame.Update(0.05)
	if err == nil {
		t.Fatalf("expected the server to surface the dead pipe")
	}
	var transportErr *stagecraft.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected a *TransportError, got %T: %v", err, err)
	}
}

func TestServerCountsOnlyDeliveredBytes(t *testing.T) {
	// The client's end is already gone when the game starts, so every send
	// fails; none of those frames may show up in the traffic counters.
	serverSide, clientSide := relay.NewMemoryPipePair()
	if err := clientSide.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	world := &matchWorld{}
	proxy := stagecraft.NewServerActor(serverSide, wire.NewCodec(world))
	proxy.Telemetry = stagecraft.NewTelemetry()
	game := stagecraft.NewGame(world, stagecraft.NewForum(), &matchReferee{cap: 10}, proxy)

	if err := game.Start(); err == nil {
		t.Fatalf("expected the dead pipe to surface at start")
	}
	if snap := proxy.Telemetry.Snapshot(); snap.BytesSent != 0 {
		t.Fatalf("expected no bytes counted for failed sends, got %d", snap.BytesSent)
	}
}

func TestForumJournalsAcceptedMessages(t *testing.T) {
	store, err := journal.Open(":memory:")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer store.Close()

	rig := newMatchRig(t, 1, store)
	client := rig.clients[0]
	rig.pump(t)

	if err := client.player.Send(&bumpTotal{Amount: 4}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := client.player.Send(&bumpTotal{Amount: 2}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	rig.pump(t)

	// The journal holds the whole match so far, in order: open, bump, bump.
	replayCodec := wire.NewCodec(&matchWorld{})
	var seqs []uint64
	var senders []uint64
	var amounts []int
	if err := store.Replay(func(entry journal.Entry) error {
		seqs = append(seqs, entry.Seq)
		senders = append(senders, entry.Sender)
		frame, err := replayCodec.Decode(entry.Frame)
		if err != nil {
			return err
		}
		if frame.Kind != stagecraft.FrameMessage {
			t.Fatalf("journal holds frame kind %q, want message", frame.Kind)
		}
		if bump, ok := frame.Message.(*bumpTotal); ok {
			amounts = append(amounts, bump.Amount)
		}
		return nil
	}); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if len(seqs) != 3 {
		t.Fatalf("expected 3 journaled messages, got %d", len(seqs))
	}
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("expected seq %d at position %d, got %d", i+1, i, seq)
		}
	}
	if senders[0] != stagecraft.RefereeID {
		t.Fatalf("expected the referee to open the match, sender is %d", senders[0])
	}
	if senders[1] != client.player.ID() || senders[2] != client.player.ID() {
		t.Fatalf("expected the bumps to come from player %d, got %v", client.player.ID(), senders[1:])
	}
	if len(amounts) != 2 || amounts[0] != 4 || amounts[1] != 2 {
		t.Fatalf("expected the journal to replay amounts [4 2], got %v", amounts)
	}
}

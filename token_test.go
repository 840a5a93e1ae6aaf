package stagecraft

import "testing"

func TestTokenRegistrationLifecycle(t *testing.T) {
	w := newCounterWorld()
	ids := NewIDFactory(1, 1)
	tok := &noteToken{Label: "probe"}

	if got := tok.Registration(); got != RegistrationPending {
		t.Fatalf("expected pending registration, got %s", got)
	}

	add := &addAmount{}
	add.AddToken(tok)
	sendMessage(t, w, ids, add)

	if got := tok.Registration(); got != RegistrationActive {
		t.Fatalf("expected active registration after add, got %s", got)
	}
	if !tok.HasID() {
		t.Fatalf("expected token to have an id after send")
	}
	if tok.added != 1 {
		t.Fatalf("expected one OnAddToWorld call, got %d", tok.added)
	}

	remove := &addAmount{}
	remove.RemoveToken(tok)
	sendMessage(t, w, ids, remove)

	if got := tok.Registration(); got != RegistrationExpired {
		t.Fatalf("expected expired registration after remove, got %s", got)
	}
	if tok.removed != 1 {
		t.Fatalf("expected one OnRemoveFromWorld call, got %d", tok.removed)
	}
}

func TestTokenGuardRefusesPendingToken(t *testing.T) {
	tok := &noteToken{}
	expectUsageError(t, func() { tok.Guard() })
}

func TestTokenGuardRefusesLockedWorld(t *testing.T) {
	w := newCounterWorld()
	ids := NewIDFactory(1, 1)
	tok := &noteToken{}

	add := &addAmount{}
	add.AddToken(tok)
	sendMessage(t, w, ids, add)

	// The world is locked again once execution finishes.
	expectUsageError(t, func() { tok.Guard() })
}

func TestTokenGuardRefusesExpiredToken(t *testing.T) {
	w := newCounterWorld()
	ids := NewIDFactory(1, 1)
	tok := &noteToken{}

	add := &addAmount{}
	add.AddToken(tok)
	sendMessage(t, w, ids, add)

	remove := &addAmount{}
	remove.RemoveToken(tok)
	sendMessage(t, w, ids, remove)

	expectUsageError(t, func() { tok.Guard() })
}

func TestResetRegistrationRevivesExpiredToken(t *testing.T) {
	w := newCounterWorld()
	ids := NewIDFactory(1, 1)
	tok := &noteToken{}

	add := &addAmount{}
	add.AddToken(tok)
	sendMessage(t, w, ids, add)
	firstID := tok.ID()

	remove := &addAmount{}
	remove.RemoveToken(tok)
	sendMessage(t, w, ids, remove)

	tok.ResetRegistration()
	if got := tok.Registration(); got != RegistrationPending {
		t.Fatalf("expected pending registration after reset, got %s", got)
	}
	if tok.HasID() {
		t.Fatalf("expected reset to clear the token id")
	}

	again := &addAmount{}
	again.AddToken(tok)
	sendMessage(t, w, ids, again)
	if tok.ID() == firstID {
		t.Fatalf("expected a fresh id after reset, got the old id %d again", firstID)
	}
}

func TestResetRegistrationRefusesLiveToken(t *testing.T) {
	tok := &noteToken{}
	expectUsageError(t, func() { tok.ResetRegistration() })
}

func TestTokenIDAssignedOnlyOnce(t *testing.T) {
	ids := NewIDFactory(1, 1)
	tok := &noteToken{}
	tok.giveID(ids)
	expectUsageError(t, func() { tok.giveID(ids) })
}

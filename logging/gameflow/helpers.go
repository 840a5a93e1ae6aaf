package gameflow

import (
	"context"
	"strconv"

	"stagecraft/logging"
)

const (
	// EventGameStarted is emitted once when every participant is connected.
	EventGameStarted logging.EventType = "gameflow.game_started"
	// EventGameFinished is emitted once when the world reaches its end.
	EventGameFinished logging.EventType = "gameflow.game_finished"
	// EventMessageExecuted is emitted for every message applied to the world.
	EventMessageExecuted logging.EventType = "gameflow.message_executed"
	// EventMessageRejected is emitted when a message fails its check.
	EventMessageRejected logging.EventType = "gameflow.message_rejected"
	// EventMessageUndone is emitted when a speculative execution is rolled back.
	EventMessageUndone logging.EventType = "gameflow.message_undone"
	// EventClientConnected is emitted when a client claims its id range.
	EventClientConnected logging.EventType = "gameflow.client_connected"
)

// MessagePayload captures routing metadata for a replicated message.
type MessagePayload struct {
	Kind   string `json:"kind"`
	Sender uint64 `json:"sender"`
}

// RejectedPayload adds the check's reason to the message metadata.
type RejectedPayload struct {
	Kind   string `json:"kind"`
	Sender uint64 `json:"sender"`
	Reason string `json:"reason"`
}

// StartedPayload captures the shape of the starting game.
type StartedPayload struct {
	Actors int `json:"actors"`
}

// ConnectedPayload captures the id range handed to a client.
type ConnectedPayload struct {
	Offset  uint64 `json:"offset"`
	Spacing uint64 `json:"spacing"`
}

// ActorRef builds the entity reference for a numeric actor id.
func ActorRef(id uint64) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(id, 10), Kind: logging.EntityKindActor}
}

// GameStarted publishes the game start event.
func GameStarted(ctx context.Context, pub logging.Publisher, payload StartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGameStarted,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// GameFinished publishes the game finish event.
func GameFinished(ctx context.Context, pub logging.Publisher, seq uint64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGameFinished,
		Seq:      seq,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
	})
}

// MessageExecuted publishes an execution event.
func MessageExecuted(ctx context.Context, pub logging.Publisher, seq uint64, payload MessagePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMessageExecuted,
		Seq:      seq,
		Actor:    ActorRef(payload.Sender),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// MessageRejected publishes a rejection event.
func MessageRejected(ctx context.Context, pub logging.Publisher, seq uint64, payload RejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMessageRejected,
		Seq:      seq,
		Actor:    ActorRef(payload.Sender),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// MessageUndone publishes an undo event.
func MessageUndone(ctx context.Context, pub logging.Publisher, payload MessagePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMessageUndone,
		Actor:    ActorRef(payload.Sender),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// ClientConnected publishes a connection event tagged with the session id.
func ClientConnected(ctx context.Context, pub logging.Publisher, session string, payload ConnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientConnected,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Session:  session,
		Payload:  payload,
	})
}

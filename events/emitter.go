// Package events is the in-process pub/sub bus for ledger and game events.
package events

import (
	"log"
	"sync"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit EventType = "block_commit"
	EventTxExecuted  EventType = "tx_executed"
	EventTxRejected  EventType = "tx_rejected"

	EventPlayerRegistered  EventType = "player_registered"
	EventCreaturesGranted  EventType = "creatures_granted"
	EventBattleReady       EventType = "battle_ready"
	EventBattleStarted     EventType = "battle_started"
	EventBattleSettled     EventType = "battle_settled"
	EventChallengeReady    EventType = "challenge_ready"
	EventChallengeIssued   EventType = "challenge_issued"
	EventChallengeAccepted EventType = "challenge_accepted"
	EventChallengeSettled  EventType = "challenge_settled"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id,omitempty"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a synchronous pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev to typed subscribers first, then to catch-all ones.
// A panicking handler is logged and skipped.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type])+len(e.all))
	handlers = append(handlers, e.handlers[ev.Type]...)
	handlers = append(handlers, e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		e.call(h, ev)
	}
}

func (e *Emitter) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
		}
	}()
	h(ev)
}

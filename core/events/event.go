package events

// Event represents a structured outcome emitted by the transfer hook.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers such as the CLI or an
// indexer.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

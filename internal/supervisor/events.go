package supervisor

// Event represents a supervisor lifecycle event.
// Minimal and stable: name + model path and optional fields via key/values.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives events from the supervisor. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Event names.
const (
	EventSpawnStart      = "spawn_start"
	EventSpawnReady      = "spawn_ready"
	EventSpawnExit       = "spawn_exit"
	EventSpawnTimeout    = "spawn_timeout"
	EventSpawnStop       = "spawn_stop"
	EventSpawnError      = "spawn_error"
	EventFallbackAttempt = "fallback_attempt"
	EventCrash           = "crash"
	EventRestart         = "restart"
	EventSwitch          = "switch"
)

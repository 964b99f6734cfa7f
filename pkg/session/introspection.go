package session

import (
	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle/pkg/core/worker"
)

// SessionState exposes internal state for observability.
type SessionState struct {
	Instance    string        `json:"instance"`
	Document    State         `json:"document"`
	Bytes       int           `json:"bytes"`
	SavePending bool          `json:"save_pending"`
	Poller      *worker.State `json:"poller,omitempty"`
	Notifier    bool          `json:"notifier"`
}

// State implements introspection.Introspectable.
func (s *Session) State() any {
	doc := s.Snapshot()

	state := SessionState{
		Instance:    s.id,
		Document:    doc,
		Bytes:       len(doc.Text),
		SavePending: s.saves.pending(),
		Notifier:    s.config.Notifier != nil,
	}
	if s.poller != nil {
		ps := s.poller.State()
		state.Poller = &ps
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Session) ComponentType() string {
	return "session"
}

var _ introspection.Introspectable = (*Session)(nil)
var _ introspection.Component = (*Session)(nil)

package session

import (
	"context"
	"fmt"

	"github.com/aretw0/inkwell/pkg/core"
)

// Trigger is an input to the state machine: something that happened, decoupled
// from how it was wired (keystroke, timer, broadcast, menu action).
type Trigger interface {
	isTrigger()
}

// EditTrigger replaces the document text.
type EditTrigger struct{ Text string }

// SaveTrigger persists immediately.
type SaveTrigger struct{}

// TickTrigger runs one external-change poll.
type TickTrigger struct{}

// BroadcastTrigger delivers a message from another instance.
type BroadcastTrigger struct{ Message core.SyncMessage }

// ReloadTrigger resolves a conflict by discarding local edits.
type ReloadTrigger struct{}

// DismissTrigger resolves a conflict by keeping local edits.
type DismissTrigger struct{}

// OpenTrigger binds a file. An empty Path asks the picker.
type OpenTrigger struct{ Path string }

// SaveAsTrigger writes to a new file and binds it. An empty Path asks the picker.
type SaveAsTrigger struct{ Path string }

// ToggleTaskTrigger flips the checkbox of the Index-th task item (zero-based).
type ToggleTaskTrigger struct{ Index int }

func (EditTrigger) isTrigger()       {}
func (SaveTrigger) isTrigger()       {}
func (TickTrigger) isTrigger()       {}
func (BroadcastTrigger) isTrigger()  {}
func (ReloadTrigger) isTrigger()     {}
func (DismissTrigger) isTrigger()    {}
func (OpenTrigger) isTrigger()       {}
func (SaveAsTrigger) isTrigger()     {}
func (ToggleTaskTrigger) isTrigger() {}

// Dispatch routes a trigger to the matching operation.
func (s *Session) Dispatch(ctx context.Context, t Trigger) error {
	switch t := t.(type) {
	case EditTrigger:
		s.Edit(t.Text)
		return nil
	case SaveTrigger:
		return s.Save(ctx)
	case TickTrigger:
		return s.Poll(ctx)
	case BroadcastTrigger:
		s.Receive(t.Message)
		return nil
	case ReloadTrigger:
		return s.Reload(ctx)
	case DismissTrigger:
		return s.Dismiss(ctx)
	case OpenTrigger:
		if t.Path == "" {
			return s.OpenWithPicker(ctx)
		}
		return s.Open(ctx, t.Path)
	case SaveAsTrigger:
		if t.Path == "" {
			return s.SaveAsWithPicker(ctx)
		}
		return s.SaveAs(ctx, t.Path)
	case ToggleTaskTrigger:
		return s.ToggleTask(t.Index)
	default:
		return fmt.Errorf("unknown trigger %T", t)
	}
}

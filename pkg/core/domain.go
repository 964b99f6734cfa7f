// Package core holds the domain types and ports of an editing session.
package core

import (
	"fmt"
	"time"
)

// TargetKind identifies a persistence backend.
// The string values double as the source tag on the wire.
type TargetKind string

const (
	TargetScratch TargetKind = "scratchpad"
	TargetFile    TargetKind = "external"
)

// Target is the active persistence target of a session.
// Path is only meaningful for TargetFile.
type Target struct {
	Kind TargetKind
	Path string
}

// ScratchTarget returns the always-available local cache target.
func ScratchTarget() Target {
	return Target{Kind: TargetScratch}
}

// FileTarget returns a target bound to an external file.
func FileTarget(path string) Target {
	return Target{Kind: TargetFile, Path: path}
}

// IsFile reports whether the target is an external file.
func (t Target) IsFile() bool {
	return t.Kind == TargetFile
}

func (t Target) String() string {
	if t.IsFile() {
		return fmt.Sprintf("file:%s", t.Path)
	}
	return string(TargetScratch)
}

// Status is the transient, user-visible persistence status.
type Status string

const (
	StatusIdle          Status = ""
	StatusSaving        Status = "Saving..."
	StatusSavedLocal    Status = "Saved (Local)"
	StatusSavedFile     Status = "Saved to Disk"
	StatusSaveFailed    Status = "Save Failed"
	StatusOpened        Status = "Opened File"
	StatusReloaded      Status = "Reloaded"
	StatusConflict      Status = "Conflict"
	StatusRemoteUpdated Status = "Updated from another window"
)

// SavedStatus returns the status reported after a successful save to t.
func SavedStatus(t Target) Status {
	if t.IsFile() {
		return StatusSavedFile
	}
	return StatusSavedLocal
}

// ConflictState is the resolver state.
type ConflictState int

const (
	ConflictClear ConflictState = iota
	ConflictWarning
)

func (c ConflictState) String() string {
	if c == ConflictWarning {
		return "warning"
	}
	return "clear"
}

func (c ConflictState) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ConflictCause records what raised the current warning.
type ConflictCause string

const (
	CauseNone         ConflictCause = ""
	CauseExternalFile ConflictCause = "external-file"
	CauseBroadcast    ConflictCause = "broadcast"
)

// MessageTypeUpdate is the only message type instances exchange.
const MessageTypeUpdate = "update"

// SyncMessage is broadcast to other instances after a successful save.
type SyncMessage struct {
	Type     string     `json:"type"`
	Content  string     `json:"content"`
	Source   TargetKind `json:"source"`
	Instance string     `json:"instance,omitempty"`
	Digest   uint64     `json:"digest,omitempty"`
}

// EventType represents the kind of change a session reports.
type EventType string

const (
	EventStatus          EventType = "STATUS"
	EventConflict        EventType = "CONFLICT"
	EventConflictCleared EventType = "CONFLICT_CLEARED"
	EventReload          EventType = "RELOAD"
	EventRemoteUpdate    EventType = "REMOTE_UPDATE"
	EventTargetChanged   EventType = "TARGET"
)

// Event represents an observable change in a session.
type Event struct {
	Type      EventType
	Status    Status
	Target    Target
	Cause     ConflictCause
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	switch e.Type {
	case EventStatus:
		return fmt.Sprintf("%s %q (%s)", e.Type, e.Status, e.Target)
	case EventConflict:
		return fmt.Sprintf("%s %s (%s)", e.Type, e.Cause, e.Target)
	default:
		return fmt.Sprintf("%s (%s)", e.Type, e.Target)
	}
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, target Target) Event {
	return Event{Type: t, Target: target, Timestamp: time.Now().Unix()}
}

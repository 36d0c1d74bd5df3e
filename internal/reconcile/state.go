// Package reconcile keeps one working copy of a resume consistent across
// local edits, realtime events from other sessions and the persisted row.
//
// Each Session runs a single goroutine that owns the working document. Local
// edits are applied synchronously, remote events win only when newer
// (whole-document last-writer-wins), and writes to the store are debounced.
package reconcile

import (
	"errors"
	"time"

	"resume-editor/internal/resumes"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrReadOnly is returned after the store refused a write for ownership
	// reasons. The session keeps serving reads.
	ErrReadOnly = errors.New("session is read-only")
)

// State is the lifecycle position of a session.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Saving
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Saving:
		return "saving"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Change sources reported on snapshots.
const (
	SourceLoad   = "load"
	SourceLocal  = "local"
	SourceRemote = "remote"
	SourceSave   = "save"
	SourceResync = "resync"
	SourceError  = "error"
	SourceClosed = "closed"
)

// Snapshot is an immutable view of a session. Document must not be mutated;
// it may be shared with the session and other snapshots.
type Snapshot struct {
	SessionID    string           `json:"sessionId"`
	ResumeID     string           `json:"resumeId"`
	UserID       string           `json:"userId"`
	State        State            `json:"state"`
	Document     resumes.Document `json:"document"`
	Version      uint64           `json:"version"`
	LastModified time.Time        `json:"lastModified"`
	SavedAt      time.Time        `json:"savedAt"`
	Dirty        bool             `json:"dirty"`
	ReadOnly     bool             `json:"readOnly"`
	LastError    string           `json:"lastError,omitempty"`
	Source       string           `json:"source"`
}

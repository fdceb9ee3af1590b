package orch

import (
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
)

type EntryState int32

const (
	StateCreated EntryState = iota
	StateSignaling
	StateConnected
	StateClosed
)

func (s EntryState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSignaling:
		return "signaling"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// PeerEntry is the live connection record for one remote participant.
// Role never changes; a new role means a new entry.
type PeerEntry struct {
	Remote    domain.ParticipantID
	Role      core.Role
	CreatedAt time.Time

	conn   core.PeerConnection
	state  EntryState
	stream core.RemoteStream
}

func newEntry(remote domain.ParticipantID, role core.Role, conn core.PeerConnection) *PeerEntry {
	return &PeerEntry{Remote: remote, Role: role, CreatedAt: time.Now(), conn: conn}
}

func (e *PeerEntry) State() EntryState { return e.state }

func (e *PeerEntry) Stream() core.RemoteStream { return e.stream }

func (e *PeerEntry) markSignaling() {
	if e.state == StateCreated {
		e.state = StateSignaling
	}
}

func (e *PeerEntry) markConnected() {
	if e.state != StateClosed {
		e.state = StateConnected
	}
}

// markClosed reports whether the entry was still open.
func (e *PeerEntry) markClosed() bool {
	if e.state == StateClosed {
		return false
	}
	e.state = StateClosed
	return true
}

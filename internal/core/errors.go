package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

var (
	// ErrNotReady means local media or the channel is not available; the operation is dropped.
	ErrNotReady = errors.New("not ready")
	// ErrSignalApply means a negotiation payload was malformed or unexpected.
	ErrSignalApply = errors.New("signal apply failure")
	// ErrConnection is reported by the underlying peer connection primitive.
	ErrConnection = errors.New("connection error")
	// ErrCapacityExceeded is the relay rejecting a join at room capacity.
	ErrCapacityExceeded = errors.New("room capacity exceeded")
	// ErrLocalDevice means camera or microphone could not be opened.
	ErrLocalDevice = errors.New("local media device unavailable")

	ErrUnknownSignal = errors.New("unknown signal kind")
	ErrBackpressure  = errors.New("backpressure")
	ErrChannelClosed = errors.New("channel closed")
)

type PeerError struct {
	Op   string
	Peer domain.ParticipantID
	Err  error
}

func (e *PeerError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PeerError) Unwrap() error { return e.Err }

func NewPeerError(op string, peer domain.ParticipantID, err error) *PeerError {
	return &PeerError{Op: op, Peer: peer, Err: err}
}

// Wrap attaches a sentinel kind to a lower-level cause.
func Wrap(op string, peer domain.ParticipantID, kind, cause error) *PeerError {
	if cause == nil {
		return NewPeerError(op, peer, kind)
	}
	return NewPeerError(op, peer, fmt.Errorf("%w: %w", kind, cause))
}

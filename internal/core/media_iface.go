package core

import (
	"context"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
)

type Role string

const (
	RoleInitiator Role = "initiator"
	RoleReceiver  Role = "receiver"
)

// RemoteStream is the media received from one remote participant.
type RemoteStream interface {
	ID() string
	Kinds() []domain.MediaKind
}

// PeerConnection is the negotiation primitive for one remote participant.
// Callbacks must be set before Start and may fire from any goroutine.
type PeerConnection interface {
	// OnLocalSignal sets a callback for blobs that must be relayed to the remote side.
	OnLocalSignal(func(domain.Signal))
	// OnStream sets a callback invoked once per received remote stream.
	OnStream(func(RemoteStream))
	OnConnected(func())
	OnError(func(error))
	// OnClosed fires at most once, after the connection is gone for good.
	OnClosed(func())

	// Start begins negotiation; an initiator produces its offer asynchronously.
	Start(ctx context.Context) error
	// ApplySignal feeds a remote blob. It must not block on network I/O.
	ApplySignal(domain.Signal) error
	// Close releases the connection. It never stops the shared local tracks.
	Close()
}

type PeerFactory interface {
	NewPeer(remote domain.ParticipantID, role Role, src MediaSource) (PeerConnection, error)
}

// MediaSource is the local camera/microphone, shared read-only by every peer.
type MediaSource interface {
	Tracks() []webrtc.TrackLocal
	// SetEnabled flips a local track on or off; false when no track of kind exists.
	SetEnabled(kind domain.MediaKind, enabled bool) bool
	Enabled(kind domain.MediaKind) bool
	Stop()
}

type MediaProvider interface {
	Open(ctx context.Context) (MediaSource, error)
}

// AudioAnalyzer reports speaking transitions of the local microphone.
type AudioAnalyzer interface {
	Start(onChange func(speaking bool))
	Stop()
}

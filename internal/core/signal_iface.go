package core

import (
	"context"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

// JoinRequest is what the local session announces to the relay.
type JoinRequest struct {
	Room        domain.RoomID
	Identity    string
	DisplayName string
	PhotoURL    string
}

// SignalChannel abstracts the room-scoped relay bus.
// Owned by the adapter; the top-level teardown must Close() it.
type SignalChannel interface {
	Connect(ctx context.Context, events ChannelEvents) error
	Connected() bool
	SelfID() (domain.ParticipantID, bool)

	Join(req JoinRequest) error
	SendSignal(room domain.RoomID, from, to domain.ParticipantID, sig domain.Signal) error
	SendChat(room domain.RoomID, sender, text string) error
	SendMediaState(room domain.RoomID, patch domain.MediaPatch) error
	Leave(room domain.RoomID) error
	Close()
}

// ChannelEvents receives decoded relay events. Implementations must not block.
type ChannelEvents interface {
	OnSession(self domain.ParticipantID)
	OnRoomJoined(existing []domain.Participant)
	OnUserJoined(p domain.Participant)
	OnUserLeft(id domain.ParticipantID)
	OnSignal(env domain.SignalEnvelope)
	OnChat(msg domain.ChatMessage)
	OnMediaState(id domain.ParticipantID, patch domain.MediaPatch)
	OnMediaStates(snapshot map[domain.ParticipantID]domain.MediaState)
	OnRoomFull()
	OnDisconnected(err error)
}

package core

import "github.com/dkeye/VoiceMesh/internal/domain"

// Observer is the UI collaborator. Calls arrive on the orchestrator loop and must not block.
type Observer interface {
	MembershipChanged(ids []domain.ParticipantID)
	WaitingChanged(waiting bool)
	StreamAdded(id domain.ParticipantID, s RemoteStream)
	StreamRemoved(id domain.ParticipantID)
	MediaStateChanged(id domain.ParticipantID, st domain.MediaState)
	ChatReceived(msg domain.ChatMessage)
	SpeakingChanged(speaking bool)
	RoomFull()
	PeerError(id domain.ParticipantID, err error)
	SessionError(err error)
	// SessionEnded fires once per full reset, whatever caused it.
	SessionEnded()
}

// NopObserver can be embedded to implement only a part of Observer.
type NopObserver struct{}

func (NopObserver) MembershipChanged([]domain.ParticipantID) {}
func (NopObserver) WaitingChanged(bool) {}
func (NopObserver) StreamAdded(domain.ParticipantID, RemoteStream) {}
func (NopObserver) StreamRemoved(domain.ParticipantID) {}
func (NopObserver) MediaStateChanged(domain.ParticipantID, domain.MediaState) {}
func (NopObserver) ChatReceived(domain.ChatMessage) {}
func (NopObserver) SpeakingChanged(bool) {}
func (NopObserver) RoomFull() {}
func (NopObserver) PeerError(domain.ParticipantID, error) {}
func (NopObserver) SessionError(error) {}
func (NopObserver) SessionEnded() {}

// Observers fans every notification out in order.
type Observers []Observer

func (os Observers) MembershipChanged(ids []domain.ParticipantID) {
	for _, o := range os {
		o.MembershipChanged(ids)
	}
}

func (os Observers) WaitingChanged(waiting bool) {
	for _, o := range os {
		o.WaitingChanged(waiting)
	}
}

func (os Observers) StreamAdded(id domain.ParticipantID, s RemoteStream) {
	for _, o := range os {
		o.StreamAdded(id, s)
	}
}

func (os Observers) StreamRemoved(id domain.ParticipantID) {
	for _, o := range os {
		o.StreamRemoved(id)
	}
}

func (os Observers) MediaStateChanged(id domain.ParticipantID, st domain.MediaState) {
	for _, o := range os {
		o.MediaStateChanged(id, st)
	}
}

func (os Observers) ChatReceived(msg domain.ChatMessage) {
	for _, o := range os {
		o.ChatReceived(msg)
	}
}

func (os Observers) SpeakingChanged(speaking bool) {
	for _, o := range os {
		o.SpeakingChanged(speaking)
	}
}

func (os Observers) RoomFull() {
	for _, o := range os {
		o.RoomFull()
	}
}

func (os Observers) PeerError(id domain.ParticipantID, err error) {
	for _, o := range os {
		o.PeerError(id, err)
	}
}

func (os Observers) SessionError(err error) {
	for _, o := range os {
		o.SessionError(err)
	}
}

func (os Observers) SessionEnded() {
	for _, o := range os {
		o.SessionEnded()
	}
}

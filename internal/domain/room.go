package domain

type RoomID string

const (
	// MaxParticipants is the hard room cap enforced by the relay.
	MaxParticipants = 10
	// MaxRemotePeers bounds mesh fan-out for one session.
	MaxRemotePeers = MaxParticipants - 1
)

// RoomSnapshot is the set of participants present at join time.
type RoomSnapshot struct {
	Self     ParticipantID
	Existing []Participant
}

type ChatMessage struct {
	ID        string `json:"-"`
	Sender    string `json:"userId"`
	Text      string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

package domain

type SignalKind string

const (
	SignalOffer       SignalKind = "offer"
	SignalAnswer      SignalKind = "answer"
	SignalCandidate   SignalKind = "candidate"
	SignalRenegotiate SignalKind = "renegotiate"
)

type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Signal is a kind-tagged negotiation blob.
type Signal struct {
	Type        SignalKind    `json:"type,omitempty"`
	SDP         string        `json:"sdp,omitempty"`
	Candidate   *ICECandidate `json:"candidate,omitempty"`
	Renegotiate bool          `json:"renegotiate,omitempty"`
}

// Kind reports the negotiation kind, or "" if it cannot be determined.
func (s Signal) Kind() SignalKind {
	switch s.Type {
	case SignalOffer, SignalAnswer:
		if s.SDP == "" {
			return ""
		}
		return s.Type
	case SignalCandidate:
		if s.Candidate == nil {
			return ""
		}
		return SignalCandidate
	case SignalRenegotiate:
		return SignalRenegotiate
	}
	if s.Type == "" {
		if s.Candidate != nil {
			return SignalCandidate
		}
		if s.Renegotiate {
			return SignalRenegotiate
		}
	}
	return ""
}

// SignalEnvelope is consumed exactly once by the matching peer connection,
// or queued until one exists.
type SignalEnvelope struct {
	From   ParticipantID
	Signal Signal
	Sender Participant
}

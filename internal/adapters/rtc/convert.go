package rtc

import (
	"fmt"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
)

func toSessionDescription(sig domain.Signal) (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch sig.Kind() {
	case domain.SignalOffer:
		t = webrtc.SDPTypeOffer
	case domain.SignalAnswer:
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("not a session description: %q", sig.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: sig.SDP}, nil
}

func fromSessionDescription(sd *webrtc.SessionDescription) domain.Signal {
	kind := domain.SignalOffer
	if sd.Type == webrtc.SDPTypeAnswer {
		kind = domain.SignalAnswer
	}
	return domain.Signal{Type: kind, SDP: sd.SDP}
}

func toCandidateInit(c *domain.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

func kindOf(t webrtc.RTPCodecType) domain.MediaKind {
	if t == webrtc.RTPCodecTypeVideo {
		return domain.MediaVideo
	}
	return domain.MediaAudio
}

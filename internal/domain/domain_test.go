package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalKind(t *testing.T) {
	cases := []struct {
		name string
		sig  Signal
		want SignalKind
	}{
		{"offer", Signal{Type: SignalOffer, SDP: "v=0"}, SignalOffer},
		{"offer without sdp", Signal{Type: SignalOffer}, ""},
		{"answer", Signal{Type: SignalAnswer, SDP: "v=0"}, SignalAnswer},
		{"tagged candidate", Signal{Type: SignalCandidate, Candidate: &ICECandidate{Candidate: "c"}}, SignalCandidate},
		{"untagged candidate", Signal{Candidate: &ICECandidate{Candidate: "c"}}, SignalCandidate},
		{"untagged renegotiate", Signal{Renegotiate: true}, SignalRenegotiate},
		{"empty", Signal{}, ""},
		{"unknown type", Signal{Type: "pranswer", SDP: "v=0"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.sig.Kind())
		})
	}
}

func TestNewParticipant(t *testing.T) {
	_, err := NewParticipant("", "a", "")
	require.ErrorIs(t, err, ErrEmptyParticipantID)

	_, err = NewParticipant("id", strings.Repeat("x", MaxDisplayNameLen+1), "")
	require.ErrorIs(t, err, ErrDisplayNameTooLong)

	p, err := NewParticipant("id", "  Ana ", "http://a/p.png")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.DisplayName)

	p.Merge(Participant{DisplayName: "", PhotoURL: "http://a/q.png"})
	assert.Equal(t, "Ana", p.DisplayName)
	assert.Equal(t, "http://a/q.png", p.PhotoURL)
}

func TestPatchFor(t *testing.T) {
	p := PatchFor(MediaVideo, false)
	require.NotNil(t, p.VideoEnabled)
	assert.False(t, *p.VideoEnabled)
	assert.Nil(t, p.AudioEnabled)
	assert.True(t, MediaPatch{}.Empty())
}

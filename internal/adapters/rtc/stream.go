package rtc

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Stream groups the remote tracks that share a stream id.
type Stream struct {
	id string

	mu    sync.Mutex
	kinds []domain.MediaKind

	packets atomic.Uint64
}

func newStream(id string) *Stream { return &Stream{id: id} }

func (s *Stream) ID() string { return s.id }

func (s *Stream) Kinds() []domain.MediaKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.kinds)
}

// Packets is the number of RTP packets received on all tracks.
func (s *Stream) Packets() uint64 { return s.packets.Load() }

func (s *Stream) addKind(k domain.MediaKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.kinds, k) {
		s.kinds = append(s.kinds, k)
	}
}

// consume drains track until it ends.
func (s *Stream) consume(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
		s.packets.Add(1)
	}
}

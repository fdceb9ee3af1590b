// Package media provides the local tracks shared by every peer connection
// and the speaking detector fed from raw microphone frames.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoDevices    = errors.New("no audio or video requested")
	ErrSourceClosed = errors.New("media source stopped")
)

type track struct {
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
}

// Source holds one audio and one video sample track. Disabled tracks drop
// samples instead of sending them.
type Source struct {
	streamID string
	audio    *track
	video    *track
	stopped  atomic.Bool
}

func NewSource(streamID string, audio, video bool) (*Source, error) {
	if !audio && !video {
		return nil, ErrNoDevices
	}
	if streamID == "" {
		streamID = uuid.NewString()
	}
	s := &Source{streamID: streamID}
	if audio {
		t, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		}, "audio", streamID)
		if err != nil {
			return nil, fmt.Errorf("audio track: %w", err)
		}
		s.audio = &track{local: t}
		s.audio.enabled.Store(true)
	}
	if video {
		t, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: 90000,
		}, "video", streamID)
		if err != nil {
			return nil, fmt.Errorf("video track: %w", err)
		}
		s.video = &track{local: t}
		s.video.enabled.Store(true)
	}
	return s, nil
}

func (s *Source) StreamID() string { return s.streamID }

func (s *Source) Tracks() []webrtc.TrackLocal {
	var out []webrtc.TrackLocal
	if s.audio != nil {
		out = append(out, s.audio.local)
	}
	if s.video != nil {
		out = append(out, s.video.local)
	}
	return out
}

func (s *Source) track(kind domain.MediaKind) *track {
	switch kind {
	case domain.MediaAudio:
		return s.audio
	case domain.MediaVideo:
		return s.video
	}
	return nil
}

func (s *Source) SetEnabled(kind domain.MediaKind, enabled bool) bool {
	t := s.track(kind)
	if t == nil {
		return false
	}
	t.enabled.Store(enabled)
	return true
}

func (s *Source) Enabled(kind domain.MediaKind) bool {
	t := s.track(kind)
	return t != nil && t.enabled.Load()
}

// WriteSample sends an encoded sample on the track of kind. Samples of a
// disabled track are dropped silently. The caller is an external capture or
// encoder process; meshcall itself never produces samples.
func (s *Source) WriteSample(kind domain.MediaKind, sample media.Sample) error {
	if s.stopped.Load() {
		return ErrSourceClosed
	}
	t := s.track(kind)
	if t == nil {
		return fmt.Errorf("no local %s track", kind)
	}
	if !t.enabled.Load() {
		return nil
	}
	return t.local.WriteSample(sample)
}

func (s *Source) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	log.Info().Str("module", "media").Str("stream", s.streamID).Msg("local media stopped")
}

// Provider opens a fresh Source per session.
type Provider struct {
	Audio bool
	Video bool
}

func (p Provider) Open(ctx context.Context) (core.MediaSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := NewSource("", p.Audio, p.Video)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "media").Str("stream", src.StreamID()).Bool("audio", p.Audio).Bool("video", p.Video).Msg("local media opened")
	return src, nil
}

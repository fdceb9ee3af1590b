package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var errPeerClosed = errors.New("peer connection closed")

// Peer is a non-trickle pion connection: every description is sent only
// after ICE gathering finished, so no candidate blobs are produced locally.
type Peer struct {
	pc     *webrtc.PeerConnection
	remote domain.ParticipantID
	role   core.Role

	ctx    context.Context
	cancel context.CancelFunc

	onSignal    func(domain.Signal)
	onStream    func(core.RemoteStream)
	onConnected func()
	onError     func(error)
	onClosed    func()

	mu        sync.Mutex
	streams   map[string]*Stream
	closeOnce sync.Once
}

func newPeer(pc *webrtc.PeerConnection, remote domain.ParticipantID, role core.Role) *Peer {
	return &Peer{
		pc:      pc,
		remote:  remote,
		role:    role,
		streams: make(map[string]*Stream),
	}
}

func (p *Peer) OnLocalSignal(fn func(domain.Signal)) { p.onSignal = fn }

func (p *Peer) OnStream(fn func(core.RemoteStream)) { p.onStream = fn }

func (p *Peer) OnConnected(fn func()) { p.onConnected = fn }

func (p *Peer) OnError(fn func(error)) { p.onError = fn }

// OnClosed sets application-level callback for cleanup
func (p *Peer) OnClosed(fn func()) { p.onClosed = fn }

func (p *Peer) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "webrtc").Str("peer", string(p.remote)).Str("ice_state", s.String()).Msg("ICE state")
	})

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("peer", string(p.remote)).Str("peer_connection_state", s.String()).Msg("Peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			p.emitConnected()
		case webrtc.PeerConnectionStateFailed:
			p.emitError(fmt.Errorf("%w: peer connection failed", core.ErrConnection))
			p.Close()
		case webrtc.PeerConnectionStateClosed:
			p.finish()
		}
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("peer", string(p.remote)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		s, fresh := p.stream(track.StreamID())
		s.addKind(kindOf(track.Kind()))
		if fresh && p.onStream != nil {
			p.onStream(s)
		}
		s.consume(track)
	})

	if p.role == core.RoleInitiator {
		go p.negotiate(p.offer)
	}
	return nil
}

// ApplySignal never waits for ICE gathering; the answer is emitted later.
func (p *Peer) ApplySignal(sig domain.Signal) error {
	if p.ctx == nil || p.ctx.Err() != nil {
		return errPeerClosed
	}
	switch sig.Kind() {
	case domain.SignalOffer, domain.SignalAnswer:
		sd, err := toSessionDescription(sig)
		if err != nil {
			return err
		}
		if err := p.pc.SetRemoteDescription(sd); err != nil {
			return fmt.Errorf("set remote %s: %w", sd.Type, err)
		}
		if sd.Type == webrtc.SDPTypeOffer {
			go p.negotiate(p.answer)
		}
		return nil
	case domain.SignalCandidate:
		return p.pc.AddICECandidate(toCandidateInit(sig.Candidate))
	case domain.SignalRenegotiate:
		if p.role == core.RoleInitiator {
			go p.negotiate(p.offer)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", core.ErrUnknownSignal, sig.Type)
}

func (p *Peer) offer() (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	return p.publish(offer)
}

func (p *Peer) answer() (*webrtc.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	return p.publish(answer)
}

// publish sets the local description and waits for gathering to complete.
func (p *Peer) publish(sd webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(sd); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-p.ctx.Done():
		return nil, errPeerClosed
	}
	return p.pc.LocalDescription(), nil
}

func (p *Peer) negotiate(step func() (*webrtc.SessionDescription, error)) {
	sd, err := step()
	if err != nil {
		if !errors.Is(err, errPeerClosed) {
			p.emitError(err)
		}
		return
	}
	if sd == nil || p.onSignal == nil || p.ctx.Err() != nil {
		return
	}
	log.Debug().Str("module", "webrtc").Str("peer", string(p.remote)).Str("type", sd.Type.String()).Msg("local description ready")
	p.onSignal(fromSessionDescription(sd))
}

func (p *Peer) stream(id string) (*Stream, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.streams[id]; ok {
		return s, false
	}
	s := newStream(id)
	p.streams[id] = s
	return s, true
}

func (p *Peer) emitConnected() {
	if p.onConnected != nil {
		p.onConnected()
	}
}

func (p *Peer) emitError(err error) {
	log.Warn().Err(err).Str("module", "webrtc").Str("peer", string(p.remote)).Msg("peer error")
	if p.onError != nil {
		p.onError(err)
	}
}

// Close releases the pion connection. Local tracks stay untouched.
func (p *Peer) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Str("peer", string(p.remote)).Msg("close error")
	}
	p.finish()
}

func (p *Peer) finish() {
	p.closeOnce.Do(func() {
		log.Info().Str("module", "webrtc").Str("peer", string(p.remote)).Msg("closed")
		if p.onClosed != nil {
			p.onClosed()
		}
	})
}

package rtc

import (
	"fmt"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Factory creates pion peer connections sharing one API instance.
type Factory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

func NewFactory(cfg webrtc.Configuration, pionLevel zerolog.Level) (*Factory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	se := webrtc.SettingEngine{LoggerFactory: newLoggerFactory(pionLevel)}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)
	return &Factory{api: api, cfg: cfg}, nil
}

func (f *Factory) NewPeer(remote domain.ParticipantID, role core.Role, src core.MediaSource) (core.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}

	sending := map[webrtc.RTPCodecType]bool{}
	if src != nil {
		for _, t := range src.Tracks() {
			sender, err := pc.AddTrack(t)
			if err != nil {
				_ = pc.Close()
				return nil, fmt.Errorf("add %s track: %w", t.Kind(), err)
			}
			sending[t.Kind()] = true
			go drainRTCP(sender)
		}
	}
	// keep both m-lines in the offer even without local capture
	if role == core.RoleInitiator {
		for _, k := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if sending[k] {
				continue
			}
			if _, err := pc.AddTransceiverFromKind(k, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				_ = pc.Close()
				return nil, fmt.Errorf("add %s transceiver: %w", k, err)
			}
		}
	}

	log.Debug().Str("module", "webrtc").Str("peer", string(remote)).Str("role", string(role)).Int("tracks", len(sending)).Msg("peer connection created")
	return newPeer(pc, remote, role), nil
}

// drainRTCP reads sender reports so interceptors keep working.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

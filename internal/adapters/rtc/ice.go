package rtc

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:global.stun.twilio.com:3478",
}

// Configuration builds the peer configuration. Credentials apply to turn: and turns: urls only.
func Configuration(urls []string, turnUser, turnPass string) webrtc.Configuration {
	if len(urls) == 0 {
		urls = DefaultICEServers
	}
	var stun, turn []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		switch {
		case u == "":
		case strings.HasPrefix(u, "turn:"), strings.HasPrefix(u, "turns:"):
			turn = append(turn, u)
		default:
			stun = append(stun, u)
		}
	}
	cfg := webrtc.Configuration{}
	if len(stun) > 0 {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: stun})
	}
	if len(turn) > 0 {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{
			URLs:       turn,
			Username:   turnUser,
			Credential: turnPass,
		})
	}
	return cfg
}

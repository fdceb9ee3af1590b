package domain

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool { return k == MediaAudio || k == MediaVideo }

// MediaState is a participant's self-reported enablement.
type MediaState struct {
	AudioEnabled bool `json:"audioEnabled"`
	VideoEnabled bool `json:"videoEnabled"`
}

func DefaultMediaState() MediaState {
	return MediaState{AudioEnabled: true, VideoEnabled: true}
}

// MediaPatch is a partial update; nil fields are unchanged.
type MediaPatch struct {
	AudioEnabled *bool `json:"audioEnabled,omitempty"`
	VideoEnabled *bool `json:"videoEnabled,omitempty"`
}

func PatchFor(kind MediaKind, enabled bool) MediaPatch {
	var p MediaPatch
	switch kind {
	case MediaAudio:
		p.AudioEnabled = &enabled
	case MediaVideo:
		p.VideoEnabled = &enabled
	}
	return p
}

func (p MediaPatch) Empty() bool { return p.AudioEnabled == nil && p.VideoEnabled == nil }

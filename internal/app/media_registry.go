package app

import (
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

type mediaField struct {
	value bool
	// seen is set once the value came from local knowledge or a per-field update.
	seen bool
}

type mediaEntry struct {
	audio mediaField
	video mediaField
}

func defaultEntry() *mediaEntry {
	return &mediaEntry{audio: mediaField{value: true}, video: mediaField{value: true}}
}

func (e *mediaEntry) state() domain.MediaState {
	return domain.MediaState{AudioEnabled: e.audio.value, VideoEnabled: e.video.value}
}

// MediaRegistry tracks self-reported audio/video flags per participant.
type MediaRegistry struct {
	self    domain.ParticipantID
	entries map[domain.ParticipantID]*mediaEntry
	send    func(domain.MediaPatch) error
	publish func(domain.ParticipantID, domain.MediaState)
}

func NewMediaRegistry(send func(domain.MediaPatch) error, publish func(domain.ParticipantID, domain.MediaState)) *MediaRegistry {
	if publish == nil {
		publish = func(domain.ParticipantID, domain.MediaState) {}
	}
	return &MediaRegistry{
		self:    domain.SelfKey,
		entries: make(map[domain.ParticipantID]*mediaEntry),
		send:    send,
		publish: publish,
	}
}

// AssignSelf moves whatever was recorded under domain.SelfKey to the real id.
func (r *MediaRegistry) AssignSelf(id domain.ParticipantID) {
	if id == "" || id == r.self {
		return
	}
	if e, ok := r.entries[r.self]; ok {
		delete(r.entries, r.self)
		if _, exists := r.entries[id]; !exists {
			r.entries[id] = e
		}
	}
	r.self = id
}

func (r *MediaRegistry) Self() domain.ParticipantID { return r.self }

// SeedLocal records the local track flags unless a toggle already did.
func (r *MediaRegistry) SeedLocal(st domain.MediaState) {
	e := r.entry(r.self)
	if !e.audio.seen {
		e.audio = mediaField{value: st.AudioEnabled, seen: true}
	}
	if !e.video.seen {
		e.video = mediaField{value: st.VideoEnabled, seen: true}
	}
	r.publish(r.self, e.state())
}

// Seed creates a default entry for id if none exists.
func (r *MediaRegistry) Seed(id domain.ParticipantID) {
	if _, ok := r.entries[id]; ok {
		return
	}
	r.entries[id] = defaultEntry()
	r.publish(id, r.entries[id].state())
}

// SetLocal updates the local entry and emits only the changed field.
func (r *MediaRegistry) SetLocal(kind domain.MediaKind, enabled bool) error {
	patch := domain.PatchFor(kind, enabled)
	if patch.Empty() {
		return nil
	}
	e := r.entry(r.self)
	merge(e, patch)
	r.publish(r.self, e.state())
	if r.send == nil {
		return nil
	}
	return r.send(patch)
}

// AnnounceLocal sends the local fields that differ from the default every
// participant assumes, such as a track toggled off before the join completed.
func (r *MediaRegistry) AnnounceLocal() error {
	e, ok := r.entries[r.self]
	if !ok || r.send == nil {
		return nil
	}
	var patch domain.MediaPatch
	if !e.audio.value {
		patch.AudioEnabled = new(bool)
	}
	if !e.video.value {
		patch.VideoEnabled = new(bool)
	}
	if patch.Empty() {
		return nil
	}
	return r.send(patch)
}

// ApplyRemote merges a partial update. Fields first seen default to true.
func (r *MediaRegistry) ApplyRemote(id domain.ParticipantID, patch domain.MediaPatch) {
	if id == "" || patch.Empty() {
		return
	}
	e := r.entry(id)
	merge(e, patch)
	log.Debug().Str("module", "app.media").Str("peer", string(id)).Bool("audio", e.audio.value).Bool("video", e.video.value).Msg("media state applied")
	r.publish(id, e.state())
}

// ApplyBatch merges a snapshot without overriding any field already observed.
func (r *MediaRegistry) ApplyBatch(snapshot map[domain.ParticipantID]domain.MediaState) {
	for id, st := range snapshot {
		if id == "" {
			continue
		}
		e := r.entry(id)
		if !e.audio.seen {
			e.audio.value = st.AudioEnabled
		}
		if !e.video.seen {
			e.video.value = st.VideoEnabled
		}
		r.publish(id, e.state())
	}
}

func (r *MediaRegistry) Get(id domain.ParticipantID) domain.MediaState {
	if e, ok := r.entries[id]; ok {
		return e.state()
	}
	return domain.DefaultMediaState()
}

func (r *MediaRegistry) Remove(id domain.ParticipantID) { delete(r.entries, id) }

func (r *MediaRegistry) Reset() {
	clear(r.entries)
	r.self = domain.SelfKey
}

func (r *MediaRegistry) entry(id domain.ParticipantID) *mediaEntry {
	e, ok := r.entries[id]
	if !ok {
		e = defaultEntry()
		r.entries[id] = e
	}
	return e
}

func merge(e *mediaEntry, patch domain.MediaPatch) {
	if patch.AudioEnabled != nil {
		e.audio = mediaField{value: *patch.AudioEnabled, seen: true}
	}
	if patch.VideoEnabled != nil {
		e.video = mediaField{value: *patch.VideoEnabled, seen: true}
	}
}

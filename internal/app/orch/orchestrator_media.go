package orch

import (
	"errors"
	"strings"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const chatLabelFallback = "Usuario"

var errEmptyChat = errors.New("empty chat message")

func (o *Orchestrator) OnChat(msg domain.ChatMessage) {
	o.loop.Post(func() {
		if !o.active {
			return
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Timestamp == "" {
			msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}
		o.observer.ChatReceived(msg)
	})
}

func (o *Orchestrator) OnMediaState(id domain.ParticipantID, patch domain.MediaPatch) {
	o.loop.Post(func() {
		// the local entry is only changed by local toggles
		if !o.active || id == "" || id == o.selfID() {
			return
		}
		o.states.ApplyRemote(id, patch)
	})
}

func (o *Orchestrator) OnMediaStates(snapshot map[domain.ParticipantID]domain.MediaState) {
	o.loop.Post(func() {
		if !o.active {
			return
		}
		if self := o.selfID(); self != "" {
			delete(snapshot, self)
		}
		o.states.ApplyBatch(snapshot)
	})
}

func (o *Orchestrator) setMedia(kind domain.MediaKind, enabled bool) error {
	if !o.active || o.source == nil {
		return core.NewPeerError("set media", "", core.ErrNotReady)
	}
	if !o.source.SetEnabled(kind, enabled) {
		return core.Wrap("set media", "", core.ErrNotReady, errors.New("no local "+string(kind)+" track"))
	}
	log.Info().Str("module", "orch").Str("kind", string(kind)).Bool("enabled", enabled).Msg("local media toggled")
	return o.states.SetLocal(kind, enabled)
}

// sendMediaPatch announces a local change once the room knows about us.
func (o *Orchestrator) sendMediaPatch(patch domain.MediaPatch) error {
	if !o.joinSent || !o.channel.Connected() {
		return nil
	}
	if err := o.channel.SendMediaState(o.opts.Room, patch); err != nil {
		return core.Wrap("send media state", "", core.ErrChannelClosed, err)
	}
	return nil
}

func (o *Orchestrator) sendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.NewPeerError("chat", "", errEmptyChat)
	}
	if !o.active || !o.joined || !o.channel.Connected() {
		return core.NewPeerError("chat", "", core.ErrNotReady)
	}
	label := o.opts.DisplayName
	if label == "" {
		label = chatLabelFallback
	}
	if err := o.channel.SendChat(o.opts.Room, label, text); err != nil {
		return core.Wrap("chat", "", core.ErrChannelClosed, err)
	}
	return nil
}

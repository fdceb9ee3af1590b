package orch

import (
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// OnSession and the rest of core.ChannelEvents only post to the loop.
func (o *Orchestrator) OnSession(self domain.ParticipantID) {
	o.loop.Post(func() {
		if !o.active {
			return
		}
		o.self = self
		log.Info().Str("module", "orch").Str("self", string(self)).Msg("session assigned")
		o.maybeJoin()
	})
}

func (o *Orchestrator) OnRoomJoined(existing []domain.Participant) {
	o.loop.Post(func() { o.handleRoomJoined(existing) })
}

func (o *Orchestrator) OnUserJoined(p domain.Participant) {
	o.loop.Post(func() { o.handleUserJoined(p) })
}

func (o *Orchestrator) OnUserLeft(id domain.ParticipantID) {
	o.loop.Post(func() {
		if o.active && id != "" {
			o.teardown(id)
		}
	})
}

func (o *Orchestrator) OnSignal(env domain.SignalEnvelope) {
	o.loop.Post(func() { o.handleSignal(env) })
}

func (o *Orchestrator) OnRoomFull() {
	o.loop.Post(o.handleRoomFull)
}

func (o *Orchestrator) OnDisconnected(err error) {
	o.loop.Post(func() {
		if !o.active {
			return
		}
		log.Warn().Err(err).Str("module", "orch").Msg("channel lost")
		o.observer.SessionError(core.Wrap("channel", "", core.ErrChannelClosed, err))
		o.reset(false)
	})
}

func (o *Orchestrator) handleRoomJoined(existing []domain.Participant) {
	if !o.active || o.full {
		return
	}
	self := o.selfID()
	o.joined = true

	eligible := o.members.OnRoomJoined(
		domain.RoomSnapshot{Self: self, Existing: existing},
		domain.Participant{DisplayName: o.opts.DisplayName, PhotoURL: o.opts.PhotoURL},
	)
	o.states.AssignSelf(self)
	if err := o.states.AnnounceLocal(); err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("local media state not announced")
	}
	for _, p := range existing {
		if p.ID != "" && p.ID != self {
			o.states.Seed(p.ID)
		}
	}

	if !eligible {
		o.setWaiting(true)
		return
	}
	o.setWaiting(false)

	targets := o.policy.InitiateTargets(existing, self)
	if skipped := len(existing) - len(targets); skipped > 0 {
		log.Warn().Str("module", "orch").Int("skipped", skipped).Msg("fan-out cap reached")
	}
	ctx := o.ctx
	for i, t := range targets {
		id := t.ID
		o.loop.After(o.policy.Delay(i), func() {
			if ctx.Err() != nil || !o.active || !o.members.Has(id) {
				return
			}
			if _, exists := o.entries[id]; exists {
				return
			}
			if err := o.establish(id, core.RoleInitiator, nil); err != nil {
				log.Warn().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("initiate failed")
			}
		})
	}
}

func (o *Orchestrator) handleUserJoined(p domain.Participant) {
	if !o.active || p.ID == "" || p.ID == o.selfID() {
		return
	}
	if o.members.OnUserJoined(p) {
		o.states.Seed(p.ID)
		return
	}
	o.members.Touch(p)
}

func (o *Orchestrator) handleSignal(env domain.SignalEnvelope) {
	if !o.active || o.full || env.From == "" {
		return
	}
	kind := env.Signal.Kind()
	if kind == "" {
		log.Warn().Str("module", "orch").Str("peer", string(env.From)).Msg("unknown signal dropped")
		o.observer.PeerError(env.From, core.NewPeerError("signal", env.From, core.ErrUnknownSignal))
		return
	}
	env.Sender.ID = env.From
	o.members.Touch(env.Sender)

	if e, ok := o.entries[env.From]; ok {
		o.apply(e, env.Signal)
		return
	}
	if kind == domain.SignalOffer {
		if err := o.establish(env.From, core.RoleReceiver, &env.Signal); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(env.From)).Msg("offer not accepted")
		}
		return
	}
	if !o.buffer.Enqueue(env.From, env.Signal) {
		log.Warn().Str("module", "orch").Str("peer", string(env.From)).Str("kind", string(kind)).Msg("signal buffer full, dropped")
		return
	}
	log.Debug().Str("module", "orch").Str("peer", string(env.From)).Str("kind", string(kind)).Msg("signal buffered")
}

func (o *Orchestrator) handleRoomFull() {
	if !o.active {
		return
	}
	log.Warn().Str("module", "orch").Str("room", string(o.opts.Room)).Msg("room full")
	o.full = true
	o.observer.RoomFull()
	o.observer.SessionError(core.NewPeerError("join", "", core.ErrCapacityExceeded))
	o.reset(false)
}

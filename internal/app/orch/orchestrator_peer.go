package orch

import (
	"errors"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

var errSelfPeer = errors.New("refusing to connect to self")

type peerEventKind int

const (
	evLocalSignal peerEventKind = iota
	evStream
	evConnected
	evError
	evClosed
)

type peerEvent struct {
	kind   peerEventKind
	signal domain.Signal
	stream core.RemoteStream
	err    error
}

// establish replaces any entry for remote with a fresh one and applies initial
// plus buffered signals to it before anything else can reach it.
func (o *Orchestrator) establish(remote domain.ParticipantID, role core.Role, initial *domain.Signal) error {
	switch {
	case remote == "" || remote == o.selfID():
		return core.NewPeerError("establish", remote, errSelfPeer)
	case o.full:
		return core.NewPeerError("establish", remote, core.ErrCapacityExceeded)
	case !o.active || o.source == nil || !o.channel.Connected():
		log.Debug().Str("module", "orch").Str("peer", string(remote)).Msg("establish dropped, not ready")
		return core.NewPeerError("establish", remote, core.ErrNotReady)
	}

	if old, ok := o.entries[remote]; ok {
		log.Info().Str("module", "orch").Str("peer", string(remote)).Str("role", string(old.Role)).Msg("replacing peer entry")
		o.destroy(old)
		if old.stream != nil {
			o.observer.StreamRemoved(remote)
		}
	}

	conn, err := o.peers.NewPeer(remote, role, o.source)
	if err != nil {
		perr := core.Wrap("establish", remote, core.ErrConnection, err)
		o.observer.PeerError(remote, perr)
		return perr
	}
	entry := newEntry(remote, role, conn)
	o.bind(entry)
	o.entries[remote] = entry

	if !o.members.Has(remote) {
		o.members.OnUserJoined(domain.Participant{ID: remote})
	}
	o.states.Seed(remote)

	log.Info().Str("module", "orch").Str("peer", string(remote)).Str("role", string(role)).Msg("peer entry created")

	if err := conn.Start(o.ctx); err != nil {
		o.destroy(entry)
		perr := core.Wrap("start", remote, core.ErrConnection, err)
		o.observer.PeerError(remote, perr)
		return perr
	}

	pending := o.buffer.DrainAndClear(remote)
	if initial != nil {
		pending = append([]domain.Signal{*initial}, pending...)
	}
	for _, sig := range pending {
		if o.entries[remote] != entry {
			break
		}
		o.apply(entry, sig)
	}
	return nil
}

func (o *Orchestrator) bind(e *PeerEntry) {
	post := func(ev peerEvent) {
		o.loop.Post(func() { o.onPeerEvent(e, ev) })
	}
	e.conn.OnLocalSignal(func(sig domain.Signal) { post(peerEvent{kind: evLocalSignal, signal: sig}) })
	e.conn.OnStream(func(s core.RemoteStream) { post(peerEvent{kind: evStream, stream: s}) })
	e.conn.OnConnected(func() { post(peerEvent{kind: evConnected}) })
	e.conn.OnError(func(err error) { post(peerEvent{kind: evError, err: err}) })
	e.conn.OnClosed(func() { post(peerEvent{kind: evClosed}) })
}

func (o *Orchestrator) apply(e *PeerEntry, sig domain.Signal) {
	e.markSignaling()
	if err := e.conn.ApplySignal(sig); err != nil {
		perr := core.Wrap("apply signal", e.Remote, core.ErrSignalApply, err)
		log.Warn().Err(err).Str("module", "orch").Str("peer", string(e.Remote)).Str("kind", string(sig.Kind())).Msg("signal rejected")
		o.observer.PeerError(e.Remote, perr)
	}
}

// onPeerEvent handles callbacks from a connection. Events of an entry that is
// no longer current are ignored.
func (o *Orchestrator) onPeerEvent(e *PeerEntry, ev peerEvent) {
	if o.entries[e.Remote] != e {
		log.Debug().Str("module", "orch").Str("peer", string(e.Remote)).Int("event", int(ev.kind)).Msg("stale peer event ignored")
		return
	}
	switch ev.kind {
	case evLocalSignal:
		e.markSignaling()
		if err := o.channel.SendSignal(o.opts.Room, o.selfID(), e.Remote, ev.signal); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(e.Remote)).Msg("signal send failed")
			o.observer.PeerError(e.Remote, core.Wrap("send signal", e.Remote, core.ErrChannelClosed, err))
		}
	case evStream:
		e.stream = ev.stream
		o.observer.StreamAdded(e.Remote, ev.stream)
		o.setWaiting(false)
	case evConnected:
		e.markConnected()
		o.setWaiting(false)
		log.Info().Str("module", "orch").Str("peer", string(e.Remote)).Msg("peer connected")
	case evError:
		log.Warn().Err(ev.err).Str("module", "orch").Str("peer", string(e.Remote)).Msg("peer error")
		o.observer.PeerError(e.Remote, core.Wrap("peer", e.Remote, core.ErrConnection, ev.err))
	case evClosed:
		delete(o.entries, e.Remote)
		e.markClosed()
		o.forget(e)
		log.Info().Str("module", "orch").Str("peer", string(e.Remote)).Msg("peer closed")
	}
}

// teardown is the user-left path.
func (o *Orchestrator) teardown(id domain.ParticipantID) {
	if e, ok := o.entries[id]; ok {
		o.destroy(e)
		o.forget(e)
		return
	}
	o.buffer.Clear(id)
	o.members.OnUserLeft(id)
	o.states.Remove(id)
	o.setWaiting(len(o.entries) == 0)
}

// forget drops everything known about a peer whose entry is gone.
func (o *Orchestrator) forget(e *PeerEntry) {
	if e.stream != nil {
		o.observer.StreamRemoved(e.Remote)
	}
	o.buffer.Clear(e.Remote)
	o.members.OnUserLeft(e.Remote)
	o.states.Remove(e.Remote)
	o.setWaiting(len(o.entries) == 0)
}

// destroy unregisters e before closing it so its own close event is stale.
func (o *Orchestrator) destroy(e *PeerEntry) {
	if o.entries[e.Remote] == e {
		delete(o.entries, e.Remote)
	}
	if e.markClosed() {
		e.conn.Close()
	}
}

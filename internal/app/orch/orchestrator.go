package orch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrAlreadyJoined = errors.New("session already joined")

type Deps struct {
	Channel  core.SignalChannel
	Peers    core.PeerFactory
	Media    core.MediaProvider
	Analyzer core.AudioAnalyzer // optional
	Observer core.Observer
	Loop     app.Dispatcher
	Policy   app.Policy
}

type Options struct {
	Room        domain.RoomID
	Identity    string
	DisplayName string
	PhotoURL    string
	BufferLimit int
	BufferTTL   time.Duration
}

// Orchestrator owns the local session in one room. All state below is touched
// only from tasks posted to Loop.
type Orchestrator struct {
	opts     Options
	channel  core.SignalChannel
	peers    core.PeerFactory
	media    core.MediaProvider
	analyzer core.AudioAnalyzer
	observer core.Observer
	loop     app.Dispatcher
	policy   app.Policy

	started atomic.Bool

	ctx      context.Context
	cancel   context.CancelFunc
	self     domain.ParticipantID
	source   core.MediaSource
	active   bool
	joinSent bool
	joined   bool
	full     bool
	waiting  bool

	members *app.Membership
	buffer  *app.SignalBuffer
	states  *app.MediaRegistry
	entries map[domain.ParticipantID]*PeerEntry
}

func New(deps Deps, opts Options) *Orchestrator {
	if deps.Observer == nil {
		deps.Observer = core.NopObserver{}
	}
	if deps.Loop == nil {
		deps.Loop = app.Inline{}
	}
	if deps.Policy == nil {
		deps.Policy = app.NewMeshPolicy(domain.MaxParticipants, 300*time.Millisecond)
	}
	if opts.DisplayName == "" {
		opts.DisplayName = domain.DefaultName
	}
	o := &Orchestrator{
		opts:     opts,
		channel:  deps.Channel,
		peers:    deps.Peers,
		media:    deps.Media,
		analyzer: deps.Analyzer,
		observer: deps.Observer,
		loop:     deps.Loop,
		policy:   deps.Policy,
		ctx:      context.Background(),
		entries:  make(map[domain.ParticipantID]*PeerEntry),
		buffer:   app.NewSignalBuffer(opts.BufferLimit, opts.BufferTTL),
	}
	o.members = app.NewMembership(o.observer.MembershipChanged)
	o.states = app.NewMediaRegistry(o.sendMediaPatch, o.observer.MediaStateChanged)
	return o
}

// Join opens local media, connects the channel and announces the room.
// A media failure aborts before anything is sent to the relay.
func (o *Orchestrator) Join(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyJoined
	}
	src, err := o.media.Open(ctx)
	if err != nil {
		o.started.Store(false)
		perr := core.Wrap("open media", "", core.ErrLocalDevice, err)
		o.loop.Post(func() { o.observer.SessionError(perr) })
		return perr
	}

	sessCtx, cancel := context.WithCancel(ctx)
	if err := o.run(ctx, func() { o.begin(sessCtx, cancel, src) }); err != nil {
		cancel()
		src.Stop()
		o.started.Store(false)
		return err
	}

	if err := o.channel.Connect(sessCtx, o); err != nil {
		perr := core.Wrap("connect", "", core.ErrChannelClosed, err)
		o.loop.Post(func() {
			o.observer.SessionError(perr)
			o.reset(false)
		})
		return perr
	}
	o.loop.Post(o.maybeJoin)
	return nil
}

// Leave tears the session down and returns once it is done.
func (o *Orchestrator) Leave(ctx context.Context) error {
	return o.run(ctx, func() { o.reset(true) })
}

// SetMedia toggles a local track and tells the room.
func (o *Orchestrator) SetMedia(ctx context.Context, kind domain.MediaKind, enabled bool) error {
	if !kind.Valid() {
		return core.Wrap("set media", "", core.ErrNotReady, errors.New("unknown media kind "+string(kind)))
	}
	var err error
	if rerr := o.run(ctx, func() { err = o.setMedia(kind, enabled) }); rerr != nil {
		return rerr
	}
	return err
}

func (o *Orchestrator) SetAudio(ctx context.Context, enabled bool) error {
	return o.SetMedia(ctx, domain.MediaAudio, enabled)
}

func (o *Orchestrator) SetVideo(ctx context.Context, enabled bool) error {
	return o.SetMedia(ctx, domain.MediaVideo, enabled)
}

func (o *Orchestrator) SendChat(ctx context.Context, text string) error {
	var err error
	if rerr := o.run(ctx, func() { err = o.sendChat(text) }); rerr != nil {
		return rerr
	}
	return err
}

// Snapshot returns a consistent view of the session taken on the loop.
func (o *Orchestrator) Snapshot(ctx context.Context) (View, error) {
	var v View
	if err := o.run(ctx, func() { v = o.view() }); err != nil {
		return View{}, err
	}
	return v, nil
}

// run posts fn and waits for it.
func (o *Orchestrator) run(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	o.loop.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) begin(ctx context.Context, cancel context.CancelFunc, src core.MediaSource) {
	o.ctx, o.cancel = ctx, cancel
	o.source = src
	o.active = true
	o.joinSent, o.joined, o.full = false, false, false
	o.states.SeedLocal(domain.MediaState{
		AudioEnabled: src.Enabled(domain.MediaAudio),
		VideoEnabled: src.Enabled(domain.MediaVideo),
	})
	if o.analyzer != nil {
		o.analyzer.Start(func(speaking bool) {
			o.loop.Post(func() {
				if o.active && o.source != nil {
					o.observer.SpeakingChanged(speaking && o.source.Enabled(domain.MediaAudio))
				}
			})
		})
	}
	o.scheduleSweep()
	log.Info().Str("module", "orch").Str("room", string(o.opts.Room)).Msg("local media ready")
}

func (o *Orchestrator) maybeJoin() {
	if !o.active || o.joinSent || o.source == nil || !o.channel.Connected() {
		return
	}
	err := o.channel.Join(core.JoinRequest{
		Room:        o.opts.Room,
		Identity:    o.opts.Identity,
		DisplayName: o.opts.DisplayName,
		PhotoURL:    o.opts.PhotoURL,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(o.opts.Room)).Msg("join send failed")
		o.observer.SessionError(core.Wrap("join", "", core.ErrChannelClosed, err))
		return
	}
	o.joinSent = true
	log.Info().Str("module", "orch").Str("room", string(o.opts.Room)).Msg("join requested")
}

func (o *Orchestrator) scheduleSweep() {
	ttl := o.opts.BufferTTL
	if ttl <= 0 {
		return
	}
	ctx := o.ctx
	o.loop.After(ttl, func() {
		if ctx.Err() != nil || !o.active {
			return
		}
		for _, id := range o.buffer.Expire() {
			log.Warn().Str("module", "orch").Str("peer", string(id)).Msg("buffered signals expired")
		}
		o.scheduleSweep()
	})
}

func (o *Orchestrator) selfID() domain.ParticipantID {
	if o.self != "" {
		return o.self
	}
	if id, ok := o.channel.SelfID(); ok {
		o.self = id
	}
	return o.self
}

func (o *Orchestrator) setWaiting(w bool) {
	if o.waiting == w {
		return
	}
	o.waiting = w
	o.observer.WaitingChanged(w)
}

// reset is the full teardown; repeated calls are no-ops.
func (o *Orchestrator) reset(announce bool) {
	if !o.active {
		return
	}
	o.active = false

	for id, e := range o.entries {
		o.destroy(e)
		if e.stream != nil {
			o.observer.StreamRemoved(id)
		}
	}
	o.buffer.Reset()

	if o.analyzer != nil {
		o.analyzer.Stop()
	}
	if o.source != nil {
		o.source.Stop()
		o.source = nil
	}
	if announce && o.joinSent && o.channel.Connected() {
		if err := o.channel.Leave(o.opts.Room); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("leave send failed")
		}
	}
	o.channel.Close()

	o.members.Reset()
	o.states.Reset()
	o.setWaiting(false)
	o.self = ""
	o.joinSent, o.joined = false, false
	if o.cancel != nil {
		o.cancel()
	}
	o.started.Store(false)
	log.Info().Str("module", "orch").Str("room", string(o.opts.Room)).Msg("session reset")
	o.observer.SessionEnded()
}

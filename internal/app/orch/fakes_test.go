package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
)

// testLoop runs posts inline and parks timers until fired.
type testLoop struct {
	timers []timer
}

type timer struct {
	d  time.Duration
	fn func()
}

func (l *testLoop) Post(fn func()) { fn() }

func (l *testLoop) After(d time.Duration, fn func()) { l.timers = append(l.timers, timer{d, fn}) }

func (l *testLoop) fire() {
	pending := l.timers
	l.timers = nil
	for _, t := range pending {
		t.fn()
	}
}

type sentSignal struct {
	from, to domain.ParticipantID
	sig      domain.Signal
}

type fakeChannel struct {
	events     core.ChannelEvents
	connected  bool
	connectErr error
	self       domain.ParticipantID

	// lateConnect leaves the channel unconnected until the test says so.
	lateConnect bool

	joins   []core.JoinRequest
	signals []sentSignal
	chats   []string
	patches []domain.MediaPatch
	leaves  int
	closes  int
}

func (c *fakeChannel) Connect(_ context.Context, ev core.ChannelEvents) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.events = ev
	c.connected = !c.lateConnect
	return nil
}

func (c *fakeChannel) Connected() bool { return c.connected }

func (c *fakeChannel) SelfID() (domain.ParticipantID, bool) { return c.self, c.self != "" }

func (c *fakeChannel) Join(req core.JoinRequest) error {
	c.joins = append(c.joins, req)
	return nil
}

func (c *fakeChannel) SendSignal(_ domain.RoomID, from, to domain.ParticipantID, sig domain.Signal) error {
	c.signals = append(c.signals, sentSignal{from, to, sig})
	return nil
}

func (c *fakeChannel) SendChat(_ domain.RoomID, sender, text string) error {
	c.chats = append(c.chats, sender+": "+text)
	return nil
}

func (c *fakeChannel) SendMediaState(_ domain.RoomID, patch domain.MediaPatch) error {
	c.patches = append(c.patches, patch)
	return nil
}

func (c *fakeChannel) Leave(domain.RoomID) error {
	c.leaves++
	return nil
}

func (c *fakeChannel) Close() {
	c.closes++
	c.connected = false
}

type fakeStream string

func (s fakeStream) ID() string { return string(s) }

func (fakeStream) Kinds() []domain.MediaKind {
	return []domain.MediaKind{domain.MediaAudio, domain.MediaVideo}
}

type fakePeer struct {
	name     string
	remote   domain.ParticipantID
	role     core.Role
	journal  *[]string
	applyErr error

	applied []domain.Signal
	started bool
	closed  int

	onSignal    func(domain.Signal)
	onStream    func(core.RemoteStream)
	onConnected func()
	onError     func(error)
	onClosed    func()
}

func (p *fakePeer) OnLocalSignal(fn func(domain.Signal)) { p.onSignal = fn }
func (p *fakePeer) OnStream(fn func(core.RemoteStream)) { p.onStream = fn }
func (p *fakePeer) OnConnected(fn func()) { p.onConnected = fn }
func (p *fakePeer) OnError(fn func(error)) { p.onError = fn }
func (p *fakePeer) OnClosed(fn func()) { p.onClosed = fn }
func (p *fakePeer) ApplySignal(sig domain.Signal) error {
	p.applied = append(p.applied, sig)
	return p.applyErr
}

func (p *fakePeer) Start(context.Context) error {
	p.started = true
	return nil
}

func (p *fakePeer) Close() {
	p.closed++
	*p.journal = append(*p.journal, "close:"+p.name)
}

type fakeFactory struct {
	journal []string
	peers   []*fakePeer
	count   map[domain.ParticipantID]int
	err     error
}

func (f *fakeFactory) NewPeer(remote domain.ParticipantID, role core.Role, _ core.MediaSource) (core.PeerConnection, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.count == nil {
		f.count = map[domain.ParticipantID]int{}
	}
	f.count[remote]++
	p := &fakePeer{
		name:    fmt.Sprintf("%s#%d", remote, f.count[remote]),
		remote:  remote,
		role:    role,
		journal: &f.journal,
	}
	f.journal = append(f.journal, "new:"+p.name)
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeFactory) last(remote domain.ParticipantID) *fakePeer {
	for i := len(f.peers) - 1; i >= 0; i-- {
		if f.peers[i].remote == remote {
			return f.peers[i]
		}
	}
	return nil
}

type fakeSource struct {
	enabled map[domain.MediaKind]bool
	stopped int
}

func newFakeSource() *fakeSource {
	return &fakeSource{enabled: map[domain.MediaKind]bool{domain.MediaAudio: true, domain.MediaVideo: true}}
}

func (s *fakeSource) Tracks() []webrtc.TrackLocal { return nil }

func (s *fakeSource) SetEnabled(kind domain.MediaKind, enabled bool) bool {
	if _, ok := s.enabled[kind]; !ok {
		return false
	}
	s.enabled[kind] = enabled
	return true
}

func (s *fakeSource) Enabled(kind domain.MediaKind) bool { return s.enabled[kind] }

func (s *fakeSource) Stop() { s.stopped++ }

type fakeProvider struct {
	src *fakeSource
	err error
}

func (p *fakeProvider) Open(context.Context) (core.MediaSource, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.src, nil
}

type recObserver struct {
	core.NopObserver
	members     [][]domain.ParticipantID
	waiting     []bool
	added       []domain.ParticipantID
	removed     []domain.ParticipantID
	media       map[domain.ParticipantID]domain.MediaState
	chats       []domain.ChatMessage
	full        int
	peerErrs    []error
	sessionErrs []error
	speaking    []bool
	ended       int
}

func (r *recObserver) MembershipChanged(ids []domain.ParticipantID) { r.members = append(r.members, ids) }
func (r *recObserver) WaitingChanged(w bool) { r.waiting = append(r.waiting, w) }
func (r *recObserver) StreamAdded(id domain.ParticipantID, _ core.RemoteStream) {
	r.added = append(r.added, id)
}
func (r *recObserver) StreamRemoved(id domain.ParticipantID) { r.removed = append(r.removed, id) }
func (r *recObserver) MediaStateChanged(id domain.ParticipantID, st domain.MediaState) {
	if r.media == nil {
		r.media = map[domain.ParticipantID]domain.MediaState{}
	}
	r.media[id] = st
}
func (r *recObserver) ChatReceived(m domain.ChatMessage) { r.chats = append(r.chats, m) }
func (r *recObserver) SpeakingChanged(s bool) { r.speaking = append(r.speaking, s) }
func (r *recObserver) RoomFull() { r.full++ }
func (r *recObserver) PeerError(_ domain.ParticipantID, err error) { r.peerErrs = append(r.peerErrs, err) }
func (r *recObserver) SessionError(err error) { r.sessionErrs = append(r.sessionErrs, err) }
func (r *recObserver) SessionEnded() { r.ended++ }

func (r *recObserver) lastWaiting() bool {
	if len(r.waiting) == 0 {
		return false
	}
	return r.waiting[len(r.waiting)-1]
}

type fakeAnalyzer struct {
	onChange func(bool)
	stopped  int
}

func (a *fakeAnalyzer) Start(fn func(bool)) { a.onChange = fn }
func (a *fakeAnalyzer) Stop() { a.stopped++ }

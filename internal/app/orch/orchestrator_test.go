package orch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	o        *Orchestrator
	loop     *testLoop
	channel  *fakeChannel
	factory  *fakeFactory
	source   *fakeSource
	provider *fakeProvider
	obs      *recObserver
	analyzer *fakeAnalyzer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loop:     &testLoop{},
		channel:  &fakeChannel{},
		factory:  &fakeFactory{},
		source:   newFakeSource(),
		obs:      &recObserver{},
		analyzer: &fakeAnalyzer{},
	}
	h.provider = &fakeProvider{src: h.source}
	h.o = New(Deps{
		Channel:  h.channel,
		Peers:    h.factory,
		Media:    h.provider,
		Analyzer: h.analyzer,
		Observer: h.obs,
		Loop:     h.loop,
		Policy:   app.NewMeshPolicy(domain.MaxParticipants, 300*time.Millisecond),
	}, Options{
		Room:        "room-1",
		Identity:    "ident",
		DisplayName: "Ana",
		BufferLimit: 32,
	})
	return h
}

// joined brings the session into the room with the given existing members.
func (h *harness) joined(t *testing.T, existing ...domain.ParticipantID) {
	t.Helper()
	require.NoError(t, h.o.Join(context.Background()))
	h.o.OnSession("me")
	users := make([]domain.Participant, 0, len(existing))
	for _, id := range existing {
		users = append(users, domain.Participant{ID: id})
	}
	h.o.OnRoomJoined(users)
}

func offer(sdp string) domain.Signal { return domain.Signal{Type: domain.SignalOffer, SDP: sdp} }

func candidate(c string) domain.Signal {
	return domain.Signal{Candidate: &domain.ICECandidate{Candidate: c}}
}

func TestJoinAnnouncesAfterMediaReady(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.o.Join(context.Background()))

	require.Len(t, h.channel.joins, 1)
	assert.Equal(t, core.JoinRequest{Room: "room-1", Identity: "ident", DisplayName: "Ana"}, h.channel.joins[0])
	assert.NotNil(t, h.analyzer.onChange)

	h.o.OnSession("me")
	assert.Len(t, h.channel.joins, 1, "join is sent once")
	assert.ErrorIs(t, h.o.Join(context.Background()), ErrAlreadyJoined)
}

func TestJoinFailsOnLocalDevice(t *testing.T) {
	h := newHarness(t)
	h.provider.err = errors.New("no camera")

	err := h.o.Join(context.Background())
	require.ErrorIs(t, err, core.ErrLocalDevice)
	assert.False(t, h.channel.connected)
	assert.Empty(t, h.channel.joins)
	require.Len(t, h.obs.sessionErrs, 1)
}

func TestJoinConnectFailureStopsMedia(t *testing.T) {
	h := newHarness(t)
	h.channel.connectErr = errors.New("dial refused")

	require.ErrorIs(t, h.o.Join(context.Background()), core.ErrChannelClosed)
	assert.Equal(t, 1, h.source.stopped)
	assert.Empty(t, h.channel.joins)
}

func TestEmptyRoomWaits(t *testing.T) {
	h := newHarness(t)
	h.joined(t)

	assert.True(t, h.obs.lastWaiting())
	assert.Empty(t, h.loop.timers)
	assert.Equal(t, []domain.ParticipantID{"me"}, h.o.members.IDs())
}

func TestRoomJoinedInitiatesStaggered(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a", "b", "c")

	require.Len(t, h.loop.timers, 3)
	assert.Equal(t, 300*time.Millisecond, h.loop.timers[0].d)
	assert.Equal(t, 600*time.Millisecond, h.loop.timers[1].d)
	assert.Equal(t, 900*time.Millisecond, h.loop.timers[2].d)
	assert.Empty(t, h.factory.peers, "nothing is created before its delay")

	h.loop.fire()
	require.Len(t, h.factory.peers, 3)
	for _, p := range h.factory.peers {
		assert.Equal(t, core.RoleInitiator, p.role)
		assert.True(t, p.started)
	}
	assert.False(t, h.obs.lastWaiting())
}

func TestRoomJoinedCapsFanOut(t *testing.T) {
	h := newHarness(t)
	ids := make([]domain.ParticipantID, 0, 12)
	for i := range 12 {
		ids = append(ids, domain.ParticipantID(rune('a'+i)))
	}
	h.joined(t, ids...)
	h.loop.fire()

	assert.Len(t, h.factory.peers, domain.MaxRemotePeers)
}

func TestInitiateSkipsMemberThatLeftBeforeDelay(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a", "b")
	h.o.OnUserLeft("a")
	h.loop.fire()

	require.Len(t, h.factory.peers, 1)
	assert.Equal(t, domain.ParticipantID("b"), h.factory.peers[0].remote)
}

func TestOfferFromUnknownCreatesReceiver(t *testing.T) {
	h := newHarness(t)
	h.joined(t)
	h.o.OnUserJoined(domain.Participant{ID: "b"})

	h.o.OnSignal(domain.SignalEnvelope{From: "b", Signal: candidate("c1")})
	h.o.OnSignal(domain.SignalEnvelope{From: "b", Signal: candidate("c2")})
	assert.Empty(t, h.factory.peers, "candidates alone never create a connection")

	h.o.OnSignal(domain.SignalEnvelope{From: "b", Signal: offer("v=0"), Sender: domain.Participant{DisplayName: "Bea"}})

	p := h.factory.last("b")
	require.NotNil(t, p)
	assert.Equal(t, core.RoleReceiver, p.role)
	require.Len(t, p.applied, 3)
	assert.Equal(t, domain.SignalOffer, p.applied[0].Kind())
	assert.Equal(t, "c1", p.applied[1].Candidate.Candidate)
	assert.Equal(t, "c2", p.applied[2].Candidate.Candidate)
	assert.Zero(t, h.o.buffer.Len("b"))

	b, ok := h.o.members.Get("b")
	require.True(t, ok)
	assert.Equal(t, "Bea", b.DisplayName)
}

func TestSignalForExistingEntryIsApplied(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	h.loop.fire()

	h.o.OnSignal(domain.SignalEnvelope{From: "a", Signal: domain.Signal{Type: domain.SignalAnswer, SDP: "v=0"}})
	p := h.factory.last("a")
	require.Len(t, p.applied, 1)
	assert.Equal(t, StateSignaling, h.o.entries["a"].State())
}

func TestSignalApplyErrorKeepsEntry(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	h.loop.fire()
	h.factory.last("a").applyErr = errors.New("bad sdp")

	h.o.OnSignal(domain.SignalEnvelope{From: "a", Signal: domain.Signal{Type: domain.SignalAnswer, SDP: "x"}})

	require.Len(t, h.obs.peerErrs, 1)
	assert.ErrorIs(t, h.obs.peerErrs[0], core.ErrSignalApply)
	assert.Contains(t, h.o.entries, domain.ParticipantID("a"))
}

func TestUnknownSignalDropped(t *testing.T) {
	h := newHarness(t)
	h.joined(t)
	h.o.OnSignal(domain.SignalEnvelope{From: "z", Signal: domain.Signal{Type: "bogus"}})

	assert.Zero(t, h.o.buffer.Len("z"))
	require.Len(t, h.obs.peerErrs, 1)
	assert.ErrorIs(t, h.obs.peerErrs[0], core.ErrUnknownSignal)
}

func TestOfferDroppedWhenNotReady(t *testing.T) {
	h := newHarness(t)
	h.joined(t)
	h.channel.connected = false

	h.o.OnSignal(domain.SignalEnvelope{From: "b", Signal: offer("v=0")})

	assert.Empty(t, h.factory.peers)
	assert.Zero(t, h.o.buffer.Len("b"), "a not-ready request is discarded, not queued")
}

func TestEstablishReplacesExistingEntry(t *testing.T) {
	h := newHarness(t)
	h.joined(t)

	require.NoError(t, h.o.establish("a", core.RoleInitiator, nil))
	first := h.factory.last("a")
	first.onStream(fakeStream("s1"))
	require.NoError(t, h.o.establish("a", core.RoleReceiver, nil))

	assert.Equal(t, []string{"new:a#1", "close:a#1", "new:a#2"}, h.factory.journal)
	assert.Len(t, h.o.entries, 1)
	assert.Equal(t, core.RoleReceiver, h.o.entries["a"].Role)
	assert.Equal(t, []domain.ParticipantID{"a"}, h.obs.removed)

	// late events of the replaced connection are ignored
	first.onSignal(offer("stale"))
	first.onClosed()
	assert.Empty(t, h.channel.signals)
	assert.True(t, h.o.members.Has("a"))
	assert.Contains(t, h.o.entries, domain.ParticipantID("a"))
}

func TestEstablishRefusesSelf(t *testing.T) {
	h := newHarness(t)
	h.joined(t)
	assert.Error(t, h.o.establish("me", core.RoleInitiator, nil))
	assert.Empty(t, h.factory.peers)
}

func TestLocalSignalRelayed(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	h.loop.fire()

	h.factory.last("a").onSignal(offer("v=0"))

	require.Len(t, h.channel.signals, 1)
	assert.Equal(t, domain.ParticipantID("me"), h.channel.signals[0].from)
	assert.Equal(t, domain.ParticipantID("a"), h.channel.signals[0].to)
}

func TestStreamAndConnectedClearWaiting(t *testing.T) {
	h := newHarness(t)
	h.joined(t)
	require.True(t, h.obs.lastWaiting())

	h.o.OnSignal(domain.SignalEnvelope{From: "b", Signal: offer("v=0")})
	p := h.factory.last("b")
	p.onStream(fakeStream("b-stream"))
	p.onConnected()

	assert.False(t, h.obs.lastWaiting())
	assert.Equal(t, []domain.ParticipantID{"b"}, h.obs.added)
	assert.Equal(t, StateConnected, h.o.entries["b"].State())
}

func TestUserLeftTearsDownEntry(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	h.loop.fire()
	p := h.factory.last("a")
	p.onStream(fakeStream("a"))

	h.o.OnUserLeft("a")

	assert.Equal(t, 1, p.closed)
	assert.Empty(t, h.o.entries)
	assert.False(t, h.o.members.Has("a"))
	assert.Equal(t, []domain.ParticipantID{"a"}, h.obs.removed)
	assert.True(t, h.obs.lastWaiting())

	// the close callback arriving afterwards is stale
	p.onClosed()
	assert.Len(t, h.obs.removed, 1)
}

func TestPeerClosedRemovesParticipant(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a", "b")
	h.loop.fire()

	h.factory.last("a").onClosed()

	assert.NotContains(t, h.o.entries, domain.ParticipantID("a"))
	assert.False(t, h.o.members.Has("a"))
	assert.True(t, h.o.members.Has("b"))
	assert.False(t, h.obs.lastWaiting())
}

func TestPeerErrorKeepsEntry(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	h.loop.fire()

	h.factory.last("a").onError(errors.New("ice failed"))

	require.Len(t, h.obs.peerErrs, 1)
	assert.ErrorIs(t, h.obs.peerErrs[0], core.ErrConnection)
	assert.Contains(t, h.o.entries, domain.ParticipantID("a"))
}

func TestRoomFullStopsEverything(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.o.Join(context.Background()))
	h.o.OnRoomFull()
	h.o.OnRoomJoined([]domain.Participant{{ID: "a"}})
	h.loop.fire()

	assert.Equal(t, 1, h.obs.full)
	assert.Empty(t, h.factory.peers)
	assert.Equal(t, 1, h.source.stopped)
	assert.Zero(t, h.channel.leaves)
	assert.False(t, h.channel.connected)
	require.NotEmpty(t, h.obs.sessionErrs)
	assert.ErrorIs(t, h.obs.sessionErrs[0], core.ErrCapacityExceeded)
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a", "b")
	h.loop.fire()

	require.NoError(t, h.o.Leave(context.Background()))
	require.NoError(t, h.o.Leave(context.Background()))

	assert.Equal(t, 1, h.channel.leaves)
	assert.Equal(t, 1, h.channel.closes)
	assert.Equal(t, 1, h.source.stopped)
	assert.Equal(t, 1, h.analyzer.stopped)
	for _, p := range h.factory.peers {
		assert.Equal(t, 1, p.closed)
	}
	assert.Empty(t, h.o.entries)
	assert.Zero(t, h.o.members.Count())

	// events after teardown are ignored
	h.o.OnSignal(domain.SignalEnvelope{From: "c", Signal: offer("v=0")})
	h.o.OnUserJoined(domain.Participant{ID: "d"})
	assert.Len(t, h.factory.peers, 2)
	assert.Zero(t, h.o.members.Count())
}

func TestDisconnectResets(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	h.loop.fire()

	h.o.OnDisconnected(errors.New("eof"))

	assert.Empty(t, h.o.entries)
	assert.Zero(t, h.channel.leaves)
	require.Len(t, h.obs.sessionErrs, 1)
	assert.ErrorIs(t, h.obs.sessionErrs[0], core.ErrChannelClosed)

	require.NoError(t, h.o.Join(context.Background()), "a reset session can join again")
}

func TestSetAudioAnnouncesOnlyChangedField(t *testing.T) {
	h := newHarness(t)
	h.joined(t)

	require.NoError(t, h.o.SetAudio(context.Background(), false))

	require.Len(t, h.channel.patches, 1)
	require.NotNil(t, h.channel.patches[0].AudioEnabled)
	assert.False(t, *h.channel.patches[0].AudioEnabled)
	assert.Nil(t, h.channel.patches[0].VideoEnabled)
	assert.False(t, h.source.enabled[domain.MediaAudio])
	assert.Equal(t, domain.MediaState{AudioEnabled: false, VideoEnabled: true}, h.obs.media["me"])
}

func TestSetMediaWithoutTrack(t *testing.T) {
	h := newHarness(t)
	delete(h.source.enabled, domain.MediaVideo)
	h.joined(t)
	sent := len(h.channel.patches)

	assert.ErrorIs(t, h.o.SetVideo(context.Background(), false), core.ErrNotReady)
	assert.Len(t, h.channel.patches, sent)
}

func TestToggleBeforeJoinIsAnnounced(t *testing.T) {
	h := newHarness(t)
	h.channel.lateConnect = true
	ctx := context.Background()

	require.NoError(t, h.o.Join(ctx))
	require.Empty(t, h.channel.joins)
	require.NoError(t, h.o.SetVideo(ctx, false))
	assert.Empty(t, h.channel.patches, "nothing goes out before the room knows us")

	h.channel.connected = true
	h.o.OnSession("me")
	require.Len(t, h.channel.joins, 1)
	h.o.OnRoomJoined([]domain.Participant{{ID: "a"}})

	require.Len(t, h.channel.patches, 1)
	require.NotNil(t, h.channel.patches[0].VideoEnabled)
	assert.False(t, *h.channel.patches[0].VideoEnabled)
	assert.Nil(t, h.channel.patches[0].AudioEnabled)
	assert.Equal(t, domain.MediaState{AudioEnabled: true, VideoEnabled: false}, h.o.states.Get("me"))
}

func TestDisabledTrackIsAnnouncedOnJoin(t *testing.T) {
	h := newHarness(t)
	h.source.enabled[domain.MediaAudio] = false
	h.joined(t, "a")

	require.Len(t, h.channel.patches, 1)
	require.NotNil(t, h.channel.patches[0].AudioEnabled)
	assert.False(t, *h.channel.patches[0].AudioEnabled)
	assert.Nil(t, h.channel.patches[0].VideoEnabled)
}

func TestEveryResetEndsSession(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	require.NoError(t, h.o.Leave(context.Background()))
	require.NoError(t, h.o.Leave(context.Background()))
	assert.Equal(t, 1, h.obs.ended, "user leave")

	require.NoError(t, h.o.Join(context.Background()))
	h.o.OnRoomFull()
	assert.Equal(t, 2, h.obs.ended, "room full")

	require.NoError(t, h.o.Join(context.Background()))
	h.o.OnDisconnected(errors.New("eof"))
	assert.Equal(t, 3, h.obs.ended, "channel lost")
}

func TestMediaStatesDoNotOverrideUpdates(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	off := false

	h.o.OnMediaState("a", domain.MediaPatch{VideoEnabled: &off})
	h.o.OnMediaStates(map[domain.ParticipantID]domain.MediaState{
		"a":  {AudioEnabled: false, VideoEnabled: true},
		"me": {AudioEnabled: false, VideoEnabled: false},
	})

	assert.Equal(t, domain.MediaState{AudioEnabled: false, VideoEnabled: false}, h.o.states.Get("a"))
	assert.Equal(t, domain.DefaultMediaState(), h.o.states.Get("me"), "self is only changed locally")
}

func TestChatRoundTrip(t *testing.T) {
	h := newHarness(t)
	require.Error(t, h.o.SendChat(context.Background(), "too early"))
	h.joined(t)

	require.Error(t, h.o.SendChat(context.Background(), "   "))
	require.NoError(t, h.o.SendChat(context.Background(), " hola "))
	assert.Equal(t, []string{"Ana: hola"}, h.channel.chats)

	h.o.OnChat(domain.ChatMessage{Sender: "Bea", Text: "hi"})
	require.Len(t, h.obs.chats, 1)
	assert.NotEmpty(t, h.obs.chats[0].ID)
	assert.NotEmpty(t, h.obs.chats[0].Timestamp)
}

func TestSpeakingForwarded(t *testing.T) {
	h := newHarness(t)
	h.joined(t)
	h.analyzer.onChange(true)
	h.analyzer.onChange(false)
	require.NoError(t, h.o.SetAudio(context.Background(), false))
	h.analyzer.onChange(true)
	assert.Equal(t, []bool{true, false, false}, h.obs.speaking, "muted microphone never reports speaking")
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)
	h.joined(t, "a")
	h.loop.fire()
	h.factory.last("a").onConnected()

	v, err := h.o.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("room-1"), v.Room)
	assert.True(t, v.Joined)
	require.Len(t, v.Participants, 2)
	assert.Equal(t, domain.ParticipantID("a"), v.Participants[0].ID)
	assert.Equal(t, "connected", v.Participants[0].State)
	assert.Equal(t, core.RoleInitiator, v.Participants[0].Role)
	assert.True(t, v.Participants[1].Self)
	assert.Equal(t, "Ana", v.Participants[1].DisplayName)
}

func TestOrchestratorOnRealLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := app.NewLoop()
	go loop.Run(ctx)

	ch := &fakeChannel{}
	factory := &fakeFactory{}
	o := New(Deps{
		Channel: ch,
		Peers:   factory,
		Media:   &fakeProvider{src: newFakeSource()},
		Loop:    loop,
		Policy:  app.NewMeshPolicy(domain.MaxParticipants, time.Millisecond),
	}, Options{Room: "r"})

	require.NoError(t, o.Join(ctx))
	o.OnSession("me")
	o.OnRoomJoined([]domain.Participant{{ID: "a"}})

	assert.Eventually(t, func() bool {
		v, err := o.Snapshot(ctx)
		return err == nil && len(v.Participants) == 2 && v.Participants[0].State != ""
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, o.Leave(ctx))
}

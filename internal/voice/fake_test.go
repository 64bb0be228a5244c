package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/voxium/client/internal/core"
	"github.com/voxium/client/internal/domain"
	"github.com/voxium/client/internal/wire"
)

// ── signaling ──

type fakeSignal struct {
	mu   sync.Mutex
	sent []any
	err  error
}

func (f *fakeSignal) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeSignal) signals() []*wire.VoiceSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*wire.VoiceSignal
	for _, v := range f.sent {
		if s, ok := v.(*wire.VoiceSignal); ok {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSignal) ofType(t wire.MsgType) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, v := range f.sent {
		if m, ok := v.(wire.Message); ok && m.MessageType() == t {
			out = append(out, v)
		}
	}
	return out
}

// ── peer transport ──

type fakeSender struct{ track core.LocalTrack }

func (f *fakeSender) Track() core.LocalTrack { return f.track }

type fakePeer struct {
	mu sync.Mutex

	closed  bool
	tracks  []core.LocalTrack
	removed []core.LocalTrack

	offers     int
	answers    int
	localDesc  *webrtc.SessionDescription
	remoteDesc *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit

	setRemoteErr error
	addICEErr    error

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(core.RemoteTrack)
}

func (f *fakePeer) AddTrack(t core.LocalTrack) (core.TrackSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, t)
	return &fakeSender{track: t}, nil
}

func (f *fakePeer) RemoveTrack(s core.TrackSender) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, s.Track())
	for i, t := range f.tracks {
		if t == s.Track() {
			f.tracks = append(f.tracks[:i], f.tracks[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", f.offers)}, nil
}

func (f *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", f.answers)}, nil
}

func (f *fakePeer) SetLocalDescription(d webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localDesc = &d
	return nil
}

func (f *fakePeer) SetRemoteDescription(d webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setRemoteErr != nil {
		return f.setRemoteErr
	}
	f.remoteDesc = &d
	return nil
}

func (f *fakePeer) LocalDescription() *webrtc.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.localDesc
}

func (f *fakePeer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addICEErr != nil {
		return f.addICEErr
	}
	f.candidates = append(f.candidates, ci)
	return nil
}

func (f *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	f.mu.Lock()
	f.onICE = fn
	f.mu.Unlock()
}

func (f *fakePeer) OnTrack(fn func(core.RemoteTrack)) {
	f.mu.Lock()
	f.onTrack = fn
	f.mu.Unlock()
}

func (f *fakePeer) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakePeer) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePeer) trackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tracks)
}

func (f *fakePeer) offerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offers
}

// fireTrack simulates a remote track arriving on this connection.
func (f *fakePeer) fireTrack(t core.RemoteTrack) {
	f.mu.Lock()
	fn := f.onTrack
	f.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// fireICE simulates a locally gathered candidate.
func (f *fakePeer) fireICE(ci webrtc.ICECandidateInit) {
	f.mu.Lock()
	fn := f.onICE
	f.mu.Unlock()
	if fn != nil {
		fn(ci)
	}
}

type fakePeerFactory struct {
	mu      sync.Mutex
	created []*fakePeer
	err     error
}

func (f *fakePeerFactory) NewPeerConnection() (core.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pc := &fakePeer{}
	f.created = append(f.created, pc)
	return pc, nil
}

func (f *fakePeerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakePeerFactory) last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

// ── local media ──

type fakeLocalTrack struct {
	mu      sync.Mutex
	id      string
	kind    string
	enabled bool
	stopped bool

	applyErr    error
	applied     []core.ScreenConstraints
	endHandlers []func()
}

func newFakeLocalTrack(id, kind string) *fakeLocalTrack {
	return &fakeLocalTrack{id: id, kind: kind, enabled: true}
}

func (t *fakeLocalTrack) ID() string   { return t.id }
func (t *fakeLocalTrack) Kind() string { return t.kind }

func (t *fakeLocalTrack) SetEnabled(v bool) {
	t.mu.Lock()
	t.enabled = v
	t.mu.Unlock()
}

func (t *fakeLocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeLocalTrack) ApplyConstraints(c core.ScreenConstraints) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.applyErr != nil {
		return t.applyErr
	}
	t.applied = append(t.applied, c)
	return nil
}

func (t *fakeLocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.endHandlers = append(t.endHandlers, fn)
	t.mu.Unlock()
}

func (t *fakeLocalTrack) Stop() error {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return nil
}

func (t *fakeLocalTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeLocalTrack) end() {
	t.mu.Lock()
	handlers := append([]func(){}, t.endHandlers...)
	t.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

type fakeLocalStream struct {
	id     string
	tracks []core.LocalTrack
	closed bool
}

func (s *fakeLocalStream) ID() string                { return s.id }
func (s *fakeLocalStream) Tracks() []core.LocalTrack { return s.tracks }

func (s *fakeLocalStream) AudioTracks() []core.LocalTrack {
	var out []core.LocalTrack
	for _, t := range s.tracks {
		if t.Kind() == "audio" {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeLocalStream) VideoTracks() []core.LocalTrack {
	var out []core.LocalTrack
	for _, t := range s.tracks {
		if t.Kind() == "video" {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeLocalStream) Close() {
	s.closed = true
	for _, t := range s.tracks {
		_ = t.Stop()
	}
}

type fakeSampleSource struct{ samples []float32 }

func (f *fakeSampleSource) Samples() []float32 { return f.samples }

type fakeMedia struct {
	mu sync.Mutex

	micErr     error
	mic        *fakeLocalStream
	displayErr error
	display    *fakeLocalStream
	probe      core.SampleSource
}

func (f *fakeMedia) GetUserMedia(ctx context.Context) (core.LocalStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.micErr != nil {
		return nil, f.micErr
	}
	if f.mic == nil {
		f.mic = &fakeLocalStream{id: "mic", tracks: []core.LocalTrack{newFakeLocalTrack("mic-0", "audio")}}
	}
	return f.mic, nil
}

func (f *fakeMedia) GetDisplayMedia(ctx context.Context, c core.ScreenConstraints) (core.LocalStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.displayErr != nil {
		return nil, f.displayErr
	}
	if f.display == nil {
		f.display = &fakeLocalStream{id: "screen", tracks: []core.LocalTrack{newFakeLocalTrack("screen-0", "video")}}
	}
	return f.display, nil
}

func (f *fakeMedia) NewLevelProbe(core.LocalStream) core.SampleSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probe
}

func (f *fakeMedia) micTrack() *fakeLocalTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mic == nil || len(f.mic.tracks) == 0 {
		return nil
	}
	return f.mic.tracks[0].(*fakeLocalTrack)
}

func (f *fakeMedia) screenTrack() *fakeLocalTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.display == nil || len(f.display.tracks) == 0 {
		return nil
	}
	return f.display.tracks[0].(*fakeLocalTrack)
}

// ── remote media ──

type fakeRemoteTrack struct {
	mu       sync.Mutex
	id       string
	streamID string
	kind     string
	handlers []func()
}

func newFakeRemoteTrack(id, streamID, kind string) *fakeRemoteTrack {
	return &fakeRemoteTrack{id: id, streamID: streamID, kind: kind}
}

func (t *fakeRemoteTrack) ID() string       { return t.id }
func (t *fakeRemoteTrack) StreamID() string { return t.streamID }
func (t *fakeRemoteTrack) Kind() string     { return t.kind }

func (t *fakeRemoteTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.handlers = append(t.handlers, fn)
	t.mu.Unlock()
}

func (t *fakeRemoteTrack) end() {
	t.mu.Lock()
	handlers := append([]func(){}, t.handlers...)
	t.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// ── rendering ──

type fakeAudioSink struct {
	mu       sync.Mutex
	attached []core.RemoteTrack
	muted    bool
	closed   bool
}

func (f *fakeAudioSink) Attach(t core.RemoteTrack) {
	f.mu.Lock()
	f.attached = append(f.attached, t)
	f.mu.Unlock()
}

func (f *fakeAudioSink) SetMuted(v bool) {
	f.mu.Lock()
	f.muted = v
	f.mu.Unlock()
}

func (f *fakeAudioSink) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakeAudioSink) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeAudioSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeSinkFactory struct {
	mu    sync.Mutex
	sinks map[domain.UserID]*fakeAudioSink
}

func newFakeSinkFactory() *fakeSinkFactory {
	return &fakeSinkFactory{sinks: make(map[domain.UserID]*fakeAudioSink)}
}

func (f *fakeSinkFactory) NewAudioSink(id domain.UserID) core.AudioSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	sink := &fakeAudioSink{}
	f.sinks[id] = sink
	return sink
}

func (f *fakeSinkFactory) sink(id domain.UserID) *fakeAudioSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinks[id]
}

type fakeScreens struct {
	mu      sync.Mutex
	tiles   map[domain.UserID]core.RemoteTrack
	removed int
	cleared int
}

func newFakeScreens() *fakeScreens {
	return &fakeScreens{tiles: make(map[domain.UserID]core.RemoteTrack)}
}

func (f *fakeScreens) SyncTile(id domain.UserID, t core.RemoteTrack) {
	f.mu.Lock()
	f.tiles[id] = t
	f.mu.Unlock()
}

func (f *fakeScreens) RemoveTile(id domain.UserID) {
	f.mu.Lock()
	delete(f.tiles, id)
	f.removed++
	f.mu.Unlock()
}

func (f *fakeScreens) Clear() {
	f.mu.Lock()
	f.tiles = make(map[domain.UserID]core.RemoteTrack)
	f.cleared++
	f.mu.Unlock()
}

func (f *fakeScreens) hasTile(id domain.UserID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tiles[id]
	return ok
}

type fakePrefs struct {
	mu      sync.Mutex
	quality string
	fps     string
	err     error
}

func (f *fakePrefs) SaveScreenPrefs(quality, fps string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.quality, f.fps = quality, fps
	return nil
}

// ── fixture ──

var errCaptureDenied = errors.New("permission denied")

const (
	selfID = domain.UserID("u1")
	roomR1 = domain.RoomID("r1")
	roomR2 = domain.RoomID("r2")
	userU2 = domain.UserID("u2")
	userU3 = domain.UserID("u3")
)

type fixture struct {
	signal  *fakeSignal
	peers   *fakePeerFactory
	media   *fakeMedia
	sinks   *fakeSinkFactory
	screens *fakeScreens
	prefs   *fakePrefs
	session *Session
}

func newFixture() *fixture {
	f := &fixture{
		signal:  &fakeSignal{},
		peers:   &fakePeerFactory{},
		media:   &fakeMedia{},
		sinks:   newFakeSinkFactory(),
		screens: newFakeScreens(),
		prefs:   &fakePrefs{},
	}
	f.session = NewSession(
		domain.User{ID: selfID, Username: "alice"},
		"1080", "30",
		Deps{
			Signal:  f.signal,
			Peers:   f.peers,
			Media:   f.media,
			Audio:   f.sinks,
			Screens: f.screens,
			Prefs:   f.prefs,
		},
	)
	return f
}

func voiceRoom(id domain.RoomID) domain.Room {
	return domain.Room{ID: id, Name: domain.RoomName("room-" + string(id)), Kind: domain.RoomKindVoice}
}

func (f *fixture) join(id domain.RoomID) error {
	return f.session.Join(context.Background(), voiceRoom(id))
}

func (f *fixture) announce(user domain.UserID, room domain.RoomID) {
	f.session.OnStreamMessage(&wire.VoiceJoin{
		Type:     wire.MsgVoiceJoin,
		RoomID:   room,
		UserID:   user,
		Username: "user-" + string(user),
	})
}

func (f *fixture) depart(user domain.UserID, room domain.RoomID) {
	f.session.OnStreamMessage(&wire.VoiceLeave{
		Type:   wire.MsgVoiceLeave,
		RoomID: room,
		UserID: user,
	})
}

// peerOf returns the live fake connection for a remote id, digging
// through the session's map so tests can assert on mesh membership.
func (f *fixture) peerOf(user domain.UserID) *fakePeer {
	f.session.mu.Lock()
	defer f.session.mu.Unlock()
	pc, ok := f.session.peers[user]
	if !ok {
		return nil
	}
	return pc.(*fakePeer)
}

func (f *fixture) senderIDs() map[domain.UserID]bool {
	f.session.mu.Lock()
	defer f.session.mu.Unlock()
	out := make(map[domain.UserID]bool, len(f.session.screenSenders))
	for id := range f.session.screenSenders {
		out[id] = true
	}
	return out
}

func (f *fixture) meshIDs() map[domain.UserID]bool {
	f.session.mu.Lock()
	defer f.session.mu.Unlock()
	out := make(map[domain.UserID]bool, len(f.session.peers))
	for id := range f.session.peers {
		out[id] = true
	}
	return out
}

// Package voice implements the voice-room session: the local user's
// participation state, the full-mesh peer connection manager, the
// screen-share controller and the mic meter. All signaling rides the
// shared event stream; media flows peer-to-peer.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxium/client/internal/core"
	"github.com/voxium/client/internal/domain"
	"github.com/voxium/client/internal/wire"
)

var (
	ErrNotVoiceRoom = errors.New("not a voice room")
	ErrNoCapture    = errors.New("microphone capture unavailable")
)

// PrefStore persists the screen-share presets across sessions.
type PrefStore interface {
	SaveScreenPrefs(quality, fps string) error
}

// Deps are the collaborators injected into a Session. Signal, Peers
// and Media are required; the render sinks may be nil for headless use.
type Deps struct {
	Signal core.SignalSender
	Peers  core.PeerFactory
	Media  core.MediaDevices

	Audio   core.AudioSinkFactory
	Screens core.ScreenRenderer
	Meter   core.MeterDisplay
	Roster  core.RosterRenderer
	Prefs   PrefStore
}

// Session is the authoritative record of the local user's voice
// participation. One instance per client session; reset to empty on
// leave. All mutation is serialized behind one mutex, replacing the
// original's single event-loop thread.
type Session struct {
	mu   sync.Mutex
	self domain.User
	deps Deps

	joinedRoomID domain.RoomID
	localStream  core.LocalStream

	screenStream  core.LocalStream
	screenTrack   core.LocalTrack
	screenSharing bool
	screenQuality string
	screenFps     string

	muted    bool
	deafened bool

	peers         map[domain.UserID]core.PeerConnection
	screenSenders map[domain.UserID]core.TrackSender
	audioSinks    map[domain.UserID]core.AudioSink
	remoteStreams map[domain.UserID]*remoteStream
	screenTiles   map[domain.UserID]bool
	members       map[domain.UserID]*domain.VoiceMember

	meter *Meter
}

func NewSession(self domain.User, screenQuality, screenFps string, deps Deps) *Session {
	s := &Session{
		self:          self,
		deps:          deps,
		screenQuality: screenQuality,
		screenFps:     screenFps,
		peers:         make(map[domain.UserID]core.PeerConnection),
		screenSenders: make(map[domain.UserID]core.TrackSender),
		audioSinks:    make(map[domain.UserID]core.AudioSink),
		remoteStreams: make(map[domain.UserID]*remoteStream),
		screenTiles:   make(map[domain.UserID]bool),
		members:       make(map[domain.UserID]*domain.VoiceMember),
	}
	s.meter = NewMeter(deps.Meter)
	return s
}

// Join acquires microphone capture, records the joined room and
// announces presence. Capture failure aborts the whole join with the
// prior state untouched. Joining the already-joined room is a no-op;
// joining while in a different voice room leaves that room first.
func (s *Session) Join(ctx context.Context, room domain.Room) error {
	if !room.IsVoice() {
		return ErrNotVoiceRoom
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.joinedRoomID == room.ID {
		return nil
	}
	if s.joinedRoomID != "" {
		s.leaveLocked()
	}

	stream, err := s.deps.Media.GetUserMedia(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCapture, err)
	}

	s.localStream = stream
	s.joinedRoomID = room.ID
	s.members = make(map[domain.UserID]*domain.VoiceMember)
	me := s.ensureMemberLocked(s.self.ID, s.self.Username)
	me.Muted = s.muted
	me.Deafened = s.deafened
	me.ScreenSharing = s.screenSharing

	s.applyLocalTrackStateLocked()
	s.meter.Start(s.deps.Media.NewLevelProbe(stream), s.meterStatus)
	s.renderRosterLocked()

	log.Info().Str("module", "voice").Str("room", string(room.ID)).Msg("joined voice room")
	s.sendLocked(&wire.VoiceJoin{
		Type:          wire.MsgVoiceJoin,
		RoomID:        room.ID,
		UserID:        s.self.ID,
		Username:      s.self.Username,
		Muted:         s.muted,
		Deafened:      s.deafened,
		ScreenSharing: s.screenSharing,
	})
	return nil
}

// Leave abandons the voice room: broadcasts departure, tears down the
// mesh, releases every local media resource and clears the roster.
// No-op when not joined.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked()
}

func (s *Session) leaveLocked() {
	if s.joinedRoomID == "" {
		return
	}

	// The mesh is going away; no point broadcasting the share stop or
	// renegotiating connections we are about to close.
	s.stopScreenShareLocked(false, false)

	s.sendLocked(&wire.VoiceLeave{
		Type:     wire.MsgVoiceLeave,
		RoomID:   s.joinedRoomID,
		UserID:   s.self.ID,
		Username: s.self.Username,
	})

	s.resetConnectionsLocked()
	if s.localStream != nil {
		s.localStream.Close()
	}
	s.meter.Stop()

	s.joinedRoomID = ""
	s.localStream = nil
	s.members = make(map[domain.UserID]*domain.VoiceMember)
	s.renderRosterLocked()
	log.Info().Str("module", "voice").Msg("left voice room")
}

// ToggleMute flips the mute flag and returns the new value. A track
// enable operation only; peer connections are untouched.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinedRoomID == "" {
		return s.muted
	}
	s.muted = !s.muted
	s.applyLocalTrackStateLocked()
	me := s.ensureMemberLocked(s.self.ID, s.self.Username)
	me.Muted = s.muted
	s.renderRosterLocked()
	s.broadcastVoiceStateLocked()
	return s.muted
}

// ToggleDeafen flips the deafen flag, silences every remote audio
// sink accordingly and returns the new value.
func (s *Session) ToggleDeafen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinedRoomID == "" {
		return s.deafened
	}
	s.deafened = !s.deafened
	s.applyLocalTrackStateLocked()
	for _, sink := range s.audioSinks {
		sink.SetMuted(s.deafened)
	}
	me := s.ensureMemberLocked(s.self.ID, s.self.Username)
	me.Deafened = s.deafened
	s.renderRosterLocked()
	s.broadcastVoiceStateLocked()
	return s.deafened
}

// Local audio enablement is recomputed from both flags, never toggled
// incrementally: muted or deafened forces the track off.
func (s *Session) applyLocalTrackStateLocked() {
	if s.localStream == nil {
		return
	}
	enabled := !s.muted && !s.deafened
	for _, t := range s.localStream.AudioTracks() {
		t.SetEnabled(enabled)
	}
}

func (s *Session) ensureMemberLocked(id domain.UserID, username string) *domain.VoiceMember {
	if m, ok := s.members[id]; ok {
		return m
	}
	if username == "" {
		username = "user"
	}
	m := domain.NewVoiceMember(id, username)
	s.members[id] = m
	return m
}

func (s *Session) broadcastVoiceStateLocked() {
	if s.joinedRoomID == "" {
		return
	}
	s.sendLocked(&wire.VoiceState{
		Type:          wire.MsgVoiceState,
		RoomID:        s.joinedRoomID,
		UserID:        s.self.ID,
		Username:      s.self.Username,
		Muted:         s.muted,
		Deafened:      s.deafened,
		ScreenSharing: s.screenSharing,
	})
}

func (s *Session) sendLocked(v any) {
	if err := s.deps.Signal.Send(v); err != nil {
		log.Warn().Err(err).Str("module", "voice").Msg("signal send dropped")
	}
}

func (s *Session) meterStatus() core.MeterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.joinedRoomID == "":
		return core.MeterInactive
	case s.muted || s.deafened:
		return core.MeterMuted
	default:
		return core.MeterListening
	}
}

// JoinedRoom returns the id of the joined voice room, or "" when not
// joined.
func (s *Session) JoinedRoom() domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinedRoomID
}

func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Session) Deafened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deafened
}

func (s *Session) ScreenSharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenSharing
}

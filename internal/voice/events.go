package voice

import (
	"github.com/rs/zerolog/log"

	"github.com/voxium/client/internal/wire"
)

// Session implements stream.Handler: every inbound event-stream
// message plus the connection edges flow through here.

// OnStreamConnect re-announces presence after a reconnect so peers
// rebuild their side of the mesh. Join state survived the outage; the
// stream client's dial backoff keeps a flapping server from turning
// this into an announce storm.
func (s *Session) OnStreamConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinedRoomID == "" {
		return
	}
	log.Info().Str("module", "voice").Str("room", string(s.joinedRoomID)).Msg("stream reconnected, re-announcing")
	s.sendLocked(&wire.VoiceJoin{
		Type:          wire.MsgVoiceJoin,
		RoomID:        s.joinedRoomID,
		UserID:        s.self.ID,
		Username:      s.self.Username,
		Muted:         s.muted,
		Deafened:      s.deafened,
		ScreenSharing: s.screenSharing,
	})
}

// OnStreamDisconnect tears down every peer connection preemptively,
// since signaling can no longer flow, while keeping join state and
// local media so the mesh can be rebuilt on reconnect.
func (s *Session) OnStreamDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.peers) == 0 {
		return
	}
	log.Warn().Str("module", "voice").Int("peers", len(s.peers)).Msg("stream lost, resetting mesh")
	s.resetConnectionsLocked()
}

func (s *Session) OnStreamMessage(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.VoiceJoin:
		s.handleVoiceJoin(m)
	case *wire.VoiceLeave:
		s.handleVoiceLeave(m)
	case *wire.VoiceState:
		s.handleVoiceState(m)
	case *wire.VoiceSignal:
		s.handleVoiceSignal(m)
	case *wire.RoomDeleted:
		s.handleRoomDeleted(m)
	case *wire.UserLeave:
		s.handleUserLeave(m)
	}
}

func (s *Session) handleVoiceJoin(m *wire.VoiceJoin) {
	if m.UserID == "" || m.Username == "" || m.RoomID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinedRoomID == "" || s.joinedRoomID != m.RoomID {
		return
	}

	member := s.ensureMemberLocked(m.UserID, m.Username)
	member.Muted = m.Muted
	member.Deafened = m.Deafened
	member.ScreenSharing = m.ScreenSharing
	s.renderRosterLocked()

	// The observer of the announcement offers; the announcer answers.
	if m.UserID != s.self.ID {
		s.createPeerLocked(m.UserID, true)
	}
}

func (s *Session) handleVoiceLeave(m *wire.VoiceLeave) {
	if m.UserID == "" || m.RoomID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinedRoomID == "" || s.joinedRoomID != m.RoomID {
		return
	}
	s.cleanupPeerLocked(m.UserID)
	delete(s.members, m.UserID)
	s.renderRosterLocked()
}

// handleVoiceState updates displayed flags only; the mesh is never
// changed by a state message.
func (s *Session) handleVoiceState(m *wire.VoiceState) {
	if m.UserID == "" || m.RoomID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinedRoomID == "" || s.joinedRoomID != m.RoomID {
		return
	}

	member := s.ensureMemberLocked(m.UserID, m.Username)
	member.Muted = m.Muted
	member.Deafened = m.Deafened
	member.ScreenSharing = m.ScreenSharing

	if !m.ScreenSharing {
		s.removeScreenTileLocked(m.UserID)
	} else if s.remoteStreams[m.UserID] != nil {
		s.syncScreenTileLocked(m.UserID)
	}
	s.renderRosterLocked()
}

func (s *Session) handleVoiceSignal(m *wire.VoiceSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.TargetUserID != s.self.ID {
		return
	}
	if s.joinedRoomID == "" || s.joinedRoomID != m.RoomID {
		return
	}
	if m.UserID == "" {
		return
	}
	s.handleSignalLocked(m)
}

// handleRoomDeleted forces a leave when the joined room disappears.
func (s *Session) handleRoomDeleted(m *wire.RoomDeleted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinedRoomID == "" || s.joinedRoomID != m.RoomID {
		return
	}
	log.Info().Str("module", "voice").Str("room", string(m.RoomID)).Msg("joined room deleted, leaving")
	s.leaveLocked()
}

// handleUserLeave reacts to a presence-plane departure: the user's
// connection is gone entirely, so their voice peer goes too, even
// without an explicit voice_leave.
func (s *Session) handleUserLeave(m *wire.UserLeave) {
	if m.UserID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.members[m.UserID]; !known {
		if _, linked := s.peers[m.UserID]; !linked {
			return
		}
	}
	s.cleanupPeerLocked(m.UserID)
	delete(s.members, m.UserID)
	s.renderRosterLocked()
}

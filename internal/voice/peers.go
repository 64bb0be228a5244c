package voice

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/voxium/client/internal/core"
	"github.com/voxium/client/internal/domain"
	"github.com/voxium/client/internal/wire"
)

// remoteStream mirrors the last inbound media stream of one peer:
// the live track set is re-derived on every change instead of trusting
// track-added/removed ordering.
type remoteStream struct {
	id     string
	tracks map[string]core.RemoteTrack
}

func (rs *remoteStream) liveVideo() core.RemoteTrack {
	for _, t := range rs.tracks {
		if t.Kind() == "video" {
			return t
		}
	}
	return nil
}

// createPeerLocked maintains exactly one connection per remote
// participant. Idempotent: an existing connection is returned as-is.
// The offer is created only when initiateOffer is true: the side
// observing a join announcement offers while the announcer answers,
// so each pair has exactly one offerer and no glare.
func (s *Session) createPeerLocked(remoteID domain.UserID, initiateOffer bool) core.PeerConnection {
	if pc, ok := s.peers[remoteID]; ok {
		return pc
	}

	pc, err := s.deps.Peers.NewPeerConnection()
	if err != nil {
		log.Error().Err(err).Str("module", "voice").Str("remote", string(remoteID)).Msg("new peer connection")
		return nil
	}
	s.peers[remoteID] = pc

	if s.localStream != nil {
		for _, t := range s.localStream.Tracks() {
			if _, err := pc.AddTrack(t); err != nil {
				log.Error().Err(err).Str("module", "voice").Str("remote", string(remoteID)).Msg("add local track")
			}
		}
	}
	if s.screenSharing && s.screenTrack != nil {
		sender, err := pc.AddTrack(s.screenTrack)
		if err != nil {
			log.Error().Err(err).Str("module", "voice").Str("remote", string(remoteID)).Msg("add screen track")
		} else {
			s.screenSenders[remoteID] = sender
		}
	}

	pc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		s.mu.Lock()
		room := s.joinedRoomID
		s.mu.Unlock()
		if room == "" {
			return
		}
		cand := ci
		if err := s.deps.Signal.Send(&wire.VoiceSignal{
			Type:         wire.MsgVoiceSignal,
			RoomID:       room,
			UserID:       s.self.ID,
			TargetUserID: remoteID,
			Candidate:    &cand,
		}); err != nil {
			log.Warn().Err(err).Str("module", "voice").Str("remote", string(remoteID)).Msg("candidate send dropped")
		}
	})

	pc.OnTrack(func(t core.RemoteTrack) {
		s.handleRemoteTrack(remoteID, t)
	})

	log.Info().Str("module", "voice").Str("remote", string(remoteID)).Bool("offerer", initiateOffer).Msg("peer created")

	if initiateOffer {
		s.sendOfferLocked(remoteID, pc)
	}
	return pc
}

func (s *Session) sendOfferLocked(remoteID domain.UserID, pc core.PeerConnection) {
	offer, err := pc.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "voice").Str("remote", string(remoteID)).Msg("create offer")
		return
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		log.Error().Err(err).Str("module", "voice").Str("remote", string(remoteID)).Msg("set local offer")
		return
	}
	s.sendLocked(&wire.VoiceSignal{
		Type:         wire.MsgVoiceSignal,
		RoomID:       s.joinedRoomID,
		UserID:       s.self.ID,
		TargetUserID: remoteID,
		SDP:          pc.LocalDescription(),
	})
}

// renegotiateLocked runs a fresh offer/answer cycle on an existing
// connection, used after the screen track set changed mid-call.
func (s *Session) renegotiateLocked(remoteID domain.UserID) {
	pc, ok := s.peers[remoteID]
	if !ok || s.joinedRoomID == "" {
		return
	}
	s.sendOfferLocked(remoteID, pc)
}

func (s *Session) handleRemoteTrack(remoteID domain.UserID, t core.RemoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.remoteStreams[remoteID]
	if rs == nil || rs.id != t.StreamID() {
		rs = &remoteStream{id: t.StreamID(), tracks: make(map[string]core.RemoteTrack)}
		s.remoteStreams[remoteID] = rs
	}
	rs.tracks[t.ID()] = t

	if t.Kind() == "audio" && s.deps.Audio != nil {
		sink := s.audioSinks[remoteID]
		if sink == nil {
			sink = s.deps.Audio.NewAudioSink(remoteID)
			s.audioSinks[remoteID] = sink
		}
		sink.Attach(t)
		sink.SetMuted(s.deafened)
	}

	s.syncScreenTileLocked(remoteID)

	t.OnEnded(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur := s.remoteStreams[remoteID]; cur != nil && cur.id == t.StreamID() {
			delete(cur.tracks, t.ID())
			s.syncScreenTileLocked(remoteID)
		}
	})
}

// handleSignalLocked applies a relayed SDP or ICE payload. The caller
// has already verified addressing and room scope. A connection is
// materialized lazily in case the signal outran the join announcement.
func (s *Session) handleSignalLocked(msg *wire.VoiceSignal) {
	pc := s.createPeerLocked(msg.UserID, false)
	if pc == nil {
		return
	}

	switch {
	case msg.SDP != nil:
		if err := pc.SetRemoteDescription(*msg.SDP); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("remote", string(msg.UserID)).Msg("set remote description")
			return
		}
		if msg.SDP.Type == webrtc.SDPTypeOffer {
			answer, err := pc.CreateAnswer()
			if err != nil {
				log.Error().Err(err).Str("module", "voice").Str("remote", string(msg.UserID)).Msg("create answer")
				return
			}
			if err := pc.SetLocalDescription(answer); err != nil {
				log.Error().Err(err).Str("module", "voice").Str("remote", string(msg.UserID)).Msg("set local answer")
				return
			}
			s.sendLocked(&wire.VoiceSignal{
				Type:         wire.MsgVoiceSignal,
				RoomID:       s.joinedRoomID,
				UserID:       s.self.ID,
				TargetUserID: msg.UserID,
				SDP:          pc.LocalDescription(),
			})
		}
	case msg.Candidate != nil:
		if err := pc.AddICECandidate(*msg.Candidate); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("remote", string(msg.UserID)).Msg("add ice candidate")
		}
	}
}

// cleanupPeerLocked detaches handlers, closes the connection and
// drops every map entry for one participant. All the per-peer maps
// key off the same id space and are collected together.
func (s *Session) cleanupPeerLocked(remoteID domain.UserID) {
	if pc, ok := s.peers[remoteID]; ok {
		pc.OnICECandidate(nil)
		pc.OnTrack(nil)
		pc.Close()
		delete(s.peers, remoteID)
	}
	if sink, ok := s.audioSinks[remoteID]; ok {
		sink.Close()
		delete(s.audioSinks, remoteID)
	}
	delete(s.remoteStreams, remoteID)
	delete(s.screenSenders, remoteID)
	s.removeScreenTileLocked(remoteID)
	log.Info().Str("module", "voice").Str("remote", string(remoteID)).Msg("peer cleaned up")
}

// resetConnectionsLocked tears down the whole mesh. Join state and
// local media are untouched; used on leave and on event-stream loss.
func (s *Session) resetConnectionsLocked() {
	for id := range s.peers {
		s.cleanupPeerLocked(id)
	}
	if s.deps.Screens != nil {
		s.deps.Screens.Clear()
	}
	s.remoteStreams = make(map[domain.UserID]*remoteStream)
	s.screenSenders = make(map[domain.UserID]core.TrackSender)
	s.screenTiles = make(map[domain.UserID]bool)
}

package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/voxium/client/internal/core"
	"github.com/voxium/client/internal/domain"
)

var ErrScreenCapture = errors.New("display capture unavailable")

// Capture presets: height targets by quality label, frame-rate
// targets by fps label. Unknown labels fall back to 1080p30.
var (
	screenHeights = map[string]int{"720": 720, "1080": 1080, "1440": 1440}
	screenRates   = map[string]int{"15": 15, "30": 30, "60": 60}
)

const (
	defaultScreenQuality = "1080"
	defaultScreenFps     = "30"
)

// ScreenPresets enumerates the accepted quality and fps labels.
func ScreenPresets() (qualities, rates []string) {
	return []string{"720", "1080", "1440"}, []string{"15", "30", "60"}
}

func screenConstraints(quality, fps string) core.ScreenConstraints {
	h, ok := screenHeights[quality]
	if !ok {
		h = screenHeights[defaultScreenQuality]
	}
	r, ok := screenRates[fps]
	if !ok {
		r = screenRates[defaultScreenFps]
	}
	return core.ScreenConstraints{Height: h, FrameRate: r}
}

// ScreenProfile describes the active preset, e.g. "1080p30".
func (s *Session) ScreenProfile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := screenConstraints(s.screenQuality, s.screenFps)
	return fmt.Sprintf("%dp%d", c.Height, c.FrameRate)
}

// ToggleScreenShare starts or stops the screen share. No-op when not
// joined.
func (s *Session) ToggleScreenShare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinedRoomID == "" {
		return nil
	}
	if s.screenSharing {
		s.stopScreenShareLocked(true, true)
		return nil
	}
	return s.startScreenShareLocked(ctx)
}

// startScreenShareLocked captures a display surface and publishes its
// video track on every current peer connection, renegotiating each.
func (s *Session) startScreenShareLocked(ctx context.Context) error {
	stream, err := s.deps.Media.GetDisplayMedia(ctx, screenConstraints(s.screenQuality, s.screenFps))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScreenCapture, err)
	}
	videos := stream.VideoTracks()
	if len(videos) == 0 {
		stream.Close()
		return fmt.Errorf("%w: capture produced no video track", ErrScreenCapture)
	}
	track := videos[0]

	s.screenStream = stream
	s.screenTrack = track
	s.screenSharing = true

	for id, pc := range s.peers {
		sender, err := pc.AddTrack(track)
		if err != nil {
			log.Error().Err(err).Str("module", "voice").Str("remote", string(id)).Msg("publish screen track")
			continue
		}
		s.screenSenders[id] = sender
		s.renegotiateLocked(id)
	}

	// The native capture-stop affordance ends the track out-of-band;
	// run the same stop path as an explicit toggle.
	track.OnEnded(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.screenTrack != nil && s.screenTrack.ID() == track.ID() {
			s.stopScreenShareLocked(true, true)
		}
	})

	me := s.ensureMemberLocked(s.self.ID, s.self.Username)
	me.ScreenSharing = true
	s.renderRosterLocked()
	s.broadcastVoiceStateLocked()
	log.Info().Str("module", "voice").Str("profile", fmt.Sprintf("%sp%s", s.screenQuality, s.screenFps)).Msg("screen share started")
	return nil
}

// stopScreenShareLocked removes the screen track from every sender and
// releases the capture. The flags let teardown paths skip the
// broadcast and renegotiation when the mesh is being destroyed anyway.
func (s *Session) stopScreenShareLocked(shouldBroadcast, shouldRenegotiate bool) {
	if !s.screenSharing && s.screenStream == nil {
		return
	}

	affected := make([]domain.UserID, 0, len(s.screenSenders))
	for id, sender := range s.screenSenders {
		if pc, ok := s.peers[id]; ok {
			if err := pc.RemoveTrack(sender); err != nil {
				log.Warn().Err(err).Str("module", "voice").Str("remote", string(id)).Msg("remove screen track")
			}
			affected = append(affected, id)
		}
		delete(s.screenSenders, id)
	}

	if s.screenTrack != nil {
		_ = s.screenTrack.Stop()
	}
	if s.screenStream != nil {
		s.screenStream.Close()
	}
	s.screenStream = nil
	s.screenTrack = nil
	s.screenSharing = false

	if shouldRenegotiate {
		for _, id := range affected {
			s.renegotiateLocked(id)
		}
	}

	if me, ok := s.members[s.self.ID]; ok {
		me.ScreenSharing = false
		s.renderRosterLocked()
	}
	if shouldBroadcast {
		s.broadcastVoiceStateLocked()
	}
	log.Info().Str("module", "voice").Msg("screen share stopped")
}

// SetScreenPrefs records and persists new capture presets. While a
// share is live the constraints are re-applied in place when the
// capture backend supports it; otherwise the new preset takes effect
// on the next share (known limitation, logged).
func (s *Session) SetScreenPrefs(quality, fps string) error {
	if _, ok := screenHeights[quality]; !ok {
		return fmt.Errorf("unknown screen quality %q", quality)
	}
	if _, ok := screenRates[fps]; !ok {
		return fmt.Errorf("unknown screen fps %q", fps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenQuality = quality
	s.screenFps = fps
	if s.deps.Prefs != nil {
		if err := s.deps.Prefs.SaveScreenPrefs(quality, fps); err != nil {
			log.Warn().Err(err).Str("module", "voice").Msg("persist screen prefs")
		}
	}

	if s.screenSharing && s.screenTrack != nil {
		if err := s.screenTrack.ApplyConstraints(screenConstraints(quality, fps)); err != nil {
			if errors.Is(err, core.ErrConstraintsUnsupported) {
				log.Info().Str("module", "voice").Msg("live constraint change unsupported, restart share to apply")
				return nil
			}
			return err
		}
	}
	return nil
}

// syncScreenTileLocked re-derives the remote screen tile from the
// current live track set of the peer's last inbound stream. Idempotent
// on purpose: it tolerates being called before the audio-only leg has
// stabilized and in any track-event order.
func (s *Session) syncScreenTileLocked(remoteID domain.UserID) {
	rs := s.remoteStreams[remoteID]
	if rs == nil {
		s.removeScreenTileLocked(remoteID)
		return
	}
	video := rs.liveVideo()
	if video == nil {
		s.removeScreenTileLocked(remoteID)
		return
	}
	s.screenTiles[remoteID] = true
	if s.deps.Screens != nil {
		s.deps.Screens.SyncTile(remoteID, video)
	}
}

func (s *Session) removeScreenTileLocked(remoteID domain.UserID) {
	if !s.screenTiles[remoteID] {
		return
	}
	delete(s.screenTiles, remoteID)
	if s.deps.Screens != nil {
		s.deps.Screens.RemoveTile(remoteID)
	}
}

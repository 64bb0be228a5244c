// Package rtc adapts pion/webrtc to the core peer-connection
// primitive used by the voice mesh.
package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/voxium/client/internal/config"
	"github.com/voxium/client/internal/core"
)

var ErrNotRTPTrack = errors.New("local track is not backed by an RTP track")

// RTPBacked is implemented by local tracks that can expose their
// underlying pion track for attachment to a PeerConnection.
type RTPBacked interface {
	TrackLocal() webrtc.TrackLocal
}

// Factory builds peer connections sharing one webrtc.API configured
// with the deployment's ICE servers and codec set.
type Factory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

// NewFactory assembles the shared API. populate registers the media
// codecs the capture backend produces; nil keeps pion's defaults.
func NewFactory(cfg *config.Config, populate func(*webrtc.MediaEngine) error) (*Factory, error) {
	me := &webrtc.MediaEngine{}
	if populate != nil {
		if err := populate(me); err != nil {
			return nil, err
		}
	} else if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	se := webrtc.SettingEngine{LoggerFactory: NewLoggerFactory()}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se))

	return &Factory{api: api, cfg: webRTCConfig(cfg)}, nil
}

func webRTCConfig(cfg *config.Config) webrtc.Configuration {
	out := webrtc.Configuration{}
	if cfg != nil {
		for _, s := range cfg.ICEServers {
			out.ICEServers = append(out.ICEServers, webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
	}
	if len(out.ICEServers) == 0 {
		out.ICEServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	return out
}

func (f *Factory) NewPeerConnection() (core.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	c := &Connection{pc: pc}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_connection_state", s.String()).Msg("Peer state")
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		if fn := c.iceHandler(); fn != nil {
			fn(cand.ToJSON())
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if fn := c.trackHandler(); fn != nil {
			fn(newRemoteTrack(track, receiver))
		}
	})
	return c, nil
}

// Connection implements core.PeerConnection over one pion
// PeerConnection. Safe for use after Close: pion returns errors on a
// closed connection instead of panicking.
type Connection struct {
	pc *webrtc.PeerConnection

	mu      sync.RWMutex
	onICE   func(webrtc.ICECandidateInit)
	onTrack func(core.RemoteTrack)
}

func (c *Connection) iceHandler() func(webrtc.ICECandidateInit) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onICE
}

func (c *Connection) trackHandler() func(core.RemoteTrack) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onTrack
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *Connection) OnTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *Connection) AddTrack(t core.LocalTrack) (core.TrackSender, error) {
	backed, ok := t.(RTPBacked)
	if !ok {
		return nil, ErrNotRTPTrack
	}
	sender, err := c.pc.AddTrack(backed.TrackLocal())
	if err != nil {
		return nil, err
	}
	return &trackSender{sender: sender, track: t}, nil
}

func (c *Connection) RemoveTrack(s core.TrackSender) error {
	ts, ok := s.(*trackSender)
	if !ok {
		return errors.New("sender does not belong to this connection")
	}
	return c.pc.RemoveTrack(ts.sender)
}

func (c *Connection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *Connection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *Connection) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *Connection) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *Connection) LocalDescription() *webrtc.SessionDescription {
	return c.pc.LocalDescription()
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *Connection) Close() {
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
	}
}

type trackSender struct {
	sender *webrtc.RTPSender
	track  core.LocalTrack
}

func (t *trackSender) Track() core.LocalTrack { return t.track }

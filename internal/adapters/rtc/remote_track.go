package rtc

import (
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack wraps a pion TrackRemote. Pion has no end event for
// remote tracks; the end is observed by whoever drains the RTP and
// reported through ReadRTP, which then fires the OnEnded handlers.
type RemoteTrack struct {
	track    *webrtc.TrackRemote
	receiver *webrtc.RTPReceiver

	mu      sync.Mutex
	ended   bool
	onEnded []func()
}

func newRemoteTrack(t *webrtc.TrackRemote, r *webrtc.RTPReceiver) *RemoteTrack {
	return &RemoteTrack{track: t, receiver: r}
}

func (r *RemoteTrack) ID() string       { return r.track.ID() }
func (r *RemoteTrack) StreamID() string { return r.track.StreamID() }
func (r *RemoteTrack) Kind() string     { return r.track.Kind().String() }

func (r *RemoteTrack) OnEnded(fn func()) {
	r.mu.Lock()
	ended := r.ended
	if !ended {
		r.onEnded = append(r.onEnded, fn)
	}
	r.mu.Unlock()
	if ended && fn != nil {
		go fn()
	}
}

// ReadRTP drains one packet from the track. The first read error
// marks the track ended and fires the handlers.
func (r *RemoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.track.ReadRTP()
	if err != nil {
		r.fireEnded()
		return nil, err
	}
	return pkt, nil
}

func (r *RemoteTrack) fireEnded() {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.ended = true
	handlers := r.onEnded
	r.onEnded = nil
	r.mu.Unlock()
	for _, fn := range handlers {
		if fn != nil {
			go fn()
		}
	}
}

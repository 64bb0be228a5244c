package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	audioio "github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pion/webrtc/v4"

	"github.com/voxium/client/internal/core"
)

// localStream wraps a mediadevices stream as a core.LocalStream.
type localStream struct {
	ms          mediadevices.MediaStream
	id          string
	audioTracks []*localTrack
	videoTracks []*localTrack
}

func wrapStream(ms mediadevices.MediaStream) *localStream {
	ls := &localStream{ms: ms}
	for _, t := range ms.GetAudioTracks() {
		if mt, ok := t.(mediadevices.Track); ok {
			ls.audioTracks = append(ls.audioTracks, newLocalTrack(mt))
		}
	}
	for _, t := range ms.GetVideoTracks() {
		if mt, ok := t.(mediadevices.Track); ok {
			ls.videoTracks = append(ls.videoTracks, newLocalTrack(mt))
		}
	}
	if len(ls.audioTracks) > 0 {
		ls.id = "mic-" + ls.audioTracks[0].ID()
	} else if len(ls.videoTracks) > 0 {
		ls.id = "screen-" + ls.videoTracks[0].ID()
	}
	return ls
}

func (s *localStream) ID() string { return s.id }

func (s *localStream) Tracks() []core.LocalTrack {
	out := make([]core.LocalTrack, 0, len(s.audioTracks)+len(s.videoTracks))
	for _, t := range s.audioTracks {
		out = append(out, t)
	}
	for _, t := range s.videoTracks {
		out = append(out, t)
	}
	return out
}

func (s *localStream) AudioTracks() []core.LocalTrack {
	out := make([]core.LocalTrack, 0, len(s.audioTracks))
	for _, t := range s.audioTracks {
		out = append(out, t)
	}
	return out
}

func (s *localStream) VideoTracks() []core.LocalTrack {
	out := make([]core.LocalTrack, 0, len(s.videoTracks))
	for _, t := range s.videoTracks {
		out = append(out, t)
	}
	return out
}

func (s *localStream) Close() {
	for _, t := range s.Tracks() {
		_ = t.Stop()
	}
}

// localTrack wraps one mediadevices track. Enabled gates the audio
// pipeline at capture: a disabled track keeps flowing but carries
// silence, the closest equivalent of a browser track's enabled flag.
type localTrack struct {
	t       mediadevices.Track
	enabled atomic.Bool

	mu      sync.Mutex
	onEnded []func()
}

func newLocalTrack(t mediadevices.Track) *localTrack {
	lt := &localTrack{t: t}
	lt.enabled.Store(true)
	t.OnEnded(func(error) { lt.fireEnded() })
	return lt
}

func (lt *localTrack) ID() string   { return lt.t.ID() }
func (lt *localTrack) Kind() string { return lt.t.Kind().String() }

func (lt *localTrack) SetEnabled(v bool) { lt.enabled.Store(v) }
func (lt *localTrack) Enabled() bool     { return lt.enabled.Load() }

// TrackLocal exposes the underlying pion track for peer attachment.
func (lt *localTrack) TrackLocal() webrtc.TrackLocal { return lt.t }

// ApplyConstraints is not supported by mediadevices on a live track;
// preset changes take effect on the next capture.
func (lt *localTrack) ApplyConstraints(core.ScreenConstraints) error {
	return core.ErrConstraintsUnsupported
}

func (lt *localTrack) OnEnded(fn func()) {
	lt.mu.Lock()
	lt.onEnded = append(lt.onEnded, fn)
	lt.mu.Unlock()
}

func (lt *localTrack) fireEnded() {
	lt.mu.Lock()
	handlers := append([]func(){}, lt.onEnded...)
	lt.mu.Unlock()
	for _, fn := range handlers {
		if fn != nil {
			go fn()
		}
	}
}

func (lt *localTrack) Stop() error { return lt.t.Close() }

// installGate inserts the mute gate and level tap into the audio
// pipeline. Applied once, at capture time.
func (lt *localTrack) installGate(probe *levelProbe) {
	at, ok := lt.t.(*mediadevices.AudioTrack)
	if !ok {
		return
	}
	at.Transform(func(r audioio.Reader) audioio.Reader {
		return audioio.ReaderFunc(func() (wave.Audio, func(), error) {
			chunk, release, err := r.Read()
			if err != nil {
				return chunk, release, err
			}
			if !lt.enabled.Load() {
				silence(chunk)
				probe.observeSilence(chunk.ChunkInfo().Len)
				return chunk, release, nil
			}
			probe.observe(chunk)
			return chunk, release, nil
		})
	})
}

func silence(chunk wave.Audio) {
	editable, ok := chunk.(wave.EditableAudio)
	if !ok {
		return
	}
	info := chunk.ChunkInfo()
	for i := 0; i < info.Len; i++ {
		for ch := 0; ch < info.Channels; ch++ {
			editable.Set(i, ch, wave.Int16Sample(0))
		}
	}
}

// Package render provides headless rendering sinks: remote audio and
// screen tracks are drained to keep RTCP feedback and track-end
// detection working, while roster and meter state render as text.
// A graphical front end would swap these for real playback surfaces.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxium/client/internal/adapters/rtc"
	"github.com/voxium/client/internal/core"
	"github.com/voxium/client/internal/domain"
	"github.com/voxium/client/internal/voice"
)

type AudioSinkFactory struct{}

func (AudioSinkFactory) NewAudioSink(id domain.UserID) core.AudioSink {
	return &audioSink{user: id}
}

// audioSink drains one participant's inbound audio. Muted is a
// playback flag; the drain keeps running either way so the track's
// end is still observed.
type audioSink struct {
	user domain.UserID

	mu     sync.Mutex
	muted  bool
	closed bool
	track  core.RemoteTrack
}

func (a *audioSink) Attach(t core.RemoteTrack) {
	a.mu.Lock()
	if a.closed || a.track == t {
		a.mu.Unlock()
		return
	}
	a.track = t
	a.mu.Unlock()

	if rt, ok := t.(*rtc.RemoteTrack); ok {
		go a.drain(rt)
	}
	log.Info().Str("module", "render").Str("user", string(a.user)).Msg("audio sink attached")
}

func (a *audioSink) drain(rt *rtc.RemoteTrack) {
	for {
		if _, err := rt.ReadRTP(); err != nil {
			return
		}
		a.mu.Lock()
		stale := a.closed || a.track != core.RemoteTrack(rt)
		a.mu.Unlock()
		if stale {
			return
		}
	}
}

func (a *audioSink) SetMuted(v bool) {
	a.mu.Lock()
	a.muted = v
	a.mu.Unlock()
}

func (a *audioSink) Muted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.muted
}

func (a *audioSink) Close() {
	a.mu.Lock()
	a.closed = true
	a.track = nil
	a.mu.Unlock()
}

// ScreenGrid renders remote screen tiles as log lines and drains the
// video tracks.
type ScreenGrid struct {
	mu    sync.Mutex
	tiles map[domain.UserID]core.RemoteTrack
}

func NewScreenGrid() *ScreenGrid {
	return &ScreenGrid{tiles: make(map[domain.UserID]core.RemoteTrack)}
}

func (g *ScreenGrid) SyncTile(id domain.UserID, track core.RemoteTrack) {
	g.mu.Lock()
	prev := g.tiles[id]
	g.tiles[id] = track
	g.mu.Unlock()
	if prev == track {
		return
	}
	if rt, ok := track.(*rtc.RemoteTrack); ok {
		go drainVideo(rt)
	}
	log.Info().Str("module", "render").Str("user", string(id)).Str("track", track.ID()).Msg("screen tile shown")
}

func drainVideo(rt *rtc.RemoteTrack) {
	for {
		if _, err := rt.ReadRTP(); err != nil {
			return
		}
	}
}

func (g *ScreenGrid) RemoveTile(id domain.UserID) {
	g.mu.Lock()
	_, ok := g.tiles[id]
	delete(g.tiles, id)
	g.mu.Unlock()
	if ok {
		log.Info().Str("module", "render").Str("user", string(id)).Msg("screen tile removed")
	}
}

func (g *ScreenGrid) Clear() {
	g.mu.Lock()
	g.tiles = make(map[domain.UserID]core.RemoteTrack)
	g.mu.Unlock()
}

const meterBars = 10

// Meter renders discrete level bars plus a status label.
type Meter struct {
	mu  sync.Mutex
	w   io.Writer
	out string
}

func NewMeter(w io.Writer) *Meter { return &Meter{w: w} }

func (m *Meter) RenderLevel(level float64, status core.MeterStatus) {
	active := int(level*meterBars + 0.5)
	if active > meterBars {
		active = meterBars
	}
	line := fmt.Sprintf("[%s%s] %s",
		strings.Repeat("#", active),
		strings.Repeat("-", meterBars-active),
		status)

	m.mu.Lock()
	defer m.mu.Unlock()
	if line == m.out {
		return
	}
	m.out = line
	fmt.Fprintf(m.w, "\rmic %s", line)
}

// Roster writes the member list with badges.
type Roster struct {
	mu sync.Mutex
	w  io.Writer
}

func NewRoster(w io.Writer) *Roster { return &Roster{w: w} }

func (r *Roster) RenderRoster(members []domain.VoiceMember, self domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(members) == 0 {
		fmt.Fprintln(r.w, "voice: nobody connected")
		return
	}
	for _, m := range members {
		you := ""
		if m.ID == self {
			you = " (you)"
		}
		fmt.Fprintf(r.w, "voice: %s%s [%s]\n", m.Username, you, strings.Join(voice.Badges(m), " "))
	}
}

// Package media adapts pion/mediadevices to the core capture
// interface: microphone acquisition, display capture with preset
// constraints, and the amplitude tap feeding the mic meter.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	// Device adapters register themselves on import.
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"

	"github.com/voxium/client/internal/core"
)

type Devices struct {
	selector *mediadevices.CodecSelector

	mu     sync.Mutex
	probes map[string]*levelProbe // by stream id
}

func NewDevices() (*Devices, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	vp8Params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vp8Params.BitRate = 1_500_000

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithAudioEncoders(&opusParams),
		mediadevices.WithVideoEncoders(&vp8Params),
	)
	return &Devices{
		selector: selector,
		probes:   make(map[string]*levelProbe),
	}, nil
}

// Populate registers the capture codecs on a webrtc media engine so
// peer connections can negotiate what we actually produce.
func (d *Devices) Populate(me *webrtc.MediaEngine) error {
	d.selector.Populate(me)
	return nil
}

// GetUserMedia acquires microphone-only capture. The returned
// stream's audio is tapped for the level probe and gated by the
// track's enabled flag.
func (d *Devices) GetUserMedia(ctx context.Context) (core.LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: d.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}

	ls := wrapStream(ms)
	probe := newLevelProbe()
	for _, t := range ls.audioTracks {
		t.installGate(probe)
	}
	d.mu.Lock()
	d.probes[ls.ID()] = probe
	d.mu.Unlock()
	log.Info().Str("module", "media").Str("stream", ls.ID()).Msg("microphone acquired")
	return ls, nil
}

// GetDisplayMedia acquires display capture at the preset's height and
// frame-rate targets.
func (d *Devices) GetDisplayMedia(ctx context.Context, c core.ScreenConstraints) (core.LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(m *mediadevices.MediaTrackConstraints) {
			if c.Height > 0 {
				m.Height = prop.Int(c.Height)
			}
			if c.FrameRate > 0 {
				m.FrameRate = prop.Float(float32(c.FrameRate))
			}
		},
		Codec: d.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get display media: %w", err)
	}
	ls := wrapStream(ms)
	log.Info().Str("module", "media").Str("stream", ls.ID()).Int("height", c.Height).Int("fps", c.FrameRate).Msg("display capture acquired")
	return ls, nil
}

// NewLevelProbe returns the amplitude tap installed at capture time,
// or nil for streams without one; the mic meter then degrades to a
// constant zero reading.
func (d *Devices) NewLevelProbe(ls core.LocalStream) core.SampleSource {
	if ls == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.probes[ls.ID()]; ok {
		return p
	}
	return nil
}

package core

import (
	"context"
	"errors"
)

var ErrConstraintsUnsupported = errors.New("constraints not supported on this track")

// ScreenConstraints selects a display-capture preset.
type ScreenConstraints struct {
	Height    int
	FrameRate int
}

// LocalTrack is a locally captured media track.
// Owned by the voice session while joined; Stop releases the device.
type LocalTrack interface {
	ID() string
	Kind() string // "audio" | "video"
	SetEnabled(bool)
	Enabled() bool
	// ApplyConstraints re-applies capture constraints in place.
	// Returns ErrConstraintsUnsupported when the capture backend
	// cannot change a live track.
	ApplyConstraints(ScreenConstraints) error
	// OnEnded fires when capture stops out-of-band (device unplugged,
	// native capture-stop affordance). Handlers run on a separate
	// goroutine; implementations must not invoke them from inside Stop.
	OnEnded(func())
	Stop() error
}

// LocalStream groups the tracks of one capture request.
type LocalStream interface {
	ID() string
	Tracks() []LocalTrack
	AudioTracks() []LocalTrack
	VideoTracks() []LocalTrack
	// Close stops every track.
	Close()
}

// SampleSource taps time-domain audio amplitude for the mic meter.
// Samples returns the most recent window, or nil when unavailable.
type SampleSource interface {
	Samples() []float32
}

// MediaDevices abstracts device acquisition. Both calls are
// asynchronous and fallible; a denied permission surfaces as an error.
type MediaDevices interface {
	// GetUserMedia acquires microphone-only capture.
	GetUserMedia(ctx context.Context) (LocalStream, error)
	// GetDisplayMedia acquires display capture with the given constraints.
	GetDisplayMedia(ctx context.Context, c ScreenConstraints) (LocalStream, error)
	// NewLevelProbe returns an amplitude tap for the stream's audio,
	// or nil when the backend cannot provide one.
	NewLevelProbe(LocalStream) SampleSource
}

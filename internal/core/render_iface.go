package core

import "github.com/voxium/client/internal/domain"

// AudioSink plays one remote participant's audio.
type AudioSink interface {
	Attach(RemoteTrack)
	SetMuted(bool)
	Muted() bool
	Close()
}

type AudioSinkFactory interface {
	NewAudioSink(id domain.UserID) AudioSink
}

// ScreenRenderer manages remote screen tiles keyed by participant id.
type ScreenRenderer interface {
	// SyncTile creates or updates the tile showing track.
	SyncTile(id domain.UserID, track RemoteTrack)
	RemoveTile(id domain.UserID)
	Clear()
}

type MeterStatus string

const (
	MeterInactive  MeterStatus = "inactive"
	MeterMuted     MeterStatus = "muted"
	MeterListening MeterStatus = "listening"
)

// MeterDisplay renders the non-authoritative mic level feedback.
type MeterDisplay interface {
	RenderLevel(level float64, status MeterStatus)
}

// RosterRenderer displays the voice-room member list with badges.
type RosterRenderer interface {
	RenderRoster(members []domain.VoiceMember, self domain.UserID)
}

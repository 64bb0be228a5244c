package core

import "github.com/pion/webrtc/v4"

// RemoteTrack is an inbound media track delivered by a peer connection.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() string // "audio" | "video"
	OnEnded(func())
}

// TrackSender is the outbound binding of a local track on one
// peer connection; held so the track can be removed later.
type TrackSender interface {
	Track() LocalTrack
}

// PeerConnection is the peer-to-peer transport primitive.
// Implementations must tolerate calls after Close: pending SDP/ICE
// operations on a closed connection fail with an error, never panic.
type PeerConnection interface {
	AddTrack(LocalTrack) (TrackSender, error)
	RemoveTrack(TrackSender) error

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	AddICECandidate(webrtc.ICECandidateInit) error

	// OnICECandidate sets a callback for newly gathered local candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked when a remote track arrives.
	OnTrack(func(RemoteTrack))

	Close()
}

// PeerFactory creates connections configured with the deployment's
// relay/STUN servers.
type PeerFactory interface {
	NewPeerConnection() (PeerConnection, error)
}

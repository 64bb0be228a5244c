// Package wire defines the typed JSON messages multiplexed over the
// event stream. The voice core consumes the four voice_* shapes plus
// the shell events that force voice-side cleanup; everything else
// decodes to Unknown and is ignored.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/voxium/client/internal/domain"
)

type MsgType string

const (
	MsgVoiceJoin   MsgType = "voice_join"
	MsgVoiceLeave  MsgType = "voice_leave"
	MsgVoiceState  MsgType = "voice_state"
	MsgVoiceSignal MsgType = "voice_signal"
	MsgRoomDeleted MsgType = "room_deleted"
	MsgUserLeave   MsgType = "leave"
	MsgPing        MsgType = "ping"
	MsgPong        MsgType = "pong"
)

// Message is the closed set of decoded event-stream payloads.
type Message interface {
	MessageType() MsgType
}

// VoiceJoin announces a participant entering a voice room, carrying
// that participant's current flags.
type VoiceJoin struct {
	Type          MsgType       `json:"type"`
	RoomID        domain.RoomID `json:"room_id"`
	UserID        domain.UserID `json:"user_id"`
	Username      string        `json:"username"`
	Muted         bool          `json:"muted"`
	Deafened      bool          `json:"deafened"`
	ScreenSharing bool          `json:"screen_sharing"`
}

func (*VoiceJoin) MessageType() MsgType { return MsgVoiceJoin }

// VoiceLeave announces departure from a voice room.
type VoiceLeave struct {
	Type     MsgType       `json:"type"`
	RoomID   domain.RoomID `json:"room_id"`
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

func (*VoiceLeave) MessageType() MsgType { return MsgVoiceLeave }

// VoiceState is a flag-only roster update; it never changes the mesh.
type VoiceState struct {
	Type          MsgType       `json:"type"`
	RoomID        domain.RoomID `json:"room_id"`
	UserID        domain.UserID `json:"user_id"`
	Username      string        `json:"username"`
	Muted         bool          `json:"muted"`
	Deafened      bool          `json:"deafened"`
	ScreenSharing bool          `json:"screen_sharing"`
}

func (*VoiceState) MessageType() MsgType { return MsgVoiceState }

// VoiceSignal relays a point-to-point SDP or ICE payload. Exactly one
// of SDP / Candidate is set on well-formed messages.
type VoiceSignal struct {
	Type         MsgType                    `json:"type"`
	RoomID       domain.RoomID              `json:"room_id"`
	UserID       domain.UserID              `json:"user_id"`
	TargetUserID domain.UserID              `json:"target_user_id"`
	SDP          *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate    *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

func (*VoiceSignal) MessageType() MsgType { return MsgVoiceSignal }

// RoomDeleted is a shell event; deletion of the joined voice room
// forces a local leave.
type RoomDeleted struct {
	Type   MsgType       `json:"type"`
	RoomID domain.RoomID `json:"room_id"`
}

func (*RoomDeleted) MessageType() MsgType { return MsgRoomDeleted }

// UserLeave is the presence-plane departure of a user (connection
// gone, not just a voice leave); their peer is cleaned up too.
type UserLeave struct {
	Type   MsgType       `json:"type"`
	UserID domain.UserID `json:"user_id"`
}

func (*UserLeave) MessageType() MsgType { return MsgUserLeave }

type Ping struct {
	Type MsgType `json:"type"`
}

func (*Ping) MessageType() MsgType { return MsgPing }

type Pong struct {
	Type MsgType `json:"type"`
}

func (*Pong) MessageType() MsgType { return MsgPong }

// Unknown preserves the raw payload of message types outside the
// closed set; consumers skip it.
type Unknown struct {
	Type MsgType
	Raw  json.RawMessage
}

func (u *Unknown) MessageType() MsgType { return u.Type }

// Decode parses one event-stream payload into its typed form.
// Unknown fields within known shapes are ignored; unknown types are
// preserved, not rejected.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type MsgType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case MsgVoiceJoin:
		msg = &VoiceJoin{}
	case MsgVoiceLeave:
		msg = &VoiceLeave{}
	case MsgVoiceState:
		msg = &VoiceState{}
	case MsgVoiceSignal:
		msg = &VoiceSignal{}
	case MsgRoomDeleted:
		msg = &RoomDeleted{}
	case MsgUserLeave:
		msg = &UserLeave{}
	case MsgPing:
		msg = &Ping{}
	case MsgPong:
		msg = &Pong{}
	default:
		return &Unknown{Type: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return msg, nil
}

package domain

type (
	RoomID   string
	RoomName string
	RoomKind string
)

const (
	RoomKindText  RoomKind = "text"
	RoomKindVoice RoomKind = "voice"
)

type Room struct {
	ID   RoomID   `json:"id"`
	Name RoomName `json:"name"`
	Kind RoomKind `json:"kind"`
}

func (r Room) IsVoice() bool { return r.Kind == RoomKindVoice }

package domain

// VoiceMember is the roster entry for one voice-room participant.
// Display state only; the mesh plumbing lives elsewhere.
type VoiceMember struct {
	ID            UserID
	Username      string
	Muted         bool
	Deafened      bool
	ScreenSharing bool
}

func NewVoiceMember(id UserID, username string) *VoiceMember {
	return &VoiceMember{ID: id, Username: username}
}

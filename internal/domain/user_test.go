package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewUser(t *testing.T) {
	cases := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"ok", "alice", nil},
		{"max length", strings.Repeat("a", MaxUsernameLen), nil},
		{"empty", "", ErrUsernameEmpty},
		{"too long", strings.Repeat("a", MaxUsernameLen+1), ErrUsernameTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := NewUser(tc.username)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				return
			}
			if u.Username != tc.username {
				t.Fatalf("username = %q", u.Username)
			}
			if u.ID == "" {
				t.Fatal("id should be assigned")
			}
		})
	}
}

func TestNewUserIDsAreUnique(t *testing.T) {
	a, _ := NewUser("alice")
	b, _ := NewUser("alice")
	if a.ID == b.ID {
		t.Fatalf("ids collide: %s", a.ID)
	}
}

func TestRoomIsVoice(t *testing.T) {
	if (Room{Kind: RoomKindText}).IsVoice() {
		t.Fatal("text room reported as voice")
	}
	if !(Room{Kind: RoomKindVoice}).IsVoice() {
		t.Fatal("voice room not reported as voice")
	}
}

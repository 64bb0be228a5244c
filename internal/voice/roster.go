package voice

import (
	"sort"

	"github.com/voxium/client/internal/domain"
)

// Roster returns the display-oriented member list, sorted by name.
// Distinct from the peer map: a member may be announced before its
// mesh link exists, never the other way around.
func (s *Session) Roster() []domain.VoiceMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

func (s *Session) rosterLocked() []domain.VoiceMember {
	out := make([]domain.VoiceMember, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Session) renderRosterLocked() {
	if s.deps.Roster == nil {
		return
	}
	s.deps.Roster.RenderRoster(s.rosterLocked(), s.self.ID)
}

// Badges projects one member's flags into display badges.
func Badges(m domain.VoiceMember) []string {
	var b []string
	if m.Muted {
		b = append(b, "muted")
	}
	if m.Deafened {
		b = append(b, "deafened")
	}
	if m.ScreenSharing {
		b = append(b, "sharing")
	}
	if len(b) == 0 {
		b = append(b, "online")
	}
	return b
}

package memory

import (
	"context"

	"quiz-battle-service/internal/domain"
)

// ProfileDirectory resolves profiles from a fixed map. Unknown users get a
// profile whose display name is their id.
type ProfileDirectory struct {
	profiles map[string]domain.Profile
}

func NewProfileDirectory(profiles map[string]domain.Profile) *ProfileDirectory {
	return &ProfileDirectory{profiles: profiles}
}

func (d *ProfileDirectory) ResolveProfiles(_ context.Context, userIDs []string) (map[string]domain.Profile, error) {
	out := make(map[string]domain.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
			continue
		}
		out[id] = domain.Profile{UserID: id, Username: id, DisplayName: id}
	}
	return out, nil
}

package db

import (
	"errors"
)

var ErrNotFound = errors.New("not found")

// DefaultLevel is the aggressiveness a community starts at before an
// administrator tunes it.
const DefaultLevel = 5

func DefaultCommunitySettings(communityID int64) *CommunitySettings {
	return &CommunitySettings{
		ID:      communityID,
		Enabled: true,
		Level:   DefaultLevel,
	}
}

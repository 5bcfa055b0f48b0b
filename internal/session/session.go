// Package session holds the session-scoped slot a finished company profile is
// written to and read back from by report views.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/profile-cli/internal/model"
)

// ProfileKey is the fixed slot name the profile is stored under.
const ProfileKey = "companyProfileData"

// DefaultTTL bounds how long a stored profile outlives its session.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned when the session holds no profile.
var ErrNotFound = errors.New("session: profile not found")

// Store is a session-scoped key-value slot for company profiles.
type Store interface {
	SaveProfile(ctx context.Context, sessionID string, profile model.CompanyProfile) error
	GetProfile(ctx context.Context, sessionID string) (model.CompanyProfile, error)
	ClearProfile(ctx context.Context, sessionID string) error
	Close() error
}

func profileKey(sessionID string) string {
	return "session:" + sessionID + ":" + ProfileKey
}

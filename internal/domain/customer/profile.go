package customer

import (
	"context"

	"github.com/google/uuid"
)

// Profile is the contact information a signed-in customer saved with the
// identity provider
type Profile struct {
	UserID   uuid.UUID
	FullName string
	Phone    string
	Email    string
	Address  string
}

// ProfileRepository reads customer profiles
type ProfileRepository interface {
	// FindByUserID returns shared.ErrNotFound when the user has no profile
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

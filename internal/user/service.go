package user

import (
	"context"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Service defines the user bounded context's command/query surface
// (spec §6.1's representative RPC shape, generalized from the
// teacher's membership.Service).
type Service interface {
	SignUp(ctx context.Context, email, name, password string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, string, error)
	GetUser(ctx context.Context, id ids.UserId) (*User, error)
	UpdateProfile(ctx context.Context, id ids.UserId, expectedVersion int, displayName string, level ids.CEFRLevel, goal *LearningGoal) error
	ChangeUserRole(ctx context.Context, id ids.UserId, expectedVersion int, newRole Role, changedBy ids.UserId) error
	DeleteUser(ctx context.Context, id ids.UserId, expectedVersion int, deletedBy ids.UserId) error
}

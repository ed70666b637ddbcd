// Package user implements the user bounded context: registration,
// authentication, profile/role management (spec §4.4, §6.2's User
// event family), generalized from the teacher's internal/membership
// (Member/Credential/MemberRegisteredEvent) which models library
// members instead of learners.
package user

import (
	"time"

	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Role gates which commands a user may issue.
type Role string

const (
	RoleLearner Role = "learner"
	RoleAdmin   Role = "admin"
)

// User is the read-model projection of the user aggregate, generalizing
// the teacher's Member struct (internal/membership/domain.go) from
// library-membership fields (tier, fine balance, max checkouts) to
// learning-profile fields.
type User struct {
	ID           ids.UserId     `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	Name         string         `json:"name" db:"name"`
	Role         Role           `json:"role" db:"role"`
	CurrentLevel ids.CEFRLevel  `json:"current_level" db:"current_level"`
	Goal         *LearningGoal  `json:"goal,omitempty" db:"-"`
	Version      int            `json:"version" db:"version"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (u User) GetID() string   { return u.ID.String() }
func (u User) GetVersion() int { return u.Version }

// LearningGoal is supplemented from
// original_source/services/user-service/src/domain/value_objects — the
// distilled spec.md never names it, but ProfileUpdated carries one.
type LearningGoal = events.LearningGoal

// Credential mirrors the teacher's Credential (internal/membership/domain.go)
// with MFA fields dropped — no Non-goal or spec section asks for MFA,
// and carrying fields no command ever sets would be dead weight, not
// adaptation.
type Credential struct {
	UserID       ids.UserId `db:"user_id"`
	PasswordHash string     `db:"password_hash"`
	Salt         string     `db:"salt"`
}

package events

import "github.com/jules-labs/lexitrace/pkg/ids"

const (
	TypeUserSignedUp    = "user.UserSignedUp"
	TypeProfileUpdated  = "user.ProfileUpdated"
	TypeUserRoleChanged = "user.UserRoleChanged"
	TypeUserDeleted     = "user.UserDeleted"
)

// UserSignedUp is emitted when a new account is created.
type UserSignedUp struct {
	UserID ids.UserId `json:"user_id"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
}

// LearningGoal is a supplemented value object (originally
// user-service/src/domain/value_objects/learning_goal.rs, dropped by
// the distillation) capturing the user's study target.
type LearningGoal struct {
	TargetLevel     ids.CEFRLevel `json:"target_level"`
	DailyReviewGoal int           `json:"daily_review_goal"`
	FocusDomains    []string      `json:"focus_domains,omitempty"`
}

// ProfileUpdated is emitted by profile mutations, including changes to
// the supplemented LearningGoal.
type ProfileUpdated struct {
	UserID       ids.UserId    `json:"user_id"`
	DisplayName  string        `json:"display_name,omitempty"`
	CurrentLevel ids.CEFRLevel `json:"current_level,omitempty"`
	Goal         *LearningGoal `json:"goal,omitempty"`
}

// UserRoleChanged is emitted by ChangeUserRole.
type UserRoleChanged struct {
	UserID  ids.UserId `json:"user_id"`
	OldRole string     `json:"old_role"`
	NewRole string     `json:"new_role"`
}

// UserDeleted is emitted when an account is removed.
type UserDeleted struct {
	UserID    ids.UserId `json:"user_id"`
	DeletedBy ids.UserId `json:"deleted_by"`
}

// UserEvent is the tagged sum of every user-context event.
type UserEvent struct {
	SignedUp     *UserSignedUp
	ProfileUpd   *ProfileUpdated
	RoleChanged  *UserRoleChanged
	Deleted      *UserDeleted
}

package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventbus"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/ids"
	"github.com/jules-labs/lexitrace/pkg/repository"
)

const aggregateType = "user"

// service implements Service, generalizing membership.service
// (internal/membership/implementation.go) from member registration to
// learner sign-up: the same rate-limiter-guarded register/authenticate
// shape, the event-store-then-read-model write order, now over the
// User aggregate instead of Member.
type service struct {
	store   *eventstore.Store
	bus     eventbus.Bus
	repo    *repository.Repository[User]
	db      *sqlx.DB
	tokens  *TokenIssuer
	limiter *rate.Limiter
}

func NewService(store *eventstore.Store, bus eventbus.Bus, db *sqlx.DB, tokens *TokenIssuer) Service {
	return &service{
		store:   store,
		bus:     bus,
		repo:    repository.New[User](db, "users", "id", repository.WithSoftDelete[User]()),
		db:      db,
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Every(time.Minute), 5),
	}
}

func (s *service) SignUp(ctx context.Context, email, name, password string) (*User, error) {
	if !s.limiter.Allow() {
		return nil, errs.New(errs.PermissionDenied, "rate limit exceeded")
	}
	if email == "" || name == "" || password == "" {
		return nil, errs.New(errs.Validation, "email, name and password are required")
	}

	userID := ids.NewUserId()
	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	env, err := events.New(userID.String(), aggregateType, events.TypeUserSignedUp, 0,
		events.UserSignedUp{UserID: userID, Email: email, Name: name},
		events.Metadata{SourceContext: "user", CausedByUser: &userID})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build event envelope", err)
	}

	if _, err := s.store.Append(ctx, userID.String(), aggregateType, eventstore.AnyVersion, []events.Envelope{env}); err != nil {
		return nil, err
	}

	u := &User{ID: userID, Email: email, Name: name, Role: RoleLearner, CurrentLevel: ids.A1, Version: 1}
	if err := s.insertWithCredential(ctx, u, passwordHash, salt); err != nil {
		return nil, err
	}

	_ = s.bus.Publish(ctx, env)
	return u, nil
}

func (s *service) insertWithCredential(ctx context.Context, u *User, passwordHash, salt string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Database, "begin user registration transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, current_level, version)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.Name, u.Role, u.CurrentLevel, u.Version)
	if err != nil {
		return errs.Wrap(errs.Database, "insert user read model", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_credentials (user_id, password_hash, salt)
		VALUES ($1, $2, $3)
	`, u.ID, passwordHash, salt)
	if err != nil {
		return errs.Wrap(errs.Database, "insert user credential", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Database, "commit user registration", err)
	}
	return nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*User, string, error) {
	if !s.limiter.Allow() {
		return nil, "", errs.New(errs.PermissionDenied, "rate limit exceeded")
	}

	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1 AND deleted_at IS NULL`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", errs.New(errs.Unauthenticated, "invalid credentials")
	}
	if err != nil {
		return nil, "", errs.Wrap(errs.Database, "look up user by email", err)
	}

	var cred Credential
	if err := s.db.GetContext(ctx, &cred, `SELECT * FROM user_credentials WHERE user_id = $1`, u.ID); err != nil {
		return nil, "", errs.New(errs.Unauthenticated, "invalid credentials")
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", errs.New(errs.Unauthenticated, "invalid credentials")
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return &u, token, nil
}

func (s *service) GetUser(ctx context.Context, id ids.UserId) (*User, error) {
	var u User
	if err := s.repo.FindByID(ctx, id.String(), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *service) UpdateProfile(ctx context.Context, id ids.UserId, expectedVersion int, displayName string, level ids.CEFRLevel, goal *LearningGoal) error {
	env, err := events.New(id.String(), aggregateType, events.TypeProfileUpdated, expectedVersion,
		events.ProfileUpdated{UserID: id, DisplayName: displayName, CurrentLevel: level, Goal: goal},
		events.Metadata{SourceContext: "user", CausedByUser: &id})
	if err != nil {
		return errs.Wrap(errs.Internal, "build event envelope", err)
	}

	if _, err := s.store.Append(ctx, id.String(), aggregateType, expectedVersion, []events.Envelope{env}); err != nil {
		return err
	}

	set := map[string]interface{}{}
	if displayName != "" {
		set["name"] = displayName
	}
	if level.Valid() {
		set["current_level"] = level
	}
	if err := s.repo.UpdateVersioned(ctx, id.String(), expectedVersion, set); err != nil {
		return err
	}

	_ = s.bus.Publish(ctx, env)
	return nil
}

func (s *service) ChangeUserRole(ctx context.Context, id ids.UserId, expectedVersion int, newRole Role, changedBy ids.UserId) error {
	current, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	env, err := events.New(id.String(), aggregateType, events.TypeUserRoleChanged, expectedVersion,
		events.UserRoleChanged{UserID: id, OldRole: string(current.Role), NewRole: string(newRole)},
		events.Metadata{SourceContext: "user", CausedByUser: &changedBy})
	if err != nil {
		return errs.Wrap(errs.Internal, "build event envelope", err)
	}

	if _, err := s.store.Append(ctx, id.String(), aggregateType, expectedVersion, []events.Envelope{env}); err != nil {
		return err
	}
	if err := s.repo.UpdateVersioned(ctx, id.String(), expectedVersion, map[string]interface{}{"role": newRole}); err != nil {
		return err
	}

	_ = s.bus.Publish(ctx, env)
	return nil
}

func (s *service) DeleteUser(ctx context.Context, id ids.UserId, expectedVersion int, deletedBy ids.UserId) error {
	env, err := events.New(id.String(), aggregateType, events.TypeUserDeleted, expectedVersion,
		events.UserDeleted{UserID: id, DeletedBy: deletedBy},
		events.Metadata{SourceContext: "user", CausedByUser: &deletedBy})
	if err != nil {
		return errs.Wrap(errs.Internal, "build event envelope", err)
	}

	if _, err := s.store.Append(ctx, id.String(), aggregateType, expectedVersion, []events.Envelope{env}); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id.String(), expectedVersion); err != nil {
		return err
	}

	_ = s.bus.Publish(ctx, env)
	return nil
}

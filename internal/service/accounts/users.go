package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/repository"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 8

// UserInput carries the editable account fields. An empty Password keeps the current
// one on update; a nil IsActive means active on create and unchanged on update.
type UserInput struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	IsStaff  bool    `json:"is_staff"`
	IsActive *bool   `json:"is_active"`
	GroupIDs []int64 `json:"group_ids"`
}

// ListUsers returns every account ordered by username.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// CreateUser validates input and stores a new account.
func (s *Service) CreateUser(ctx context.Context, input UserInput) (models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	verr := validateUser(input, true)

	var created models.User
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		if err := checkUsername(ctx, q, input.Username, 0, verr); err != nil {
			return err
		}
		if err := checkGroups(ctx, q, input.GroupIDs, verr); err != nil {
			return err
		}
		if !verr.Empty() {
			return verr
		}

		hash, err := s.hash(input.Password)
		if err != nil {
			return err
		}
		active := true
		if input.IsActive != nil {
			active = *input.IsActive
		}
		created, err = q.CreateUser(ctx, models.User{
			Username:     input.Username,
			PasswordHash: hash,
			IsStaff:      input.IsStaff,
			IsActive:     active,
			GroupIDs:     input.GroupIDs,
		})
		return err
	})
	if err != nil {
		return models.User{}, err
	}

	s.logger.Info("User created", zap.Int64("user_id", created.ID), zap.String("username", created.Username))
	return created, nil
}

// UpdateUser overwrites the account fields of user id.
func (s *Service) UpdateUser(ctx context.Context, id int64, input UserInput) (models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	verr := validateUser(input, false)

	var updated models.User
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		user, err := q.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if err := checkUsername(ctx, q, input.Username, id, verr); err != nil {
			return err
		}
		if err := checkGroups(ctx, q, input.GroupIDs, verr); err != nil {
			return err
		}
		if !verr.Empty() {
			return verr
		}

		user.Username = input.Username
		user.IsStaff = input.IsStaff
		if input.IsActive != nil {
			user.IsActive = *input.IsActive
		}
		if input.GroupIDs == nil {
			input.GroupIDs = []int64{}
		}
		user.GroupIDs = input.GroupIDs
		if input.Password != "" {
			if user.PasswordHash, err = s.hash(input.Password); err != nil {
				return err
			}
		}
		if err := q.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated, err = q.GetUser(ctx, id)
		return err
	})
	if err != nil {
		return models.User{}, err
	}

	s.forget(ctx, id)
	s.logger.Info("User updated", zap.Int64("user_id", id))
	return updated, nil
}

// DeleteUser removes user id. Accounts cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, id int64, actor models.Principal) error {
	if actor.UserID == id {
		return fmt.Errorf("delete own account: %w", models.ErrInvalidArgument)
	}
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		return q.DeleteUser(ctx, id)
	})
	if err != nil {
		return err
	}

	s.forget(ctx, id)
	s.logger.Info("User deleted", zap.Int64("user_id", id))
	return nil
}

func validateUser(input UserInput, creating bool) *models.ValidationError {
	verr := models.NewValidationError()
	switch {
	case input.Username == "":
		verr.Add("username", "this field is required")
	case utf8.RuneCountInString(input.Username) > models.MaxUsernameLen:
		verr.Add("username", fmt.Sprintf("ensure this value has at most %d characters", models.MaxUsernameLen))
	}
	switch {
	case input.Password == "" && creating:
		verr.Add("password", "this field is required")
	case input.Password != "" && utf8.RuneCountInString(input.Password) < MinPasswordLen:
		verr.Add("password", fmt.Sprintf("ensure this value has at least %d characters", MinPasswordLen))
	}
	return verr
}

// checkUsername flags a username already used by another account than self.
func checkUsername(ctx context.Context, q repository.Queries, username string, self int64, verr *models.ValidationError) error {
	if username == "" {
		return nil
	}
	existing, err := q.FindUserByUsername(ctx, username)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		verr.Add("username", "a user with that username already exists")
	}
	return nil
}

func checkGroups(ctx context.Context, q repository.Queries, groupIDs []int64, verr *models.ValidationError) error {
	for _, id := range groupIDs {
		_, err := q.GetGroup(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			verr.Add("group_ids", fmt.Sprintf("group %d does not exist", id))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

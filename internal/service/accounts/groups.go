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

// MaxGroupNameLen bounds group names.
const MaxGroupNameLen = 150

// GroupInput carries the editable group fields.
type GroupInput struct {
	Name         string              `json:"name"`
	Capabilities []models.Capability `json:"capabilities"`
}

// ListGroups returns every group ordered by name.
func (s *Service) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.store.ListGroups(ctx)
}

// CreateGroup stores a group with a unique name and known capabilities.
func (s *Service) CreateGroup(ctx context.Context, input GroupInput) (models.Group, error) {
	input.Name = strings.TrimSpace(input.Name)
	verr := validateGroup(input)

	var created models.Group
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		if err := checkGroupName(ctx, q, input.Name, 0, verr); err != nil {
			return err
		}
		if !verr.Empty() {
			return verr
		}
		g, err := q.CreateGroup(ctx, input.Name)
		if err != nil {
			return err
		}
		if err := q.SetGroupCapabilities(ctx, g.ID, input.Capabilities); err != nil {
			return err
		}
		created, err = q.GetGroup(ctx, g.ID)
		return err
	})
	if err != nil {
		return models.Group{}, err
	}

	s.logger.Info("Group created", zap.Int64("group_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// UpdateGroup renames group id and replaces its capabilities. Members' cached
// principals are dropped.
func (s *Service) UpdateGroup(ctx context.Context, id int64, input GroupInput) (models.Group, error) {
	input.Name = strings.TrimSpace(input.Name)
	verr := validateGroup(input)

	var (
		updated models.Group
		members []int64
	)
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		current, err := q.GetGroup(ctx, id)
		if err != nil {
			return err
		}
		if err := checkGroupName(ctx, q, input.Name, id, verr); err != nil {
			return err
		}
		if !verr.Empty() {
			return verr
		}
		if current.Name != input.Name {
			if err := q.RenameGroup(ctx, id, input.Name); err != nil {
				return err
			}
		}
		if err := q.SetGroupCapabilities(ctx, id, input.Capabilities); err != nil {
			return err
		}
		if members, err = groupMembers(ctx, q, id); err != nil {
			return err
		}
		updated, err = q.GetGroup(ctx, id)
		return err
	})
	if err != nil {
		return models.Group{}, err
	}

	s.forget(ctx, members...)
	s.logger.Info("Group updated", zap.Int64("group_id", id), zap.Int("members", len(members)))
	return updated, nil
}

// DeleteGroup removes group id and its memberships.
func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	var members []int64
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		var err error
		if members, err = groupMembers(ctx, q, id); err != nil {
			return err
		}
		return q.DeleteGroup(ctx, id)
	})
	if err != nil {
		return err
	}

	s.forget(ctx, members...)
	s.logger.Info("Group deleted", zap.Int64("group_id", id))
	return nil
}

// SeedDefaults creates the Viewer and Editor groups and the bootstrap staff account when
// they are missing. Existing groups and users are left untouched.
func (s *Service) SeedDefaults(ctx context.Context, adminUsername, adminPassword string) error {
	defaults := []GroupInput{
		{Name: models.GroupViewer, Capabilities: models.ViewerCapabilities},
		{Name: models.GroupEditor, Capabilities: models.EditorCapabilities},
	}
	for _, g := range defaults {
		_, err := s.store.FindGroupByName(ctx, g.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("seed group %s: %w", g.Name, err)
		}
		if _, err := s.CreateGroup(ctx, g); err != nil {
			return fmt.Errorf("seed group %s: %w", g.Name, err)
		}
	}

	adminUsername = strings.TrimSpace(adminUsername)
	if adminUsername == "" {
		return nil
	}
	_, err := s.store.FindUserByUsername(ctx, adminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("seed admin: %w", err)
	}
	if _, err := s.CreateUser(ctx, UserInput{Username: adminUsername, Password: adminPassword, IsStaff: true}); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func validateGroup(input GroupInput) *models.ValidationError {
	verr := models.NewValidationError()
	switch {
	case input.Name == "":
		verr.Add("name", "this field is required")
	case utf8.RuneCountInString(input.Name) > MaxGroupNameLen:
		verr.Add("name", fmt.Sprintf("ensure this value has at most %d characters", MaxGroupNameLen))
	}
	for _, c := range input.Capabilities {
		if !models.KnownCapability(c) {
			verr.Add("capabilities", fmt.Sprintf("unknown capability %q", c))
		}
	}
	return verr
}

func checkGroupName(ctx context.Context, q repository.Queries, name string, self int64, verr *models.ValidationError) error {
	if name == "" {
		return nil
	}
	existing, err := q.FindGroupByName(ctx, name)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		verr.Add("name", "a group with that name already exists")
	}
	return nil
}

func groupMembers(ctx context.Context, q repository.Queries, groupID int64) ([]int64, error) {
	users, err := q.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, u := range users {
		for _, gid := range u.GroupIDs {
			if gid == groupID {
				out = append(out, u.ID)
				break
			}
		}
	}
	return out, nil
}

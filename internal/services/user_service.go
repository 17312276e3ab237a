package services

import (
	"context"
	"strings"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/repository"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"go.uber.org/zap"
)

// ProfileUpdate holds the fields a user may change. Nil means untouched.
type ProfileUpdate struct {
	Name    *string
	Email   *string
	Company *string
	Phone   *string
	Avatar  *string
}

type UserService interface {
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*models.User, error)
	SetAvatar(ctx context.Context, id string, image []byte) (string, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.userRepo.GetByID(ctx, id, &u); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.NotFound("User not found")
		}
		return nil, err
	}
	return sanitize(&u), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*models.User, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, appErr.Invalid("Name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Email != nil {
		email, err := ValidateEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		if email != current.Email {
			taken, err := s.userRepo.EmailTakenByOther(ctx, email, id)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, appErr.Conflict("Email already exists")
			}
		}
		fields["email"] = email
	}
	if in.Company != nil {
		fields["company"] = models.StringPtr(strings.TrimSpace(*in.Company))
	}
	if in.Phone != nil {
		fields["phone"] = models.StringPtr(strings.TrimSpace(*in.Phone))
	}
	if in.Avatar != nil {
		fields["avatar"] = models.StringPtr(*in.Avatar)
	}

	if err := s.userRepo.Update(ctx, id, fields); err != nil {
		switch {
		case appErr.IsCode(err, appErr.CodeConflict):
			return nil, appErr.Wrap(err, appErr.CodeConflict, "Email already exists")
		case appErr.IsCode(err, appErr.CodeNotFound):
			return nil, appErr.NotFound("User not found")
		}
		return nil, err
	}

	logger.Named("users").Info("profile updated", zap.String("user_id", id), zap.Int("fields", len(fields)))
	return s.Get(ctx, id)
}

func (s *userService) SetAvatar(ctx context.Context, id string, image []byte) (string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	uri, err := AvatarDataURI(image)
	if err != nil {
		return "", err
	}
	if err := s.userRepo.Update(ctx, id, map[string]any{"avatar": uri}); err != nil {
		return "", err
	}
	return uri, nil
}

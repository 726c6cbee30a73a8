package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/repository"
	"gorm.io/gorm"
)

// Identity is what the auth layer learned about the caller.
type Identity struct {
	UID     string
	Name    string
	Email   string
	Picture string
}

type OnlineLister interface {
	Online() []string
}

type UserService interface {
	Ensure(ctx context.Context, id Identity) (*model.User, error)
	Get(ctx context.Context, uid string) (*model.User, error)
	Online(ctx context.Context) []string
}

type userService struct {
	users    repository.UserRepository
	presence OnlineLister
	logger   zerolog.Logger
}

func NewUserService(users repository.UserRepository, presence OnlineLister, logger zerolog.Logger) UserService {
	return &userService{
		users:    users,
		presence: presence,
		logger:   logger.With().Str("component", "user_service").Logger(),
	}
}

// Ensure upserts the directory row for the identity. The provider's profile
// always wins over what is stored.
func (s *userService) Ensure(ctx context.Context, id Identity) (*model.User, error) {
	if id.UID == "" {
		return nil, errors.New("identity without uid")
	}
	u := &model.User{
		ID:       id.UID,
		FullName: displayName(id),
		Email:    id.Email,
	}
	if id.Picture != "" {
		pic := id.Picture
		u.ProfilePic = &pic
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		s.logger.Error().Err(err).Str("user_id", id.UID).Msg("user upsert failed")
		return nil, ErrInternal
	}
	return u, nil
}

func displayName(id Identity) string {
	if name := strings.TrimSpace(id.Name); name != "" {
		return name
	}
	if at := strings.IndexByte(id.Email, '@'); at > 0 {
		return id.Email[:at]
	}
	return id.UID
}

func (s *userService) Get(ctx context.Context, uid string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Str("user_id", uid).Msg("user lookup failed")
		return nil, ErrInternal
	}
	return u, nil
}

func (s *userService) Online(ctx context.Context) []string {
	if s.presence == nil {
		return []string{}
	}
	return s.presence.Online()
}

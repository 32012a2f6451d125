package service

import (
	"errors"

	"github.com/noteduco342/campus-stories-backend/internal/cache"
	"github.com/noteduco342/campus-stories-backend/internal/models"
	"github.com/noteduco342/campus-stories-backend/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")

type UserService struct {
	userRepo  repository.UserRepositoryInterface
	userCache *cache.UserCache
}

func NewUserService(userRepo repository.UserRepositoryInterface, userCache *cache.UserCache) *UserService {
	return &UserService{userRepo: userRepo, userCache: userCache}
}

func (s *UserService) GetByID(id uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Profile returns a user's public profile, served from cache when possible.
func (s *UserService) Profile(id uint) (*models.UserResponse, error) {
	if cached, ok := s.userCache.GetProfile(id); ok {
		return cached, nil
	}

	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	profile := user.ToResponse()
	_ = s.userCache.SetProfile(profile)
	return &profile, nil
}

// Profiles resolves a set of user IDs to public profiles. Cached profiles
// are served directly; the misses are loaded in a single batch read and
// cached on the way out. IDs with no matching user are simply absent from
// the result.
func (s *UserService) Profiles(ids []uint) (map[uint]models.UserResponse, error) {
	out := make(map[uint]models.UserResponse, len(ids))

	var misses []uint
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		if cached, ok := s.userCache.GetProfile(id); ok {
			out[id] = *cached
			continue
		}
		seen := false
		for _, m := range misses {
			if m == id {
				seen = true
				break
			}
		}
		if !seen {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	users, err := s.userRepo.FindByIDs(misses)
	if err != nil {
		return nil, err
	}
	for i := range users {
		profile := users[i].ToResponse()
		out[profile.ID] = profile
		_ = s.userCache.SetProfile(profile)
	}
	return out, nil
}

type UpdateProfileInput struct {
	FullName *string `json:"full_name"`
	Avatar   *string `json:"avatar"`
}

func (s *UserService) UpdateProfile(id uint, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if input.FullName != nil {
		user.FullName = *input.FullName
	}
	if input.Avatar != nil {
		user.Avatar = *input.Avatar
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	_ = s.userCache.InvalidateProfile(id)
	return user, nil
}

package cache

import (
	"fmt"
	"time"

	"github.com/noteduco342/campus-stories-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const ProfileTTL = 5 * time.Minute

// UserCache caches the public profiles embedded in story group headers.
type UserCache struct {
	redis *RedisCache
}

// NewUserCache creates a new user cache
func NewUserCache(redis *RedisCache) *UserCache {
	return &UserCache{redis: redis}
}

func profileKey(userID uint) string {
	return fmt.Sprintf("profile:%d", userID)
}

// GetProfile retrieves a cached public profile
func (uc *UserCache) GetProfile(userID uint) (*models.UserResponse, bool) {
	if uc == nil || uc.redis == nil {
		return nil, false
	}
	data, err := uc.redis.Get(profileKey(userID))
	if err != nil || data == nil {
		return nil, false
	}

	var profile models.UserResponse
	if err := msgpack.Unmarshal(data, &profile); err != nil {
		return nil, false
	}
	return &profile, true
}

// SetProfile caches a public profile
func (uc *UserCache) SetProfile(profile models.UserResponse) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(profile)
	if err != nil {
		return err
	}
	return uc.redis.Set(profileKey(profile.ID), data, ProfileTTL)
}

// InvalidateProfile removes a profile from cache (after a profile update)
func (uc *UserCache) InvalidateProfile(userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	return uc.redis.Delete(profileKey(userID))
}

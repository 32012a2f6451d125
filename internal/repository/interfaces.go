package repository

import (
	"time"

	"github.com/noteduco342/campus-stories-backend/internal/models"
)

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	FindByEmail(email string) (*models.User, error)
	FindByUsername(username string) (*models.User, error)
	FindByID(id uint) (*models.User, error)
	FindByIDs(ids []uint) ([]models.User, error)
	Update(user *models.User) error
}

// RefreshTokenRepositoryInterface defines the contract for refresh token repository operations
type RefreshTokenRepositoryInterface interface {
	Create(token *models.RefreshToken) error
	FindValidByHash(tokenHash string) (*models.RefreshToken, error)
	RevokeByHash(tokenHash string) error
}

// StoryRepositoryInterface defines the contract for story repository operations.
// FindActive is the aggregator's read: stories with expiry after now, views,
// likes and replies preloaded, ordered by creation time ascending.
// MarkViewed must be an upsert that ignores the (story, viewer) uniqueness
// conflict; CreateLike/DeleteLike rely on the (story, user) constraint rather
// than client-side locking.
type StoryRepositoryInterface interface {
	Create(story *models.Story) error
	FindByID(id uint) (*models.Story, error)
	FindActive(now time.Time) ([]models.Story, error)
	Delete(id uint) error

	MarkViewed(storyID, viewerID uint) error
	CreateLike(storyID, userID uint) error
	DeleteLike(storyID, userID uint) error
	HasLiked(storyID, userID uint) (bool, error)

	CreateReply(reply *models.StoryReply) error

	ViewersOf(storyID uint) ([]models.StoryView, error)
	LikersOf(storyID uint) ([]models.StoryLike, error)

	PurgeExpired(olderThan time.Duration) (int64, error)
}

package repository

import (
	"time"

	"github.com/noteduco342/campus-stories-backend/internal/models"
	"gorm.io/gorm"
)

type StoryRepository struct {
	db *gorm.DB
}

func NewStoryRepository(db *gorm.DB) *StoryRepository {
	return &StoryRepository{db: db}
}

func (r *StoryRepository) Create(story *models.Story) error {
	return r.db.Create(story).Error
}

func (r *StoryRepository) FindByID(id uint) (*models.Story, error) {
	var story models.Story
	err := r.db.Preload("Owner").Preload("Views").Preload("Likes").Preload("Replies").
		First(&story, id).Error
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *StoryRepository) FindActive(now time.Time) ([]models.Story, error) {
	var stories []models.Story
	err := r.db.Preload("Owner").Preload("Views").Preload("Likes").Preload("Replies").
		Where("expires_at > ?", now).
		Order("created_at ASC").
		Find(&stories).Error
	return stories, err
}

func (r *StoryRepository) Delete(id uint) error {
	// Engagement rows go with the story; views and likes are facts about
	// content that no longer exists.
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", id).Delete(&models.StoryView{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.StoryLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.StoryReply{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Story{}, id).Error
	})
}

// MarkViewed is idempotent: the composite primary key makes a second marking
// for the same (story, viewer) pair a no-op.
func (r *StoryRepository) MarkViewed(storyID, viewerID uint) error {
	return r.db.Exec(`
		INSERT INTO story_views (story_id, viewer_id, created_at)
		VALUES (?, ?, NOW())
		ON CONFLICT (story_id, viewer_id) DO NOTHING
	`, storyID, viewerID).Error
}

func (r *StoryRepository) CreateLike(storyID, userID uint) error {
	return r.db.Exec(`
		INSERT INTO story_likes (story_id, user_id, created_at)
		VALUES (?, ?, NOW())
		ON CONFLICT (story_id, user_id) DO NOTHING
	`, storyID, userID).Error
}

func (r *StoryRepository) DeleteLike(storyID, userID uint) error {
	return r.db.Where("story_id = ? AND user_id = ?", storyID, userID).
		Delete(&models.StoryLike{}).Error
}

func (r *StoryRepository) HasLiked(storyID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.StoryLike{}).
		Where("story_id = ? AND user_id = ?", storyID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *StoryRepository) CreateReply(reply *models.StoryReply) error {
	return r.db.Create(reply).Error
}

func (r *StoryRepository) ViewersOf(storyID uint) ([]models.StoryView, error) {
	var views []models.StoryView
	err := r.db.Where("story_id = ?", storyID).Order("created_at ASC").Find(&views).Error
	return views, err
}

func (r *StoryRepository) LikersOf(storyID uint) ([]models.StoryLike, error) {
	var likes []models.StoryLike
	err := r.db.Where("story_id = ?", storyID).Order("created_at ASC").Find(&likes).Error
	return likes, err
}

// PurgeExpired deletes stories whose expiry passed more than olderThan ago,
// along with their engagement rows. Aggregation never sees expired rows either
// way; this only bounds table growth.
func (r *StoryRepository) PurgeExpired(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	var ids []uint
	if err := r.db.Model(&models.Story{}).
		Where("expires_at < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id IN ?", ids).Delete(&models.StoryView{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id IN ?", ids).Delete(&models.StoryLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id IN ?", ids).Delete(&models.StoryReply{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Story{}, ids).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

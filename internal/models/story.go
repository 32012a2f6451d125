package models

import (
	"time"
)

type MediaKind string

const (
	ImageStory MediaKind = "image"
	VideoStory MediaKind = "video"
	TextStory  MediaKind = "text"
)

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityCampus    Visibility = "campus"
)

// StoryTTL is the fixed lifetime of a story from creation.
const StoryTTL = 24 * time.Hour

type Story struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	OwnerID uint `gorm:"not null;index" json:"owner_id"`
	Owner   User `gorm:"foreignKey:OwnerID" json:"-"`

	MediaKey  string    `gorm:"type:varchar(255);not null" json:"-"`
	MediaURL  string    `gorm:"type:text;not null" json:"media_url"`
	MediaKind MediaKind `gorm:"type:varchar(20);not null" json:"media_kind"`

	Caption    string     `gorm:"type:text" json:"caption"`
	Visibility Visibility `gorm:"type:varchar(20);not null;default:'public'" json:"visibility"`

	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`

	Views   []StoryView  `gorm:"foreignKey:StoryID" json:"-"`
	Likes   []StoryLike  `gorm:"foreignKey:StoryID" json:"-"`
	Replies []StoryReply `gorm:"foreignKey:StoryID" json:"-"`
}

// Active reports whether the story is still inside its lifetime window.
func (s *Story) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// ViewedBy reports whether the given viewer has a view row loaded for this story.
func (s *Story) ViewedBy(viewerID uint) bool {
	for i := range s.Views {
		if s.Views[i].ViewerID == viewerID {
			return true
		}
	}
	return false
}

// LikedBy reports whether the given user has a like row loaded for this story.
func (s *Story) LikedBy(userID uint) bool {
	for i := range s.Likes {
		if s.Likes[i].UserID == userID {
			return true
		}
	}
	return false
}

// StoryView records that a viewer consumed a story. At most one row per
// (story, viewer) pair; repeated marking is a no-op at the store layer.
type StoryView struct {
	StoryID   uint      `gorm:"primaryKey" json:"story_id"`
	ViewerID  uint      `gorm:"primaryKey" json:"viewer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StoryLike is a boolean engagement flag, unique per (story, user).
// Unlike is modelled as row deletion, never as an update.
type StoryLike struct {
	StoryID   uint      `gorm:"primaryKey" json:"story_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StoryReply is a free-form message addressed to a story. Append-only.
type StoryReply struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	StoryID  uint   `gorm:"not null;index" json:"story_id"`
	SenderID uint   `gorm:"not null;index" json:"sender_id"`
	Message  string `gorm:"type:text;not null" json:"message"`
}

type StoryResponse struct {
	ID         uint       `json:"id"`
	OwnerID    uint       `json:"owner_id"`
	MediaURL   string     `json:"media_url"`
	MediaKind  MediaKind  `json:"media_kind"`
	Caption    string     `json:"caption"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ViewCount  int        `json:"view_count"`
	LikeCount  int        `json:"like_count"`
	Viewed     bool       `json:"viewed"`
	Liked      bool       `json:"liked"`
}

// ToResponse shapes the story for a specific viewer.
func (s *Story) ToResponse(viewerID uint) StoryResponse {
	return StoryResponse{
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		MediaURL:   s.MediaURL,
		MediaKind:  s.MediaKind,
		Caption:    s.Caption,
		Visibility: s.Visibility,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		ViewCount:  len(s.Views),
		LikeCount:  len(s.Likes),
		Viewed:     s.ViewedBy(viewerID),
		Liked:      s.LikedBy(viewerID),
	}
}

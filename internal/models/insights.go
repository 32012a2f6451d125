package models

// StoryInsights is the owner-only engagement breakdown for one story.
type StoryInsights struct {
	StoryID   uint   `json:"story_id"`
	ViewerIDs []uint `json:"viewer_ids"`
	LikerIDs  []uint `json:"liker_ids"`
	ViewCount int    `json:"view_count"`
	LikeCount int    `json:"like_count"`
}

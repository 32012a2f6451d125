package models

import "time"

// StoryGroup is a derived aggregate of one author's active stories.
// It is never persisted; the aggregator recomputes it on every resync.
type StoryGroup struct {
	OwnerID uint         `json:"owner_id"`
	Owner   UserResponse `json:"owner"`

	// Stories ordered by creation time ascending.
	Stories []Story `json:"-"`

	HasUnseen bool      `json:"has_unseen"`
	LatestAt  time.Time `json:"latest_at"`
}

// RecomputeUnseen refreshes HasUnseen for the given viewer from the
// contained stories. Returns the new value.
func (g *StoryGroup) RecomputeUnseen(viewerID uint) bool {
	g.HasUnseen = false
	for i := range g.Stories {
		if !g.Stories[i].ViewedBy(viewerID) {
			g.HasUnseen = true
			break
		}
	}
	return g.HasUnseen
}

// FirstUnseenIndex returns the index of the first story without a view by
// the given viewer, or 0 if every story has been seen.
func (g *StoryGroup) FirstUnseenIndex(viewerID uint) int {
	for i := range g.Stories {
		if !g.Stories[i].ViewedBy(viewerID) {
			return i
		}
	}
	return 0
}

type StoryGroupResponse struct {
	OwnerID   uint            `json:"owner_id"`
	Owner     UserResponse    `json:"owner"`
	Stories   []StoryResponse `json:"stories"`
	HasUnseen bool            `json:"has_unseen"`
	LatestAt  time.Time       `json:"latest_at"`
}

func (g *StoryGroup) ToResponse(viewerID uint) StoryGroupResponse {
	stories := make([]StoryResponse, len(g.Stories))
	for i := range g.Stories {
		stories[i] = g.Stories[i].ToResponse(viewerID)
	}
	return StoryGroupResponse{
		OwnerID:   g.OwnerID,
		Owner:     g.Owner,
		Stories:   stories,
		HasUnseen: g.HasUnseen,
		LatestAt:  g.LatestAt,
	}
}

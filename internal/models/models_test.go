package models

import (
	"testing"
	"time"
)

func TestStoryActive(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"Expires in the future", now.Add(time.Hour), true},
		{"Expired an hour ago", now.Add(-time.Hour), false},
		{"Expires exactly now", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Story{ExpiresAt: tt.expiresAt}
			if got := s.Active(now); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStoryViewedBy(t *testing.T) {
	s := Story{
		ID: 1,
		Views: []StoryView{
			{StoryID: 1, ViewerID: 7},
			{StoryID: 1, ViewerID: 9},
		},
	}

	if !s.ViewedBy(7) {
		t.Errorf("ViewedBy(7) = false, want true")
	}
	if s.ViewedBy(8) {
		t.Errorf("ViewedBy(8) = true, want false")
	}
}

func TestStoryGroupRecomputeUnseen(t *testing.T) {
	viewer := uint(3)
	group := StoryGroup{
		OwnerID: 1,
		Stories: []Story{
			{ID: 1, Views: []StoryView{{StoryID: 1, ViewerID: viewer}}},
			{ID: 2},
		},
	}

	if !group.RecomputeUnseen(viewer) {
		t.Fatalf("RecomputeUnseen = false with one unseen story")
	}

	group.Stories[1].Views = append(group.Stories[1].Views, StoryView{StoryID: 2, ViewerID: viewer})
	if group.RecomputeUnseen(viewer) {
		t.Fatalf("RecomputeUnseen = true after all stories viewed")
	}
}

func TestStoryGroupFirstUnseenIndex(t *testing.T) {
	viewer := uint(3)

	tests := []struct {
		name    string
		stories []Story
		want    int
	}{
		{
			name: "First story unseen",
			stories: []Story{
				{ID: 1},
				{ID: 2},
			},
			want: 0,
		},
		{
			name: "Second story unseen",
			stories: []Story{
				{ID: 1, Views: []StoryView{{StoryID: 1, ViewerID: viewer}}},
				{ID: 2},
			},
			want: 1,
		},
		{
			name: "All seen falls back to zero",
			stories: []Story{
				{ID: 1, Views: []StoryView{{StoryID: 1, ViewerID: viewer}}},
				{ID: 2, Views: []StoryView{{StoryID: 2, ViewerID: viewer}}},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := StoryGroup{Stories: tt.stories}
			if got := g.FirstUnseenIndex(viewer); got != tt.want {
				t.Errorf("FirstUnseenIndex = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStoryToResponseCounts(t *testing.T) {
	s := Story{
		ID:      5,
		OwnerID: 1,
		Views:   []StoryView{{StoryID: 5, ViewerID: 2}, {StoryID: 5, ViewerID: 3}},
		Likes:   []StoryLike{{StoryID: 5, UserID: 2}},
	}

	resp := s.ToResponse(2)
	if resp.ViewCount != 2 || resp.LikeCount != 1 {
		t.Errorf("counts = %d views %d likes, want 2/1", resp.ViewCount, resp.LikeCount)
	}
	if !resp.Viewed || !resp.Liked {
		t.Errorf("viewer flags = viewed %v liked %v, want true/true", resp.Viewed, resp.Liked)
	}
}

package service

import (
	"errors"
	"sync"
	"time"

	"github.com/noteduco342/campus-stories-backend/internal/models"
)

// MockStoryRepository is an in-memory story store for testing. Failure modes
// are injected per method through the fail* flags.
type MockStoryRepository struct {
	mu      sync.Mutex
	nextID  uint
	stories map[uint]*models.Story
	views   map[[2]uint]models.StoryView
	likes   map[[2]uint]models.StoryLike
	replies []models.StoryReply

	failFindActive bool
	failCreate     bool
	failMarkViewed bool
	failLike       bool
	failDeleteLike bool

	// findActiveDelay makes reads slow so tests can overlap refreshes.
	findActiveDelay time.Duration
}

func NewMockStoryRepository() *MockStoryRepository {
	return &MockStoryRepository{
		nextID:  1,
		stories: make(map[uint]*models.Story),
		views:   make(map[[2]uint]models.StoryView),
		likes:   make(map[[2]uint]models.StoryLike),
	}
}

func (m *MockStoryRepository) Create(story *models.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errors.New("insert failed")
	}
	story.ID = m.nextID
	m.nextID++
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now().UTC()
	}
	copied := *story
	m.stories[story.ID] = &copied
	return nil
}

func (m *MockStoryRepository) FindByID(id uint) (*models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	story, ok := m.stories[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *story
	m.attachEngagementLocked(&copied)
	return &copied, nil
}

func (m *MockStoryRepository) FindActive(now time.Time) ([]models.Story, error) {
	m.mu.Lock()
	fail := m.failFindActive
	delay := m.findActiveDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, errors.New("connection refused")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Story
	for _, story := range m.stories {
		if !story.Active(now) {
			continue
		}
		copied := *story
		m.attachEngagementLocked(&copied)
		out = append(out, copied)
	}
	// created_at ascending, matching the repository's read order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (m *MockStoryRepository) attachEngagementLocked(story *models.Story) {
	story.Views = nil
	story.Likes = nil
	for key, view := range m.views {
		if key[0] == story.ID {
			story.Views = append(story.Views, view)
		}
	}
	for key, like := range m.likes {
		if key[0] == story.ID {
			story.Likes = append(story.Likes, like)
		}
	}
}

func (m *MockStoryRepository) Delete(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stories[id]; !ok {
		return errors.New("record not found")
	}
	delete(m.stories, id)
	for key := range m.views {
		if key[0] == id {
			delete(m.views, key)
		}
	}
	for key := range m.likes {
		if key[0] == id {
			delete(m.likes, key)
		}
	}
	return nil
}

func (m *MockStoryRepository) MarkViewed(storyID, viewerID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarkViewed {
		return errors.New("insert failed")
	}
	key := [2]uint{storyID, viewerID}
	if _, ok := m.views[key]; ok {
		return nil
	}
	m.views[key] = models.StoryView{StoryID: storyID, ViewerID: viewerID, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MockStoryRepository) CreateLike(storyID, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLike {
		return errors.New("insert failed")
	}
	key := [2]uint{storyID, userID}
	if _, ok := m.likes[key]; ok {
		return nil
	}
	m.likes[key] = models.StoryLike{StoryID: storyID, UserID: userID, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MockStoryRepository) DeleteLike(storyID, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeleteLike {
		return errors.New("delete failed")
	}
	delete(m.likes, [2]uint{storyID, userID})
	return nil
}

func (m *MockStoryRepository) HasLiked(storyID, userID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.likes[[2]uint{storyID, userID}]
	return ok, nil
}

func (m *MockStoryRepository) CreateReply(reply *models.StoryReply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply.ID = m.nextID
	m.nextID++
	reply.CreatedAt = time.Now().UTC()
	m.replies = append(m.replies, *reply)
	return nil
}

func (m *MockStoryRepository) ViewersOf(storyID uint) ([]models.StoryView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StoryView
	for key, view := range m.views {
		if key[0] == storyID {
			out = append(out, view)
		}
	}
	return out, nil
}

func (m *MockStoryRepository) LikersOf(storyID uint) ([]models.StoryLike, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StoryLike
	for key, like := range m.likes {
		if key[0] == storyID {
			out = append(out, like)
		}
	}
	return out, nil
}

func (m *MockStoryRepository) PurgeExpired(olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var purged int64
	for id, story := range m.stories {
		if story.ExpiresAt.Before(cutoff) {
			delete(m.stories, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MockStoryRepository) setFindActiveDelay(d time.Duration) {
	m.mu.Lock()
	m.findActiveDelay = d
	m.mu.Unlock()
}

// seedStory inserts a story directly, bypassing the service layer.
func (m *MockStoryRepository) seedStory(ownerID uint, createdAt time.Time, ttl time.Duration) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.stories[id] = &models.Story{
		ID:         id,
		OwnerID:    ownerID,
		MediaURL:   "http://localhost/media/test",
		MediaKind:  models.ImageStory,
		Visibility: models.VisibilityPublic,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(ttl),
	}
	return id
}

package service

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noteduco342/campus-stories-backend/internal/models"
	"github.com/noteduco342/campus-stories-backend/internal/notify"
	"github.com/noteduco342/campus-stories-backend/internal/repository"
)

// FeedSession holds one viewer's aggregated story state. It is created on
// sign-in, discarded on sign-out, and never shared between viewers.
//
// Refresh is safe to call while a previous call is still in flight: every
// call takes a monotonically increasing sequence number and only the result
// of the most recently started refresh is applied ("latest wins").
type FeedSession struct {
	viewerID  uint
	storyRepo repository.StoryRepositoryInterface
	broker    *notify.Broker

	seq uint64

	mu      sync.Mutex
	own     []models.Story
	groups  []models.StoryGroup
	loading bool
	lastErr error
	sub     *notify.Subscription
}

func NewFeedSession(viewerID uint, storyRepo repository.StoryRepositoryInterface, broker *notify.Broker) *FeedSession {
	return &FeedSession{
		viewerID:  viewerID,
		storyRepo: storyRepo,
		broker:    broker,
	}
}

// Start subscribes the session to story change events. Every event triggers
// a full resync; incremental patching would not preserve the grouping and
// sort invariants.
func (s *FeedSession) Start() {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return
	}
	sub := s.broker.Subscribe(notify.KindStory, notify.OpInsert, notify.OpDelete)
	s.sub = sub
	s.mu.Unlock()

	go func() {
		for range sub.C {
			if _, _, err := s.Refresh(time.Now()); err != nil {
				log.Printf("feed resync failed for viewer %d: %v", s.viewerID, err)
			}
		}
	}()
}

// Close cancels the change subscription. The session must not be used after.
func (s *FeedSession) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

func (s *FeedSession) ViewerID() uint { return s.viewerID }

// Refresh re-reads the active story set and rebuilds the grouped view.
// On a store failure the session exposes an empty result and records the
// error; the caller may retry with backoff.
func (s *FeedSession) Refresh(now time.Time) ([]models.Story, []models.StoryGroup, error) {
	seq := atomic.AddUint64(&s.seq, 1)

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	stories, err := s.storyRepo.FindActive(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != atomic.LoadUint64(&s.seq) {
		// A newer refresh started while this one was reading; discard.
		return s.own, s.groups, nil
	}

	if err != nil {
		s.own = nil
		s.groups = nil
		s.loading = false
		s.lastErr = &TransientStoreError{Op: "refresh", Err: err}
		return nil, nil, s.lastErr
	}

	own, groups := buildGroups(stories, s.viewerID)
	s.own = own
	s.groups = groups
	s.loading = false
	s.lastErr = nil
	return own, groups, nil
}

// Own returns the viewer's own active stories in chronological order.
func (s *FeedSession) Own() []models.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.own
}

// Groups returns the grouped view of everyone else's active stories.
func (s *FeedSession) Groups() []models.StoryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups
}

func (s *FeedSession) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *FeedSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ApplyViewed optimistically marks a story viewed in the already-computed
// grouped state and recomputes that group's unseen flag, without waiting for
// a full resync. Group order is deliberately left alone; the next resync
// re-sorts.
func (s *FeedSession) ApplyViewed(storyID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for gi := range s.groups {
		group := &s.groups[gi]
		for si := range group.Stories {
			story := &group.Stories[si]
			if story.ID != storyID {
				continue
			}
			if !story.ViewedBy(s.viewerID) {
				story.Views = append(story.Views, models.StoryView{
					StoryID:   storyID,
					ViewerID:  s.viewerID,
					CreatedAt: time.Now().UTC(),
				})
			}
			group.RecomputeUnseen(s.viewerID)
			return
		}
	}
}

// buildGroups partitions a creation-ordered active story list into the
// viewer's own stories and per-owner groups sorted for display: groups with
// unseen stories first, then by latest story time descending. The sort is
// stable and buckets are formed in first-appearance order, so ties keep a
// deterministic relative order between refreshes.
func buildGroups(stories []models.Story, viewerID uint) ([]models.Story, []models.StoryGroup) {
	var own []models.Story
	var order []uint
	buckets := make(map[uint]*models.StoryGroup)

	for _, story := range stories {
		if story.OwnerID == viewerID {
			own = append(own, story)
			continue
		}
		group, ok := buckets[story.OwnerID]
		if !ok {
			group = &models.StoryGroup{
				OwnerID: story.OwnerID,
				Owner:   story.Owner.ToResponse(),
			}
			buckets[story.OwnerID] = group
			order = append(order, story.OwnerID)
		}
		group.Stories = append(group.Stories, story)
		if story.CreatedAt.After(group.LatestAt) {
			group.LatestAt = story.CreatedAt
		}
	}

	groups := make([]models.StoryGroup, 0, len(order))
	for _, ownerID := range order {
		group := buckets[ownerID]
		group.RecomputeUnseen(viewerID)
		groups = append(groups, *group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].HasUnseen != groups[j].HasUnseen {
			return groups[i].HasUnseen
		}
		return groups[i].LatestAt.After(groups[j].LatestAt)
	})

	return own, groups
}

// FeedSessions tracks the per-viewer sessions for the process. Sessions are
// created lazily on first use and dropped on sign-out.
type FeedSessions struct {
	storyRepo repository.StoryRepositoryInterface
	broker    *notify.Broker

	mu       sync.Mutex
	sessions map[uint]*FeedSession
}

func NewFeedSessions(storyRepo repository.StoryRepositoryInterface, broker *notify.Broker) *FeedSessions {
	return &FeedSessions{
		storyRepo: storyRepo,
		broker:    broker,
		sessions:  make(map[uint]*FeedSession),
	}
}

// Get returns the viewer's session, creating and starting one if needed.
func (m *FeedSessions) Get(viewerID uint) *FeedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[viewerID]; ok {
		return session
	}
	session := NewFeedSession(viewerID, m.storyRepo, m.broker)
	session.Start()
	m.sessions[viewerID] = session
	return session
}

// Peek returns the viewer's session without creating one.
func (m *FeedSessions) Peek(viewerID uint) *FeedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[viewerID]
}

// Drop closes and forgets the viewer's session (sign-out).
func (m *FeedSessions) Drop(viewerID uint) {
	m.mu.Lock()
	session := m.sessions[viewerID]
	delete(m.sessions, viewerID)
	m.mu.Unlock()
	if session != nil {
		session.Close()
	}
}

package service

import (
	"errors"
	"testing"
	"time"

	"github.com/noteduco342/campus-stories-backend/internal/notify"
)

func TestRefreshFiltersExpired(t *testing.T) {
	repo := NewMockStoryRepository()
	now := time.Now().UTC()
	activeID := repo.seedStory(1, now.Add(-time.Hour), 24*time.Hour)
	repo.seedStory(1, now.Add(-48*time.Hour), 24*time.Hour) // expired

	session := NewFeedSession(2, repo, notify.NewBroker())
	_, groups, err := session.Refresh(now)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Stories) != 1 {
		t.Fatalf("groups = %+v, want one group with one active story", groups)
	}
	if groups[0].Stories[0].ID != activeID {
		t.Fatalf("story = %d, want %d", groups[0].Stories[0].ID, activeID)
	}
}

func TestRefreshPartitionsOwnStories(t *testing.T) {
	repo := NewMockStoryRepository()
	now := time.Now().UTC()
	mine := repo.seedStory(2, now.Add(-time.Hour), 24*time.Hour)
	repo.seedStory(1, now.Add(-time.Hour), 24*time.Hour)

	session := NewFeedSession(2, repo, notify.NewBroker())
	own, groups, err := session.Refresh(now)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(own) != 1 || own[0].ID != mine {
		t.Fatalf("own = %+v, want just story %d", own, mine)
	}
	for _, group := range groups {
		if group.OwnerID == 2 {
			t.Fatalf("viewer's own stories leaked into the grouped feed")
		}
	}
}

func TestGroupOrderingUnseenFirst(t *testing.T) {
	repo := NewMockStoryRepository()
	now := time.Now().UTC()

	// Owner 1 posted most recently but the viewer has seen everything of theirs.
	seenID := repo.seedStory(1, now.Add(-time.Minute), 24*time.Hour)
	repo.seedStory(3, now.Add(-2*time.Hour), 24*time.Hour)
	repo.seedStory(4, now.Add(-time.Hour), 24*time.Hour)
	if err := repo.MarkViewed(seenID, 2); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}

	session := NewFeedSession(2, repo, notify.NewBroker())
	_, groups, err := session.Refresh(now)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}

	// Unseen groups first: 4 (newer) then 3, the fully seen owner 1 last.
	wantOrder := []uint{4, 3, 1}
	for i, want := range wantOrder {
		if groups[i].OwnerID != want {
			t.Fatalf("group[%d].OwnerID = %d, want %d", i, groups[i].OwnerID, want)
		}
	}
	if groups[0].HasUnseen != true || groups[2].HasUnseen != false {
		t.Fatalf("unseen flags wrong: %+v", groups)
	}
}

func TestRefreshFailureYieldsEmptyAndRecordsError(t *testing.T) {
	repo := NewMockStoryRepository()
	repo.seedStory(1, time.Now().UTC(), 24*time.Hour)
	repo.failFindActive = true

	session := NewFeedSession(2, repo, notify.NewBroker())
	own, groups, err := session.Refresh(time.Now())
	if err == nil {
		t.Fatalf("expected a refresh error")
	}
	if len(own) != 0 || len(groups) != 0 {
		t.Fatalf("failed refresh exposed non-empty state")
	}

	var storeErr *TransientStoreError
	if !errors.As(session.LastError(), &storeErr) {
		t.Fatalf("LastError = %v, want TransientStoreError", session.LastError())
	}

	repo.failFindActive = false
	if _, _, err := session.Refresh(time.Now()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if session.LastError() != nil {
		t.Fatalf("LastError not cleared after a successful retry")
	}
	if len(session.Groups()) != 1 {
		t.Fatalf("retry did not repopulate the feed")
	}
}

func TestConcurrentRefreshLatestWins(t *testing.T) {
	repo := NewMockStoryRepository()
	repo.seedStory(1, time.Now().UTC(), 24*time.Hour)
	repo.setFindActiveDelay(30 * time.Millisecond)

	session := NewFeedSession(2, repo, notify.NewBroker())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = session.Refresh(time.Now())
	}()

	// Let the slow refresh start its read, then run a newer one to completion.
	time.Sleep(10 * time.Millisecond)
	repo.setFindActiveDelay(0)
	if _, _, err := session.Refresh(time.Now()); err != nil {
		t.Fatalf("newer refresh: %v", err)
	}
	<-done

	// The stale first refresh must not have clobbered the newer result.
	if len(session.Groups()) != 1 {
		t.Fatalf("groups = %d after overlapping refreshes, want 1", len(session.Groups()))
	}
	if session.Loading() {
		t.Fatalf("session still loading after both refreshes returned")
	}
}

func TestApplyViewedPatchesWithoutResort(t *testing.T) {
	repo := NewMockStoryRepository()
	now := time.Now().UTC()
	storyID := repo.seedStory(1, now.Add(-time.Hour), 24*time.Hour)
	repo.seedStory(3, now.Add(-2*time.Hour), 24*time.Hour)

	session := NewFeedSession(2, repo, notify.NewBroker())
	if _, _, err := session.Refresh(now); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	before := make([]uint, 0)
	for _, group := range session.Groups() {
		before = append(before, group.OwnerID)
	}

	session.ApplyViewed(storyID)

	groups := session.Groups()
	for i, group := range groups {
		if group.OwnerID != before[i] {
			t.Fatalf("ApplyViewed reordered the groups")
		}
		if group.OwnerID == 1 {
			if group.HasUnseen {
				t.Fatalf("unseen flag not recomputed after the patch")
			}
			if !group.Stories[0].ViewedBy(2) {
				t.Fatalf("view not patched into the story")
			}
		}
	}
}

func TestApplyViewedIsIdempotent(t *testing.T) {
	repo := NewMockStoryRepository()
	now := time.Now().UTC()
	storyID := repo.seedStory(1, now.Add(-time.Hour), 24*time.Hour)

	session := NewFeedSession(2, repo, notify.NewBroker())
	if _, _, err := session.Refresh(now); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	session.ApplyViewed(storyID)
	session.ApplyViewed(storyID)

	groups := session.Groups()
	if len(groups[0].Stories[0].Views) != 1 {
		t.Fatalf("patched view rows = %d, want 1", len(groups[0].Stories[0].Views))
	}
}

func TestSessionResyncsOnBrokerEvents(t *testing.T) {
	repo := NewMockStoryRepository()
	broker := notify.NewBroker()
	now := time.Now().UTC()

	session := NewFeedSession(2, repo, broker)
	session.Start()
	defer session.Close()

	storyID := repo.seedStory(1, now, 24*time.Hour)
	broker.Publish(notify.Event{Kind: notify.KindStory, Op: notify.OpInsert, StoryID: storyID, OwnerID: 1})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(session.Groups()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never resynced after the broker event")
}

func TestFeedSessionsLifecycle(t *testing.T) {
	repo := NewMockStoryRepository()
	manager := NewFeedSessions(repo, notify.NewBroker())

	if manager.Peek(2) != nil {
		t.Fatalf("Peek created a session")
	}

	session := manager.Get(2)
	if session == nil || manager.Peek(2) != session {
		t.Fatalf("Get did not register the session")
	}
	if manager.Get(2) != session {
		t.Fatalf("second Get returned a different session")
	}

	manager.Drop(2)
	if manager.Peek(2) != nil {
		t.Fatalf("session survived Drop")
	}
}

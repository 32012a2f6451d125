package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/noteduco342/campus-stories-backend/internal/cache"
	"github.com/noteduco342/campus-stories-backend/internal/models"
	"github.com/noteduco342/campus-stories-backend/internal/notify"
	"github.com/noteduco342/campus-stories-backend/internal/repository"
	"github.com/noteduco342/campus-stories-backend/internal/storage"
	"github.com/noteduco342/campus-stories-backend/internal/validation"
)

type StoryService struct {
	storyRepo    repository.StoryRepositoryInterface
	s3           storage.BlobStoreInterface
	broker       *notify.Broker
	sessions     *FeedSessions
	insightCache *cache.InsightCache
}

func NewStoryService(storyRepo repository.StoryRepositoryInterface, s3 storage.BlobStoreInterface, broker *notify.Broker, sessions *FeedSessions, insightCache *cache.InsightCache) *StoryService {
	return &StoryService{
		storyRepo:    storyRepo,
		s3:           s3,
		broker:       broker,
		sessions:     sessions,
		insightCache: insightCache,
	}
}

// UploadFile is one staged media blob in a publish batch.
type UploadFile struct {
	Name        string
	ContentType string
	MediaKind   models.MediaKind
	Data        []byte
}

type uploadedBlob struct {
	key string
	url string
}

// Publish validates, processes and uploads a batch of media files, then
// inserts one story per file with a 24h expiry. All uploads run concurrently;
// any failure fails the whole batch. Blobs that finished uploading before the
// failing one are not removed.
//
// Caption policy: only the first file of the batch carries the caption, the
// rest get an empty one.
func (s *StoryService) Publish(ctx context.Context, ownerID uint, files []UploadFile, caption string, visibility models.Visibility) ([]uint, error) {
	if ownerID == 0 {
		return nil, &AuthorizationError{Action: "publish stories"}
	}
	if len(files) == 0 {
		return nil, &ValidationError{Field: "files", Reason: "at least one file is required"}
	}
	if len(files) > validation.MaxBatchFiles {
		return nil, &ValidationError{Field: "files", Reason: fmt.Sprintf("at most %d files per batch", validation.MaxBatchFiles)}
	}
	if !validation.ValidVisibility(string(visibility)) {
		return nil, &ValidationError{Field: "visibility", Reason: "must be public, followers or campus"}
	}
	for i := range files {
		if !validation.ValidMediaKind(string(files[i].MediaKind)) {
			return nil, &ValidationError{Field: "files", Reason: "unknown media kind"}
		}
		if len(files[i].Data) == 0 {
			return nil, &ValidationError{Field: "files", Reason: "empty file"}
		}
	}
	caption = validation.TrimAndLimit(caption, validation.MaxCaptionLength())
	if s.s3 == nil {
		return nil, ErrStorageNotConfigured
	}

	blobs := make([]uploadedBlob, len(files))
	uploadErrs := make([]error, len(files))

	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			blobs[i], uploadErrs[i] = s.uploadOne(ctx, ownerID, files[i])
		}(i)
	}
	wg.Wait()

	for _, err := range uploadErrs {
		if err != nil {
			return nil, fmt.Errorf("upload batch: %w", err)
		}
	}

	now := time.Now().UTC()
	ids := make([]uint, 0, len(files))
	for i := range files {
		fileCaption := ""
		if i == 0 {
			fileCaption = caption
		}
		story := &models.Story{
			OwnerID:    ownerID,
			MediaKey:   blobs[i].key,
			MediaURL:   blobs[i].url,
			MediaKind:  files[i].MediaKind,
			Caption:    fileCaption,
			Visibility: visibility,
			ExpiresAt:  now.Add(models.StoryTTL),
		}
		if err := s.storyRepo.Create(story); err != nil {
			return ids, &TransientStoreError{Op: "create story", Err: err}
		}
		ids = append(ids, story.ID)
		s.broker.Publish(notify.Event{Kind: notify.KindStory, Op: notify.OpInsert, StoryID: story.ID, OwnerID: ownerID})
	}
	return ids, nil
}

func (s *StoryService) uploadOne(ctx context.Context, ownerID uint, file UploadFile) (uploadedBlob, error) {
	data := file.Data
	contentType := file.ContentType

	// Only images are transformed; video and text pass through unchanged.
	if file.MediaKind == models.ImageStory {
		processed, ct, _, err := storage.ProcessStoryImage(bytes.NewReader(data), storage.DefaultStoryImageOptions())
		if err != nil {
			return uploadedBlob{}, fmt.Errorf("process %s: %w", file.Name, err)
		}
		data = processed
		contentType = ct
	}

	ext := storage.ExtensionForContentType(contentType)
	if ext == "" {
		ext = strings.ToLower(extFromName(file.Name))
	}
	key := fmt.Sprintf("stories/%d/%s%s", ownerID, uuid.NewString(), ext)

	if _, err := s.s3.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return uploadedBlob{}, fmt.Errorf("upload %s: %w", file.Name, err)
	}
	return uploadedBlob{key: key, url: s.s3.PublicURL(key)}, nil
}

func extFromName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		return name[i:]
	}
	return ""
}

// Delete removes a story after an owner check. Engagement rows go with it;
// the stored blob is deleted best-effort.
func (s *StoryService) Delete(ctx context.Context, storyID, requesterID uint) error {
	story, err := s.storyRepo.FindByID(storyID)
	if err != nil {
		return &TransientStoreError{Op: "load story", Err: err}
	}
	if story.OwnerID != requesterID {
		return &AuthorizationError{Action: "delete this story"}
	}

	if err := s.storyRepo.Delete(storyID); err != nil {
		return &TransientStoreError{Op: "delete story", Err: err}
	}

	if s.s3 != nil && story.MediaKey != "" {
		if err := s.s3.DeleteObject(ctx, story.MediaKey); err != nil {
			log.Printf("blob delete failed for story %d key %q: %v", storyID, story.MediaKey, err)
		}
	}

	s.insightCache.Invalidate(storyID)
	s.broker.Publish(notify.Event{Kind: notify.KindStory, Op: notify.OpDelete, StoryID: storyID, OwnerID: story.OwnerID})
	return nil
}

// MarkViewed records that the viewer consumed the story. The write is an
// upsert that ignores the uniqueness conflict, so repeated or overlapping
// calls collapse to a single view row. View tracking is best-effort
// telemetry: failures are logged and swallowed.
func (s *StoryService) MarkViewed(storyID, viewerID uint) {
	if err := s.storyRepo.MarkViewed(storyID, viewerID); err != nil {
		log.Printf("mark viewed failed for story %d viewer %d: %v", storyID, viewerID, err)
		return
	}

	s.insightCache.Invalidate(storyID)

	if session := s.sessions.Peek(viewerID); session != nil {
		session.ApplyViewed(storyID)
	}
}

// ToggleLike flips the like state for (story, user). The returned flag is the
// confirmed new state. On a store failure the optimistic flip is rolled back:
// the pre-toggle state comes back along with the error.
func (s *StoryService) ToggleLike(storyID, userID uint, currentlyLiked bool) (bool, error) {
	var err error
	if currentlyLiked {
		err = s.storyRepo.DeleteLike(storyID, userID)
	} else {
		err = s.storyRepo.CreateLike(storyID, userID)
	}
	if err != nil {
		return currentlyLiked, &TransientStoreError{Op: "toggle like", Err: err}
	}

	s.insightCache.Invalidate(storyID)
	return !currentlyLiked, nil
}

// HasLiked reports the persisted like state, used to seed the client's
// optimistic flag.
func (s *StoryService) HasLiked(storyID, userID uint) (bool, error) {
	liked, err := s.storyRepo.HasLiked(storyID, userID)
	if err != nil {
		return false, &TransientStoreError{Op: "read like", Err: err}
	}
	return liked, nil
}

// Insights returns who viewed and who liked a story. Owner only; the check
// lives here at the service boundary.
func (s *StoryService) Insights(storyID, requesterID uint) (*models.StoryInsights, error) {
	story, err := s.storyRepo.FindByID(storyID)
	if err != nil {
		return nil, &TransientStoreError{Op: "load story", Err: err}
	}
	if story.OwnerID != requesterID {
		return nil, &AuthorizationError{Action: "view insights for this story"}
	}

	if cached, ok := s.insightCache.Get(storyID); ok {
		return cached, nil
	}

	views, err := s.storyRepo.ViewersOf(storyID)
	if err != nil {
		return nil, &TransientStoreError{Op: "read views", Err: err}
	}
	likes, err := s.storyRepo.LikersOf(storyID)
	if err != nil {
		return nil, &TransientStoreError{Op: "read likes", Err: err}
	}

	insights := &models.StoryInsights{
		StoryID:   storyID,
		ViewerIDs: make([]uint, 0, len(views)),
		LikerIDs:  make([]uint, 0, len(likes)),
	}
	for _, v := range views {
		insights.ViewerIDs = append(insights.ViewerIDs, v.ViewerID)
	}
	for _, l := range likes {
		insights.LikerIDs = append(insights.LikerIDs, l.UserID)
	}
	insights.ViewCount = len(insights.ViewerIDs)
	insights.LikeCount = len(insights.LikerIDs)

	_ = s.insightCache.Set(storyID, insights)
	return insights, nil
}

// Reply appends a free-form reply to an active story. Replies are never
// aggregated or deduplicated.
func (s *StoryService) Reply(storyID, senderID uint, message string) (*models.StoryReply, error) {
	message = validation.TrimAndLimit(message, validation.MaxReplyLength())
	if message == "" {
		return nil, &ValidationError{Field: "message", Reason: "message is required"}
	}

	story, err := s.storyRepo.FindByID(storyID)
	if err != nil {
		return nil, &TransientStoreError{Op: "load story", Err: err}
	}
	if !story.Active(time.Now()) {
		return nil, &ValidationError{Field: "story_id", Reason: "story has expired"}
	}

	reply := &models.StoryReply{
		StoryID:  storyID,
		SenderID: senderID,
		Message:  message,
	}
	if err := s.storyRepo.CreateReply(reply); err != nil {
		return nil, &TransientStoreError{Op: "create reply", Err: err}
	}
	return reply, nil
}

// OwnerOf resolves a story's owner, for routing realtime reply pushes.
func (s *StoryService) OwnerOf(storyID uint) (uint, error) {
	story, err := s.storyRepo.FindByID(storyID)
	if err != nil {
		return 0, &TransientStoreError{Op: "load story", Err: err}
	}
	return story.OwnerID, nil
}

package handlers

import (
	"io"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/campus-stories-backend/internal/handlers/ws"
	"github.com/noteduco342/campus-stories-backend/internal/httpx"
	"github.com/noteduco342/campus-stories-backend/internal/models"
	"github.com/noteduco342/campus-stories-backend/internal/service"
	"github.com/noteduco342/campus-stories-backend/internal/validation"
)

type StoryHandler struct {
	storyService *service.StoryService
	userService  *service.UserService
	sessions     *service.FeedSessions
	hub          *ws.Hub
}

func NewStoryHandler(storyService *service.StoryService, userService *service.UserService, sessions *service.FeedSessions, hub *ws.Hub) *StoryHandler {
	return &StoryHandler{
		storyService: storyService,
		userService:  userService,
		sessions:     sessions,
		hub:          hub,
	}
}

func storyIDParam(c *fiber.Ctx) (uint, error) {
	id64, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id64 == 0 {
		return 0, err
	}
	return uint(id64), nil
}

// GetFeed returns the viewer's aggregated story feed. A transient store
// failure still answers 200 with an empty feed and the error surfaced in
// last_error, so clients render the empty state and retry instead of
// treating the feed as fatally broken.
func (h *StoryHandler) GetFeed(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	session := h.sessions.Get(userID)
	own, groups, refreshErr := session.Refresh(time.Now())

	ownResponses := make([]models.StoryResponse, len(own))
	for i := range own {
		ownResponses[i] = own[i].ToResponse(userID)
	}
	groupResponses := make([]models.StoryGroupResponse, len(groups))
	for i := range groups {
		groupResponses[i] = groups[i].ToResponse(userID)
	}

	resp := fiber.Map{
		"own":    ownResponses,
		"groups": groupResponses,
	}
	if refreshErr != nil {
		resp["last_error"] = "feed temporarily unavailable, retry shortly"
	}
	return c.JSON(resp)
}

// Publish accepts a multipart batch of media files plus caption and
// visibility fields and creates one story per file.
func (h *StoryHandler) Publish(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return httpx.BadRequest(c, "invalid_multipart", "Expected a multipart form")
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return httpx.BadRequest(c, "missing_files", "At least one file is required")
	}
	if len(fileHeaders) > validation.MaxBatchFiles {
		return httpx.BadRequest(c, "too_many_files", "Too many files in one batch")
	}

	files := make([]service.UploadFile, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		f, err := header.Open()
		if err != nil {
			return httpx.BadRequest(c, "unreadable_file", "Could not read uploaded file")
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return httpx.BadRequest(c, "unreadable_file", "Could not read uploaded file")
		}

		contentType := header.Header.Get("Content-Type")
		files = append(files, service.UploadFile{
			Name:        header.Filename,
			ContentType: contentType,
			MediaKind:   models.MediaKind(validation.MediaKindForContentType(contentType)),
			Data:        data,
		})
	}

	caption := c.FormValue("caption")
	visibility := models.Visibility(c.FormValue("visibility", string(models.VisibilityPublic)))

	ids, err := h.storyService.Publish(c.Context(), userID, files, caption, visibility)
	if err != nil {
		return httpx.FromServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"story_ids": ids,
	})
}

// MarkViewed records a story view for the caller. Always 204: view
// tracking failures never surface to the client.
func (h *StoryHandler) MarkViewed(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	storyID, err := storyIDParam(c)
	if err != nil || storyID == 0 {
		return httpx.BadRequest(c, "invalid_story_id", "Invalid story ID")
	}

	h.storyService.MarkViewed(storyID, userID)
	return c.SendStatus(fiber.StatusNoContent)
}

type toggleLikeInput struct {
	Liked bool `json:"liked"`
}

// ToggleLike flips the caller's like on a story. The request body carries
// the client's current (optimistic) state; the response carries the
// confirmed one.
func (h *StoryHandler) ToggleLike(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	storyID, err := storyIDParam(c)
	if err != nil || storyID == 0 {
		return httpx.BadRequest(c, "invalid_story_id", "Invalid story ID")
	}

	var input toggleLikeInput
	if err := c.BodyParser(&input); err != nil {
		// No body: fall back to the persisted state.
		liked, err := h.storyService.HasLiked(storyID, userID)
		if err != nil {
			return httpx.FromServiceError(c, err)
		}
		input.Liked = liked
	}

	liked, err := h.storyService.ToggleLike(storyID, userID, input.Liked)
	if err != nil {
		// The rolled-back state still goes to the client so its optimistic
		// flag can be reverted.
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"liked": liked,
			"error": "like temporarily unavailable, retry shortly",
		})
	}

	return c.JSON(fiber.Map{
		"liked": liked,
	})
}

// Delete removes one of the caller's stories.
func (h *StoryHandler) Delete(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	storyID, err := storyIDParam(c)
	if err != nil || storyID == 0 {
		return httpx.BadRequest(c, "invalid_story_id", "Invalid story ID")
	}

	if err := h.storyService.Delete(c.Context(), storyID, userID); err != nil {
		return httpx.FromServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type insightsResponse struct {
	*models.StoryInsights
	Viewers []models.UserResponse `json:"viewers"`
	Likers  []models.UserResponse `json:"likers"`
}

// Insights returns who viewed and liked a story, with the engagement IDs
// resolved to public profiles. Owner only.
func (h *StoryHandler) Insights(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	storyID, err := storyIDParam(c)
	if err != nil || storyID == 0 {
		return httpx.BadRequest(c, "invalid_story_id", "Invalid story ID")
	}

	insights, err := h.storyService.Insights(storyID, userID)
	if err != nil {
		return httpx.FromServiceError(c, err)
	}

	// Profile resolution is best-effort: a store failure degrades the
	// response to the bare ID lists.
	engaged := append(append([]uint{}, insights.ViewerIDs...), insights.LikerIDs...)
	profiles, err := h.userService.Profiles(engaged)
	if err != nil {
		log.Printf("insight profile lookup failed for story %d: %v", storyID, err)
		profiles = nil
	}

	return c.JSON(insightsResponse{
		StoryInsights: insights,
		Viewers:       pickProfiles(insights.ViewerIDs, profiles),
		Likers:        pickProfiles(insights.LikerIDs, profiles),
	})
}

func pickProfiles(ids []uint, profiles map[uint]models.UserResponse) []models.UserResponse {
	out := make([]models.UserResponse, 0, len(ids))
	for _, id := range ids {
		if profile, ok := profiles[id]; ok {
			out = append(out, profile)
		}
	}
	return out
}

type replyInput struct {
	Message string `json:"message"`
}

// Reply sends a reply to a story and pushes it to the story's owner if
// they are connected.
func (h *StoryHandler) Reply(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	storyID, err := storyIDParam(c)
	if err != nil || storyID == 0 {
		return httpx.BadRequest(c, "invalid_story_id", "Invalid story ID")
	}

	var input replyInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	reply, err := h.storyService.Reply(storyID, userID, input.Message)
	if err != nil {
		return httpx.FromServiceError(c, err)
	}

	if h.hub != nil {
		if ownerID, err := h.storyService.OwnerOf(storyID); err == nil && ownerID != userID && h.hub.IsOnline(ownerID) {
			_ = h.hub.SendToUser(ownerID, fiber.Map{
				"type":      "story.replied",
				"story_id":  storyID,
				"sender_id": userID,
				"message":   reply.Message,
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(reply)
}

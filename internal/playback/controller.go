package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/noteduco342/campus-stories-backend/internal/models"
)

// DefaultDwell is how long each story stays on screen before auto-advancing.
const DefaultDwell = 5 * time.Second

var (
	ErrNotOwner = errors.New("viewer does not own this group")
	ErrNoStory  = errors.New("no story is active")
)

type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateInsightsOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateInsightsOpen:
		return "insights_open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Hooks connect a controller to its caller. NextGroup and PrevGroup are
// called synchronously under the controller lock and must not call back into
// the controller; OnStoryShown and OnClosed run on their own goroutines.
type Hooks struct {
	// NextGroup supplies the group after the current one, if any.
	NextGroup func() (*models.StoryGroup, bool)
	// PrevGroup supplies the group before the current one, if any.
	PrevGroup func() (*models.StoryGroup, bool)
	// OnStoryShown fires whenever a story becomes the displayed one.
	// This is where view marking hangs off.
	OnStoryShown func(storyID uint)
	// OnClosed fires once when the controller reaches Closed.
	OnClosed func()
}

// Controller drives timed playback over one story group at a time. A single
// dwell timer is live at most; every transition cancels it and, where the
// new state calls for one, arms a fresh one. A generation counter guards
// against a cancelled timer's callback racing a newer transition.
type Controller struct {
	mu sync.Mutex

	viewerID uint
	dwell    time.Duration
	hooks    Hooks

	state  State
	resume State // state to restore after insights close / reply blur

	replyFocused bool

	group *models.StoryGroup
	index int

	timer    *time.Timer
	timerGen uint64
}

func NewController(viewerID uint, dwell time.Duration, hooks Hooks) *Controller {
	if dwell <= 0 {
		dwell = DefaultDwell
	}
	return &Controller{
		viewerID: viewerID,
		dwell:    dwell,
		hooks:    hooks,
		state:    StateIdle,
	}
}

// Open starts playback on a group at its first unseen story (or the first
// story if all are seen). It also serves as the fresh open required to leave
// Closed.
func (c *Controller) Open(group *models.StoryGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if group == nil || len(group.Stories) == 0 {
		c.closeLocked()
		return
	}
	c.openGroupLocked(group)
}

func (c *Controller) openGroupLocked(group *models.StoryGroup) {
	c.group = group
	c.index = group.FirstUnseenIndex(c.viewerID)
	c.state = StatePlaying
	c.replyFocused = false
	c.showLocked()
	c.armLocked()
}

// State reports the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the story on screen, if playback is active.
func (c *Controller) Current() (*models.Story, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.group == nil || c.state == StateClosed || c.state == StateIdle {
		return nil, false
	}
	if c.index < 0 || c.index >= len(c.group.Stories) {
		return nil, false
	}
	return &c.group.Stories[c.index], true
}

// Index returns the current story index within the open group.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// TapRight advances to the next story, or asks for the next group when at
// the group's last story.
func (c *Controller) TapRight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying && c.state != StatePaused {
		return
	}
	c.advanceLocked()
}

// TapLeft steps back to the previous story, or to the previous group when
// already at the group's first story.
func (c *Controller) TapLeft() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying && c.state != StatePaused {
		return
	}
	if c.index > 0 {
		c.index--
		c.showLocked()
		c.rearmIfPlayingLocked()
		return
	}
	if c.hooks.PrevGroup != nil {
		if group, ok := c.hooks.PrevGroup(); ok && group != nil && len(group.Stories) > 0 {
			c.openGroupLocked(group)
			return
		}
	}
	// Already at the very first story; restart its dwell.
	c.rearmIfPlayingLocked()
}

// TapMiddle toggles Playing and Paused.
func (c *Controller) TapMiddle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePlaying:
		c.stopTimerLocked()
		c.state = StatePaused
	case StatePaused:
		c.state = StatePlaying
		c.armLocked()
	}
}

// FocusReply suspends the dwell timer while the reply input has focus.
func (c *Controller) FocusReply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying && c.state != StatePaused {
		return
	}
	if c.replyFocused {
		return
	}
	c.replyFocused = true
	c.resume = c.state
	c.stopTimerLocked()
	c.state = StatePaused
}

// BlurReply restores whatever state playback was in before the reply input
// took focus.
func (c *Controller) BlurReply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.replyFocused {
		return
	}
	c.replyFocused = false
	if c.resume == StatePlaying {
		c.state = StatePlaying
		c.armLocked()
	} else {
		c.state = StatePaused
	}
}

// OpenInsights opens the owner-only engagement overlay, suspending the timer.
func (c *Controller) OpenInsights() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying && c.state != StatePaused {
		return ErrNoStory
	}
	if c.group == nil || c.group.OwnerID != c.viewerID {
		return ErrNotOwner
	}
	c.resume = c.state
	c.stopTimerLocked()
	c.state = StateInsightsOpen
	return nil
}

// CloseInsights restores the pre-overlay state.
func (c *Controller) CloseInsights() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInsightsOpen {
		return
	}
	if c.resume == StatePlaying {
		c.state = StatePlaying
		c.armLocked()
	} else {
		c.state = StatePaused
	}
}

// DeleteCurrent removes the on-screen story from the active set and returns
// its id for the caller to persist. Owner only. Playback always closes after
// a deletion; this is the conservative default rather than advancing within
// the remaining stories.
func (c *Controller) DeleteCurrent() (uint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.group == nil || c.state == StateClosed || c.state == StateIdle {
		return 0, ErrNoStory
	}
	if c.group.OwnerID != c.viewerID {
		return 0, ErrNotOwner
	}
	if c.index < 0 || c.index >= len(c.group.Stories) {
		return 0, ErrNoStory
	}

	storyID := c.group.Stories[c.index].ID
	c.group.Stories = append(c.group.Stories[:c.index], c.group.Stories[c.index+1:]...)
	c.closeLocked()
	return storyID, nil
}

// Close ends playback. Closed is terminal; a fresh Open is required to
// resume.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Controller) closeLocked() {
	if c.state == StateClosed {
		return
	}
	c.stopTimerLocked()
	c.state = StateClosed
	c.replyFocused = false
	if c.hooks.OnClosed != nil {
		go c.hooks.OnClosed()
	}
}

func (c *Controller) advanceLocked() {
	if c.group != nil && c.index+1 < len(c.group.Stories) {
		c.index++
		c.showLocked()
		c.rearmIfPlayingLocked()
		return
	}
	if c.hooks.NextGroup != nil {
		if group, ok := c.hooks.NextGroup(); ok && group != nil && len(group.Stories) > 0 {
			c.openGroupLocked(group)
			return
		}
	}
	c.closeLocked()
}

func (c *Controller) showLocked() {
	if c.hooks.OnStoryShown == nil || c.group == nil {
		return
	}
	if c.index < 0 || c.index >= len(c.group.Stories) {
		return
	}
	storyID := c.group.Stories[c.index].ID
	go c.hooks.OnStoryShown(storyID)
}

func (c *Controller) rearmIfPlayingLocked() {
	if c.state == StatePlaying {
		c.armLocked()
	} else {
		c.stopTimerLocked()
	}
}

func (c *Controller) armLocked() {
	c.stopTimerLocked()
	gen := c.timerGen
	c.timer = time.AfterFunc(c.dwell, func() {
		c.dwellExpired(gen)
	})
}

func (c *Controller) stopTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) dwellExpired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A stale timer: some transition cancelled it after the callback was
	// already in flight.
	if gen != c.timerGen {
		return
	}
	if c.state != StatePlaying {
		return
	}
	c.advanceLocked()
}

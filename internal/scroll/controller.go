// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package scroll

import "github.com/jeranaias/atlas-tui/internal/store"

// DefaultThreshold is the near-bottom distance below which new content is
// followed.
const DefaultThreshold = 120

// Container is a scrollable region.
type Container interface {
	ScrollHeight() int
	ClientHeight() int
	ScrollTop() int
}

// Sentinel is the anchor at the end of the content.
type Sentinel interface {
	ScrollIntoView()
}

// Scheduler runs fn on the next frame. Scheduling again before the frame
// replaces fn.
type Scheduler interface {
	Schedule(fn func())
}

// Notifier delivers store change notifications.
type Notifier interface {
	Subscribe(fn func(store.Change)) (unsubscribe func())
}

// Controller implements stickiness for one container and sentinel.
type Controller struct {
	container Container
	sentinel  Sentinel
	scheduler Scheduler
	threshold int
}

// Option configures a Controller.
type Option func(*Controller)

// WithThreshold sets the near-bottom threshold. Non-positive values keep
// the default.
func WithThreshold(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithScheduler sets the frame scheduler. Without one, follows run
// immediately.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// New returns a controller. A nil container or sentinel yields a disabled
// controller whose methods do nothing.
func New(container Container, sentinel Sentinel, opts ...Option) *Controller {
	c := &Controller{
		container: container,
		sentinel:  sentinel,
		scheduler: Immediate{},
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether both container and sentinel are present.
func (c *Controller) Enabled() bool {
	return c != nil && c.container != nil && c.sentinel != nil
}

// Threshold returns the near-bottom threshold.
func (c *Controller) Threshold() int {
	return c.threshold
}

// DistanceFromBottom is scrollHeight - clientHeight - scrollTop.
func (c *Controller) DistanceFromBottom() int {
	if !c.Enabled() {
		return 0
	}
	return c.container.ScrollHeight() - c.container.ClientHeight() - c.container.ScrollTop()
}

// NearBottom reports whether the view is within the threshold of the end.
func (c *Controller) NearBottom() bool {
	return c.Enabled() && c.DistanceFromBottom() < c.threshold
}

// OnMutation re-evaluates stickiness after content changed.
func (c *Controller) OnMutation() {
	if c.NearBottom() {
		c.follow()
	}
}

// Mutate measures, applies fn, then follows if the view was near the
// bottom before fn ran. A disabled controller just runs fn.
func (c *Controller) Mutate(fn func()) {
	near := c.NearBottom()
	fn()
	if near {
		c.follow()
	}
}

// ForceFollow schedules a scroll to the sentinel regardless of position.
func (c *Controller) ForceFollow() {
	if c.Enabled() {
		c.follow()
	}
}

// Attach subscribes to n. User-authored messages force a follow; every
// other change is an ordinary mutation. Notifications arrive before the
// view re-renders, so the measurement reflects the pre-mutation position.
func (c *Controller) Attach(n Notifier) (detach func()) {
	if !c.Enabled() || n == nil {
		return func() {}
	}
	return n.Subscribe(func(ch store.Change) {
		if ch.UserAuthored() {
			c.ForceFollow()
			return
		}
		c.OnMutation()
	})
}

func (c *Controller) follow() {
	c.scheduler.Schedule(c.sentinel.ScrollIntoView)
}

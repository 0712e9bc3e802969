// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package scroll

import "sync"

// Immediate runs scheduled functions at once.
type Immediate struct{}

func (Immediate) Schedule(fn func()) { fn() }

// FrameScheduler holds the most recently scheduled function until the UI
// loop calls Flush on its next frame.
type FrameScheduler struct {
	mu      sync.Mutex
	pending func()
}

// Schedule replaces any function not yet run.
func (f *FrameScheduler) Schedule(fn func()) {
	f.mu.Lock()
	f.pending = fn
	f.mu.Unlock()
}

// Pending reports whether a function is waiting for the next frame.
func (f *FrameScheduler) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil
}

// Flush runs and clears the pending function. It reports whether one ran.
func (f *FrameScheduler) Flush() bool {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	f.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/atlas-tui/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	// ToastKindStatus is an informational toast.
	ToastKindStatus ToastKind = iota
	// ToastKindError is an error toast.
	ToastKindError
)

// DefaultToastDuration is the auto-dismiss duration for status toasts.
const DefaultToastDuration = 4 * time.Second

// ErrorToastDuration is the auto-dismiss duration for error toasts.
const ErrorToastDuration = 6 * time.Second

// maxToasts caps the visible stack.
const maxToasts = 3

// Toast is a transient notification shown above the input.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// Expired reports whether the toast should be dismissed at now.
func (t Toast) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager holds active toasts, newest last.
type ToastManager struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	now    func() time.Time
}

// NewToastManager creates a toast manager. A nil clock uses time.Now.
func NewToastManager(now func() time.Time) *ToastManager {
	if now == nil {
		now = time.Now
	}
	return &ToastManager{nextID: 1, now: now}
}

// Error adds an error toast and returns its id.
func (m *ToastManager) Error(message string) int {
	return m.add(message, ToastKindError, ErrorToastDuration)
}

// Status adds a status toast and returns its id.
func (m *ToastManager) Status(message string) int {
	return m.add(message, ToastKindStatus, DefaultToastDuration)
}

func (m *ToastManager) add(message string, kind ToastKind, d time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Toast{ID: m.nextID, Message: message, Kind: kind, CreatedAt: m.now(), Duration: d}
	m.nextID++
	m.toasts = append(m.toasts, t)
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
	return t.ID
}

// Tick drops expired toasts and reports whether any remain.
func (m *ToastManager) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.Expired(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return len(m.toasts) > 0
}

// Toasts returns a copy of the active toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Toast(nil), m.toasts...)
}

// Clear removes all toasts.
func (m *ToastManager) Clear() {
	m.mu.Lock()
	m.toasts = nil
	m.mu.Unlock()
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToasts renders the stack right-aligned within width.
func RenderToasts(theme *styles.Theme, toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	maxWidth := min(60, max(width-4, minCodeWidth))
	rendered := make([]string, 0, len(toasts))
	for _, t := range toasts {
		style := theme.Toast
		if t.Kind == ToastKindError {
			style = theme.ToastError
		}
		rendered = append(rendered, style.Width(maxWidth).Render(t.Message))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}

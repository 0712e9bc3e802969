// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/atlas-tui/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// =============================================================================
// TEXT DELTA TESTS
// =============================================================================

func TestApply_TextDeltaIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	s.AppendUser("hi", nil)
	id := s.BeginResponse()

	chunks := []string{"```py", "thon\nprint(1)", "\n```", "", "Done."}
	prevLen := 0
	for _, chunk := range chunks {
		require.NoError(t, s.Apply(model.TextDelta{MessageID: id, Chunk: chunk}))
		msg, ok := s.Get(id)
		require.True(t, ok)
		assert.Equal(t, prevLen+len(chunk), len(msg.Content))
		prevLen = len(msg.Content)
	}

	msg, _ := s.Get(id)
	assert.Equal(t, "```python\nprint(1)\n```Done.", msg.Content)
	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.True(t, msg.Streaming)
}

func TestApply_AssistantCreatedLazily(t *testing.T) {
	s := newTestStore(t)
	s.AppendUser("hi", nil)
	id := s.BeginResponse()

	assert.Equal(t, 1, s.Len(), "no assistant message before the first event")

	require.NoError(t, s.Apply(model.TextDelta{MessageID: id, Chunk: "a"}))
	assert.Equal(t, 2, s.Len())
}

func TestApply_UnknownMessage(t *testing.T) {
	s := newTestStore(t)
	err := s.Apply(model.TextDelta{MessageID: "msg_nope", Chunk: "x"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.Equal(t, 0, s.Len())
}

// =============================================================================
// TOOL RECONCILIATION TESTS
// =============================================================================

func TestApply_ToolStartThenResult(t *testing.T) {
	s := newTestStore(t)
	id := s.BeginResponse()

	require.NoError(t, s.Apply(model.ToolCallStarted{MessageID: id, ToolID: "t1", Name: "coding_agent"}))
	require.NoError(t, s.Apply(model.ToolCallResult{MessageID: id, ToolID: "t1", Result: json.RawMessage(`{"rows":3}`)}))

	msg, _ := s.Get(id)
	require.Len(t, msg.ToolInvocations, 1, "exactly one invocation, never two")
	inv := msg.ToolInvocations[0]
	assert.Equal(t, model.ToolResult, inv.State)
	assert.Equal(t, "coding_agent", inv.Name)
	assert.JSONEq(t, `{"rows":3}`, string(inv.Result))
}

func TestApply_DuplicateStartIgnored(t *testing.T) {
	s := newTestStore(t)
	id := s.BeginResponse()

	require.NoError(t, s.Apply(model.ToolCallStarted{MessageID: id, ToolID: "t1", Name: "coding_agent"}))
	err := s.Apply(model.ToolCallStarted{MessageID: id, ToolID: "t1", Name: "coding_agent"})
	assert.ErrorIs(t, err, ErrDuplicateTool)

	msg, _ := s.Get(id)
	assert.Len(t, msg.ToolInvocations, 1)
}

func TestApply_OrphanResultIgnored(t *testing.T) {
	s := newTestStore(t)
	id := s.BeginResponse()
	require.NoError(t, s.Apply(model.TextDelta{MessageID: id, Chunk: "x"}))

	err := s.Apply(model.ToolCallResult{MessageID: id, ToolID: "ghost", Result: json.RawMessage(`1`)})
	assert.ErrorIs(t, err, ErrOrphanResult)

	msg, _ := s.Get(id)
	assert.Empty(t, msg.ToolInvocations)
	assert.Equal(t, "x", msg.Content)
}

func TestApply_SecondResultIgnored(t *testing.T) {
	s := newTestStore(t)
	id := s.BeginResponse()
	require.NoError(t, s.Apply(model.ToolCallStarted{MessageID: id, ToolID: "t1", Name: "a"}))
	require.NoError(t, s.Apply(model.ToolCallResult{MessageID: id, ToolID: "t1", Result: json.RawMessage(`1`)}))

	err := s.Apply(model.ToolCallResult{MessageID: id, ToolID: "t1", Result: json.RawMessage(`2`)})
	assert.ErrorIs(t, err, ErrOrphanResult)

	msg, _ := s.Get(id)
	assert.Equal(t, "1", string(msg.ToolInvocations[0].Result))
}

func TestApply_AttachmentsSetOnce(t *testing.T) {
	s := newTestStore(t)
	id := s.BeginResponse()
	first := []model.Attachment{{Name: "a.csv", ContentType: "text/csv", URL: "u"}}

	require.NoError(t, s.Apply(model.AttachmentsAttached{MessageID: id, Attachments: first}))
	err := s.Apply(model.AttachmentsAttached{MessageID: id, Attachments: nil})
	assert.ErrorIs(t, err, model.ErrAttachmentsSet)

	msg, _ := s.Get(id)
	assert.Equal(t, first, msg.Attachments)
}

// =============================================================================
// STOP / FINISH TESTS
// =============================================================================

func TestStop_KeepsPartialContent(t *testing.T) {
	s := newTestStore(t)
	s.AppendUser("hi", nil)
	id := s.BeginResponse()
	require.NoError(t, s.Apply(model.TextDelta{MessageID: id, Chunk: "partial"}))

	assert.True(t, s.Stop())
	assert.False(t, s.Stop(), "second stop is a no-op")

	err := s.Apply(model.TextDelta{MessageID: id, Chunk: " late"})
	assert.ErrorIs(t, err, ErrResponseEnded)
	err = s.Apply(model.ToolCallStarted{MessageID: id, ToolID: "t9", Name: "x"})
	assert.ErrorIs(t, err, ErrResponseEnded)

	msg, _ := s.Get(id)
	assert.Equal(t, "partial", msg.Content)
	assert.False(t, msg.Streaming)
	assert.False(t, s.IsGenerating())
}

func TestStop_BeforeFirstEvent(t *testing.T) {
	s := newTestStore(t)
	s.AppendUser("hi", nil)
	id := s.BeginResponse()

	assert.True(t, s.Stop())
	assert.ErrorIs(t, s.Apply(model.TextDelta{MessageID: id, Chunk: "x"}), ErrResponseEnded)
	assert.Equal(t, 1, s.Len())
}

func TestFail_NotifiesWithError(t *testing.T) {
	s := newTestStore(t)
	id := s.BeginResponse()

	var got Change
	unsubscribe := s.Subscribe(func(c Change) {
		if c.Kind == ResponseEnded {
			got = c
		}
	})
	defer unsubscribe()

	boom := errors.New("boom")
	assert.True(t, s.Fail(boom))
	assert.Equal(t, id, got.MessageID)
	assert.Equal(t, EndFailed, got.Reason)
	assert.ErrorIs(t, got.Err, boom)
}

func TestBeginResponse_ReturnsPendingID(t *testing.T) {
	s := newTestStore(t)
	first := s.BeginResponse()
	assert.Equal(t, first, s.BeginResponse())

	s.Finish()
	assert.NotEqual(t, first, s.BeginResponse())
}

// =============================================================================
// IS GENERATING TESTS
// =============================================================================

func TestIsGenerating(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.IsGenerating(), "empty store")

	s.AppendUser("hi", nil)
	assert.False(t, s.IsGenerating(), "user message without a pending response")

	id := s.BeginResponse()
	assert.True(t, s.IsGenerating(), "pending, last message is user")

	require.NoError(t, s.Apply(model.TextDelta{MessageID: id, Chunk: "a"}))
	assert.True(t, s.IsGenerating(), "assistant still streaming")

	s.Finish()
	assert.False(t, s.IsGenerating())
}

// =============================================================================
// NOTIFICATION & HISTORY TESTS
// =============================================================================

func TestSubscribe_ReceivesChangesInOrder(t *testing.T) {
	s := newTestStore(t)
	var kinds []ChangeKind
	var userAuthored int
	unsubscribe := s.Subscribe(func(c Change) {
		kinds = append(kinds, c.Kind)
		if c.UserAuthored() {
			userAuthored++
		}
	})

	s.AppendUser("hi", nil)
	id := s.BeginResponse()
	_ = s.Apply(model.TextDelta{MessageID: id, Chunk: "a"})
	_ = s.Apply(model.ToolCallStarted{MessageID: id, ToolID: "t", Name: "n"})
	s.Finish()

	assert.Equal(t, []ChangeKind{MessageAppended, MessageAppended, ContentAppended, ToolUpdated, ResponseEnded}, kinds)
	assert.Equal(t, 1, userAuthored)

	unsubscribe()
	unsubscribe()
	s.AppendSystem("note")
	assert.Len(t, kinds, 5, "no notifications after unsubscribe")
}

func TestSubscribe_ListenerMayReadStore(t *testing.T) {
	s := newTestStore(t)
	var lens []int
	s.Subscribe(func(c Change) { lens = append(lens, s.Len()) })

	s.AppendUser("a", nil)
	s.AppendUser("b", nil)
	assert.Equal(t, []int{1, 2}, lens)
}

func TestHistory_SkipsSystemAndEmptyAssistant(t *testing.T) {
	s := newTestStore(t)
	s.AppendSystem("welcome")
	s.AppendUser("q1", []model.Attachment{{Name: "a.pdf", ContentType: "application/pdf", URL: "u"}})
	id := s.BeginResponse()
	_ = s.Apply(model.TextDelta{MessageID: id, Chunk: "a1"})
	s.Finish()

	s.AppendUser("q2", nil)
	id2 := s.BeginResponse()
	_ = s.Apply(model.ToolCallStarted{MessageID: id2, ToolID: "t", Name: "n"})
	s.Stop()

	hist := s.History()
	require.Len(t, hist, 4)
	assert.Equal(t, "q1", hist[0].Content)
	assert.Len(t, hist[0].Attachments, 1)
	assert.Equal(t, "a1", hist[1].Content)
	assert.Equal(t, "q2", hist[2].Content)
	assert.Equal(t, id2, hist[3].ID, "assistant turn with only a tool call is kept")
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	s.AppendUser("hi", nil)
	id := s.BeginResponse()
	_ = s.Apply(model.TextDelta{MessageID: id, Chunk: "x"})

	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.IsGenerating())
	_, pending := s.InFlightID()
	assert.False(t, pending)
}

func TestReset_ForgetsEndedResponses(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		id := s.BeginResponse()
		require.NoError(t, s.Apply(model.TextDelta{MessageID: id, Chunk: "x"}))
		require.True(t, s.Finish())
	}
	stopped := s.BeginResponse()
	require.NoError(t, s.Apply(model.TextDelta{MessageID: stopped, Chunk: "y"}))
	assert.Len(t, s.ended, 3)

	s.Reset()

	assert.Empty(t, s.ended)
	err := s.Apply(model.TextDelta{MessageID: stopped, Chunk: " late"})
	assert.ErrorIs(t, err, ErrUnknownMessage, "late event after reset is still rejected")
	assert.Equal(t, 0, s.Len())
}

func TestApply_ConcurrentDeltasKeepAllChunks(t *testing.T) {
	s := newTestStore(t)
	id := s.BeginResponse()
	require.NoError(t, s.Apply(model.TextDelta{MessageID: id, Chunk: ""}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Apply(model.TextDelta{MessageID: id, Chunk: "x"})
		}()
	}
	wg.Wait()

	msg, _ := s.Get(id)
	assert.Len(t, msg.Content, 50)
}

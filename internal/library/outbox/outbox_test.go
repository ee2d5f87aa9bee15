// Copyright (c) 2026 MangaTrack. All rights reserved.

package outbox_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/outbox"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func action(t *testing.T, actionType string, payload any, timestamp int64) outbox.Action {
	t.Helper()
	a, err := outbox.NewAction(actionType, payload, "device-1")
	require.NoError(t, err)
	a.Timestamp = timestamp
	return a
}

func newQueue(t *testing.T) *outbox.Queue {
	t.Helper()
	queue, err := outbox.NewQueue(outbox.NewMemoryStore(), discard())
	require.NoError(t, err)
	return queue
}

// # Contract

func TestValidType(t *testing.T) {
	for _, actionType := range outbox.Types {
		assert.True(t, outbox.ValidType(actionType))
	}
	assert.False(t, outbox.ValidType("CHAPTER_UNREAD"))
	assert.False(t, outbox.ValidType(""))
}

func TestActionRoundTrip(t *testing.T) {
	original := action(t, outbox.TypeChapterRead, map[string]any{"entryId": "ent-1", "chapterNumber": 42.5}, 1700000000000)
	original.RetryCount = 3

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded outbox.Action
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, original, decoded)
}

func TestBefore(t *testing.T) {
	a := outbox.Action{ID: "b", Timestamp: 100}
	b := outbox.Action{ID: "a", Timestamp: 200}
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))

	// Equal timestamps fall back to the id so the order stays total.
	b.Timestamp = 100
	assert.True(t, b.Before(a))
}

// # Dedup Rules

func TestEnqueue_ChapterReadKeepsHighestChapter(t *testing.T) {
	queue := newQueue(t)

	first := action(t, outbox.TypeChapterRead, map[string]any{"entryId": "ent-1", "chapterNumber": 10}, 100)
	higher := action(t, outbox.TypeChapterRead, map[string]any{"entryId": "ent-1", "chapterNumber": 12}, 200)
	lower := action(t, outbox.TypeChapterRead, map[string]any{"entryId": "ent-1", "chapterNumber": 11}, 300)

	require.NoError(t, queue.Enqueue(first))
	require.NoError(t, queue.Enqueue(higher))
	require.NoError(t, queue.Enqueue(lower))

	pending := queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, higher.ID, pending[0].ID)
}

func TestEnqueue_ChapterReadOtherEntriesUntouched(t *testing.T) {
	queue := newQueue(t)

	require.NoError(t, queue.Enqueue(action(t, outbox.TypeChapterRead, map[string]any{"entryId": "ent-1", "chapterNumber": 10}, 100)))
	require.NoError(t, queue.Enqueue(action(t, outbox.TypeChapterRead, map[string]any{"entryId": "ent-2", "chapterNumber": 3}, 200)))

	assert.Equal(t, 2, queue.Len())
}

func TestEnqueue_LibraryUpdateKeepsNewest(t *testing.T) {
	queue := newQueue(t)

	old := action(t, outbox.TypeLibraryUpdate, map[string]any{"entryId": "ent-1", "status": "reading"}, 100)
	newest := action(t, outbox.TypeLibraryUpdate, map[string]any{"entryId": "ent-1", "status": "paused"}, 300)
	stale := action(t, outbox.TypeLibraryUpdate, map[string]any{"entryId": "ent-1", "status": "dropped"}, 200)

	require.NoError(t, queue.Enqueue(old))
	require.NoError(t, queue.Enqueue(newest))
	require.NoError(t, queue.Enqueue(stale))

	pending := queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, newest.ID, pending[0].ID)
}

func TestEnqueue_LibraryAddKeepsNewestPerSeries(t *testing.T) {
	queue := newQueue(t)

	first := action(t, outbox.TypeLibraryAdd, map[string]any{"seriesId": "ser-1"}, 100)
	replacement := action(t, outbox.TypeLibraryAdd, map[string]any{"seriesId": "ser-1"}, 200)
	other := action(t, outbox.TypeLibraryAdd, map[string]any{"seriesId": "ser-2"}, 150)

	require.NoError(t, queue.Enqueue(first))
	require.NoError(t, queue.Enqueue(replacement))
	require.NoError(t, queue.Enqueue(other))

	pending := queue.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, other.ID, pending[0].ID)
	assert.Equal(t, replacement.ID, pending[1].ID)
}

func TestEnqueue_OthersAppend(t *testing.T) {
	queue := newQueue(t)

	require.NoError(t, queue.Enqueue(action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-1"}, 100)))
	require.NoError(t, queue.Enqueue(action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-1"}, 200)))
	require.NoError(t, queue.Enqueue(action(t, outbox.TypeSettingUpdate, map[string]any{"settings": map[string]any{"theme": "dark"}}, 300)))

	assert.Equal(t, 3, queue.Len())
}

func TestEnqueue_RejectsUnknownType(t *testing.T) {
	queue := newQueue(t)
	err := queue.Enqueue(outbox.Action{ID: "a", Type: "NOT_A_TYPE", Timestamp: 1})
	assert.Error(t, err)
}

func TestPending_ReplayOrder(t *testing.T) {
	queue := newQueue(t)

	late := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-3"}, 300)
	early := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-1"}, 100)
	middle := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-2"}, 200)

	require.NoError(t, queue.Enqueue(late))
	require.NoError(t, queue.Enqueue(early))
	require.NoError(t, queue.Enqueue(middle))

	pending := queue.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, early.ID, pending[0].ID)
	assert.Equal(t, middle.ID, pending[1].ID)
	assert.Equal(t, late.ID, pending[2].ID)
}

// # Verdicts

func TestResolve_Verdicts(t *testing.T) {
	queue := newQueue(t)

	ok := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-1"}, 100)
	again := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-2"}, 200)
	dead := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-3"}, 300)

	require.NoError(t, queue.Enqueue(ok))
	require.NoError(t, queue.Enqueue(again))
	require.NoError(t, queue.Enqueue(dead))

	require.NoError(t, queue.Resolve([]outbox.Result{
		{ID: ok.ID, Status: outbox.StatusSuccess},
		{ID: again.ID, Status: outbox.StatusRetryable},
		{ID: dead.ID, Status: outbox.StatusPermanent},
	}))

	pending := queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, again.ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].RetryCount)
}

func TestResolve_RetryCapDropsAction(t *testing.T) {
	queue := newQueue(t)
	stuck := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-1"}, 100)
	require.NoError(t, queue.Enqueue(stuck))

	for i := 0; i < outbox.MaxRetries; i++ {
		require.NoError(t, queue.Resolve([]outbox.Result{{ID: stuck.ID, Status: outbox.StatusRetryable}}))
	}
	require.Equal(t, 1, queue.Len(), "action survives up to the cap")

	require.NoError(t, queue.Resolve([]outbox.Result{{ID: stuck.ID, Status: outbox.StatusRetryable}}))
	assert.Zero(t, queue.Len(), "the verdict past the cap drops the action")
}

// # Persistence

func TestQueue_PersistsAcrossRestart(t *testing.T) {
	store := outbox.NewMemoryStore()
	queue, err := outbox.NewQueue(store, discard())
	require.NoError(t, err)

	queued := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-1"}, 100)
	require.NoError(t, queue.Enqueue(queued))

	reopened, err := outbox.NewQueue(store, discard())
	require.NoError(t, err)
	pending := reopened.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, queued.ID, pending[0].ID)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox", "backlog.json")
	store := outbox.NewFileStore(path)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded, "missing file reads as empty backlog")

	saved := []outbox.Action{
		action(t, outbox.TypeChapterRead, map[string]any{"entryId": "ent-1", "chapterNumber": 7}, 100),
		action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-2"}, 200),
	}
	require.NoError(t, store.Save(saved))

	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

// # Replayer

type fakeSender struct {
	sends   [][]outbox.Action
	respond func(actions []outbox.Action) ([]outbox.Result, error)
}

func (sender *fakeSender) Send(_ context.Context, actions []outbox.Action) ([]outbox.Result, error) {
	sender.sends = append(sender.sends, actions)
	return sender.respond(actions)
}

func TestReplayer_AppliesVerdicts(t *testing.T) {
	queue := newQueue(t)
	kept := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-1"}, 100)
	done := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-2"}, 200)
	require.NoError(t, queue.Enqueue(kept))
	require.NoError(t, queue.Enqueue(done))

	sender := &fakeSender{respond: func(actions []outbox.Action) ([]outbox.Result, error) {
		results := make([]outbox.Result, len(actions))
		for i, a := range actions {
			status := outbox.StatusSuccess
			if a.ID == kept.ID {
				status = outbox.StatusRetryable
			}
			results[i] = outbox.Result{ID: a.ID, Status: status}
		}
		return results, nil
	}}

	replayer := outbox.NewReplayer(queue, sender, discard())
	require.NoError(t, replayer.Replay(context.Background()))

	require.Len(t, sender.sends, 1)
	assert.Len(t, sender.sends[0], 2)

	pending := queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, kept.ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].RetryCount)
}

func TestReplayer_TransportFailureLeavesBacklog(t *testing.T) {
	queue := newQueue(t)
	stuck := action(t, outbox.TypeLibraryDelete, map[string]any{"entryId": "ent-1"}, 100)
	require.NoError(t, queue.Enqueue(stuck))

	sender := &fakeSender{respond: func([]outbox.Action) ([]outbox.Result, error) {
		return nil, assert.AnError
	}}

	replayer := outbox.NewReplayer(queue, sender, discard())
	require.Error(t, replayer.Replay(context.Background()))

	pending := queue.Pending()
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].RetryCount, "transport failures never consume retries")
}

func TestReplayer_EmptyBacklogSendsNothing(t *testing.T) {
	queue := newQueue(t)
	sender := &fakeSender{respond: func([]outbox.Action) ([]outbox.Result, error) {
		return nil, nil
	}}

	replayer := outbox.NewReplayer(queue, sender, discard())
	require.NoError(t, replayer.Replay(context.Background()))
	assert.Empty(t, sender.sends)
}

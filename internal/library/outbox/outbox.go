// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package outbox implements the client half of offline sync: a durable FIFO
of user intents recorded while the device has no connection, replayed
against the sync endpoint once it does.

The wire contract (Action, Result and the replay envelope) lives here and
is shared with the server-side reconciler so the two halves cannot drift.
Persistence is pluggable: tests use the in-memory store, devices use a
JSON file.
*/
package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// # Action Types

const (
	TypeLibraryAdd    = "LIBRARY_ADD"
	TypeLibraryUpdate = "LIBRARY_UPDATE"
	TypeLibraryDelete = "LIBRARY_DELETE"
	TypeChapterRead   = "CHAPTER_READ"
	TypeSettingUpdate = "SETTING_UPDATE"
)

// Types is the closed set of replayable action types.
var Types = []string{TypeLibraryAdd, TypeLibraryUpdate, TypeLibraryDelete, TypeChapterRead, TypeSettingUpdate}

// ValidType reports whether raw is a recognized action type.
func ValidType(raw string) bool {
	for _, t := range Types {
		if t == raw {
			return true
		}
	}
	return false
}

// MaxRetries bounds retryable verdicts per action; once the counter
// would exceed it the action is dropped for good.
const MaxRetries = 5

// # Replay Statuses

// Per-action verdicts returned by the sync endpoint. The client dequeues
// on success, bumps the retry counter on retryable and drops the action
// on permanent.
const (
	StatusSuccess   = "success"
	StatusRetryable = "retryable"
	StatusPermanent = "permanent"
)

// # Wire Contract

// Action is one recorded user intent. Timestamp is the client event time
// in Unix milliseconds and drives both last-writer-wins on the server
// and the replay order.
type Action struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"`
	DeviceID   string          `json:"deviceId"`
	RetryCount int             `json:"retryCount"`
}

// NewAction records an intent happening now on the given device.
func NewAction(actionType string, payload any, deviceID string) (Action, error) {
	if !ValidType(actionType) {
		return Action{}, fmt.Errorf("outbox: unknown action type %q", actionType)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("outbox: encode payload: %w", err)
	}
	return Action{
		ID:        uuidv7.New(),
		Type:      actionType,
		Payload:   encoded,
		Timestamp: time.Now().UnixMilli(),
		DeviceID:  deviceID,
	}, nil
}

// Time returns the client event time carried by the action.
func (a Action) Time() time.Time {
	return time.UnixMilli(a.Timestamp).UTC()
}

// Before orders actions for replay: client timestamp ascending, ties
// broken by action id so the order is total.
func (a Action) Before(other Action) bool {
	if a.Timestamp != other.Timestamp {
		return a.Timestamp < other.Timestamp
	}
	return a.ID < other.ID
}

// ReplayRequest is the body of POST /sync/replay.
type ReplayRequest struct {
	Actions []Action `json:"actions"`
}

// Result is the server's verdict on one action.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ReplayResponse is the response body of POST /sync/replay.
type ReplayResponse struct {
	Results []Result `json:"results"`
}

// payloadKeys is the slice of any payload the dedup rules inspect.
type payloadKeys struct {
	EntryID       string  `json:"entryId"`
	SeriesID      string  `json:"seriesId"`
	ChapterNumber float64 `json:"chapterNumber"`
}

func dedupKeys(action Action) (payloadKeys, bool) {
	var keys payloadKeys
	if err := json.Unmarshal(action.Payload, &keys); err != nil {
		return payloadKeys{}, false
	}
	return keys, true
}

// # Queue

// Queue is the device-side intent backlog. All methods are safe for
// concurrent use.
type Queue struct {
	mu      sync.Mutex
	store   Store
	actions []Action
	changes chan struct{}
	logger  *slog.Logger
}

// NewQueue loads any persisted backlog from the store.
func NewQueue(store Store, logger *slog.Logger) (*Queue, error) {
	actions, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("outbox: load backlog: %w", err)
	}
	return &Queue{
		store:   store,
		actions: actions,
		changes: make(chan struct{}, 1),
		logger:  logger,
	}, nil
}

// Changes signals after every enqueue that altered the backlog; the
// replayer selects on it.
func (queue *Queue) Changes() <-chan struct{} {
	return queue.changes
}

/*
Enqueue records an action, folding it into the backlog:

  - CHAPTER_READ for the same entry keeps whichever action carries the
    higher chapter number.
  - LIBRARY_UPDATE for the same entry keeps the newest.
  - LIBRARY_ADD for the same series keeps the newest.
  - Everything else appends.

A surviving stored action keeps its queue position; when the incoming
action loses, the backlog is untouched.
*/
func (queue *Queue) Enqueue(action Action) error {
	if !ValidType(action.Type) {
		return fmt.Errorf("outbox: unknown action type %q", action.Type)
	}
	if action.ID == "" {
		return errors.New("outbox: action id is required")
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()

	changed := true
	if idx, replace := queue.match(action); idx >= 0 {
		if replace {
			queue.actions[idx] = action
		} else {
			changed = false
		}
	} else {
		queue.actions = append(queue.actions, action)
	}
	if !changed {
		return nil
	}
	if err := queue.persist(); err != nil {
		return err
	}
	queue.notify()
	return nil
}

// match finds the queued action the incoming one folds into. index -1
// means append; replace reports whether the incoming action wins the
// slot.
func (queue *Queue) match(incoming Action) (int, bool) {
	keys, ok := dedupKeys(incoming)
	if !ok {
		return -1, false
	}
	for i, stored := range queue.actions {
		if stored.Type != incoming.Type {
			continue
		}
		storedKeys, ok := dedupKeys(stored)
		if !ok {
			continue
		}
		switch incoming.Type {
		case TypeChapterRead:
			if keys.EntryID == "" || storedKeys.EntryID != keys.EntryID {
				continue
			}
			if keys.ChapterNumber != storedKeys.ChapterNumber {
				return i, keys.ChapterNumber > storedKeys.ChapterNumber
			}
			return i, incoming.Timestamp >= stored.Timestamp
		case TypeLibraryUpdate:
			if keys.EntryID == "" || storedKeys.EntryID != keys.EntryID {
				continue
			}
			return i, incoming.Timestamp >= stored.Timestamp
		case TypeLibraryAdd:
			if keys.SeriesID == "" || storedKeys.SeriesID != keys.SeriesID {
				continue
			}
			return i, incoming.Timestamp >= stored.Timestamp
		}
	}
	return -1, false
}

// Pending returns the backlog in replay order.
func (queue *Queue) Pending() []Action {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	pending := make([]Action, len(queue.actions))
	copy(pending, queue.actions)
	sort.Slice(pending, func(i, j int) bool { return pending[i].Before(pending[j]) })
	return pending
}

// Len reports the queued action count.
func (queue *Queue) Len() int {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.actions)
}

/*
Resolve applies the server's replay verdicts. Success and permanent both
remove the action — a permanent verdict discards the user's intent
deliberately and is logged. Retryable bumps the retry counter; past the
cap the action is assumed obsolete and dropped too.
*/
func (queue *Queue) Resolve(results []Result) error {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	verdicts := make(map[string]string, len(results))
	for _, result := range results {
		verdicts[result.ID] = result.Status
	}

	kept := queue.actions[:0]
	for _, action := range queue.actions {
		verdict, ok := verdicts[action.ID]
		if !ok {
			kept = append(kept, action)
			continue
		}
		switch verdict {
		case StatusSuccess:
		case StatusPermanent:
			queue.logger.Warn("outbox_action_dropped",
				slog.String("action_id", action.ID),
				slog.String("action_type", action.Type),
				slog.String("reason", "permanent"),
			)
		case StatusRetryable:
			action.RetryCount++
			if action.RetryCount > MaxRetries {
				queue.logger.Warn("outbox_action_dropped",
					slog.String("action_id", action.ID),
					slog.String("action_type", action.Type),
					slog.String("reason", "retries_exhausted"),
				)
				continue
			}
			kept = append(kept, action)
		default:
			// Unknown verdict from a newer server: keep and retry later.
			kept = append(kept, action)
		}
	}
	queue.actions = kept
	return queue.persist()
}

func (queue *Queue) persist() error {
	return queue.store.Save(queue.actions)
}

func (queue *Queue) notify() {
	select {
	case queue.changes <- struct{}{}:
	default:
	}
}

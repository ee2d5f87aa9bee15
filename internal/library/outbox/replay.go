// Copyright (c) 2026 MangaTrack. All rights reserved.

package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultHeartbeat is the fallback replay cadence when no other trigger
// fires.
const DefaultHeartbeat = 5 * time.Minute

// maxReplayResponseBytes bounds how much of the server response is read.
const maxReplayResponseBytes = 1 << 20

// Sender delivers one replay batch to the server and returns its
// per-action verdicts.
type Sender interface {
	Send(ctx context.Context, actions []Action) ([]Result, error)
}

// # Replayer

// Replayer drains the outbox against a Sender. Runs are single-flight:
// triggers landing mid-run coalesce into the running one, and the change
// signal left behind schedules a follow-up pass, so no enqueue is lost.
type Replayer struct {
	queue    *Queue
	sender   Sender
	logger   *slog.Logger
	interval time.Duration
	group    singleflight.Group
}

// NewReplayer constructs a replayer with the default heartbeat.
func NewReplayer(queue *Queue, sender Sender, logger *slog.Logger) *Replayer {
	return &Replayer{
		queue:    queue,
		sender:   sender,
		logger:   logger,
		interval: DefaultHeartbeat,
	}
}

// SetInterval overrides the heartbeat cadence. Tests use short intervals.
func (replayer *Replayer) SetInterval(interval time.Duration) {
	if interval > 0 {
		replayer.interval = interval
	}
}

/*
Replay pushes the current backlog to the server once and applies the
verdicts. Callers representing external triggers — connectivity
restored, app foregrounded — invoke it directly; concurrent calls
collapse into the in-flight run and share its result.

A transport failure leaves the backlog untouched: retry counters move
only on explicit per-action verdicts from the server.
*/
func (replayer *Replayer) Replay(ctx context.Context) error {
	_, err, _ := replayer.group.Do("replay", func() (any, error) {
		return nil, replayer.replayOnce(ctx)
	})
	return err
}

func (replayer *Replayer) replayOnce(ctx context.Context) error {
	pending := replayer.queue.Pending()
	if len(pending) == 0 {
		return nil
	}

	results, err := replayer.sender.Send(ctx, pending)
	if err != nil {
		return err
	}
	if err := replayer.queue.Resolve(results); err != nil {
		return err
	}

	replayer.logger.Info("outbox_replayed",
		slog.Int("sent", len(pending)),
		slog.Int("remaining", replayer.queue.Len()),
	)
	return nil
}

// Run replays on every outbox change and on the heartbeat until the
// context is canceled.
func (replayer *Replayer) Run(ctx context.Context) error {
	ticker := time.NewTicker(replayer.interval)
	defer ticker.Stop()

	replayer.logger.Info("outbox_replayer_started", slog.Duration("heartbeat", replayer.interval))
	for {
		select {
		case <-ctx.Done():
			replayer.logger.Info("outbox_replayer_stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-replayer.queue.Changes():
		}
		if err := replayer.Replay(ctx); err != nil && !errors.Is(err, context.Canceled) {
			replayer.logger.Warn("outbox_replay_failed", slog.Any("error", err))
		}
	}
}

// # HTTP Sender

// HTTPSender posts replay batches to the sync endpoint.
type HTTPSender struct {
	client *http.Client
	url    string
	header http.Header
}

// NewHTTPSender targets url, the full address of the replay endpoint.
// Header entries — typically Authorization and Origin — are copied onto
// every request. A nil client falls back to [http.DefaultClient].
func NewHTTPSender(client *http.Client, url string, header http.Header) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{client: client, url: url, header: header}
}

func (sender *HTTPSender) Send(ctx context.Context, actions []Action) ([]Result, error) {
	body, err := json.Marshal(ReplayRequest{Actions: actions})
	if err != nil {
		return nil, fmt.Errorf("sync replay: encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, sender.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	for key, values := range sender.header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}

	response, err := sender.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	// Re-auth is on the user; until then every queued action is dead
	// weight, so the whole batch resolves permanent.
	if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
		results := make([]Result, len(actions))
		for i, action := range actions {
			results[i] = Result{ID: action.ID, Status: StatusPermanent}
		}
		return results, nil
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sync replay: unexpected status %d", response.StatusCode)
	}

	var decoded ReplayResponse
	if err := json.NewDecoder(io.LimitReader(response.Body, maxReplayResponseBytes)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("sync replay: decode response: %w", err)
	}
	return decoded.Results, nil
}

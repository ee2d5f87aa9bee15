// Copyright (c) 2026 MangaTrack. All rights reserved.

package notify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/notify"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/ratelimit"
)

// # Fakes

type fakeBroker struct {
	counts map[string]queue.Counts
	jobs   []*queue.Job
}

func (fake *fakeBroker) Counts(_ context.Context, queueName string) (queue.Counts, error) {
	return fake.counts[queueName], nil
}

func (fake *fakeBroker) Enqueue(_ context.Context, job *queue.Job) (bool, error) {
	fake.jobs = append(fake.jobs, job)
	return true, nil
}

func (fake *fakeBroker) byQueue(queueName string) []*queue.Job {
	var jobs []*queue.Job
	for _, job := range fake.jobs {
		if job.Queue == queueName {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

type fakeRepo struct {
	subscribers []notify.Subscriber
	inserted    []*notify.Notification
}

func (fake *fakeRepo) ListSubscribers(_ context.Context, _, _ string, premiumOnly bool) ([]notify.Subscriber, error) {
	if !premiumOnly {
		return fake.subscribers, nil
	}
	var premium []notify.Subscriber
	for _, subscriber := range fake.subscribers {
		if subscriber.Premium {
			premium = append(premium, subscriber)
		}
	}
	return premium, nil
}

func (fake *fakeRepo) InsertNotifications(_ context.Context, rows []*notify.Notification) (int, error) {
	fake.inserted = append(fake.inserted, rows...)
	return len(rows), nil
}

func (fake *fakeRepo) ListForUser(_ context.Context, _ string, _ int) ([]*notify.Notification, error) {
	return nil, nil
}

func (fake *fakeRepo) CountUnread(_ context.Context, _ string) (int, error) { return 0, nil }

func (fake *fakeRepo) MarkRead(_ context.Context, _, _ string) error { return nil }

func newPipeline(repo notify.Repository, broker notify.Broker, limiter *ratelimit.Service) *notify.Pipeline {
	return notify.NewPipeline(repo, broker, limiter, slog.New(slog.DiscardHandler))
}

// # Health

func TestHealthForBacklog(t *testing.T) {
	testCases := []struct {
		backlog int
		want    notify.HealthState
	}{
		{0, notify.HealthNormal},
		{9_999, notify.HealthNormal},
		{10_000, notify.HealthOverloaded},
		{19_999, notify.HealthOverloaded},
		{20_000, notify.HealthCritical},
		{49_999, notify.HealthCritical},
		{50_000, notify.HealthRejected},
		{200_000, notify.HealthRejected},
	}
	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("backlog_%d", testCase.backlog), func(t *testing.T) {
			assert.Equal(t, testCase.want, notify.HealthForBacklog(testCase.backlog))
		})
	}
}

// # Intake

func TestChapterDetected_EnqueuesDelayedFanout(t *testing.T) {
	broker := &fakeBroker{}
	pipeline := newPipeline(&fakeRepo{}, broker, nil)

	err := pipeline.ChapterDetected(context.Background(), "ser-1", series.TierB, "ch-1", 12)
	require.NoError(t, err)

	jobs := broker.byQueue(constants.QueueNotification)
	require.Len(t, jobs, 1)
	assert.Equal(t, notify.FanoutJobID("ch-1"), jobs[0].ID)
	assert.False(t, jobs[0].RunAt.IsZero(), "fan-out must wait out the coalesce window")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
	assert.Equal(t, "ser-1", payload["seriesId"])
	assert.Equal(t, "ch-1", payload["chapterId"])
	assert.NotContains(t, payload, "premiumOnly")
}

func TestChapterDetected_CoalescesInQueue(t *testing.T) {
	backend := queue.NewMemoryQueue()
	pipeline := newPipeline(&fakeRepo{}, backend, nil)

	// Two sources publish the same chapter inside the window.
	require.NoError(t, pipeline.ChapterDetected(context.Background(), "ser-1", series.TierA, "ch-1", 3))
	require.NoError(t, pipeline.ChapterDetected(context.Background(), "ser-1", series.TierA, "ch-1", 3))

	counts, err := backend.Counts(context.Background(), constants.QueueNotification)
	require.NoError(t, err)
	assert.Equal(t, queue.Counts{Delayed: 1}, counts)
}

func TestChapterDetected_RejectedDropsSilently(t *testing.T) {
	broker := &fakeBroker{counts: map[string]queue.Counts{
		constants.QueueDeliveryStandard: {Waiting: 60_000},
	}}
	pipeline := newPipeline(&fakeRepo{}, broker, nil)

	err := pipeline.ChapterDetected(context.Background(), "ser-1", series.TierA, "ch-1", 3)
	require.NoError(t, err, "shedding is not an error")
	assert.Empty(t, broker.jobs)
}

func TestChapterDetected_OverloadedShedsTierC(t *testing.T) {
	broker := &fakeBroker{counts: map[string]queue.Counts{
		constants.QueueDeliveryStandard: {Waiting: 8_000},
		constants.QueueDeliveryPremium:  {Waiting: 4_000},
	}}
	pipeline := newPipeline(&fakeRepo{}, broker, nil)

	require.NoError(t, pipeline.ChapterDetected(context.Background(), "ser-c", series.TierC, "ch-c", 1))
	assert.Empty(t, broker.jobs, "tier C sheds under overload")

	require.NoError(t, pipeline.ChapterDetected(context.Background(), "ser-b", series.TierB, "ch-b", 1))
	require.Len(t, broker.jobs, 1, "tier B survives overload")
}

func TestChapterDetected_CriticalFlagsPremiumOnly(t *testing.T) {
	broker := &fakeBroker{counts: map[string]queue.Counts{
		constants.QueueDeliveryStandard: {Waiting: 25_000},
	}}
	pipeline := newPipeline(&fakeRepo{}, broker, nil)

	require.NoError(t, pipeline.ChapterDetected(context.Background(), "ser-1", series.TierA, "ch-1", 3))
	require.Len(t, broker.jobs, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(broker.jobs[0].Payload, &payload))
	assert.Equal(t, true, payload["premiumOnly"])
}

// # Fan-out

func fanoutJob(t *testing.T, premiumOnly bool) *queue.Job {
	t.Helper()
	payload := map[string]any{"seriesId": "ser-1", "chapterId": "ch-1", "number": 12.0}
	if premiumOnly {
		payload["premiumOnly"] = true
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: notify.FanoutJobID("ch-1"), Queue: constants.QueueNotification, Payload: body}
}

func TestHandleFanoutJob_SplitsByTierAndBatch(t *testing.T) {
	repo := &fakeRepo{}
	for index := 0; index < constants.DeliveryBatchSize*2+5; index++ {
		repo.subscribers = append(repo.subscribers, notify.Subscriber{UserID: fmt.Sprintf("std-%d", index)})
	}
	repo.subscribers = append(repo.subscribers,
		notify.Subscriber{UserID: "prem-1", Premium: true},
		notify.Subscriber{UserID: "prem-2", Premium: true})

	broker := &fakeBroker{}
	pipeline := newPipeline(repo, broker, nil)
	require.NoError(t, pipeline.HandleFanoutJob(context.Background(), fanoutJob(t, false)))

	standard := broker.byQueue(constants.QueueDeliveryStandard)
	require.Len(t, standard, 3, "205 standard users split into 3 batches")
	assert.Equal(t, notify.DeliveryJobID("ch-1", "std", 0), standard[0].ID)
	assert.Equal(t, notify.DeliveryJobID("ch-1", "std", 2), standard[2].ID)

	premium := broker.byQueue(constants.QueueDeliveryPremium)
	require.Len(t, premium, 1)

	var batch struct {
		UserIDs []string `json:"userIds"`
	}
	require.NoError(t, json.Unmarshal(standard[0].Payload, &batch))
	assert.Len(t, batch.UserIDs, constants.DeliveryBatchSize)
	require.NoError(t, json.Unmarshal(standard[2].Payload, &batch))
	assert.Len(t, batch.UserIDs, 5)
	require.NoError(t, json.Unmarshal(premium[0].Payload, &batch))
	assert.Equal(t, []string{"prem-1", "prem-2"}, batch.UserIDs)
}

func TestHandleFanoutJob_PremiumOnly(t *testing.T) {
	repo := &fakeRepo{subscribers: []notify.Subscriber{
		{UserID: "std-1"},
		{UserID: "prem-1", Premium: true},
	}}
	broker := &fakeBroker{}
	pipeline := newPipeline(repo, broker, nil)

	require.NoError(t, pipeline.HandleFanoutJob(context.Background(), fanoutJob(t, true)))
	assert.Empty(t, broker.byQueue(constants.QueueDeliveryStandard))
	require.Len(t, broker.byQueue(constants.QueueDeliveryPremium), 1)
}

func TestHandleFanoutJob_NoSubscribers(t *testing.T) {
	broker := &fakeBroker{}
	pipeline := newPipeline(&fakeRepo{}, broker, nil)

	require.NoError(t, pipeline.HandleFanoutJob(context.Background(), fanoutJob(t, false)))
	assert.Empty(t, broker.jobs)
}

func TestHandleFanoutJob_MalformedPayload(t *testing.T) {
	pipeline := newPipeline(&fakeRepo{}, &fakeBroker{}, nil)

	err := pipeline.HandleFanoutJob(context.Background(), &queue.Job{Payload: []byte(`{]`)})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

// # Delivery

func deliveryJob(t *testing.T, userIDs ...string) *queue.Job {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"seriesId": "ser-1", "chapterId": "ch-1", "number": 12.0, "userIds": userIDs,
	})
	require.NoError(t, err)
	return &queue.Job{ID: "delivery-ch-1-std-0", Queue: constants.QueueDeliveryStandard, Payload: body}
}

func TestHandleDeliveryJob_InsertsBatch(t *testing.T) {
	repo := &fakeRepo{}
	pipeline := newPipeline(repo, &fakeBroker{}, nil)

	require.NoError(t, pipeline.HandleDeliveryJob(context.Background(), deliveryJob(t, "usr-1", "usr-2")))

	require.Len(t, repo.inserted, 2)
	for _, notification := range repo.inserted {
		assert.NotEmpty(t, notification.ID)
		assert.Equal(t, "ser-1", notification.SeriesID)
		assert.Equal(t, "ch-1", notification.ChapterID)
	}
}

func TestHandleDeliveryJob_PerSeriesCap(t *testing.T) {
	repo := &fakeRepo{}
	pipeline := newPipeline(repo, &fakeBroker{}, ratelimit.NewService(nil))

	// Same user, same series, repeated chapters: the per-series cap (5/h)
	// kicks in on the sixth delivery.
	for index := 0; index < 7; index++ {
		job := deliveryJob(t, "cap-user-series")
		require.NoError(t, pipeline.HandleDeliveryJob(context.Background(), job))
	}
	assert.Len(t, repo.inserted, 5, "deliveries past the per-series cap are dropped")
}

func TestHandleDeliveryJob_MalformedPayload(t *testing.T) {
	pipeline := newPipeline(&fakeRepo{}, &fakeBroker{}, nil)

	err := pipeline.HandleDeliveryJob(context.Background(), &queue.Job{Payload: []byte(`{]`)})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))

	err = pipeline.HandleDeliveryJob(context.Background(), deliveryJob(t))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

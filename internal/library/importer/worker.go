// Copyright (c) 2026 MangaTrack. All rights reserved.

package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/resolver"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/slug"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// ImportSourceName marks entries created without a source URL; they stay
// metadata-unavailable until the user supplies a real one.
const ImportSourceName = "import"

// Entries is the slice of the library store the worker writes through.
type Entries interface {
	Create(ctx context.Context, entity *entry.Entry) error
}

// Engine grants the one-time migration XP bonus.
type Engine interface {
	GrantMigrationBonus(ctx context.Context, userID string, importedChapters int) (*progress.BonusResult, error)
}

// Worker consumes import queue jobs.
type Worker struct {
	repo    Repository
	entries Entries
	engine  Engine
	jobs    queue.Queue
	// site is the public canonical URL, hosting placeholder source URLs
	// for rows imported without one.
	site   string
	logger *slog.Logger
}

// NewWorker wires the import worker.
func NewWorker(repo Repository, entries Entries, engine Engine, jobs queue.Queue, site string, logger *slog.Logger) *Worker {
	return &Worker{
		repo:    repo,
		entries: entries,
		engine:  engine,
		jobs:    jobs,
		site:    strings.TrimRight(site, "/"),
		logger:  logger,
	}
}

type importPayload struct {
	JobID string `json:"jobId"`
}

/*
HandleImportJob processes one accepted batch: creates library entries,
schedules metadata resolution for rows with a real source URL, and grants
the migration bonus sized by the chapters the batch brought in.

The whole run fits the bulk transaction budget. A crash mid-run is safe
to redeliver: rows created by the earlier attempt dedup against the
library identity on the rerun and count as skipped, so the settled
counters still account for every submitted row exactly once.
*/
func (worker *Worker) HandleImportJob(context context.Context, job *queue.Job) error {
	var payload importPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("malformed import payload: %w", err))
	}
	if payload.JobID == "" {
		return queue.Permanent(fmt.Errorf("import payload missing jobId"))
	}

	deadline, cancel := contextWithBudget(context)
	defer cancel()

	record, err := worker.repo.ClaimJob(deadline, payload.JobID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return queue.Permanent(err)
		}
		return worker.maybeSettle(deadline, job, payload.JobID, err)
	}
	if record.Settled() {
		worker.logger.Info("import_already_settled",
			slog.String("job_id", record.ID),
			slog.String("status", record.Status),
		)
		return nil
	}

	identities, err := worker.repo.LibraryIdentity(deadline, record.UserID)
	if err != nil {
		return worker.maybeSettle(deadline, job, record.ID, err)
	}
	urls := make(map[string]bool, len(identities))
	titles := make(map[string]bool, len(identities))
	for _, identity := range identities {
		urls[identity.SourceURL] = true
		titles[slug.From(identity.Title)] = true
	}

	imported, skipped, failed := 0, record.Skipped, record.Failed
	chapters := 0

	for _, row := range record.Entries {
		if worker.duplicate(row, urls, titles) {
			skipped++
			metrics.ImportEntries.WithLabelValues("skipped").Inc()
			continue
		}

		entity := worker.buildEntry(record.UserID, row)
		if err := worker.entries.Create(deadline, entity); err != nil {
			if apperr.IsConflict(err) {
				// Raced with a concurrent add of the same source.
				skipped++
				metrics.ImportEntries.WithLabelValues("skipped").Inc()
				continue
			}
			ae := apperr.As(err)
			if ae == nil || ae.HTTPStatus >= 500 {
				// Infrastructure trouble: stop and let the queue retry the
				// whole batch rather than failing every remaining row.
				return worker.maybeSettle(deadline, job, record.ID, err)
			}
			failed++
			metrics.ImportEntries.WithLabelValues("failed").Inc()
			worker.logger.Warn("import_entry_failed",
				slog.String("job_id", record.ID),
				slog.String("title", row.Title),
				slog.Any("error", err),
			)
			continue
		}

		imported++
		chapters += int(row.LastReadChapter)
		urls[entity.SourceURL] = true
		titles[slug.From(entity.Title)] = true
		metrics.ImportEntries.WithLabelValues("imported").Inc()

		if row.SourceURL != "" {
			worker.enqueueResolution(deadline, entity.ID)
		}
	}

	if imported > 0 && chapters > 0 {
		if _, err := worker.engine.GrantMigrationBonus(deadline, record.UserID, chapters); err != nil {
			// The grant is one-shot server-side; a failure here cannot be
			// replayed through the queue without re-running the batch.
			worker.logger.Error("migration_bonus_failed",
				slog.String("job_id", record.ID),
				slog.String("user_id", record.UserID),
				slog.Int("chapters", chapters),
				slog.Any("error", err),
			)
		}
	}

	if err := worker.repo.FinishJob(deadline, record.ID, JobCompleted, imported, skipped, failed, ""); err != nil {
		return err
	}

	worker.logger.Info("import_completed",
		slog.String("job_id", record.ID),
		slog.String("user_id", record.UserID),
		slog.Int("imported", imported),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		slog.Int("chapters", chapters),
	)
	return nil
}

// duplicate applies the dedup rule against the live library: URL-bearing
// rows match on canonical URL, title-only rows on slugged title.
func (worker *Worker) duplicate(row Entry, urls, titles map[string]bool) bool {
	if row.SourceURL != "" {
		return urls[row.SourceURL]
	}
	return titles[slug.From(row.Title)]
}

func (worker *Worker) buildEntry(userID string, row Entry) *entry.Entry {
	entity := &entry.Entry{
		ID:              uuidv7.New(),
		UserID:          userID,
		Title:           row.Title,
		SourceURL:       row.SourceURL,
		SourceName:      sourceNameOf(row.SourceURL),
		Status:          row.Status,
		LastReadChapter: row.LastReadChapter,
		MetadataStatus:  constants.MetadataStatusPending,
		MetadataSource:  constants.MetadataSourceAuto,
		SyncStatus:      constants.SyncStatusHealthy,
	}
	if row.SourceURL == "" {
		// No URL to resolve or crawl. The entry gets a stable placeholder
		// address under the canonical site and parks as unavailable.
		entity.SourceURL = worker.placeholderURL(row)
		entity.SourceName = ImportSourceName
		entity.MetadataStatus = constants.MetadataStatusUnavailable
	}
	return entity
}

// placeholderURL synthesizes a per-user-unique source URL for title-only
// rows. The external id wins when present; otherwise the slugged title,
// so re-imports of the same export collide on the uniqueness constraint
// instead of duplicating.
func (worker *Worker) placeholderURL(row Entry) string {
	key := row.ExternalID
	if key == "" {
		key = slug.From(row.Title)
	}
	return fmt.Sprintf("%s/library/imported/%s", worker.site, url.PathEscape(key))
}

// sourceNameOf derives the display source name from a canonical URL's
// host.
func sourceNameOf(canonicalURL string) string {
	parsed, err := url.Parse(canonicalURL)
	if err != nil || parsed.Hostname() == "" {
		return ImportSourceName
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

func (worker *Worker) enqueueResolution(context context.Context, entryID string) {
	payload, err := json.Marshal(map[string]string{"entryId": entryID})
	if err == nil {
		_, err = worker.jobs.Enqueue(context, &queue.Job{
			ID:      resolver.JobID(entryID),
			Queue:   constants.QueueSeriesResolution,
			Payload: payload,
		})
	}
	if err != nil {
		// Same recovery story as an interactive add: the entry stays
		// pending and the retry endpoint can reschedule it.
		worker.logger.Warn("resolution_enqueue_failed",
			slog.String("entry_id", entryID),
			slog.Any("error", err),
		)
	}
}

// maybeSettle returns err for the queue to retry, but on the final
// attempt first parks the job row as failed so polling clients are not
// left watching a job that will never finish.
func (worker *Worker) maybeSettle(context context.Context, job *queue.Job, importID string, err error) error {
	if job.Attempts >= job.MaxAttempts {
		if finishErr := worker.repo.FinishJob(context, importID, JobFailed, 0, 0, 0, err.Error()); finishErr != nil {
			worker.logger.Error("import_settle_failed",
				slog.String("job_id", importID),
				slog.Any("error", finishErr),
			)
		}
	}
	return err
}

// contextWithBudget applies the bulk transaction budget to the whole
// batch run.
func contextWithBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, constants.BulkTxTimeout)
}

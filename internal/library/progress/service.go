// Copyright (c) 2026 MangaTrack. All rights reserved.

package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/validate"
)

// Validation field names surfaced in VALIDATION_ERROR details.
const (
	FieldChapterNumber = "chapter_number"
	FieldDeviceID      = "device_id"
)

// Service owns progress workflows and the trust assessment that rides
// along with them.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService wires the read-state service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// MarkRequest is the progress endpoint body.
type MarkRequest struct {
	ChapterNumber float64   `json:"chapterNumber"`
	SourceID      string    `json:"sourceId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	DeviceID      string    `json:"deviceId"`
}

/*
Mark advances a user's progress on one entry to the given chapter.

The write itself runs in the store's transaction; afterwards the read is
assessed for trust violations. Assessment failures are logged and
swallowed — a read is never blocked and XP is never cancelled by the
anti-abuse layer.

Returns:
  - *MarkResult: updated entry plus the XP/level/streak/season outcome.
  - error: VALIDATION_ERROR on bad input; NOT_FOUND, BAD_REQUEST or
    CONFLICT from the store.
*/
func (service *Service) Mark(context context.Context, userID, entryID string, request MarkRequest) (*MarkResult, error) {
	validator := &validate.Validator{}
	validator.Custom(FieldChapterNumber, request.ChapterNumber <= 0, "Chapter number must be positive")
	validator.Required(FieldDeviceID, request.DeviceID)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := service.repo.MarkProgress(context, MarkInput{
		UserID:        userID,
		EntryID:       entryID,
		ChapterNumber: request.ChapterNumber,
		SourceID:      request.SourceID,
		Timestamp:     request.Timestamp,
		DeviceID:      request.DeviceID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	service.assessTrust(context, userID, result.PrevLastReadAt, now)

	service.logger.Info("progress_marked",
		slog.String("entry_id", entryID),
		slog.String("user_id", userID),
		slog.Float64("chapter", request.ChapterNumber),
		slog.Int("newly_read", result.NewlyRead),
		slog.Int("xp_delta", result.XPDelta),
	)
	return result, nil
}

// assessTrust classifies a suspiciously fast read and books at most one
// violation: metronomic intervals outrank the bulk escalation, which
// outranks the plain speed flag. Every failure here is logged and
// dropped.
func (service *Service) assessTrust(context context.Context, userID string, prevLastReadAt *time.Time, now time.Time) {
	if prevLastReadAt == nil {
		return
	}
	// Page counts are not tracked server-side, so the threshold degrades
	// to the 30-second floor.
	if !SuspiciousRead(now.Sub(*prevLastReadAt), 0) {
		return
	}

	violationType := ViolationSpeedRead

	stamps, err := service.repo.RecentReadTimes(context, userID, patternSampleSize)
	if err != nil {
		service.logger.Warn("trust_history_lookup_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		stamps = nil
	}
	if MetronomicPattern(stamps) {
		violationType = ViolationPatternRepetition
	} else {
		recent, err := service.repo.CountRecentViolations(context, userID, ViolationSpeedRead, now.Add(-bulkWindow))
		if err != nil {
			service.logger.Warn("trust_history_lookup_failed",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
		} else if recent >= bulkThreshold {
			violationType = ViolationBulkSpeedRead
		}
	}

	recorded, err := service.repo.RecordViolation(context, userID, violationType, now)
	if err != nil {
		service.logger.Warn("trust_violation_record_failed",
			slog.String("user_id", userID),
			slog.String("violation_type", violationType),
			slog.Any("error", err),
		)
		return
	}
	if recorded {
		service.logger.Warn("trust_violation_recorded",
			slog.String("user_id", userID),
			slog.String("violation_type", violationType),
		)
	}
}

// GrantMigrationBonus forwards the one-time import grant.
func (service *Service) GrantMigrationBonus(context context.Context, userID string, importedChapters int) (*BonusResult, error) {
	result, err := service.repo.GrantMigrationBonus(context, userID, importedChapters)
	if err != nil {
		return nil, err
	}
	if result.Granted {
		service.logger.Info("migration_bonus_granted",
			slog.String("user_id", userID),
			slog.Int("amount", result.Amount),
			slog.Int("imported_chapters", importedChapters),
		)
	}
	return result, nil
}

// # Maintenance

// DecayTrust applies the daily trust recovery step. Run once per day.
func (service *Service) DecayTrust(context context.Context) error {
	touched, err := service.repo.DecayTrustScores(context)
	if err != nil {
		return err
	}
	service.logger.Info("trust_decay_completed", slog.Int64("accounts", touched))
	return nil
}

// ReconcileCounters recomputes drifted chapters_read counters from the
// read ledger.
func (service *Service) ReconcileCounters(context context.Context) error {
	corrected, err := service.repo.ReconcileReadCounts(context)
	if err != nil {
		return err
	}
	service.logger.Info("read_counters_reconciled", slog.Int64("accounts", corrected))
	return nil
}

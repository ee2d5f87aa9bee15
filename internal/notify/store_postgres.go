// Copyright (c) 2026 MangaTrack. All rights reserved.

package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/database/schema"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/dberr"
)

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (repository *PostgresRepository) ListSubscribers(ctx context.Context, seriesID, chapterID string, premiumOnly bool) ([]Subscriber, error) {
	// One round trip: entry filter, account join and read exclusion in a
	// single statement. A user marking the chapter read during the
	// coalesce window disappears from this result.
	query := fmt.Sprintf(`
		SELECT entry.%s, (account.%s = 'premium') AS premium
		FROM %s entry
		JOIN %s account ON account.%s = entry.%s AND account.%s IS NULL
		WHERE entry.%s = $1
		  AND entry.%s IS NULL
		  AND entry.%s IN ('reading', 'planning')
		  AND NOT EXISTS (
		      SELECT 1 FROM %s read
		      WHERE read.%s = entry.%s AND read.%s = $2 AND read.%s
		  )`,
		schema.LibraryEntry.UserID, schema.UserAccount.SubscriptionTier,
		schema.LibraryEntry.Table,
		schema.UserAccount.Table, schema.UserAccount.ID, schema.LibraryEntry.UserID, schema.UserAccount.DeletedAt,
		schema.LibraryEntry.SeriesID,
		schema.LibraryEntry.DeletedAt,
		schema.LibraryEntry.Status,
		schema.LibraryChapterRead.Table,
		schema.LibraryChapterRead.UserID, schema.LibraryEntry.UserID,
		schema.LibraryChapterRead.ChapterID, schema.LibraryChapterRead.IsRead,
	)
	if premiumOnly {
		query += fmt.Sprintf(" AND account.%s = 'premium'", schema.UserAccount.SubscriptionTier)
	}

	rows, err := repository.db.Query(ctx, query, seriesID, chapterID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_subscribers")
	}
	defer rows.Close()

	var subscribers []Subscriber
	for rows.Next() {
		var subscriber Subscriber
		if err := rows.Scan(&subscriber.UserID, &subscriber.Premium); err != nil {
			return nil, dberr.Wrap(err, "scan_subscriber")
		}
		subscribers = append(subscribers, subscriber)
	}
	return subscribers, dberr.Wrap(rows.Err(), "list_subscribers")
}

func (repository *PostgresRepository) InsertNotifications(ctx context.Context, notifications []*Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	ids := make([]string, len(notifications))
	userIDs := make([]string, len(notifications))
	for index, notification := range notifications {
		ids[index] = notification.ID
		userIDs[index] = notification.UserID
	}

	// All rows of one batch share the chapter; unnest keeps it a single
	// statement. The (userid, chapterid) unique index swallows replays.
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		SELECT unnest($1::text[]), unnest($2::text[]), $3, $4, false, now()
		ON CONFLICT (%s, %s) DO NOTHING`,
		schema.LibraryNotification.Table,
		schema.LibraryNotification.ID, schema.LibraryNotification.UserID,
		schema.LibraryNotification.SeriesID, schema.LibraryNotification.ChapterID,
		schema.LibraryNotification.IsRead, schema.LibraryNotification.CreatedAt,
		schema.LibraryNotification.UserID, schema.LibraryNotification.ChapterID,
	)

	tag, err := repository.db.Exec(ctx, query, ids, userIDs, notifications[0].SeriesID, notifications[0].ChapterID)
	if err != nil {
		return 0, dberr.Wrap(err, "insert_notifications")
	}
	return int(tag.RowsAffected()), nil
}

func (repository *PostgresRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s DESC
		LIMIT $2`,
		schema.LibraryNotification.ID, schema.LibraryNotification.UserID,
		schema.LibraryNotification.SeriesID, schema.LibraryNotification.ChapterID,
		schema.LibraryNotification.IsRead, schema.LibraryNotification.CreatedAt,
		schema.LibraryNotification.Table,
		schema.LibraryNotification.UserID,
		schema.LibraryNotification.CreatedAt,
	)

	rows, err := repository.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "list_notifications")
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var notification Notification
		err := rows.Scan(
			&notification.ID, &notification.UserID, &notification.SeriesID,
			&notification.ChapterID, &notification.IsRead, &notification.CreatedAt,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_notification")
		}
		notifications = append(notifications, &notification)
	}
	return notifications, dberr.Wrap(rows.Err(), "list_notifications")
}

func (repository *PostgresRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT count(*) FROM %s WHERE %s = $1 AND NOT %s`,
		schema.LibraryNotification.Table,
		schema.LibraryNotification.UserID,
		schema.LibraryNotification.IsRead,
	)

	var count int
	if err := repository.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, dberr.Wrap(err, "count_unread_notifications")
	}
	return count, nil
}

func (repository *PostgresRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = true WHERE %s = $1 AND %s = $2`,
		schema.LibraryNotification.Table,
		schema.LibraryNotification.IsRead,
		schema.LibraryNotification.ID,
		schema.LibraryNotification.UserID,
	)

	tag, err := repository.db.Exec(ctx, query, notificationID, userID)
	if err != nil {
		return dberr.Wrap(err, "mark_notification_read")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

// Package notification persists Notification rows and invalidates the
// per-user cache key on every write (spec section 4.8), grounded on the
// pack's Event/payload shape generalized from pub-sub messaging into direct
// persistence since this system has no external message broker wired.
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/cache"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/models"
)

// Bus is the NotificationBus contract (spec section 4.8).
type Bus interface {
	// Notify persists a Notification for userID and invalidates the cached
	// listing for that user. bookingID is nil for kinds that don't carry one.
	Notify(ctx context.Context, userID uuid.UUID, kind models.NotificationKind, payload map[string]interface{}, bookingID *uuid.UUID) error

	List(ctx context.Context, userID uuid.UUID, page models.Page) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) error
}

type bus struct {
	db    database.DBPool
	cache cache.Layer
}

// New builds a Bus.
func New(db database.DBPool, cacheLayer cache.Layer) Bus {
	return &bus{db: db, cache: cacheLayer}
}

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// Notify enforces the at-most-one-per-(userId,bookingId) rule for the kinds
// that declare it (rate_driver, rate_passenger) by looking for an existing
// row first and returning early if there is one, then persists and
// invalidates the cache. The check and the insert are separate statements.
func (b *bus) Notify(ctx context.Context, userID uuid.UUID, kind models.NotificationKind, payload map[string]interface{}, bookingID *uuid.UUID) error {
	if kind.EnforcesBookingUniqueness() && bookingID != nil {
		var exists bool
		err := b.db.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM notifications
				WHERE user_id = $1 AND kind = $2 AND booking_id = $3
			)
		`, userID, kind, *bookingID).Scan(&exists)
		if err != nil {
			return apperr.ValidationWrap("check notification uniqueness failed", err)
		}
		if exists {
			return nil
		}
	}

	_, err := b.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, payload, booking_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())
	`, uuid.New(), userID, kind, payload, bookingID)
	if err != nil {
		return apperr.ValidationWrap("persist notification failed", err)
	}

	return b.cache.Invalidate(ctx, cacheKey(userID))
}

func (b *bus) List(ctx context.Context, userID uuid.UUID, page models.Page) ([]models.Notification, int, error) {
	if page.Limit <= 0 {
		page.Limit = 20
	}
	if page.Page <= 0 {
		page.Page = 1
	}
	offset := (page.Page - 1) * page.Limit

	var total int
	if err := b.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, apperr.ValidationWrap("count notifications failed", err)
	}

	rows, err := b.db.Query(ctx, `
		SELECT id, user_id, kind, payload, booking_id, is_read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, page.Limit, offset)
	if err != nil {
		return nil, 0, apperr.ValidationWrap("list notifications failed", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Payload, &n.BookingID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, apperr.ValidationWrap("scan notification failed", err)
		}
		out = append(out, n)
	}
	return out, total, nil
}

func (b *bus) MarkRead(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) error {
	tag, err := b.db.Exec(ctx, `
		UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return apperr.ValidationWrap("mark notification read failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found")
	}
	return b.cache.Invalidate(ctx, cacheKey(userID))
}

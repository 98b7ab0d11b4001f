// Package rating implements Rating submission and the periodic scheduler
// that makes completed-leg bookings rateable (spec sections 3 and 4.9).
// The 5-minute sweep cadence and window-based dedup are grounded on the
// periodic-sweep idiom used for expiry/cleanup jobs across the pack.
package rating

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/clock"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/models"
	"github.com/kayafamilly/carpool-core/internal/notification"
)

// ratingEligibilityDelay is how long after departure a Rating may be created
// (spec invariant I7).
const ratingEligibilityDelay = 30 * time.Minute

// sweepInterval is how often RatingScheduler.Run ticks (spec section 4.9).
const sweepInterval = 5 * time.Minute

// sweepWindow is the departedAt lookback band that prevents double-firing
// across adjacent ticks.
const sweepWindow = 5 * time.Minute

// Store submits and reads Ratings.
type Store struct {
	db       database.DBPool
	clock    clock.Clock
	notifier notification.Bus
}

// New builds a rating Store.
func New(db database.DBPool, clk clock.Clock, notifier notification.Bus) *Store {
	return &Store{db: db, clock: clk, notifier: notifier}
}

// Submit creates a Rating for an accepted booking, enforcing invariant I7:
// now >= departureAt + 30min, and (bookingId, fromUserId) uniqueness.
func (s *Store) Submit(ctx context.Context, fromUserID uuid.UUID, req models.SubmitRatingRequest) (*models.Rating, error) {
	var rideID, toUserID, driverID, passengerID uuid.UUID
	var departureAt time.Time
	var bookingStatus models.BookingStatus

	err := s.db.QueryRow(ctx, `
		SELECT b.ride_id, r.driver_id, b.passenger_id, r.departure_at, b.status
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.id = $1
	`, req.BookingID).Scan(&rideID, &driverID, &passengerID, &departureAt, &bookingStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("booking not found")
		}
		return nil, apperr.ValidationWrap("load booking for rating failed", err)
	}

	if bookingStatus != models.BookingAccepted {
		return nil, apperr.State("only accepted bookings may be rated")
	}
	if s.clock.Now().Before(departureAt.Add(ratingEligibilityDelay)) {
		return nil, apperr.State("rating window has not opened yet")
	}

	var ratingType models.RatingType
	switch fromUserID {
	case passengerID:
		ratingType = models.RatingPassengerToDriver
		toUserID = driverID
	case driverID:
		ratingType = models.RatingDriverToPassenger
		toUserID = passengerID
	default:
		return nil, apperr.Permission("only the booking's driver or passenger may rate")
	}

	var existing int
	if err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM ratings WHERE booking_id = $1 AND from_user_id = $2
	`, req.BookingID, fromUserID).Scan(&existing); err != nil {
		return nil, apperr.ValidationWrap("check rating uniqueness failed", err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("a rating already exists for this booking from this user")
	}

	var rating models.Rating
	err = s.db.QueryRow(ctx, `
		INSERT INTO ratings (id, from_user_id, to_user_id, booking_id, ride_id, type, stars, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, from_user_id, to_user_id, booking_id, ride_id, type, stars, comment, created_at
	`, uuid.New(), fromUserID, toUserID, req.BookingID, rideID, ratingType, req.Stars, req.Comment).Scan(
		&rating.ID, &rating.FromUserID, &rating.ToUserID, &rating.BookingID, &rating.RideID,
		&rating.Type, &rating.Stars, &rating.Comment, &rating.CreatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("create rating failed", err)
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE users SET
			rating_mean = (rating_mean * rating_count + $2) / (rating_count + 1),
			rating_count = rating_count + 1
		WHERE id = $1
	`, toUserID, req.Stars); err != nil {
		return nil, apperr.ValidationWrap("update user rating aggregate failed", err)
	}

	_ = s.notifier.Notify(ctx, toUserID, models.NotifyRatingReceived, map[string]interface{}{"bookingId": req.BookingID}, &req.BookingID)

	return &rating, nil
}

// CanRate reports whether fromUserID may currently submit a Rating for
// bookingID: the booking must be accepted, the eligibility window must be
// open, the caller must be a participant, and no Rating from them may exist
// yet. It mirrors Submit's checks without the side effects.
func (s *Store) CanRate(ctx context.Context, fromUserID, bookingID uuid.UUID) (bool, error) {
	var driverID, passengerID uuid.UUID
	var departureAt time.Time
	var bookingStatus models.BookingStatus

	err := s.db.QueryRow(ctx, `
		SELECT r.driver_id, b.passenger_id, r.departure_at, b.status
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.id = $1
	`, bookingID).Scan(&driverID, &passengerID, &departureAt, &bookingStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, apperr.NotFound("booking not found")
		}
		return false, apperr.ValidationWrap("load booking for rating eligibility failed", err)
	}

	if bookingStatus != models.BookingAccepted {
		return false, nil
	}
	if fromUserID != driverID && fromUserID != passengerID {
		return false, nil
	}
	if s.clock.Now().Before(departureAt.Add(ratingEligibilityDelay)) {
		return false, nil
	}

	var existing int
	if err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM ratings WHERE booking_id = $1 AND from_user_id = $2
	`, bookingID, fromUserID).Scan(&existing); err != nil {
		return false, apperr.ValidationWrap("check rating uniqueness failed", err)
	}
	return existing == 0, nil
}

// ListPending lists bookings userID is eligible to rate but hasn't yet.
func (s *Store) ListPending(ctx context.Context, userID uuid.UUID) ([]models.Rating, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.id, r.id, r.driver_id, b.passenger_id
		FROM bookings b
		JOIN rides r ON r.id = b.ride_id
		WHERE b.status = 'accepted'
		  AND (b.passenger_id = $1 OR r.driver_id = $1)
		  AND r.departure_at <= $2
		  AND NOT EXISTS (
		    SELECT 1 FROM ratings WHERE booking_id = b.id AND from_user_id = $1
		  )
	`, userID, s.clock.Now().Add(-ratingEligibilityDelay))
	if err != nil {
		return nil, apperr.ValidationWrap("list pending ratings failed", err)
	}
	defer rows.Close()

	var out []models.Rating
	for rows.Next() {
		var pending models.Rating
		var driverID, passengerID uuid.UUID
		if err := rows.Scan(&pending.BookingID, &pending.RideID, &driverID, &passengerID); err != nil {
			return nil, apperr.ValidationWrap("scan pending rating failed", err)
		}
		if userID == passengerID {
			pending.Type = models.RatingPassengerToDriver
			pending.ToUserID = driverID
		} else {
			pending.Type = models.RatingDriverToPassenger
			pending.ToUserID = passengerID
		}
		pending.FromUserID = userID
		out = append(out, pending)
	}
	return out, nil
}

// Stats aggregates a user's received ratings for profile display.
func (s *Store) Stats(ctx context.Context, userID uuid.UUID) (*models.RatingStats, error) {
	var stats models.RatingStats
	stats.UserID = userID
	err := s.db.QueryRow(ctx, `
		SELECT rating_mean, rating_count FROM users WHERE id = $1
	`, userID).Scan(&stats.Mean, &stats.Count)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.ValidationWrap("load rating stats failed", err)
	}
	return &stats, nil
}

// Scheduler runs the periodic rateable-ride sweep (spec section 4.9).
type Scheduler struct {
	db       database.DBPool
	clock    clock.Clock
	notifier notification.Bus
}

// NewScheduler builds a RatingScheduler.
func NewScheduler(db database.DBPool, clk clock.Clock, notifier notification.Bus) *Scheduler {
	return &Scheduler{db: db, clock: clk, notifier: notifier}
}

// Run ticks every 5 minutes until ctx is cancelled, calling Sweep on each
// tick and logging (not panicking) on error so one bad tick doesn't kill the
// scheduler.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("rating scheduler: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("rating scheduler: notified %d rateable bookings", n)
			}
		}
	}
}

// Sweep finds rides with departureAt in [now-35min, now-30min] and status
// active, and for each accepted booking emits rate_driver/rate_passenger
// unless a Rating of that type already exists. Exported so callers can
// invoke it directly (e.g. from a manual admin endpoint) without waiting
// for the next tick.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) { return sweep(ctx, s.db, s.clock, s.notifier) }

func sweep(ctx context.Context, db database.DBPool, clk clock.Clock, notifier notification.Bus) (int, error) {
	now := clk.Now()
	windowStart := now.Add(-ratingEligibilityDelay - sweepWindow)
	windowEnd := now.Add(-ratingEligibilityDelay)

	rows, err := db.Query(ctx, `
		SELECT r.id, r.driver_id, b.id, b.passenger_id
		FROM rides r
		JOIN bookings b ON b.ride_id = r.id AND b.status = 'accepted'
		WHERE r.status = 'active' AND r.departure_at BETWEEN $1 AND $2
	`, windowStart, windowEnd)
	if err != nil {
		return 0, apperr.ValidationWrap("sweep rateable rides failed", err)
	}

	type pair struct {
		rideID, driverID, bookingID, passengerID uuid.UUID
	}
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.rideID, &p.driverID, &p.bookingID, &p.passengerID); err != nil {
			rows.Close()
			return 0, apperr.ValidationWrap("scan rateable booking failed", err)
		}
		pairs = append(pairs, p)
	}
	rows.Close()

	notified := 0
	for _, p := range pairs {
		var driverAlreadyRated, passengerAlreadyRated bool
		_ = db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ratings WHERE booking_id = $1 AND type = 'passenger_to_driver')`, p.bookingID).Scan(&passengerAlreadyRated)
		_ = db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ratings WHERE booking_id = $1 AND type = 'driver_to_passenger')`, p.bookingID).Scan(&driverAlreadyRated)

		if !passengerAlreadyRated {
			_ = notifier.Notify(ctx, p.passengerID, models.NotifyRateDriver, map[string]interface{}{"bookingId": p.bookingID}, &p.bookingID)
			notified++
		}
		if !driverAlreadyRated {
			_ = notifier.Notify(ctx, p.driverID, models.NotifyRatePassenger, map[string]interface{}{"bookingId": p.bookingID}, &p.bookingID)
			notified++
		}
	}

	return notified, nil
}

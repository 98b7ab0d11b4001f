package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind is a closed enum of notification types (spec section 4.8).
type NotificationKind string

const (
	NotifyBookingRequest   NotificationKind = "booking_request"
	NotifyBookingAccepted  NotificationKind = "booking_accepted"
	NotifyBookingRejected  NotificationKind = "booking_rejected"
	NotifyBookingCancelled NotificationKind = "booking_cancelled"
	NotifyRideCancelled    NotificationKind = "ride_cancelled"
	NotifyChatMessage      NotificationKind = "chat_message"
	NotifyRateDriver       NotificationKind = "rate_driver"
	NotifyRatePassenger    NotificationKind = "rate_passenger"
	NotifyOfferReceived    NotificationKind = "offer_received"
	NotifyOfferRejected    NotificationKind = "offer_rejected"
	NotifyRequestBooked    NotificationKind = "request_booked"
	NotifyRatingReceived   NotificationKind = "rating_received"
)

// onePerBooking lists kinds that enforce at-most-one per (userId, bookingId),
// per spec section 4.8.
var onePerBooking = map[NotificationKind]bool{
	NotifyRateDriver:    true,
	NotifyRatePassenger: true,
}

// EnforcesBookingUniqueness reports whether this kind may fire at most once
// per (userId, bookingId).
func (k NotificationKind) EnforcesBookingUniqueness() bool {
	return onePerBooking[k]
}

// Notification is a persisted, per-user event.
type Notification struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	UserID    uuid.UUID              `json:"userId" db:"user_id"`
	Kind      NotificationKind       `json:"kind" db:"kind"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
	IsRead    bool                   `json:"isRead" db:"is_read"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`

	// BookingID, when non-nil, is the booking this notification refers to,
	// used to enforce the at-most-once kinds above. Not part of the public
	// payload; stored as its own indexed column.
	BookingID *uuid.UUID `json:"-" db:"booking_id"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// RatingType is the direction a Rating was given in.
type RatingType string

const (
	RatingDriverToPassenger RatingType = "driver_to_passenger"
	RatingPassengerToDriver RatingType = "passenger_to_driver"
)

// Rating is feedback left by one side of a completed Booking for the other.
// Uniqueness of (BookingID, FromUserID) is enforced at the store layer.
type Rating struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	FromUserID uuid.UUID `json:"fromUserId" db:"from_user_id"`
	ToUserID  uuid.UUID  `json:"toUserId" db:"to_user_id"`
	BookingID uuid.UUID  `json:"bookingId" db:"booking_id"`
	RideID    uuid.UUID  `json:"rideId" db:"ride_id"`
	Type      RatingType `json:"type" db:"type"`
	Stars     int        `json:"stars" db:"stars"`
	Comment   *string    `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// SubmitRatingRequest is the rating-submission DTO.
type SubmitRatingRequest struct {
	BookingID uuid.UUID `json:"bookingId" validate:"required"`
	Stars     int       `json:"stars" validate:"required,min=1,max=5"`
	Comment   *string   `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

// RatingStats is the aggregate rating summary shown on a user's profile.
type RatingStats struct {
	UserID uuid.UUID `json:"userId"`
	Mean   float64   `json:"mean"`
	Count  int       `json:"count"`
}

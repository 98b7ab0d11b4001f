package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the booking lifecycle state (spec section 3).
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
)

// PaymentStatus tracks settlement state of a Booking or RideRequest.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMethod is how a booking or offer acceptance was paid for.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodNone   PaymentMethod = "none"
)

// RefundReason explains why a 100%-refund was issued.
type RefundReason string

const (
	RefundPassengerCancelled RefundReason = "passenger_cancelled"
	RefundDriverCancelled    RefundReason = "driver_cancelled"
	RefundRideCancelled      RefundReason = "ride_cancelled"
	RefundAdminAction        RefundReason = "admin_action"
)

// Booking is a passenger's claim on a Ride.
type Booking struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	RideID        uuid.UUID      `json:"rideId" db:"ride_id"`
	PassengerID   uuid.UUID      `json:"passengerId" db:"passenger_id"`
	Seats         int            `json:"seats" db:"seats"`
	Luggage       int            `json:"luggage" db:"luggage"`
	Status        BookingStatus  `json:"status" db:"status"`
	Pickup        *GeoPoint      `json:"pickup,omitempty" db:"-"`
	Dropoff       *GeoPoint      `json:"dropoff,omitempty" db:"-"`
	PaymentStatus PaymentStatus  `json:"paymentStatus" db:"payment_status"`
	PaymentMethod PaymentMethod  `json:"paymentMethod" db:"payment_method"`
	PSPIntentID   *string        `json:"pspIntentId,omitempty" db:"psp_intent_id"`
	RefundID      *string        `json:"refundId,omitempty" db:"refund_id"`
	RefundedAt    *time.Time     `json:"refundedAt,omitempty" db:"refunded_at"`
	RefundReason  *RefundReason  `json:"refundReason,omitempty" db:"refund_reason"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
}

// CreateBookingRequest is the pending-booking creation DTO.
type CreateBookingRequest struct {
	Seats   int       `json:"seats" validate:"required,min=1"`
	Luggage int       `json:"luggage" validate:"min=0"`
	Pickup  *GeoPoint `json:"pickup,omitempty"`
	Dropoff *GeoPoint `json:"dropoff,omitempty"`
}

// TransitionBookingRequest drives Booking.Transition (spec section 4.5 matrix).
type TransitionBookingRequest struct {
	Status BookingStatus `json:"status" validate:"required,oneof=accepted rejected cancelled"`
	Seats  *int          `json:"seats,omitempty" validate:"omitempty,min=1"`
}

// PayWithCardRequest is used by PayAndBookWithCard.
type PayWithCardRequest struct {
	RideID  uuid.UUID `json:"rideId" validate:"required"`
	Seats   int       `json:"seats" validate:"required,min=1"`
	Luggage int       `json:"luggage" validate:"min=0"`
}

// CompletePaymentRequest finalizes a card PaymentIntent into a booking.
type CompletePaymentRequest struct {
	IntentID string `json:"intentId" validate:"required"`
}

// PayWithWalletRequest is used by PayAndBookWithWallet.
type PayWithWalletRequest struct {
	RideID  uuid.UUID `json:"rideId" validate:"required"`
	Seats   int       `json:"seats" validate:"required,min=1"`
	Luggage int       `json:"luggage" validate:"min=0"`
}

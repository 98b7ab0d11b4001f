package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestDirection is the leg of a passenger broadcast.
type RequestDirection string

const (
	RequestToAirport   RequestDirection = "to_airport"
	RequestFromAirport RequestDirection = "from_airport"
)

// RideRequestStatus is the request lifecycle state.
type RideRequestStatus string

const (
	RequestPending  RideRequestStatus = "pending"
	RequestAccepted RideRequestStatus = "accepted"
	RequestCancelled RideRequestStatus = "cancelled"
	RequestExpired  RideRequestStatus = "expired"
)

// OfferStatus is the offer lifecycle state.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

// RequestLocation is the passenger's pickup/dropoff location for a request.
type RequestLocation struct {
	Address  string   `json:"address"`
	City     string   `json:"city"`
	Postcode *string  `json:"postcode,omitempty"`
	Location GeoPoint `json:"location"`
}

// Offer is a driver's bid on a RideRequest.
type Offer struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	RequestID    uuid.UUID   `json:"requestId" db:"request_id"`
	DriverID     uuid.UUID   `json:"driverId" db:"driver_id"`
	RideID       *uuid.UUID  `json:"rideId,omitempty" db:"ride_id"`
	PricePerSeat int64       `json:"pricePerSeat" db:"price_per_seat"`
	Message      *string     `json:"message,omitempty" db:"message"`
	Status       OfferStatus `json:"status" db:"status"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"`
}

// RideRequest is a passenger broadcast seeking a matching driver.
type RideRequest struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	PassengerID      uuid.UUID         `json:"passengerId" db:"passenger_id"`
	AirportID        string            `json:"airportId" db:"airport_id"`
	Direction        RequestDirection  `json:"direction" db:"direction"`
	Location         RequestLocation   `json:"location" db:"-"`
	PreferredAt      time.Time         `json:"preferredAt" db:"preferred_at"`
	FlexibilityMins  int               `json:"flexibilityMinutes" db:"flexibility_minutes"`
	SeatsNeeded      int               `json:"seatsNeeded" db:"seats_needed"`
	Luggage          int               `json:"luggage" db:"luggage"`
	MaxPricePerSeat  *int64            `json:"maxPricePerSeat,omitempty" db:"max_price_per_seat"`
	Notes            *string           `json:"notes,omitempty" db:"notes"`
	Status           RideRequestStatus `json:"status" db:"status"`
	Offers           []Offer           `json:"offers,omitempty" db:"-"`
	MatchedDriverID  *uuid.UUID        `json:"matchedDriverId,omitempty" db:"matched_driver_id"`
	MatchedRideID    *uuid.UUID        `json:"matchedRideId,omitempty" db:"matched_ride_id"`
	PaymentStatus    PaymentStatus     `json:"paymentStatus" db:"payment_status"`
	ExpiresAt        time.Time         `json:"expiresAt" db:"expires_at"`
	CreatedAt        time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time         `json:"updatedAt" db:"updated_at"`
}

// CreateRequestRequest is the request-broadcast DTO.
type CreateRequestRequest struct {
	AirportID       string           `json:"airportId" validate:"required"`
	Direction       RequestDirection `json:"direction" validate:"required,oneof=to_airport from_airport"`
	Location        RequestLocation  `json:"location" validate:"required"`
	PreferredAt     time.Time        `json:"preferredAt" validate:"required"`
	FlexibilityMins int              `json:"flexibilityMinutes" validate:"min=0"`
	SeatsNeeded     int              `json:"seatsNeeded" validate:"required,min=1,max=8"`
	Luggage         int              `json:"luggage" validate:"min=0"`
	MaxPricePerSeat *int64           `json:"maxPricePerSeat,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// MakeOfferRequest is the driver-bid DTO.
type MakeOfferRequest struct {
	RideID       *uuid.UUID `json:"rideId,omitempty"`
	PricePerSeat int64      `json:"pricePerSeat" validate:"required,min=0"`
	Message      *string    `json:"message,omitempty"`
}

// AcceptOfferWithPaymentRequest selects an offer and a payment method.
type AcceptOfferWithPaymentRequest struct {
	OfferID uuid.UUID     `json:"offerId" validate:"required"`
	Method  PaymentMethod `json:"method" validate:"required,oneof=card wallet"`
}

// SearchRequestsRequest mirrors spec section 4.7's driver-side request search.
type SearchRequestsRequest struct {
	AirportID    *string           `query:"airportId"`
	Direction    *RequestDirection `query:"direction"`
	Date         *time.Time        `query:"date"`
	City         *string           `query:"city"`
	PickupPoint  *GeoPoint         `query:"pickupPoint"`
	RadiusMeters float64           `query:"radiusMeters"`
}

// RequestSearchResult annotates a request with whether the querying driver
// has already offered, per spec section 4.7.
type RequestSearchResult struct {
	RideRequest
	HasUserOffered bool     `json:"hasUserOffered"`
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

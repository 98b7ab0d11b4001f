package models

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the leg of an airport trip.
type Direction string

const (
	DirectionHomeToAirport Direction = "home_to_airport"
	DirectionAirportToHome Direction = "airport_to_home"
)

// RideStatus is the ride lifecycle state (spec section 3 lifecycles).
type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideCancelled RideStatus = "cancelled"
	RideCompleted RideStatus = "completed"
)

// HomeAddress is the non-airport endpoint of a ride.
type HomeAddress struct {
	Address  *string  `json:"address,omitempty"`
	Postcode string   `json:"postcode"`
	City     string   `json:"city"`
	Location GeoPoint `json:"location"`
}

// Ride is a driver-published trip.
type Ride struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	DriverID      uuid.UUID    `json:"driverId" db:"driver_id"`
	AirportID     string       `json:"airportId" db:"airport_id"`
	Direction     Direction    `json:"direction" db:"direction"`
	Home          HomeAddress  `json:"home" db:"-"`
	DepartureAt   time.Time    `json:"departureAt" db:"departure_at"`
	SeatsTotal    int          `json:"seatsTotal" db:"seats_total"`
	SeatsLeft     int          `json:"seatsLeft" db:"seats_left"`
	LuggageTotal  int          `json:"luggageTotal" db:"luggage_total"`
	LuggageLeft   int          `json:"luggageLeft" db:"luggage_left"`
	PricePerSeat  int64        `json:"pricePerSeat" db:"price_per_seat"`
	Route         []GeoPoint   `json:"route,omitempty" db:"-"`
	Status        RideStatus   `json:"status" db:"status"`
	Comment       *string      `json:"comment,omitempty" db:"comment"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" db:"updated_at"`
}

// CreateRideRequest is the ride-publish DTO.
type CreateRideRequest struct {
	AirportID    string      `json:"airportId" validate:"required"`
	Direction    Direction   `json:"direction" validate:"required,oneof=home_to_airport airport_to_home"`
	Home         HomeAddress `json:"home" validate:"required"`
	DepartureAt  time.Time   `json:"departureAt" validate:"required"`
	SeatsTotal   int         `json:"seatsTotal" validate:"required,min=1"`
	LuggageTotal int         `json:"luggageTotal" validate:"min=0"`
	PricePerSeat int64       `json:"pricePerSeat" validate:"min=0"`
	Route        []GeoPoint  `json:"route,omitempty"`
	Comment      *string     `json:"comment,omitempty"`
}

// UpdateRideRequest is the partial-edit DTO for PATCH /rides/:id.
type UpdateRideRequest struct {
	PricePerSeat *int64     `json:"pricePerSeat,omitempty" validate:"omitempty,min=0"`
	Comment      *string    `json:"comment,omitempty"`
	DepartureAt  *time.Time `json:"departureAt,omitempty"`
}

// SearchRidesRequest mirrors spec section 4.7's ride search inputs.
type SearchRidesRequest struct {
	AirportID     string     `query:"airportId" validate:"required"`
	Direction     *Direction `query:"direction"`
	Date          *time.Time `query:"date"`
	MinSeats      int        `query:"minSeats"`
	PickupPoint   *GeoPoint  `query:"pickupPoint"`
	RadiusMeters  float64    `query:"radiusMeters"`
	Page          int        `query:"page"`
	Limit         int        `query:"limit"`
}

// RideSearchResult is a ride projection excluding the full route polyline,
// per spec section 4.7's "projections exclude the full route ... unless
// explicitly requested".
type RideSearchResult struct {
	Ride
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

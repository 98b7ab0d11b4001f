package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the user's marketplace role.
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
	RoleBoth      Role = "both"
)

// GeoPoint is a (lon, lat) WGS-84 coordinate pair, stored lon-first to match
// GeoJSON / PostGIS ST_MakePoint ordering conventions the teacher already
// uses in UpdateLocation.
type GeoPoint struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// SavedLocation is a user-bookmarked place (home, work, ...).
type SavedLocation struct {
	Label    string   `json:"label"`
	Address  string   `json:"address"`
	Location GeoPoint `json:"location"`
}

// User represents the 'users' table.
type User struct {
	ID                      uuid.UUID       `json:"id" db:"id"`
	Email                   string          `json:"email" db:"email"`
	PasswordHash            string          `json:"-" db:"password_hash"`
	Phone                   *string         `json:"phone,omitempty" db:"phone"`
	PhoneVerified           bool            `json:"phoneVerified" db:"phone_verified"`
	DisplayName             string          `json:"displayName" db:"display_name"`
	Role                    Role            `json:"role" db:"role"`
	ConnectedPayoutAccount  *string         `json:"-" db:"connected_payout_account_id"`
	AvatarURL               *string         `json:"avatarUrl,omitempty" db:"avatar_url"`
	RatingMean              float64         `json:"ratingMean" db:"rating_mean"`
	RatingCount             int             `json:"ratingCount" db:"rating_count"`
	SavedLocations          []SavedLocation `json:"savedLocations,omitempty" db:"-"`
	CreatedAt               time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt               time.Time       `json:"updatedAt" db:"updated_at"`
	SoftDeletedAt           *time.Time      `json:"-" db:"soft_deleted_at"`
}

// HasConnectedAccount reports whether the user settles via a PSP connected
// account rather than the internal wallet (spec section 4.4/4.5 branching).
func (u *User) HasConnectedAccount() bool {
	return u.ConnectedPayoutAccount != nil && *u.ConnectedPayoutAccount != ""
}

// RegisterRequest is the registration DTO.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"required"`
	Role        Role   `json:"role" validate:"required,oneof=driver passenger both"`
}

// LoginRequest is the login DTO.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthTokens carries the pair of JWTs issued at login/refresh.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse is returned from a successful login/register.
type LoginResponse struct {
	Tokens AuthTokens `json:"tokens"`
	User   User       `json:"user"`
}

// Package auth issues and verifies the JWT principal the rest of the system
// treats as an external Authenticator (spec section 1). Grounded on the
// teacher's services/auth_service.go (bcrypt + jwt.MapClaims) and
// middleware/auth_middleware.go (Protected), generalized to a refresh-token
// pair per SPEC_FULL's ambient stack section.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/config"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/models"
)

// tokenKind distinguishes access from refresh claims so a refresh token
// can't be replayed as an access token.
type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

// Principal is the verified identity a protected handler receives.
type Principal struct {
	UserID uuid.UUID
	Role   models.Role
}

// Service issues and verifies tokens and owns the registration/login flow.
type Service struct {
	db        database.DBPool
	cfg       *config.Config
	validator *validator.Validate
}

// New builds an auth Service.
func New(db database.DBPool, cfg *config.Config) *Service {
	return &Service{db: db, cfg: cfg, validator: validator.New()}
}

// Register creates a new user and issues a token pair.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperr.ValidationWrap("invalid registration data", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND soft_deleted_at IS NULL)`, req.Email).Scan(&exists); err != nil {
		return nil, apperr.ValidationWrap("check email uniqueness failed", err)
	}
	if exists {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.ValidationWrap("hash password failed", err)
	}

	user := models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		Role:         req.Role,
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Role).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("create user failed", err)
	}

	tokens, err := s.issueTokens(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &models.LoginResponse{Tokens: tokens, User: user}, nil
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperr.ValidationWrap("invalid login data", err)
	}

	var user models.User
	err := s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, role, rating_mean, rating_count, created_at, updated_at
		FROM users WHERE email = $1 AND soft_deleted_at IS NULL
	`, req.Email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.Role,
		&user.RatingMean, &user.RatingCount, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Auth("invalid email or password")
		}
		return nil, apperr.ValidationWrap("fetch user for login failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Auth("invalid email or password")
	}

	tokens, err := s.issueTokens(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &models.LoginResponse{Tokens: tokens, User: user}, nil
}

// Refresh verifies a refresh token and issues a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.AuthTokens, error) {
	principal, err := s.verify(refreshToken, kindRefresh, s.cfg.JWTRefreshSecret)
	if err != nil {
		return models.AuthTokens{}, err
	}

	var role models.Role
	if err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND soft_deleted_at IS NULL`, principal.UserID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AuthTokens{}, apperr.Auth("user no longer exists")
		}
		return models.AuthTokens{}, apperr.ValidationWrap("fetch user for refresh failed", err)
	}

	return s.issueTokens(principal.UserID, role)
}

// DeleteAccount soft-deletes userID's account so the email can't be reused
// to register and Login/Refresh reject any outstanding tokens for it.
func (s *Service) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET soft_deleted_at = now(), updated_at = now()
		WHERE id = $1 AND soft_deleted_at IS NULL
	`, userID)
	if err != nil {
		return apperr.ValidationWrap("delete account failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found or already deleted")
	}
	return nil
}

// VerifyAccess verifies an access token and returns the Principal.
func (s *Service) VerifyAccess(token string) (*Principal, error) {
	return s.verify(token, kindAccess, s.cfg.JWTSecret)
}

func (s *Service) issueTokens(userID uuid.UUID, role models.Role) (models.AuthTokens, error) {
	access, err := s.sign(userID, role, kindAccess, s.cfg.JWTSecret, s.cfg.AccessTTL)
	if err != nil {
		return models.AuthTokens{}, apperr.ValidationWrap("sign access token failed", err)
	}
	refresh, err := s.sign(userID, role, kindRefresh, s.cfg.JWTRefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return models.AuthTokens{}, apperr.ValidationWrap("sign refresh token failed", err)
	}
	return models.AuthTokens{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(userID uuid.UUID, role models.Role, kind tokenKind, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    string(role),
		"kind":    string(kind),
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *Service) verify(tokenString string, wantKind tokenKind, secret string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Auth("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.Auth("invalid token claims")
	}

	if kindClaim, _ := claims["kind"].(string); tokenKind(kindClaim) != wantKind {
		return nil, apperr.Auth("wrong token type")
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return nil, apperr.Auth("token missing user_id claim")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, apperr.Auth("token has malformed user_id claim")
	}

	role, _ := claims["role"].(string)

	return &Principal{UserID: userID, Role: models.Role(role)}, nil
}

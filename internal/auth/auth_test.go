package auth

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/config"
	"github.com/kayafamilly/carpool-core/internal/models"
)

func setupAuthTest(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:        "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
	}
	return New(mock, cfg), mock
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, mock := setupAuthTest(t)
	defer mock.Close()

	req := models.RegisterRequest{Email: "driver@example.com", Password: "password123", DisplayName: "Ana", Role: models.RoleDriver}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND soft_deleted_at IS NULL)`)).
		WithArgs(req.Email).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, mock := setupAuthTest(t)
	defer mock.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	req := models.LoginRequest{Email: "driver@example.com", Password: "wrong-password"}

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, email, password_hash, display_name, role, rating_mean, rating_count, created_at, updated_at
		FROM users WHERE email = $1 AND soft_deleted_at IS NULL
	`)).WithArgs(req.Email).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "email", "password_hash", "display_name", "role", "rating_mean", "rating_count", "created_at", "updated_at"},
	).AddRow(uuid.New(), req.Email, string(hash), "Ana", models.RoleDriver, 4.5, 10, time.Now(), time.Now()))

	_, err = svc.Login(context.Background(), req)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAuth, appErr.Kind)
}

func TestIssuedAccessTokenVerifiesAndRejectsAsRefresh(t *testing.T) {
	svc, mock := setupAuthTest(t)
	defer mock.Close()

	userID := mustUUID(t)
	tokens, err := svc.issueTokens(userID, models.RoleDriver)
	require.NoError(t, err)

	principal, err := svc.VerifyAccess(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, models.RoleDriver, principal.Role)

	_, err = svc.VerifyAccess(tokens.RefreshToken)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAuth, appErr.Kind)
}

func mustUUID(t *testing.T) (id [16]byte) {
	t.Helper()
	for i := range id {
		id[i] = byte(i)
	}
	return id
}

func TestDeleteAccountSoftDeletesUser(t *testing.T) {
	svc, mock := setupAuthTest(t)
	defer mock.Close()

	userID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE users SET soft_deleted_at = now(), updated_at = now()
		WHERE id = $1 AND soft_deleted_at IS NULL
	`)).WithArgs(userID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := svc.DeleteAccount(context.Background(), userID)
	require.NoError(t, err)
}

func TestDeleteAccountNotFoundWhenAlreadyDeleted(t *testing.T) {
	svc, mock := setupAuthTest(t)
	defer mock.Close()

	userID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE users SET soft_deleted_at = now(), updated_at = now()
		WHERE id = $1 AND soft_deleted_at IS NULL
	`)).WithArgs(userID).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := svc.DeleteAccount(context.Background(), userID)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

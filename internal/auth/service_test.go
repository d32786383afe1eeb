package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"backend-birdtours/internal/shared/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestSignUpAndSignIn(t *testing.T) {
	mock := newMock(t)
	createdAt := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`INSERT INTO auth_users`).
		WithArgs(pgxmock.AnyArg(), "birder@example.com", pgxmock.AnyArg(), "Ada Birder").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock, "https://tours.example.com/", nil)
	identity, tokens, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    " Birder@Example.com ",
		Password: "hunter22",
		FullName: " Ada Birder ",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if identity.ID == "" || identity.Email != "birder@example.com" || identity.FullName != "Ada Birder" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.TokenType != "Bearer" {
		t.Fatalf("expected tokens, got %+v", tokens)
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	mock.ExpectQuery(`SELECT u.id, u.email, u.password_hash`).
		WithArgs("birder@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "full_name", "created_at"}).
			AddRow(identity.ID, identity.Email, string(hash), identity.FullName, createdAt))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), identity.ID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	signedIn, signInTokens, err := svc.SignIn(context.Background(), SignInRequest{Email: "birder@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if signedIn.ID != identity.ID || signInTokens.AccessToken == "" {
		t.Fatalf("unexpected sign in result")
	}

	userID, err := svc.ValidateAccessToken(signInTokens.AccessToken)
	if err != nil || userID != identity.ID {
		t.Fatalf("expected access token for %s, got %s (%v)", identity.ID, userID, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSignUpValidationHappensBeforeStore(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock, "", nil)

	_, _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "not-an-email", Password: "hunter22"})
	if !apperr.Is(err, apperr.KindValidation) || err.Error() != MsgInvalidEmail {
		t.Fatalf("expected invalid email, got %v", err)
	}

	_, _, err = svc.SignUp(context.Background(), SignUpRequest{Email: "a@b.co", Password: "12345"})
	if !apperr.Is(err, apperr.KindValidation) || err.Error() != MsgWeakPassword {
		t.Fatalf("expected weak password, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected store calls: %v", err)
	}
}

func TestPasswordOverBcryptLimitIsValidationError(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock, "", nil)
	long := strings.Repeat("x", 73)

	_, _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "a@b.co", Password: long})
	if !apperr.Is(err, apperr.KindValidation) || err.Error() != MsgLongPassword {
		t.Fatalf("expected long password rejection, got %v", err)
	}

	reset, _ := svc.signToken("user-1", time.Minute, purposeReset)
	err = svc.UpdatePassword(context.Background(), UpdatePasswordRequest{Token: reset, Password: long})
	if !apperr.Is(err, apperr.KindValidation) || err.Error() != MsgLongPassword {
		t.Fatalf("expected long password rejection on reset, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected store calls: %v", err)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO auth_users`).
		WithArgs(pgxmock.AnyArg(), "taken@example.com", pgxmock.AnyArg(), "").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	svc := NewService("test-secret", mock, "", nil)
	_, _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "taken@example.com", Password: "hunter22"})
	if !apperr.Is(err, apperr.KindConflict) || err.Error() != MsgDuplicateEmail {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}
}

func TestSignInBadCredentials(t *testing.T) {
	mock := newMock(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)

	mock.ExpectQuery(`SELECT u.id, u.email, u.password_hash`).
		WithArgs("birder@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "full_name", "created_at"}).
			AddRow("user-1", "birder@example.com", string(hash), "", time.Now()))
	mock.ExpectQuery(`SELECT u.id, u.email, u.password_hash`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock, "", nil)
	_, _, err := svc.SignIn(context.Background(), SignInRequest{Email: "birder@example.com", Password: "wrong"})
	if !apperr.Is(err, apperr.KindUnauthorized) || err.Error() != MsgBadCredentials {
		t.Fatalf("expected bad credentials, got %v", err)
	}

	_, _, err = svc.SignIn(context.Background(), SignInRequest{Email: "nobody@example.com", Password: "whatever"})
	if !apperr.Is(err, apperr.KindUnauthorized) || err.Error() != MsgBadCredentials {
		t.Fatalf("expected same message for unknown user, got %v", err)
	}
}

func TestValidateRefreshToken(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock, "", nil)
	tokens, err := svc.GenerateTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-1", time.Now().Add(time.Hour)))

	userID, err := svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken)
	if err != nil || userID != "user-1" {
		t.Fatalf("validate refresh: %s %v", userID, err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnError(pgx.ErrNoRows)
	if _, err := svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestValidateAccessTokenRejectsForeignTokens(t *testing.T) {
	svc := NewService("test-secret", newMock(t), "", nil)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1"})
	signed, _ := other.SignedString([]byte("other-secret"))
	if _, err := svc.ValidateAccessToken(signed); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}

	reset, err := svc.signToken("user-1", time.Minute, purposeReset)
	if err != nil {
		t.Fatalf("sign reset token: %v", err)
	}
	if _, err := svc.ValidateAccessToken(reset); err == nil {
		t.Fatalf("expected reset token to be rejected as access token")
	}

	expired, _ := svc.signToken("user-1", -time.Minute, "")
	if _, err := svc.ValidateAccessToken(expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id FROM auth_users`).
		WithArgs("birder@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("user-1"))

	svc := NewService("test-secret", mock, "https://tours.example.com/", nil)
	link, err := svc.RequestPasswordReset(context.Background(), "birder@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	prefix := "https://tours.example.com/auth/reset-password?token="
	if !strings.HasPrefix(link, prefix) {
		t.Fatalf("unexpected reset link %q", link)
	}
	token := strings.TrimPrefix(link, prefix)

	mock.ExpectExec(`UPDATE auth_users SET password_hash`).
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	if err := svc.UpdatePassword(context.Background(), UpdatePasswordRequest{Token: token, Password: "new-secret"}); err != nil {
		t.Fatalf("update password: %v", err)
	}

	access, _ := svc.signToken("user-1", time.Minute, "")
	err = svc.UpdatePassword(context.Background(), UpdatePasswordRequest{Token: access, Password: "new-secret"})
	if !apperr.Is(err, apperr.KindUnauthorized) || err.Error() != MsgResetInvalid {
		t.Fatalf("expected session token to be refused for reset, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id FROM auth_users`).
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock, "", nil)
	link, err := svc.RequestPasswordReset(context.Background(), "ghost@example.com")
	if err != nil || link != "" {
		t.Fatalf("expected silent no-op, got %q %v", link, err)
	}
}

func TestIssueAccessTokenTouchesNoStore(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock, "", nil)

	token, err := svc.IssueAccessToken("health-user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, err := svc.ValidateAccessToken(token)
	if err != nil || userID != "health-user" {
		t.Fatalf("expected round trip, got %q %v", userID, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected store calls: %v", err)
	}
}

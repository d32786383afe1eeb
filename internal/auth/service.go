package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"backend-birdtours/internal/db"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/shared/retry"
	"backend-birdtours/internal/shared/validate"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
	resetTokenTTL   = 30 * time.Minute

	purposeReset = "password_reset"
)

const (
	MsgWeakPassword   = "Password must be at least 6 characters."
	MsgLongPassword   = "Password must be at most 72 bytes."
	MsgInvalidEmail   = "Please enter a valid email address."
	MsgDuplicateEmail = "An account with this email already exists."
	MsgBadCredentials = "Invalid email or password."
	MsgResetSent      = "If an account exists for that email, a password reset link has been sent."
	MsgResetInvalid   = "This password reset link is invalid or has expired."
)

type Service struct {
	secret  []byte
	db      db.Querier
	siteURL string
	logger  *logrus.Logger
	retry   []retry.Option
}

type Claims struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier, siteURL string, logger *logrus.Logger) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{
		secret:  []byte(secret),
		db:      db,
		siteURL: strings.TrimRight(siteURL, "/"),
		logger:  logger,
		retry:   []retry.Option{retry.WithLogger(logger)},
	}
}

// SignUp creates the identity and its user profile in a single statement so
// a failure cannot leave one without the other.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (Identity, TokenResponse, error) {
	email := validate.NormalizeEmail(req.Email)
	if !validate.Email(email) {
		return Identity{}, TokenResponse{}, apperr.Validation(MsgInvalidEmail)
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return Identity{}, TokenResponse{}, err
	}

	identity := Identity{
		ID:       uuid.NewString(),
		Email:    email,
		FullName: strings.TrimSpace(req.FullName),
	}

	err = retry.Run(ctx, func(ctx context.Context) error {
		return s.db.QueryRow(ctx, `
			WITH identity AS (
				INSERT INTO auth_users (id, email, password_hash)
				VALUES ($1,$2,$3)
				RETURNING id, email
			)
			INSERT INTO user_profiles (id, email, full_name)
			SELECT id, email, $4 FROM identity
			RETURNING created_at
		`, identity.ID, identity.Email, string(hash), identity.FullName).Scan(&identity.CreatedAt)
	}, s.retry...)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return Identity{}, TokenResponse{}, apperr.Conflict(MsgDuplicateEmail)
		}
		return Identity{}, TokenResponse{}, apperr.Normalize(err)
	}

	tokens, err := s.GenerateTokens(ctx, identity.ID)
	if err != nil {
		return Identity{}, TokenResponse{}, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": identity.ID, "action": "sign_up", "type": "auth"}).Info("Authentication event")
	return identity, tokens, nil
}

func (s *Service) SignIn(ctx context.Context, req SignInRequest) (Identity, TokenResponse, error) {
	email := validate.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return Identity{}, TokenResponse{}, apperr.Validation("Email and password are required.")
	}

	var (
		identity Identity
		hash     string
	)
	err := retry.Run(ctx, func(ctx context.Context) error {
		return s.db.QueryRow(ctx, `
			SELECT u.id, u.email, u.password_hash, COALESCE(p.full_name, ''), u.created_at
			FROM auth_users u
			LEFT JOIN user_profiles p ON p.id = u.id
			WHERE u.email = $1
		`, email).Scan(&identity.ID, &identity.Email, &hash, &identity.FullName, &identity.CreatedAt)
	}, s.retry...)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logSignInFailure(email)
		return Identity{}, TokenResponse{}, apperr.Unauthorized(MsgBadCredentials)
	}
	if err != nil {
		return Identity{}, TokenResponse{}, apperr.Normalize(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		s.logSignInFailure(email)
		return Identity{}, TokenResponse{}, apperr.Unauthorized(MsgBadCredentials)
	}

	tokens, err := s.GenerateTokens(ctx, identity.ID)
	if err != nil {
		return Identity{}, TokenResponse{}, err
	}
	return identity, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := s.signToken(userID, accessTokenTTL, "")
	if err != nil {
		return TokenResponse{}, apperr.Normalize(err)
	}

	refresh, err := s.signToken(userID, refreshTokenTTL, "")
	if err != nil {
		return TokenResponse{}, apperr.Normalize(err)
	}

	if err := s.saveRefreshToken(ctx, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, apperr.Normalize(err)
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

// IssueAccessToken signs a session token without persisting anything.
func (s *Service) IssueAccessToken(userID string) (string, error) {
	token, err := s.signToken(userID, accessTokenTTL, "")
	if err != nil {
		return "", apperr.Normalize(err)
	}
	return token, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil || claims.Purpose != "" {
		return "", apperr.Unauthorized("refresh token invalid")
	}

	userID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || time.Now().After(expiresAt) {
		return "", apperr.Unauthorized("refresh token invalid")
	}
	return claims.UserID, nil
}

// ValidateAccessToken returns the user id carried by a session token.
// Password reset tokens are rejected here.
func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", apperr.Unauthorized(err.Error())
	}
	if claims.Purpose != "" || claims.UserID == "" {
		return "", apperr.Unauthorized("token invalid")
	}
	return claims.UserID, nil
}

// RequestPasswordReset builds a reset link under SITE_URL and logs it for
// delivery. Unknown addresses return an empty link and no error.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = validate.NormalizeEmail(email)
	if !validate.Email(email) {
		return "", apperr.Validation(MsgInvalidEmail)
	}

	var userID string
	err := retry.Run(ctx, func(ctx context.Context) error {
		return s.db.QueryRow(ctx, `SELECT id FROM auth_users WHERE email = $1`, email).Scan(&userID)
	}, s.retry...)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Normalize(err)
	}

	token, err := s.signToken(userID, resetTokenTTL, purposeReset)
	if err != nil {
		return "", apperr.Normalize(err)
	}
	link := s.siteURL + "/auth/reset-password?token=" + url.QueryEscape(token)

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"action":  "password_reset_requested",
		"link":    link,
		"type":    "auth",
	}).Info("Authentication event")
	return link, nil
}

func (s *Service) UpdatePassword(ctx context.Context, req UpdatePasswordRequest) error {
	claims, err := s.parseToken(req.Token)
	if err != nil || claims.Purpose != purposeReset {
		return apperr.Unauthorized(MsgResetInvalid)
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return err
	}

	err = retry.Run(ctx, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `UPDATE auth_users SET password_hash=$2, updated_at=now() WHERE id=$1`, claims.UserID, string(hash))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	}, s.retry...)
	if err != nil {
		return apperr.Normalize(err)
	}

	_, err = s.db.Exec(ctx, `UPDATE refresh_tokens SET revoked_at=now() WHERE user_id=$1 AND revoked_at IS NULL`, claims.UserID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", claims.UserID).Warn("revoke refresh tokens after password update")
	}
	return nil
}

// hashPassword enforces the length bounds; bcrypt rejects input over 72 bytes.
func hashPassword(password string) ([]byte, error) {
	if len(password) < validate.MinPasswordLength {
		return nil, apperr.Validation(MsgWeakPassword)
	}
	if len(password) > validate.MaxPasswordBytes {
		return nil, apperr.Validation(MsgLongPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.Validation(MsgLongPassword)
	}
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return hash, nil
}

func (s *Service) signToken(userID string, ttl time.Duration, purpose string) (string, error) {
	claims := Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return retry.Run(ctx, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO refresh_tokens (id, user_id, token, expires_at)
			VALUES ($1,$2,$3,$4)
		`, uuid.NewString(), userID, token, time.Now().Add(ttl))
		return err
	}, s.retry...)
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	var userID string
	var expiresAt time.Time
	err := retry.Run(ctx, func(ctx context.Context) error {
		return s.db.QueryRow(ctx, `
			SELECT user_id, expires_at
			FROM refresh_tokens
			WHERE token = $1 AND revoked_at IS NULL
		`, token).Scan(&userID, &expiresAt)
	}, s.retry...)
	if err != nil {
		return "", time.Time{}, err
	}
	return userID, expiresAt, nil
}

func (s *Service) logSignInFailure(email string) {
	s.logger.WithFields(logrus.Fields{"email": email, "action": "sign_in", "type": "auth"}).Warn("Authentication failed")
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
)

// tokenIssuer is the iss claim of operator tokens.
const tokenIssuer = "student-idcard"

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	// Users maps operator usernames to bcrypt password hashes.
	Users             map[string]string
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
}

// AuthService authenticates operators against the configured accounts.
type AuthService struct {
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	return &AuthService{validator: validate, logger: logger, config: config, now: time.Now}
}

// Login checks credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, ok := s.config.Users[req.Username]
	if !ok {
		s.logger.Info("login rejected: unknown user", zap.String("username", req.Username))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		s.logger.Info("login rejected: wrong password", zap.String("username", req.Username))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	resp, err := s.issue(req.Username)
	if err != nil {
		return nil, err
	}
	s.logger.Info("operator logged in", zap.String("username", req.Username))
	return resp, nil
}

// Refresh issues a fresh token for the operator behind claims, which must
// still be a configured account.
func (s *AuthService) Refresh(ctx context.Context, claims *models.JWTClaims) (*models.LoginResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, known := s.config.Users[claims.Username]; !known {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}
	return s.issue(claims.Username)
}

func (s *AuthService) issue(username string) (*models.LoginResponse, error) {
	issuedAt := s.now().UTC()
	token, err := s.generateAccessToken(username, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		Username:    username,
		IssuedAt:    issuedAt,
	}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if _, known := s.config.Users[claims.Username]; !known {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(username string, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

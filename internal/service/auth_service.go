package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SecuShare/filevault/internal/config"
	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/repository"
)

// AuthService issues and checks session tokens. Credential verification
// happens upstream; a token only carries who the caller is and their role.
type AuthService struct {
	userRepo *repository.UserRepository
	config   *config.Config
	now      func() time.Time
}

type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{userRepo: userRepo, config: cfg, now: time.Now}
}

func (s *AuthService) GenerateToken(userID string, role models.Role) (string, error) {
	expiry := s.config.Auth.TokenTTL
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	now := s.now()

	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Auth.JWTSecret))
}

// ValidateToken accepts only HS256 tokens signed with the configured
// secret. Expiry is checked against the service clock.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(s.config.Auth.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims, nil
}

// GetUserByID returns the current user row. Middleware uses it so role
// changes apply without waiting for the token to expire.
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

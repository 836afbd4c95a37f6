package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Purpose string

const (
	PurposeSession       Purpose = "session"
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposePasswordReset Purpose = "password_reset"
)

const (
	SessionTTL       = 7 * 24 * time.Hour
	VerifyEmailTTL   = 24 * time.Hour
	PasswordResetTTL = time.Hour

	issuer = "videogen"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TTL returns the lifetime of tokens issued for the purpose.
func (p Purpose) TTL() time.Duration {
	switch p {
	case PurposeVerifyEmail:
		return VerifyEmailTTL
	case PurposePasswordReset:
		return PasswordResetTTL
	default:
		return SessionTTL
	}
}

type Claims struct {
	jwt.RegisteredClaims
	UserID  uint    `json:"uid"`
	Email   string  `json:"email"`
	Purpose Purpose `json:"purpose"`
}

// TokenService is the single place tokens are signed and verified.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// Sign issues a token for the purpose using the purpose's default lifetime.
func (s *TokenService) Sign(userID uint, email string, purpose Purpose) (string, error) {
	return s.SignWithTTL(userID, email, purpose, purpose.TTL())
}

func (s *TokenService) SignWithTTL(userID uint, email string, purpose Purpose, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:  userID,
		Email:   email,
		Purpose: purpose,
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks signature, expiry and that the token was issued for the
// expected purpose. Every failure collapses into ErrInvalidToken.
func (s *TokenService) Verify(tokenString string, expected Purpose) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != expected || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

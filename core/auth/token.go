package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose restricts what a token may be used for.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeVerify  Purpose = "verify"
	PurposeReset   Purpose = "reset"
)

// Lifetimes per purpose.
const (
	SessionTTL = 7 * 24 * time.Hour
	VerifyTTL  = 24 * time.Hour
	ResetTTL   = time.Hour
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the JWT payload for every token the service issues.
type Claims struct {
	UserID  int64   `json:"userId"`
	Email   string  `json:"email,omitempty"`
	Name    string  `json:"name,omitempty"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

func ttlFor(purpose Purpose) time.Duration {
	switch purpose {
	case PurposeVerify:
		return VerifyTTL
	case PurposeReset:
		return ResetTTL
	default:
		return SessionTTL
	}
}

// Issue signs a token for purpose. It also returns the expiry.
func (i *TokenIssuer) Issue(purpose Purpose, userID int64, email, name string) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(ttlFor(purpose))
	claims := Claims{
		UserID:  userID,
		Email:   email,
		Name:    name,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}
	return signed, expires, nil
}

// Parse verifies signature, expiry and purpose.
func (i *TokenIssuer) Parse(token string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: %s token used as %s", ErrTokenInvalid, claims.Purpose, purpose)
	}
	return claims, nil
}

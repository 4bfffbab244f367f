// Package auth validates access tokens minted by the external identity
// service. The only thing the core needs from a token is the actor id.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type JWTService struct {
	accessSecret []byte
	issuer       string
}

type AccessTokenClaims struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	jwt.RegisteredClaims
}

// ActorID is userId when present, otherwise the subject.
func (c *AccessTokenClaims) ActorID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// NewJWTService builds a validator. An empty issuer accepts any issuer.
func NewJWTService(accessSecret, issuer string) *JWTService {
	return &JWTService{
		accessSecret: []byte(accessSecret),
		issuer:       issuer,
	}
}

// IssueAccessToken signs a token for userID. Production tokens come from the
// identity service; this exists for local tooling and tests.
func (s *JWTService) IssueAccessToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessTokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.accessSecret)
}

// ValidateAccessToken validates and parses an access token
func (s *JWTService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.accessSecret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid || claims.ActorID() == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

package auth

import (
	"time"

	"crashd/domain/apperr"
	"crashd/domain/entities"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTypeRefresh = "refresh"

// Claims is the JWT payload for both access and refresh tokens. TokenType is
// empty for access tokens and "refresh" for refresh tokens.
type Claims struct {
	UserID    int64  `json:"uid"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 token pairs
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer creates a token issuer with the given symmetric secret
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// TokenPair is an access token with its companion refresh token
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IssuePair issues a fresh access and refresh token for a user
func (i *TokenIssuer) IssuePair(user *entities.User) (*TokenPair, error) {
	access, err := i.sign(user, "", i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sign(user, tokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *TokenIssuer) sign(user *entities.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to sign token", err)
	}
	return signed, nil
}

// ParseAccess verifies an access token and returns its claims. Refresh
// tokens are rejected here so they can never authenticate a request.
func (i *TokenIssuer) ParseAccess(token string) (*Claims, error) {
	claims, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType == tokenTypeRefresh {
		return nil, apperr.New(apperr.Unauthenticated, "refresh token cannot be used for access")
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims
func (i *TokenIssuer) ParseRefresh(token string) (*Claims, error) {
	claims, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, apperr.New(apperr.Unauthenticated, "not a refresh token")
	}
	return claims, nil
}

func (i *TokenIssuer) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Newf(apperr.Unauthenticated, "unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid or expired token", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apperr.New(apperr.Unauthenticated, "invalid token claims")
	}
	return claims, nil
}

package api

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the token body: sub carries the user id, roles the platform claims.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTGateway verifies HS256 tokens minted by the identity provider.
type JWTGateway struct {
	secret []byte
	issuer string
}

var _ adapter.AuthGateway = (*JWTGateway)(nil)

func NewJWTGateway(secret, issuer string) *JWTGateway {
	return &JWTGateway{secret: []byte(secret), issuer: issuer}
}

func (g *JWTGateway) Authenticate(_ context.Context, token string) (model.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return model.Actor{}, ErrInvalidToken
	}
	return model.Actor{UserID: claims.Subject, Claims: claims.Roles}, nil
}

// Issue mints a token; used by tests and local tooling.
func (g *JWTGateway) Issue(userID string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

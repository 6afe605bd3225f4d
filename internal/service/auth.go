package service

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrUnauthenticated = errors.New("auth: unauthenticated connection attempt")

// Identity is the attribution the upstream auth service baked into the token.
type Identity struct {
	UserID uuid.UUID
}

// Auther inspects handshake credentials. Token issuance happens upstream;
// this service only verifies that a connection arrives already attributed.
type Auther interface {
	Inspect(token string) (Identity, error)
}

type jwtAuther struct {
	secret []byte
}

func NewJWTAuther(secret string) Auther {
	return &jwtAuther{secret: []byte(secret)}
}

func (a *jwtAuther) Inspect(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: token carries no subject", ErrUnauthenticated)
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: malformed subject", ErrUnauthenticated)
	}

	return Identity{UserID: userID}, nil
}

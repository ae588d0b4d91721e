package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/filecoin-project/go-jsonrpc/auth"
	"github.com/golang-jwt/jwt/v5"
)

const TokenFile = "token"

const (
	PermRead  = "read"
	PermWrite = "write"
	PermAdmin = "admin"
)

// AllPermissions is granted to local callers and admin tokens.
var AllPermissions = []auth.Permission{PermAdmin, PermWrite, PermRead}

type JWTPayload struct {
	Name string `json:"name"`
	Perm string `json:"perm"`
	jwt.RegisteredClaims
}

// AdaptPerm expands a token permission into the permissions it implies.
func AdaptPerm(perm string) []auth.Permission {
	switch perm {
	case PermAdmin:
		return append([]auth.Permission{}, AllPermissions...)
	case PermWrite:
		return []auth.Permission{PermWrite, PermRead}
	case PermRead:
		return []auth.Permission{PermRead}
	default:
		return []auth.Permission{}
	}
}

// LocalJwtClient signs and verifies tokens with a secret generated at startup.
type LocalJwtClient struct {
	repo   string
	Seckey []byte
	Token  []byte
}

func NewLocalJwtClient(repo string) (*LocalJwtClient, error) {
	seckey, err := io.ReadAll(io.LimitReader(rand.Reader, 32))
	if err != nil {
		return nil, err
	}
	l := &LocalJwtClient{
		repo:   repo,
		Seckey: seckey,
	}
	if l.Token, err = l.NewToken("WavePortalLocalToken", PermAdmin); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LocalJwtClient) NewToken(name, perm string) ([]byte, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTPayload{Name: name, Perm: perm})
	signed, err := token.SignedString(l.Seckey)
	if err != nil {
		return nil, err
	}
	return []byte(signed), nil
}

func (l *LocalJwtClient) Verify(ctx context.Context, token string) (*JWTPayload, []auth.Permission, error) {
	payload := &JWTPayload{}
	_, err := jwt.ParseWithClaims(token, payload, func(t *jwt.Token) (interface{}, error) {
		return l.Seckey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, nil, fmt.Errorf("JWT Verification failed: %v", err)
	}
	return payload, AdaptPerm(payload.Perm), nil
}

func (l *LocalJwtClient) SaveToken() error {
	return os.WriteFile(path.Join(l.repo, TokenFile), l.Token, 0600)
}

package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/sdmusic/service/internal/token"
)

// Authorizer decides whether a credential may perform an admin operation.
type Authorizer interface {
	Authorized(ctx context.Context, credential string) bool
}

// PasswordAuthorizer accepts the shared admin password.
type PasswordAuthorizer struct {
	hash []byte
}

// NewPasswordAuthorizer hashes password once at startup. An empty password
// yields an authorizer that rejects everything.
func NewPasswordAuthorizer(password string) (*PasswordAuthorizer, error) {
	if password == "" {
		return &PasswordAuthorizer{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &PasswordAuthorizer{hash: hash}, nil
}

// Authorized implements Authorizer.
func (a *PasswordAuthorizer) Authorized(_ context.Context, credential string) bool {
	if len(a.hash) == 0 || credential == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(credential)) == nil
}

// TokenParser validates signed access tokens.
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

// TokenAuthorizer accepts access tokens carrying the admin claim.
type TokenAuthorizer struct {
	tokens TokenParser
}

// NewTokenAuthorizer creates a TokenAuthorizer.
func NewTokenAuthorizer(tokens TokenParser) *TokenAuthorizer {
	return &TokenAuthorizer{tokens: tokens}
}

// Authorized implements Authorizer.
func (a *TokenAuthorizer) Authorized(_ context.Context, credential string) bool {
	if credential == "" {
		return false
	}
	claims, err := a.tokens.Parse(credential)
	if err != nil {
		return false
	}
	return claims.IsAdmin
}

type anyOf []Authorizer

// Any returns an Authorizer that accepts a credential when any of the given
// authorizers does.
func Any(authorizers ...Authorizer) Authorizer {
	return anyOf(authorizers)
}

func (a anyOf) Authorized(ctx context.Context, credential string) bool {
	for _, az := range a {
		if az != nil && az.Authorized(ctx, credential) {
			return true
		}
	}
	return false
}

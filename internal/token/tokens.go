// Package token shared-token authorization for the gRPC surface
package token

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/grpc/metadata"
)

const (
	// MetadataKey keys within metadata.MD are normalized to lowercase
	MetadataKey = "authorization"
	scheme      = "Bearer"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Tokens implements credentials.PerRPCCredentials over an oauth2.TokenSource
type Tokens struct {
	src oauth2.TokenSource
}

// Static authorizes every call with the same shared token
func Static(token string) *Tokens {
	return New(oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   scheme,
	}))
}

// New reuses a token from src until it expires
func New(src oauth2.TokenSource) *Tokens {
	return &Tokens{src: oauth2.ReuseTokenSource(nil, src)}
}

func (t *Tokens) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	tok, err := t.src.Token()
	if err != nil {
		return nil, fmt.Errorf("token source: %w", err)
	}
	return map[string]string{MetadataKey: tok.Type() + " " + tok.AccessToken}, nil
}

func (t *Tokens) RequireTransportSecurity() bool {
	return false
}

// Check verifies the incoming call carries want
func Check(ctx context.Context, want string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ErrMissingToken
	}
	values := md[MetadataKey]
	if len(values) == 0 {
		return ErrMissingToken
	}

	got, ok := strings.CutPrefix(values[0], scheme+" ")
	if !ok {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

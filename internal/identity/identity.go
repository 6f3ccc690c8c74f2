// Package identity resolves the current actor from a stored session
// credential. Resolution happens once at startup; the resulting Identity is
// passed into the chat sessions as configuration and never re-read.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role names the two actor kinds of the support chat.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

// Identity is the decoded actor: a numeric ID used for message sender
// equality, plus the role deciding which side of a conversation it is on.
type Identity struct {
	ActorID int64
	Role    Role
	Name    string
}

// Claims is the JWT claim set issued for chat credentials. The actor ID
// travels in the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
}

// ErrNoCredential is returned when the token is empty.
var ErrNoCredential = errors.New("identity: no credential")

// FromToken decodes an Identity from a stored bearer token without
// verifying the signature. The client holds no key material; trust is the
// server's concern, which re-verifies the same token on every call.
func FromToken(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrNoCredential
	}

	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Identity{}, fmt.Errorf("identity: parse credential: %w", err)
	}
	return fromClaims(&claims)
}

// Verify parses and verifies an HS256 token against the shared secret.
// Used server-side.
func Verify(token string, secret []byte) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("identity: verify credential: %w", err)
	}
	return fromClaims(&claims)
}

// Sign mints an HS256 token for the given identity, valid for ttl. Used by
// the dev server and by tests to issue credentials.
func Sign(id Identity, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.ActorID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: id.Role,
		Name: id.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func fromClaims(claims *Claims) (Identity, error) {
	actorID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: non-numeric subject %q", claims.Subject)
	}
	switch claims.Role {
	case RoleCustomer, RoleOperator:
	default:
		return Identity{}, fmt.Errorf("identity: unknown role %q", claims.Role)
	}
	return Identity{ActorID: actorID, Role: claims.Role, Name: claims.Name}, nil
}

package auth

import (
	"errors"
	"fmt"
	"strings"

	"estate-inbox/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedToken = errors.New("auth: malformed token")

// Claims is the shape of the backend's access token. The backend has used
// both snake and camel claim names, so both are read.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string `json:"user_id,omitempty"`
	UserIDCamel string `json:"userId,omitempty"`
	ID          string `json:"id,omitempty"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
}

func (c Claims) userID() string {
	for _, v := range []string{c.UserID, c.UserIDCamel, c.ID, c.Subject} {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseClaims decodes the bearer token without verifying its signature; the
// backend verifies it on every call.
func ParseClaims(token string) (session.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return session.Claims{}, ErrMalformedToken
	}

	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return session.Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	out := session.Claims{
		UserID: claims.userID(),
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if out.UserID == "" {
		return session.Claims{}, fmt.Errorf("%w: user id missing", ErrMalformedToken)
	}
	return out, nil
}

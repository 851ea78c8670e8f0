package oauth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims holds the identity claims extracted from an ID token.
type IDTokenClaims struct {
	jwt.RegisteredClaims

	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
}

// ParseIDTokenClaims extracts claims from an ID token without verifying its
// signature. The token is received directly from the token endpoint over TLS,
// so it is only used to identify the account, never to authorize anything.
func ParseIDTokenClaims(idToken string) (*IDTokenClaims, error) {
	if idToken == "" {
		return nil, errors.New("empty id token")
	}

	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}
	return claims, nil
}

// Identity builds the IdentityReference described by the claims.
func (c *IDTokenClaims) Identity() (IdentityReference, error) {
	localID := c.ObjectID
	if localID == "" {
		localID = c.Subject
	}
	if localID == "" || c.TenantID == "" {
		return IdentityReference{}, errors.New("id token is missing oid/sub or tid claims")
	}

	username := c.PreferredUsername
	if username == "" {
		username = c.Email
	}

	return IdentityReference{
		HomeAccountID:  localID + "." + c.TenantID,
		LocalAccountID: localID,
		TenantID:       c.TenantID,
		Username:       username,
		DisplayName:    c.Name,
	}, nil
}

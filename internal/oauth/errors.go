package oauth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrInvalidOrExpiredRequest is returned when a callback references a state
// that is unknown, already consumed or expired. It is not retryable.
var ErrInvalidOrExpiredRequest = errors.New("invalid or expired authorization request")

// ErrAccountNotFound is returned when silent acquisition is requested for an
// identity the provider does not hold.
var ErrAccountNotFound = errors.New("account not found")

// ExchangeFailedError is returned when the authorization code could not be
// exchanged for tokens.
type ExchangeFailedError struct {
	Reason string
	Err    error
}

func (e *ExchangeFailedError) Error() string {
	return fmt.Sprintf("authorization code exchange failed: %s", e.Reason)
}

func (e *ExchangeFailedError) Unwrap() error {
	return e.Err
}

// AuthorizationDeniedError is returned when the redirect carries an error
// instead of an authorization code.
type AuthorizationDeniedError struct {
	Code        string
	Description string
}

func (e *AuthorizationDeniedError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("authorization denied: %s", e.Code)
	}
	return fmt.Sprintf("authorization denied: %s: %s", e.Code, e.Description)
}

// ProviderError is an error response from the token endpoint.
type ProviderError struct {
	Code        string
	Description string
	StatusCode  int
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("identity provider returned %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("identity provider returned %s (status %d): %s", e.Code, e.StatusCode, e.Description)
}

// IsInteractionRequired reports whether the user must sign in again.
func (e *ProviderError) IsInteractionRequired() bool {
	switch e.Code {
	case "invalid_grant", "interaction_required", "consent_required", "login_required":
		return true
	}
	return false
}

// providerErrorFrom converts an x/oauth2 retrieve error into a ProviderError.
func providerErrorFrom(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return err
	}
	pe := &ProviderError{
		Code:        re.ErrorCode,
		Description: re.ErrorDescription,
	}
	if re.Response != nil {
		pe.StatusCode = re.Response.StatusCode
	}
	if pe.Code == "" {
		pe.Code = "server_error"
	}
	return pe
}

// exchangeReason returns a human readable reason suitable for a failed login.
func exchangeReason(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Description != "" {
			return pe.Code + ": " + pe.Description
		}
		return pe.Code
	}
	return err.Error()
}

package auth

import "errors"

var (
	// ErrInvalidToken indicates a bad signature, expiry, wrong algorithm or malformed token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingClaims indicates a verified token lacking the id or rol claim.
	ErrMissingClaims = errors.New("token missing required claims")

	// ErrRevokedToken indicates a refresh token that is not in the live set.
	ErrRevokedToken = errors.New("refresh token not recognized")

	// ErrInvalidCredentials is returned when a secret does not match its hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

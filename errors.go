package goGate

import "errors"

var (
	// ErrNoCredential means the request carried no token or session id, or
	// the session id is unknown to the store.
	ErrNoCredential = errors.New("no credential")
	// ErrInvalidCredential covers every signed-token failure: bad signature,
	// malformed token, expiry. The specific reason is only logged.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInsufficientRole means the identity is known but its role does not
	// equal the role the path requires.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrStoreUnavailable means the session store could not answer within
	// the lookup budget. The gate fails closed on it.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrCredentialsRequired is returned by Login for an empty username or password.
	ErrCredentialsRequired = errors.New("username and password required")
	// ErrInvalidCredentials is the single login failure for unknown users and
	// wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrLoginRateLimited is returned when the client exceeded its login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrLoginUnavailable is returned when login cannot proceed because a
	// backend (user provider, session store) failed.
	ErrLoginUnavailable = errors.New("login failed")
	// ErrUserNotFound is returned by [UserProvider] implementations.
	ErrUserNotFound = errors.New("user not found")
)

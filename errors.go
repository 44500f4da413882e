package goKeeper

import (
	"errors"

	"github.com/MrEthical07/goKeeper/credential"
)

var (
	// ErrNotAuthenticated is an exported constant or variable used by the token lifecycle manager.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidCredential is an exported constant or variable used by the token lifecycle manager.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrRefreshRejected is an exported constant or variable used by the token lifecycle manager.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrRefreshExhausted is an exported constant or variable used by the token lifecycle manager.
	ErrRefreshExhausted = errors.New("refresh retries exhausted")
	// ErrManagerClosed is an exported constant or variable used by the token lifecycle manager.
	ErrManagerClosed = errors.New("manager closed")
)

// ErrStoreUnavailable is an exported constant or variable used by the token lifecycle manager.
//
// Store failures are never fatal: the Manager logs them and degrades to
// memory-only operation for the rest of the process lifetime.
var ErrStoreUnavailable = credential.ErrUnavailable

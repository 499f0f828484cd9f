// Package common defines shared constants and sentinel errors used across
// the data collection client. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorOffline      = errors.New("no network connection")

	// Auth errors (invalid or expired sync token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Datapoint lifecycle errors.
	ErrAnswersCorrupted = errors.New("stored answers corrupted")

	// Job engine errors.
	ErrSyncInProgress = errors.New("sync already in progress")
)

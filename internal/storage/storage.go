package storage

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrTokenMismatch = errors.New("refresh token mismatch")
	ErrVideoNotFound = errors.New("video not found")
)

package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("trainee not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")
)

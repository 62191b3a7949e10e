package db

import "errors"

// Domain-level database error sentinels.
var (
	ErrStoryPostNotFound = errors.New("story post not found")
)

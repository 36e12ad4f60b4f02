package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.
// Services translate it into the API NotFound taxonomy.
var ErrNotFound = errors.New("not found")

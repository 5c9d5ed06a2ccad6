package types

import "errors"

// ErrDuplicate is returned by storage when a uniqueness constraint is violated.
var ErrDuplicate = errors.New("duplicate entry")

// ErrNotFound is returned by storage when a requested row does not exist.
var ErrNotFound = errors.New("not found")

package objectstore

import "errors"

// ErrNotFound is returned when an object path has no stored bytes.
var ErrNotFound = errors.New("object not found")

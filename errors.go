package recolte

import "errors"

// ErrFileNotFound is returned when an original file id resolves to nothing.
var ErrFileNotFound = errors.New("recolte: original file not found")

// ErrURLNotFound is returned when a URL id resolves to nothing.
var ErrURLNotFound = errors.New("recolte: url not found")

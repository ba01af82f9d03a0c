package news

import "errors"

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("news: article not found")

package randomsource

import "github.com/pkg/errors"

// errInvalidRange is returned when a bounded draw is requested over an empty range.
var errInvalidRange = errors.New("cannot draw from an empty range")

package domain

import "errors"

var ErrInvalidCoordinates = errors.New("invalid coordinates")

package lagrange

import "errors"

var (
	errMismatchedLengths = errors.New("lagrange: xs and ys must have equal length")
	errDuplicateX        = errors.New("lagrange: duplicate x coordinate")
)

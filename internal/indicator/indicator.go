// Package indicator turns raw market series into the directional labels the
// signal rules consume. Every function here is pure and never fails on short
// input; it degrades to the neutral label instead.
package indicator

import "errors"

// ErrInsufficientData is returned when a computation needs more samples than
// were supplied.
var ErrInsufficientData = errors.New("insufficient data")

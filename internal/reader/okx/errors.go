package okx

import (
	"errors"
	"fmt"
)

// ErrUpstream marks any failed or malformed response from the exchange.
var ErrUpstream = errors.New("upstream fetch failed")

// Data sources, used as the FetchError source and as metric labels.
const (
	SourceOpenInterest = "open_interest"
	SourceCandles      = "candles"
	SourceTrades       = "trades"
	SourceLiquidations = "liquidations"
	SourceTicker       = "ticker"
)

// FetchError records which source failed for which instrument. It matches
// ErrUpstream under errors.Is.
type FetchError struct {
	Source     string
	Instrument string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("okx %s fetch for %s: %v", e.Source, e.Instrument, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrUpstream }

func fetchErr(source, instrument string, err error) error {
	return &FetchError{Source: source, Instrument: instrument, Err: err}
}

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInputUnavailable means a cycle lacked an input and was skipped rather than failed.
	ErrInputUnavailable = errors.New("risk: input unavailable")
	ErrNotFound         = errors.New("risk: not found")
	ErrNoPriceHistory   = errors.New("backtest: no price history in range")
)

// ValidationError describes one rejected configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every rejected field of one configuration.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// SimulationError aborts a backtest. No partial result accompanies it.
type SimulationError struct {
	Step          int
	LastTimestamp time.Time
	Err           error
}

func (e *SimulationError) Error() string {
	if e.LastTimestamp.IsZero() {
		return fmt.Sprintf("simulation failed at step %d: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("simulation failed at step %d (last %s): %v", e.Step, e.LastTimestamp.Format(time.RFC3339), e.Err)
}

func (e *SimulationError) Unwrap() error { return e.Err }

// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrUnsupportedStyle   = errors.New("unsupported exercise style")
	ErrNumericalDeviation = errors.New("numerical deviation beyond tolerance")
	ErrDataNotFound       = errors.New("data not found")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDatabaseError      = errors.New("database error")
	ErrRateLimited        = errors.New("rate limited")
	ErrTimeout            = errors.New("operation timed out")
)

// ParameterError reports a pricing input that fails validation.
type ParameterError struct {
	Param   string
	Value   interface{}
	Message string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s (%v): %s", e.Param, e.Value, e.Message)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// NewParameterError creates a new ParameterError.
func NewParameterError(param string, value interface{}, message string) *ParameterError {
	return &ParameterError{
		Param:   param,
		Value:   value,
		Message: message,
	}
}

// StyleError reports an exercise style a pricing method cannot handle.
type StyleError struct {
	Style  string
	Method string
}

func (e *StyleError) Error() string {
	return fmt.Sprintf("unsupported style [%s] for method %s", e.Style, e.Method)
}

func (e *StyleError) Unwrap() error {
	return ErrUnsupportedStyle
}

// NewStyleError creates a new StyleError.
func NewStyleError(style, method string) *StyleError {
	return &StyleError{
		Style:  style,
		Method: method,
	}
}

// NumericalWarning reports a numerical price that strays from its analytic
// reference by more than the configured tolerance. It is diagnostic: callers
// log or display it, the priced result remains usable.
type NumericalWarning struct {
	Method    string
	Computed  float64
	Reference float64
	Tolerance float64
}

func (e *NumericalWarning) Error() string {
	return fmt.Sprintf("numerical deviation [%s]: price %.6f vs reference %.6f exceeds tolerance %.6f",
		e.Method, e.Computed, e.Reference, e.Tolerance)
}

func (e *NumericalWarning) Unwrap() error {
	return ErrNumericalDeviation
}

// Deviation returns the absolute difference against the reference.
func (e *NumericalWarning) Deviation() float64 {
	d := e.Computed - e.Reference
	if d < 0 {
		d = -d
	}
	return d
}

// NewNumericalWarning creates a new NumericalWarning.
func NewNumericalWarning(method string, computed, reference, tolerance float64) *NumericalWarning {
	return &NumericalWarning{
		Method:    method,
		Computed:  computed,
		Reference: reference,
		Tolerance: tolerance,
	}
}

// DataError represents a market-data error.
type DataError struct {
	Source  string
	Symbol  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.Source, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.Source, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source, symbol, message string, err error) *DataError {
	return &DataError{
		Source:  source,
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}

// StoreError represents a persistence error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{
		Op:  op,
		Err: err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error with the supplied text.
func New(text string) error {
	return errors.New(text)
}

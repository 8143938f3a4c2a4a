package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrConfig      = errors.New("invalid configuration")
	ErrAllocation  = errors.New("engine allocation failed")
	ErrDestroyed   = errors.New("context destroyed")
	ErrNotFound    = errors.New("not found")
	ErrNotFunction = errors.New("not a function")
	ErrTimeout     = errors.New("execution timeout exceeded")
	ErrInvalidPath = errors.New("invalid path")
	ErrSyntax      = errors.New("syntax error")
	ErrException   = errors.New("uncaught exception")
)

// ConfigError describes a rejected configuration option.
type ConfigError struct {
	Option string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("config option %q: %s", e.Option, e.Reason)
	}
	return fmt.Sprintf("config option %q (%v): %s", e.Option, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// EvalError is a script failure with its source position.
type EvalError struct {
	File    string
	Line    int
	Column  int
	Message string
	Source  string // offending source line, when known
	Err     error  // ErrSyntax, ErrException, ErrTimeout or a context error
}

func (e *EvalError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	}
	if e.Source == "" {
		return fmt.Sprintf("%s: %s", loc, e.Message)
	}
	return fmt.Sprintf("%s: %s\n  %s", loc, e.Message, e.Source)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

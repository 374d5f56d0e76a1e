// Package errors defines the error kinds the HTTP layer maps to status codes.
// Callers wrap causes in one of these and test with Is against the Err*
// sentinels; the wrapped cause stays reachable through errors.Is/As.
package errors

import (
	"errors"
	"fmt"
)

// describe renders "kind: part: part: cause", skipping empty parts.
func describe(kind string, cause error, parts ...string) string {
	s := kind
	for _, p := range parts {
		if p != "" {
			s += ": " + p
		}
	}
	if cause != nil {
		s = fmt.Sprintf("%s: %v", s, cause)
	}
	return s
}

// ValidationError is bad caller input: body, query or image payload. Msg is
// returned to the client verbatim, so it must not carry internals.
type ValidationError struct {
	Op  string
	Msg string
	Err error
}

func (e *ValidationError) Error() string { return describe("validation", e.Err, e.Op, e.Msg) }
func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidation(op, msg string, err error) error {
	return &ValidationError{Op: op, Msg: msg, Err: err}
}

// ConfigError is a missing or unusable configuration key, reported by
// constructors so the process fails at boot rather than on first use.
type ConfigError struct {
	Op  string
	Key string // env var, e.g. GOOGLE_MAPS_API_KEY
	Msg string
}

func (e *ConfigError) Error() string { return describe("config", nil, e.Op, e.Key, e.Msg) }

func NewConfig(op, key, msg string) error { return &ConfigError{Op: op, Key: key, Msg: msg} }

func MissingKey(op, key string) error { return NewConfig(op, key, "required key is not set") }

// ExternalAPIError is a failed call to Google, a model provider or the logo API.
type ExternalAPIError struct {
	Op     string
	System string // google, openai, anthropic, gemini, logo
	Msg    string
	Err    error
}

func (e *ExternalAPIError) Error() string {
	sys := e.System
	if sys == "" {
		sys = "external"
	}
	return describe(sys, e.Err, e.Op, e.Msg)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

func NewExternal(op, system, msg string, err error) error {
	return &ExternalAPIError{Op: op, System: system, Msg: msg, Err: err}
}

const maxRawLen = 256

// ParseError is an upstream payload that does not fit the expected schema.
// Raw keeps the head of the payload for logs.
type ParseError struct {
	Op     string
	System string
	Msg    string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string { return describe("parse", e.Err, e.System, e.Op, e.Msg) }
func (e *ParseError) Unwrap() error { return e.Err }

func NewParse(op, system, msg, raw string, err error) error {
	if len(raw) > maxRawLen {
		raw = raw[:maxRawLen]
	}
	return &ParseError{Op: op, System: system, Msg: msg, Raw: raw, Err: err}
}

// BizError is an internal failure that is neither bad input nor an upstream
// fault, such as a prompt template that does not render.
type BizError struct {
	Op  string
	Msg string
	Err error
}

func (e *BizError) Error() string { return describe("biz", e.Err, e.Op, e.Msg) }
func (e *BizError) Unwrap() error { return e.Err }

func NewBiz(op, msg string, err error) error { return &BizError{Op: op, Msg: msg, Err: err} }

// Kind sentinels for Is.
var (
	ErrValidation = &ValidationError{}
	ErrConfig     = &ConfigError{}
	ErrExternal   = &ExternalAPIError{}
	ErrParse      = &ParseError{}
	ErrBiz        = &BizError{}
)

func has[T error](err error) bool {
	var t T
	return errors.As(err, &t)
}

// Is reports whether err wraps an error of the same kind as target. Any other
// target falls through to errors.Is.
func Is(err, target error) bool {
	if err == nil {
		return target == nil
	}
	switch target.(type) {
	case *ValidationError:
		return has[*ValidationError](err)
	case *ConfigError:
		return has[*ConfigError](err)
	case *ExternalAPIError:
		return has[*ExternalAPIError](err)
	case *ParseError:
		return has[*ParseError](err)
	case *BizError:
		return has[*BizError](err)
	default:
		return errors.Is(err, target)
	}
}

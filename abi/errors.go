package abi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode classifies a boundary error.
type ErrorCode string

const (
	CodeFailed         ErrorCode = "failed"
	CodeInvalidRequest ErrorCode = "invalid_request"
	CodeUnknownHandle  ErrorCode = "unknown_handle"
	CodeUnknownMethod  ErrorCode = "unknown_method"
	CodePanic          ErrorCode = "panic"
)

// Error is a failure reported across the boundary.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == CodeFailed || e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches sentinel errors by code, so errors.Is(err, ErrUnknownHandle) works for
// any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// Sentinels for errors.Is checks against boundary errors.
var (
	ErrFailed         = &Error{Code: CodeFailed}
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest}
	ErrUnknownHandle  = &Error{Code: CodeUnknownHandle}
	ErrUnknownMethod  = &Error{Code: CodeUnknownMethod}
	ErrPanic          = &Error{Code: CodePanic}
)

// ErrIncompatible is returned when a module header does not match this build.
var ErrIncompatible = errors.New("incompatible module ABI")

// NewPanicError converts a recovered panic value into a boundary error.
func NewPanicError(r any) *Error {
	return &Error{Code: CodePanic, Message: fmt.Sprint(r)}
}

// ToJSON encodes e as a Response.
func (e *Error) ToJSON() []byte {
	data, err := json.Marshal(Response{Error: e})
	if err != nil {
		return []byte(`{"error":{"code":"failed","message":"unencodable error"}}`)
	}
	return data
}

// AsError converts err into a boundary error, keeping the code of an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeFailed, Message: err.Error()}
}

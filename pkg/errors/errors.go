// Drive error taxonomy for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package errors carries the host's shared error type. Subsystem
// failures surface as *DriveError with a stable code, so callers match
// on category instead of parsing message text.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode names an error category. Every code here is produced by at
// least one subsystem; purely hypothetical categories are not kept.
type ErrorCode string

const (
	ErrConfigFile       ErrorCode = "CONFIG_FILE"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	ErrControl ErrorCode = "CONTROL"

	ErrCapture ErrorCode = "CAPTURE"

	ErrInputLink  ErrorCode = "INPUT_LINK"
	ErrInputFrame ErrorCode = "INPUT_FRAME"

	ErrMonitorMethod ErrorCode = "MONITOR_METHOD"
	ErrMonitorParams ErrorCode = "MONITOR_PARAMS"

	ErrTelemetryConnect ErrorCode = "TELEMETRY_CONNECT"

	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// DriveError is the error type shared by the host's subsystems.
type DriveError struct {
	Code    ErrorCode
	Message string
	Section string // config section, when the error names one
	Option  string // config option, when the error names one
	Err     error  // wrapped cause, if any
}

// Error renders "[CODE:detail] message: cause". The detail slot prefers
// the option name over the section; both are empty outside config
// errors.
func (e *DriveError) Error() string {
	head := string(e.Code)
	switch {
	case e.Option != "":
		head += ":" + e.Option
	case e.Section != "":
		head += ":" + e.Section
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", head, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", head, e.Message)
}

// Unwrap exposes the cause to the stdlib errors.Is / errors.As chain.
func (e *DriveError) Unwrap() error { return e.Err }

// New builds a DriveError from a code and message.
func New(code ErrorCode, message string) *DriveError {
	return &DriveError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code ErrorCode, message string) *DriveError {
	return &DriveError{Code: code, Message: message, Err: err}
}

// ConfigFileError reports an unreadable or unparsable config file.
func ConfigFileError(path string, err error) *DriveError {
	return Wrap(err, ErrConfigFile, "config file "+path)
}

// ConfigValidationError reports a config value that fails validation.
// option may be empty when the whole section is rejected.
func ConfigValidationError(section, option, reason string) *DriveError {
	where := section
	if option != "" {
		where += "." + option
	}
	return &DriveError{
		Code:    ErrConfigValidation,
		Message: where + " " + reason,
		Section: section,
		Option:  option,
	}
}

// ControlErrorf reports a control-loop or controller wiring condition.
func ControlErrorf(format string, args ...interface{}) *DriveError {
	return New(ErrControl, fmt.Sprintf(format, args...))
}

// CaptureError reports burst capture misuse.
func CaptureError(message string) *DriveError {
	return New(ErrCapture, message)
}

// InputLinkError reports an RC serial link failure.
func InputLinkError(device string, err error) *DriveError {
	return Wrap(err, ErrInputLink, "rc link "+device)
}

// InputFrameError reports a rejected RC frame.
func InputFrameError(reason string) *DriveError {
	return New(ErrInputFrame, "rc frame rejected: "+reason)
}

// MonitorMethodError reports an unknown RPC method.
func MonitorMethodError(method string) *DriveError {
	return New(ErrMonitorMethod, "unknown method: "+method)
}

// MonitorParamsError reports malformed RPC params.
func MonitorParamsError(method, reason string) *DriveError {
	return New(ErrMonitorParams, fmt.Sprintf("method %s: %s", method, reason))
}

// TelemetryConnectError reports a failed broker connection.
func TelemetryConnectError(broker string, err error) *DriveError {
	return Wrap(err, ErrTelemetryConnect, "broker "+broker)
}

// RuntimeError reports a general host fault.
func RuntimeError(message string) *DriveError {
	return New(ErrRuntime, message)
}

// RuntimeErrorInit reports a component that failed to come up.
func RuntimeErrorInit(component, reason string) *DriveError {
	return New(ErrRuntimeInit, component+": "+reason)
}

// RecoverPanic converts an in-flight panic to a DriveError stored in
// *dst. It must be the deferred call itself, not nested in a closure,
// or recover cannot see the panic:
//
//	defer errors.RecoverPanic(&err)
func RecoverPanic(dst *error) {
	r := recover()
	if r == nil {
		return
	}
	if err, ok := r.(error); ok {
		*dst = Wrap(err, ErrRuntime, "recovered panic")
		return
	}
	*dst = New(ErrRuntime, fmt.Sprintf("panic: %v", r))
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var de *DriveError
	return stderrors.As(err, &de) && de.Code == code
}

// IsConfig reports whether err is a config load or validation error.
func IsConfig(err error) bool {
	var de *DriveError
	if !stderrors.As(err, &de) {
		return false
	}
	return de.Code == ErrConfigFile || de.Code == ErrConfigValidation
}

// IsInput reports whether err came from the RC input link.
func IsInput(err error) bool {
	var de *DriveError
	if !stderrors.As(err, &de) {
		return false
	}
	return de.Code == ErrInputLink || de.Code == ErrInputFrame
}

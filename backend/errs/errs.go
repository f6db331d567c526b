// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeForbidden          Code = "FORBIDDEN"
	CodeEditWindowExpired  Code = "EDIT_WINDOW_EXPIRED"
	CodeInvalidOperation   Code = "INVALID_OPERATION"
	CodeAIProcessingFailed Code = "AI_PROCESSING_FAILED"
	CodeMalformedEvent     Code = "MALFORMED_EVENT"
	CodeInternal           Code = "INTERNAL"
)

// Error is the single error type crossing relay and handler boundaries.
// Validation and ownership failures are returned to the originating caller
// only; they never reach broadcast fan-out.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NotFound(message string) *Error         { return New(CodeNotFound, message) }
func Forbidden(message string) *Error        { return New(CodeForbidden, message) }
func InvalidOperation(message string) *Error { return New(CodeInvalidOperation, message) }
func MalformedEvent(message string) *Error   { return New(CodeMalformedEvent, message) }
func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

func EditWindowExpired(message string) *Error { return New(CodeEditWindowExpired, message) }

func AIProcessingFailed(cause error) *Error {
	return Wrap(CodeAIProcessingFailed, "ai service request failed", cause)
}

// CodeOf extracts the taxonomy code from any error in the chain,
// defaulting to INTERNAL for plain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a taxonomy code to the status used at the REST boundary.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeEditWindowExpired, CodeInvalidOperation, CodeMalformedEvent:
		return http.StatusBadRequest
	case CodeAIProcessingFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

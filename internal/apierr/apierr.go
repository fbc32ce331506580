// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apierr defines the one closed error taxonomy every component in
// this module reduces its failures to at its boundary. The filesystem core
// is the only place a Kind is ever translated to an errno.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error roles described in the backend contract
// and the filesystem error-handling design.
type Kind int

const (
	// KindNotFound: inode unknown, torrent/file absent, path missing.
	KindNotFound Kind = iota
	// KindReadOnly: mutating op, or the open mode requested write access.
	KindReadOnly
	// KindUnauthorized: bad or missing credentials.
	KindUnauthorized
	// KindInvalidArgument: bad range, bad name, type mismatch at call site.
	KindInvalidArgument
	// KindTypeMismatch: opening a directory, reading a symlink, etc.
	KindTypeMismatch
	// KindNotReady: timeout, service unavailable, channel full, piece not
	// yet downloaded, 429.
	KindNotReady
	// KindNetworkError: transport, disconnect, DNS failure.
	KindNetworkError
	// KindIoError: 5xx, body read failure, other unrecoverable upstream
	// condition.
	KindIoError
	// KindOutOfResources: inode cap reached, stream pool exhausted without
	// eviction, semaphore acquisition refused.
	KindOutOfResources
	// KindBadHandle: unknown file handle.
	KindBadHandle
	// KindOther: anything that doesn't fit the roles above.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindReadOnly:
		return "ReadOnly"
	case KindUnauthorized:
		return "Unauthorized"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindNotReady:
		return "NotReady"
	case KindNetworkError:
		return "NetworkError"
	case KindIoError:
		return "IoError"
	case KindOutOfResources:
		return "OutOfResources"
	case KindBadHandle:
		return "BadHandle"
	default:
		return "Other"
	}
}

// Error is the typed error every component boundary reduces to. It may wrap
// an underlying cause for logging without leaking that cause into control
// flow: callers branch on Kind, never on the wrapped error's type.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindOther for errors that
// never went through this taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

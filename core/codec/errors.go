// Copyright (c) 2022 The rcproxy Authors
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

package codec

import (
	"errors"
	"fmt"
)

type ErrorKind uint8

const (
	// MissingLength a bulk string tag without a complete length line
	MissingLength ErrorKind = iota + 1
	// InvalidLength the length line is not a usable integer
	InvalidLength
	// InvalidData unknown tag byte or empty input
	InvalidData
	// MissingEndOfLine a simple string without a terminator
	MissingEndOfLine
	// NotEnoughData the bulk payload plus its trailer is not fully buffered yet
	NotEnoughData
	// InvalidText a payload read as text is not valid UTF-8, stream only
	InvalidText
)

func (k ErrorKind) String() string {
	switch k {
	case MissingLength:
		return "missing_length"
	case InvalidLength:
		return "invalid_length"
	case InvalidData:
		return "invalid_data"
	case MissingEndOfLine:
		return "missing_end_of_line"
	case NotEnoughData:
		return "not_enough_data"
	case InvalidText:
		return "invalid_text"
	}
	return "unknown"
}

// DecodeError is the only error type produced by the decoders in this package
// apart from the wrapped I/O errors of StreamReader.
//
// Required and Actual are set for NotEnoughData only. Cause carries the
// lower level failure (integer parsing, UTF-8) when there is one.
type DecodeError struct {
	Kind     ErrorKind
	Required int
	Actual   int
	Cause    error
}

var (
	ErrMissingLength    = &DecodeError{Kind: MissingLength}
	ErrInvalidLength    = &DecodeError{Kind: InvalidLength}
	ErrInvalidData      = &DecodeError{Kind: InvalidData}
	ErrMissingEndOfLine = &DecodeError{Kind: MissingEndOfLine}
	ErrNotEnoughData    = &DecodeError{Kind: NotEnoughData}
	ErrInvalidText      = &DecodeError{Kind: InvalidText}
)

var ErrNegativeLength = errors.New("negative length")
var ErrLengthOverflow = errors.New("length overflows int")
var ErrBulkTooLarge = errors.New("bulk string length exceeds limit")
var ErrInvalidUTF8 = errors.New("invalid utf-8")

func (e *DecodeError) Error() string {
	switch {
	case e.Kind == NotEnoughData:
		return fmt.Sprintf("resp: not enough data: required %d, actual %d", e.Required, e.Actual)
	case e.Cause != nil:
		return fmt.Sprintf("resp: %s: %s", e.Kind, e.Cause)
	}
	return "resp: " + e.Kind.String()
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Is matches any DecodeError of the same kind, so errors.Is(err, ErrNotEnoughData)
// holds whatever Required and Actual are.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func invalidLength(cause error) error {
	return &DecodeError{Kind: InvalidLength, Cause: cause}
}

func notEnoughData(required, actual int) error {
	return &DecodeError{Kind: NotEnoughData, Required: required, Actual: actual}
}

// KindOf returns the decode error kind carried by err, or 0 when err is not a
// decode failure (nil, or an I/O error from a stream).
func KindOf(err error) ErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

func IsDecodeError(err error) bool { return KindOf(err) != 0 }

// IsIncomplete reports whether err only means the buffer ends before the
// first frame does: decoding again with more bytes appended may succeed.
func IsIncomplete(err error) bool {
	switch KindOf(err) {
	case MissingLength, MissingEndOfLine, NotEnoughData:
		return true
	}
	return false
}

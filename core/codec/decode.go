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

const (
	TagSimpleString = '+'
	TagBulkString   = '$'
)

// Decode decodes the first frame of b. Bytes after that frame are ignored.
//
// Decode never copies the payload: the returned Frame borrows from b. It is a
// pure function and may be called concurrently on shared read-only buffers.
// An incomplete buffer yields MissingLength, MissingEndOfLine or NotEnoughData
// (see IsIncomplete); the caller retries from the start once more bytes are
// available.
func Decode(b []byte) (Frame, error) {
	f, _, err := DecodeN(b)
	return f, err
}

// DecodeN is Decode that also returns how many bytes of b the frame occupies,
// tag and terminators included.
func DecodeN(b []byte) (Frame, int, error) {
	if len(b) < 1 {
		return Frame{}, 0, ErrInvalidData
	}
	var (
		f   Frame
		n   int
		err error
	)
	switch b[0] {
	case TagSimpleString:
		f, n, err = decodeSimpleString(b[1:])
	case TagBulkString:
		f, n, err = decodeBulkString(b[1:])
	default:
		return Frame{}, 0, ErrInvalidData
	}
	if err != nil {
		return Frame{}, 0, err
	}
	return f, n + 1, nil
}

func decodeSimpleString(b []byte) (Frame, int, error) {
	line, _, ok := splitLine(b)
	if !ok {
		return Frame{}, 0, ErrMissingEndOfLine
	}
	return Frame{Kind: SimpleString, Data: line}, len(line) + terminatorLen, nil
}

func decodeBulkString(b []byte) (Frame, int, error) {
	line, rest, ok := splitLine(b)
	if !ok {
		return Frame{}, 0, ErrMissingLength
	}
	length, err := parseLength(line)
	if err != nil {
		return Frame{}, 0, err
	}
	head := len(line) + terminatorLen
	if length == NullLength {
		return Frame{Kind: Null}, head, nil
	}

	// the trailer is counted, not compared: the length is authoritative
	required := length + terminatorLen
	if len(rest) < required {
		return Frame{}, 0, notEnoughData(required, len(rest))
	}
	return Frame{Kind: BulkString, Data: rest[:length:length]}, head + required, nil
}

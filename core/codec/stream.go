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
	"bufio"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Source is a blocking byte stream that can hand out lines. *bufio.Reader
// satisfies it.
type Source interface {
	io.Reader
	ReadSlice(delim byte) ([]byte, error)
}

type StreamOption func(r *StreamReader)

// WithMaxBulkLength rejects bulk strings declaring more than n bytes before
// their payload buffer is allocated. n < 1 means no limit.
func WithMaxBulkLength(n int) StreamOption {
	return func(r *StreamReader) {
		r.maxBulkLength = n
	}
}

// StreamReader reads frames one at a time from a Source, blocking until the
// bytes arrive. Each returned Frame owns its Data.
//
// Errors are either a *DecodeError (see IsDecodeError) or a wrapped I/O error
// from the source. After either, the read position sits inside the broken
// frame and the stream cannot be resynchronized by this reader.
//
// A StreamReader must not be shared between goroutines.
type StreamReader struct {
	src           Source
	maxBulkLength int

	tag     [1]byte
	trailer [terminatorLen]byte
}

func NewStreamReader(src Source, opts ...StreamOption) *StreamReader {
	r := &StreamReader{src: src}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ReadFrame reads exactly one frame. A clean end of stream before the tag byte
// is reported as io.EOF (wrapped); anywhere later it is io.ErrUnexpectedEOF.
func (r *StreamReader) ReadFrame() (Frame, error) {
	if _, err := io.ReadFull(r.src, r.tag[:]); err != nil {
		return Frame{}, errors.Wrap(err, "read frame tag")
	}
	switch r.tag[0] {
	case TagSimpleString:
		return r.readSimpleString()
	case TagBulkString:
		return r.readBulkString()
	}
	return Frame{}, ErrInvalidData
}

// ReadText is ReadFrame for callers that expect text: a payload that is not
// valid UTF-8 fails with InvalidText instead of being converted lossily.
func (r *StreamReader) ReadText() (Frame, error) {
	f, err := r.ReadFrame()
	if err != nil {
		return Frame{}, err
	}
	if !utf8.Valid(f.Data) {
		return Frame{}, &DecodeError{Kind: InvalidText, Cause: ErrInvalidUTF8}
	}
	return f, nil
}

func (r *StreamReader) readSimpleString() (Frame, error) {
	line, err := r.readLine()
	if err != nil {
		return Frame{}, errors.Wrap(err, "read simple string")
	}
	data := make([]byte, len(line))
	copy(data, line)
	return Frame{Kind: SimpleString, Data: data}, nil
}

func (r *StreamReader) readBulkString() (Frame, error) {
	line, err := r.readLine()
	if err != nil {
		return Frame{}, errors.Wrap(err, "read bulk string length")
	}
	length, err := parseLength(line)
	if err != nil {
		return Frame{}, err
	}
	if length == NullLength {
		return Frame{Kind: Null}, nil
	}
	if r.maxBulkLength > 0 && length > r.maxBulkLength {
		return Frame{}, invalidLength(ErrBulkTooLarge)
	}

	data := make([]byte, length)
	if err = r.readFull(data); err != nil {
		return Frame{}, errors.Wrapf(err, "read bulk string payload of %d bytes", length)
	}
	if err = r.readFull(r.trailer[:]); err != nil {
		return Frame{}, errors.Wrap(err, "read bulk string trailer")
	}
	return Frame{Kind: BulkString, Data: data}, nil
}

// readFull is io.ReadFull for reads that start inside a frame, where even a
// clean EOF means the frame was cut short.
func (r *StreamReader) readFull(p []byte) error {
	_, err := io.ReadFull(r.src, p)
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// readLine returns the next line without its "\r\n" (or bare "\n"). The
// result may alias the source's internal buffer until the next read.
func (r *StreamReader) readLine() ([]byte, error) {
	p, err := r.src.ReadSlice(LFByte)
	if err == bufio.ErrBufferFull {
		// the line does not fit in the source's buffer, fall back to allocating
		buf := append([]byte{}, p...)
		for err == bufio.ErrBufferFull {
			p, err = r.src.ReadSlice(LFByte)
			buf = append(buf, p...)
		}
		p = buf
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	p = p[:len(p)-1]
	if n := len(p); n > 0 && p[n-1] == CRByte {
		p = p[:n-1]
	}
	return p, nil
}

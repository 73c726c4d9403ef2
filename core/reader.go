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

package core

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"rcresp/core/codec"
	"rcresp/core/pkg/logging"
	"rcresp/core/pkg/utils"
)

var ErrBufferFull = errors.New("frame exceeds max buffer size")

const dumpMaxLength = 256

var readerPool bytebufferpool.Pool

type readerOptions struct {
	bufferSize    int
	maxBufferSize int
	stats         *DecoderStats
}

type ReaderOption func(o *readerOptions)

// WithBufferSize minimum number of bytes requested from the source per read
func WithBufferSize(n int) ReaderOption {
	return func(o *readerOptions) {
		o.bufferSize = n
	}
}

// WithMaxBufferSize upper bound for a single frame held in memory
func WithMaxBufferSize(n int) ReaderOption {
	return func(o *readerOptions) {
		o.maxBufferSize = n
	}
}

func WithStats(s *DecoderStats) ReaderOption {
	return func(o *readerOptions) {
		o.stats = s
	}
}

// FrameReader decodes consecutive frames from a byte source with the buffer
// decoder. It keeps unread bytes between calls and reads more whenever the
// buffered input ends inside a frame.
//
// Frames returned by Next borrow from the reader's buffer and are valid only
// until the next call to Next or Close. Use Frame.Clone to keep one longer.
type FrameReader struct {
	rd   io.Reader
	buf  *bytebufferpool.ByteBuffer
	r    int // start of undecoded bytes in buf.B
	eof  bool
	err  error
	opts readerOptions
}

func NewFrameReader(rd io.Reader, opts ...ReaderOption) *FrameReader {
	o := readerOptions{
		bufferSize:    4096,
		maxBufferSize: 64 * 1024 * 1024,
		stats:         &GlobalStats,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxBufferSize < o.bufferSize {
		o.maxBufferSize = o.bufferSize
	}
	return &FrameReader{rd: rd, buf: readerPool.Get(), opts: o}
}

// Next returns the next frame. It returns io.EOF once the source is drained
// at a frame boundary. A source ending inside a frame yields
// io.ErrUnexpectedEOF. Malformed input yields the *codec.DecodeError, and
// every later call returns the same error.
func (fr *FrameReader) Next() (codec.Frame, error) {
	if fr.err != nil {
		return codec.Frame{}, fr.err
	}
	for {
		pending := fr.buf.B[fr.r:]
		want := fr.opts.bufferSize
		if len(pending) > 0 {
			f, n, err := codec.DecodeN(pending)
			fr.opts.stats.Observe(SourceBuffer, f, err)
			if err == nil {
				logging.Debugfunc(func() string {
					return fmt.Sprintf("%s %s %s", logging.TitleFrame, f.Kind, utils.FormatRESP(pending[:n], dumpMaxLength))
				})
				fr.r += n
				fr.opts.stats.Buffered.WithLabelValues().Set(float64(len(fr.buf.B) - fr.r))
				return f, nil
			}
			if !codec.IsIncomplete(err) {
				logging.Warnf("malformed frame: %s, input: %s", err, utils.FormatRESP(pending, dumpMaxLength))
				fr.err = err
				return codec.Frame{}, err
			}
			var de *codec.DecodeError
			if errors.As(err, &de) && de.Kind == codec.NotEnoughData && de.Required-de.Actual > want {
				want = de.Required - de.Actual
			}
		}
		if fr.eof {
			if len(pending) == 0 {
				return codec.Frame{}, io.EOF
			}
			fr.err = errors.Wrapf(io.ErrUnexpectedEOF, "source ended inside a frame, %d bytes buffered", len(pending))
			return codec.Frame{}, fr.err
		}
		if err := fr.fill(want); err != nil {
			fr.err = err
			return codec.Frame{}, err
		}
	}
}

// fill drops decoded bytes and reads at least once from the source, making
// room for want more bytes.
func (fr *FrameReader) fill(want int) error {
	b := fr.buf.B
	if fr.r > 0 {
		b = b[:copy(b, b[fr.r:])]
		fr.r = 0
	}
	if len(b)+want > fr.opts.maxBufferSize {
		want = fr.opts.maxBufferSize - len(b)
		if want < 1 {
			fr.buf.B = b
			logging.Warnf("frame reader buffer full: %d bytes", len(b))
			return errors.Wrapf(ErrBufferFull, "%d bytes buffered", len(b))
		}
	}
	if cap(b)-len(b) < want {
		nb := make([]byte, len(b), len(b)+want)
		copy(nb, b)
		b = nb
	}

	fr.opts.stats.Refills.WithLabelValues().Inc()
	n, err := fr.rd.Read(b[len(b):cap(b)])
	b = b[:len(b)+n]
	fr.buf.B = b
	fr.opts.stats.BytesRead.WithLabelValues(SourceBuffer).Add(float64(n))

	switch {
	case err == io.EOF:
		fr.eof = true
	case err != nil:
		fr.opts.stats.IOErrors.WithLabelValues(SourceBuffer).Inc()
		return errors.Wrap(err, "read frame source")
	}
	return nil
}

// Close returns the buffer to the pool. Frames from Next must not be used
// afterwards.
func (fr *FrameReader) Close() {
	if fr.buf == nil {
		return
	}
	fr.buf.Reset()
	readerPool.Put(fr.buf)
	fr.buf = nil
	fr.err = errors.New("frame reader closed")
}

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
	"strings"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStream(s string, opts ...StreamOption) *StreamReader {
	return NewStreamReader(bufio.NewReader(strings.NewReader(s)), opts...)
}

func TestStreamReadFrame(t *testing.T) {
	r := newStream("+OK\r\n$11\r\nhello world\r\n$-1\r\n$0\r\n\r\n$12\r\nhello\r\nworld\r\n+bare\n")

	var expect = []Frame{
		{Kind: SimpleString, Data: []byte("OK")},
		{Kind: BulkString, Data: []byte("hello world")},
		{Kind: Null},
		{Kind: BulkString, Data: []byte{}},
		{Kind: BulkString, Data: []byte("hello\r\nworld")},
		{Kind: SimpleString, Data: []byte("bare")},
	}
	for _, e := range expect {
		f, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, e.Kind, f.Kind)
		assert.Equal(t, e.Data, f.Data)
	}

	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, IsDecodeError(err))
}

func TestStreamReadFrameOwnsData(t *testing.T) {
	r := NewStreamReader(bufio.NewReaderSize(strings.NewReader("+first\r\n+second\r\n"), 16))
	first, err := r.ReadFrame()
	require.NoError(t, err)
	_, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "first", string(first.Data))
}

func TestStreamLongLine(t *testing.T) {
	long := strings.Repeat("x", 100)
	r := NewStreamReader(bufio.NewReaderSize(strings.NewReader("+"+long+"\r\n"), 16))
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, long, string(f.Data))
}

func TestStreamOneByteReads(t *testing.T) {
	src := bufio.NewReaderSize(iotest.OneByteReader(strings.NewReader("$5\r\nhello\r\n")), 16)
	f, err := NewStreamReader(src).ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(f.Data))
}

func TestStreamDecodeErrors(t *testing.T) {
	var cases = []struct {
		Input string
		Error error
	}{
		{Input: "ZZZZ", Error: ErrInvalidData},
		{Input: "-ERR oops\r\n", Error: ErrInvalidData},
		{Input: "$11hello\r\n", Error: ErrInvalidLength},
		{Input: "$-2\r\n", Error: ErrInvalidLength},
		{Input: "$abc\r\n", Error: ErrInvalidLength},
	}
	for _, c := range cases {
		_, err := newStream(c.Input).ReadFrame()
		assert.ErrorIs(t, err, c.Error, c.Input)
		assert.True(t, IsDecodeError(err), c.Input)
	}
}

func TestStreamIOErrors(t *testing.T) {
	for _, in := range []string{"$", "$11", "$11\r\nhello", "$5\r\nhello", "$5\r\nhello\r", "+hello"} {
		_, err := newStream(in).ReadFrame()
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, in)
		assert.False(t, IsDecodeError(err), in)
		assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err), in)
	}

	boom := errors.New("boom")
	_, err := NewStreamReader(bufio.NewReader(iotest.ErrReader(boom))).ReadFrame()
	assert.ErrorIs(t, err, boom)
}

func TestStreamMaxBulkLength(t *testing.T) {
	_, err := newStream("$6\r\nhello!\r\n", WithMaxBulkLength(5)).ReadFrame()
	assert.ErrorIs(t, err, ErrInvalidLength)
	assert.ErrorIs(t, err, ErrBulkTooLarge)

	f, err := newStream("$5\r\nhello\r\n", WithMaxBulkLength(5)).ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(f.Data))
}

func TestStreamReadText(t *testing.T) {
	f, err := newStream("$6\r\nh\xc3\xa9llo\r\n").ReadText()
	require.NoError(t, err)
	assert.Equal(t, "héllo", string(f.Data))

	_, err = newStream("$2\r\n\xc3\x28\r\n").ReadText()
	assert.ErrorIs(t, err, ErrInvalidText)
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	f, err = newStream("$-1\r\n").ReadText()
	require.NoError(t, err)
	assert.True(t, f.IsNull())
}

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
	"strconv"
)

// Kind identifies which frame variant a Frame carries.
type Kind uint8

const (
	Unknown Kind = iota
	SimpleString
	BulkString
	Null
)

func (k Kind) String() string {
	switch k {
	case SimpleString:
		return "simple_string"
	case BulkString:
		return "bulk_string"
	case Null:
		return "null"
	}
	return "unknown"
}

// Frame a decoded RESP value.
//
// Frames returned by Decode and DecodeN borrow Data from the input buffer:
// Data stays valid only as long as the caller keeps that buffer unchanged.
// Its capacity is clipped to its length, so appending to Data never writes
// into the input. Frames returned by StreamReader own Data.
type Frame struct {
	Kind Kind
	Data []byte // nil for Null
}

func (f Frame) IsNull() bool { return f.Kind == Null }

// Clone returns a frame whose Data no longer aliases the decoded buffer.
func (f Frame) Clone() Frame {
	if f.Data == nil {
		return f
	}
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Kind: f.Kind, Data: data}
}

// String renders the frame the way redis-cli prints replies
func (f Frame) String() string {
	switch f.Kind {
	case SimpleString:
		return string(f.Data)
	case BulkString:
		return strconv.Quote(string(f.Data))
	case Null:
		return "(nil)"
	}
	return "(unknown)"
}

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
	"bytes"
)

var (
	LFByte   = byte('\n')
	CRByte   = byte('\r')
	LFCRByte = []byte{'\r', '\n'}
)

const terminatorLen = 2

// splitLine splits b at the first "\r\n". When there is none, ok is false and
// rest is b itself; callers decide whether that means more data is needed.
// Both returned slices alias b.
func splitLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.Index(b, LFCRByte)
	if i < 0 {
		return nil, b, false
	}
	return b[:i:i], b[i+terminatorLen:], true
}

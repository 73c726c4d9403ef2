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

package utils

import (
	"strconv"
	"unsafe"
)

// S2B returns the bytes of s without copying. The result must not be modified.
func S2B(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(*(**byte)(unsafe.Pointer(&s)), len(s))
}

// B2S returns b as a string without copying. b must not change while the
// string is in use.
func B2S(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// FormatRESP renders wire bytes for log lines: control bytes are escaped and
// anything beyond max bytes is cut off.
func FormatRESP(resp []byte, max int) string {
	truncated := false
	if max > 0 && len(resp) > max {
		resp = resp[:max]
		truncated = true
	}
	s := strconv.Quote(B2S(resp))
	s = s[1 : len(s)-1]
	if truncated {
		s += "..."
	}
	return s
}

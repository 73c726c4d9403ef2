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
	"math"
	"strconv"
	"unicode/utf8"

	"rcresp/core/pkg/utils"
)

// NullLength is the bulk string length announcing a null value.
const NullLength = -1

// parseLength decodes the decimal length line of a bulk string. It returns
// NullLength for "-1" and otherwise a length n with n+2 still fitting an int.
func parseLength(line []byte) (int, error) {
	if !utf8.Valid(line) {
		return 0, invalidLength(ErrInvalidUTF8)
	}
	n, err := strconv.ParseInt(utils.B2S(line), 10, strconv.IntSize)
	if err != nil {
		return 0, invalidLength(err)
	}
	switch {
	case n == NullLength:
		return NullLength, nil
	case n < 0:
		return 0, invalidLength(ErrNegativeLength)
	case n > math.MaxInt-terminatorLen:
		return 0, invalidLength(ErrLengthOverflow)
	}
	return int(n), nil
}

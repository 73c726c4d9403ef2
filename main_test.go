// Copyright (c) 2022 The rcproxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License"): you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcresp/config"
	"rcresp/core/codec"
)

func TestDecodeFile(t *testing.T) {
	cfg, err := config.ParseConfig([]byte("reader:\n  buffer_size: 8\n"))
	require.NoError(t, err)

	name := filepath.Join(t.TempDir(), "capture.resp")
	require.NoError(t, os.WriteFile(name, []byte("+OK\r\n$5\r\nhello\r\n$-1\r\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, decodeFile(cfg, name, &out))
	assert.Equal(t, "OK\nhello\n(nil)\n", out.String())

	require.NoError(t, os.WriteFile(name, []byte("+OK\r\n$x\r\n"), 0644))
	out.Reset()
	err = decodeFile(cfg, name, &out)
	assert.ErrorIs(t, err, codec.ErrInvalidLength)
	assert.Equal(t, "OK\n", out.String())

	assert.Error(t, decodeFile(cfg, filepath.Join(t.TempDir(), "missing"), &out))
}

func TestPrintFrame(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printFrame(&out, codec.Frame{Kind: codec.BulkString, Data: []byte("# Server\r\nredis_version:7.0.0\r\n")}))
	require.NoError(t, printFrame(&out, codec.Frame{Kind: codec.SimpleString, Data: []byte("PONG")}))
	assert.Equal(t, "# Server\r\nredis_version:7.0.0\r\n\nPONG\n", out.String())
}

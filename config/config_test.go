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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("redis:\n  password: secret\n"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, "INFO", cfg.Command)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 4096, cfg.Reader.BufferSize)
	assert.Equal(t, 0, cfg.WebPort)
}

func TestParseConfigInvalid(t *testing.T) {
	var cases = []string{
		"log_level: TRACE\n",
		"redis:\n  addr: \"\"\n",
		"command: \"\"\n",
		"command: \"   \"\n",
		"redis:\n  timeout: -1\n",
		"reader:\n  buffer_size: 0\n",
		"reader:\n  buffer_size: 10\n  max_buffer_size: 5\n",
		"web_port: [\n",
	}
	for _, c := range cases {
		_, err := ParseConfig([]byte(c))
		assert.Error(t, err, c)
	}
}

func TestLoadConfig(t *testing.T) {
	name := filepath.Join(t.TempDir(), "rc.yaml")
	require.NoError(t, os.WriteFile(name, []byte(`
web_port: 9090
log_level: DEBUG
command: PING
redis:
  addr: 10.0.0.1:7000
  max_bulk_length: 1024
`), 0644))

	cfg, err := LoadConfig(name)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.WebPort)
	assert.Equal(t, "PING", cfg.Command)
	assert.Equal(t, "10.0.0.1:7000", cfg.Redis.Addr)
	assert.Equal(t, 1024, cfg.Redis.MaxBulkLength)
	assert.Equal(t, 3000, cfg.Redis.Timeout)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

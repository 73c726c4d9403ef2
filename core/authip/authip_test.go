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

package authip

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, name, content string) {
	require.NoError(t, os.WriteFile(name, []byte(content), 0644))
}

func TestAllowListLoad(t *testing.T) {
	name := filepath.Join(t.TempDir(), "authip.yaml")
	a := New(name)
	assert.True(t, a.Validate("10.0.0.1"))

	writeList(t, name, "enable: true\nip_white_list:\n  - 127.0.0.1\n  - 127.0.0.1\n  - 10.0.0.2\n")
	require.NoError(t, a.Load())
	assert.True(t, a.Validate("127.0.0.1"))
	assert.True(t, a.Validate("10.0.0.2"))
	assert.False(t, a.Validate("10.0.0.1"))

	enable, ips := a.Snapshot()
	assert.True(t, enable)
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.2"}, ips)

	writeList(t, name, "enable: false\n")
	require.NoError(t, a.Load())
	assert.True(t, a.Validate("10.0.0.1"))
}

func TestAllowListLoadError(t *testing.T) {
	dir := t.TempDir()
	a := New(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, a.Load())
	assert.Error(t, a.Watch())

	name := filepath.Join(dir, "bad.yaml")
	writeList(t, name, "enable: [\n")
	assert.Error(t, New(name).Load())
}

func TestAllowListWatch(t *testing.T) {
	name := filepath.Join(t.TempDir(), "authip.yaml")
	writeList(t, name, "enable: true\nip_white_list:\n  - 127.0.0.1\n")

	a := New(name)
	require.NoError(t, a.Watch())
	defer a.Close()
	assert.False(t, a.Validate("10.0.0.9"))

	writeList(t, name, "enable: true\nip_white_list:\n  - 10.0.0.9\n")
	assert.Eventually(t, func() bool {
		return a.Validate("10.0.0.9") && !a.Validate("127.0.0.1")
	}, 2*time.Second, 10*time.Millisecond)
}

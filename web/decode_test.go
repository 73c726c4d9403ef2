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

package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcresp/core"
	"rcresp/core/authip"
)

func newTestServer(t *testing.T, allow *authip.AllowList) *gin.Engine {
	gin.SetMode(gin.TestMode)
	stats := core.NewDecoderStats("web_test", prometheus.NewRegistry())
	h := &handler{
		build:   BuildInfo{Tag: "v0.1.0", CommitSHA: "abc", BuildTime: "now"},
		allow:   allow,
		stats:   &stats,
		maxBody: 64,
	}
	srv := gin.New()
	h.register(srv)
	return srv
}

func post(srv *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/decode", strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:40000"
	srv.ServeHTTP(w, req)
	return w
}

func TestHandleDecode(t *testing.T) {
	srv := newTestServer(t, nil)

	var cases = []struct {
		Body   string
		Status int
		Expect string
	}{
		{Body: "+hello\r\n", Status: http.StatusOK, Expect: `{"kind":"simple_string","text":"hello","size":8}`},
		{Body: "$11\r\nhello world\r\n", Status: http.StatusOK, Expect: `{"kind":"bulk_string","text":"hello world","size":18}`},
		{Body: "$0\r\n\r\n", Status: http.StatusOK, Expect: `{"kind":"bulk_string","text":"","size":6}`},
		{Body: "$-1\r\n", Status: http.StatusOK, Expect: `{"kind":"null","size":5}`},
		{Body: "$2\r\n\xff\xfe\r\n", Status: http.StatusOK, Expect: `{"kind":"bulk_string","data":"//4=","size":8}`},
		{Body: "$11\r\n", Status: http.StatusUnprocessableEntity,
			Expect: `{"error":"not_enough_data","message":"resp: not enough data: required 13, actual 0","incomplete":true,"required":13}`},
		{Body: "", Status: http.StatusUnprocessableEntity,
			Expect: `{"error":"invalid_data","message":"resp: invalid_data","incomplete":false}`},
		{Body: "$", Status: http.StatusUnprocessableEntity,
			Expect: `{"error":"missing_length","message":"resp: missing_length","incomplete":true}`},
	}
	for _, c := range cases {
		w := post(srv, c.Body)
		assert.Equal(t, c.Status, w.Code, "%q", c.Body)
		assert.JSONEq(t, c.Expect, w.Body.String(), "%q", c.Body)
	}

	w := post(srv, "+"+strings.Repeat("x", 100)+"\r\n")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDecodeAllowList(t *testing.T) {
	name := filepath.Join(t.TempDir(), "authip.yaml")
	require.NoError(t, os.WriteFile(name, []byte("enable: true\nip_white_list:\n  - 10.0.0.1\n"), 0644))
	allow := authip.New(name)
	require.NoError(t, allow.Load())
	srv := newTestServer(t, allow)

	w := post(srv, "+OK\r\n")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/authip", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enable":true,"ip_white_list":["10.0.0.1"]}`, w.Body.String())
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(t, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var b BuildInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "v0.1.0", b.Tag)
}

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
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"rcresp/core"
	"rcresp/core/authip"
	"rcresp/core/codec"
	"rcresp/core/pkg/logging"
)

const defaultMaxBody = 4 * 1024 * 1024

type handler struct {
	build   BuildInfo
	allow   *authip.AllowList
	stats   *core.DecoderStats
	maxBody int64
}

type FrameRes struct {
	Kind string  `json:"kind"`
	Text *string `json:"text,omitempty"`
	Data []byte  `json:"data,omitempty"`
	Size int     `json:"size"`
}

type ErrorRes struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Incomplete bool   `json:"incomplete"`
	Required   int    `json:"required,omitempty"`
	Actual     int    `json:"actual,omitempty"`
}

func (h *handler) HandleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

func (h *handler) HandleAuthIp(c *gin.Context) {
	if h.allow == nil {
		c.JSON(http.StatusOK, gin.H{"enable": false, "ip_white_list": []string{}})
		return
	}
	enable, ips := h.allow.Snapshot()
	c.JSON(http.StatusOK, gin.H{"enable": enable, "ip_white_list": ips})
}

func (h *handler) allowIP(c *gin.Context) {
	if h.allow != nil && !h.allow.Validate(c.ClientIP()) {
		logging.Warnf("decode request from %s rejected by ip allow list", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

// HandleDecode decodes the first frame of the raw request body.
func (h *handler) HandleDecode(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read_body", "message": err.Error()})
		return
	}
	if int64(len(body)) > h.maxBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too_large", "message": "request body too large"})
		return
	}

	f, n, err := codec.DecodeN(body)
	h.stats.Observe(core.SourceHTTP, f, err)
	if err != nil {
		res := ErrorRes{
			Error:      codec.KindOf(err).String(),
			Message:    err.Error(),
			Incomplete: codec.IsIncomplete(err),
		}
		var de *codec.DecodeError
		if errors.As(err, &de) && de.Kind == codec.NotEnoughData {
			res.Required, res.Actual = de.Required, de.Actual
		}
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}

	res := FrameRes{Kind: f.Kind.String(), Size: n}
	if f.Kind != codec.Null {
		if utf8.Valid(f.Data) {
			s := string(f.Data)
			res.Text = &s
		} else {
			res.Data = f.Data
		}
	}
	c.JSON(http.StatusOK, res)
}

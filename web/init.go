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
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rcresp/core"
	"rcresp/core/authip"
)

type BuildInfo struct {
	Tag       string `json:"version"`
	CommitSHA string `json:"commit"`
	BuildTime string `json:"time"`
}

// Init registers the admin routes. allow may be nil, in which case /decode is
// open to every client.
func Init(ginSrv *gin.Engine, build BuildInfo, allow *authip.AllowList) {
	h := &handler{build: build, allow: allow, stats: &core.GlobalStats, maxBody: defaultMaxBody}
	h.register(ginSrv)
}

func (h *handler) register(ginSrv *gin.Engine) {
	pprof.Register(ginSrv)
	ginSrv.GET("/version", h.HandleVersion)
	ginSrv.GET("/authip", h.HandleAuthIp)
	ginSrv.GET("/metrics", gin.WrapH(promhttp.Handler()))
	ginSrv.POST("/decode", h.allowIP, h.HandleDecode)
}

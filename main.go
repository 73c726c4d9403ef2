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
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"rcresp/config"
	"rcresp/core"
	"rcresp/core/authip"
	"rcresp/core/codec"
	"rcresp/core/pkg/logging"
	"rcresp/core/pkg/redis"
	"rcresp/web"
)

var (
	configPath       = flag.String("p", "conf", "Config file path")
	basicConfigFile  = flag.String("c", "rc.yaml", "Basic config filename")
	authIpConfigFile = flag.String("a", "authip.yaml", "Authip config filename")
	inputFile        = flag.String("i", "", "Decode frames from a capture file instead of querying redis, - for stdin")
	serve            = flag.Bool("s", false, "Keep serving the web port after the command finished")
	version          = flag.Bool("v", false, "Show version")
	help             = flag.Bool("h", false, "Show usage info")
)

var (
	CommitSHA string
	Tag       string
	BuildTime string
)

func init() {
	if len(Tag) < 1 {
		Tag = "unknown"
	}
	if len(CommitSHA) < 1 {
		CommitSHA = "unknown"
	}
	if len(BuildTime) < 1 {
		BuildTime = "unknown"
	}
}

func parseCli() {
	flag.Parse()
	if *version {
		fmt.Printf("version: %s\ncommit: %s\ntime: %s\n", Tag, CommitSHA, BuildTime)
		os.Exit(0)
	}
	if *help {
		flag.Usage()
		os.Exit(0)
	}
}

func main() {
	parseCli()

	cfg, err := config.LoadConfig(path.Join(*configPath, *basicConfigFile))
	if err != nil {
		logging.Errorf("parse config file err:%v", err)
		os.Exit(1)
	}

	// Initialization Logger
	if err = logging.InitializeLogger(
		logging.WithPath(cfg.LogPath),
		logging.WithExpireDay(cfg.LogExpireDay),
		logging.WithLogLevel(cfg.LogLevel),
	); err != nil {
		logging.Errorf("failed to initialize logger, err: %s", err)
		os.Exit(1)
	}
	defer logging.Close()

	if cfg.WebPort > 0 {
		// Only whitelisted addresses can use /decode
		allow := authip.New(path.Join(*configPath, *authIpConfigFile))
		if err := allow.Watch(); err != nil {
			logging.Warnf("ip allow list disabled, err: %s", err)
		}
		defer allow.Close()

		addr := fmt.Sprintf(":%d", cfg.WebPort)
		gin.SetMode(gin.ReleaseMode)
		ginSrv := gin.New()
		web.Init(ginSrv, web.BuildInfo{Tag: Tag, CommitSHA: CommitSHA, BuildTime: BuildTime}, allow)
		httpSrv := &http.Server{Handler: ginSrv, Addr: addr}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Errorf("failed to start http server, err: %s", err)
			}
		}()
		logging.Infof("web server listening on %s", addr)
	}

	if *inputFile != "" {
		err = decodeFile(cfg, *inputFile, os.Stdout)
	} else {
		err = probe(cfg, os.Stdout)
	}
	if err != nil {
		logging.Errorf("rcresp failed: %s", err)
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
	}

	if *serve && cfg.WebPort > 0 {
		select {}
	}
	if err != nil {
		logging.Close()
		os.Exit(1)
	}
}

// probe sends the configured command to redis and prints the reply.
func probe(cfg *config.Config, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnTimeout)*time.Millisecond)
	defer cancel()

	conn, err := redis.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password,
		redis.DialReadTimeout(time.Duration(cfg.Redis.Timeout)*time.Millisecond),
		redis.DialWriteTimeout(time.Duration(cfg.Redis.Timeout)*time.Millisecond),
		redis.DialMaxBulkLength(cfg.Redis.MaxBulkLength),
		redis.DialObserver(func(f codec.Frame, err error, start time.Time) {
			core.GlobalStats.Observe(core.SourceStream, f, err)
			core.GlobalStats.ObserveRead(start)
		}),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	args := strings.Fields(cfg.Command)
	logging.Infof("send %q to %s", cfg.Command, cfg.Redis.Addr)
	f, err := conn.DoText(args[0], args[1:]...)
	if err != nil {
		return errors.Wrapf(err, "command %q", cfg.Command)
	}
	logging.Infof("reply %s, %d bytes", f.Kind, len(f.Data))
	return printFrame(out, f)
}

// decodeFile prints every frame of a capture file, "-" meaning stdin.
func decodeFile(cfg *config.Config, name string, out io.Writer) error {
	var rd io.Reader = os.Stdin
	if name != "-" {
		file, err := os.Open(name)
		if err != nil {
			return errors.Wrapf(err, "open %s", name)
		}
		defer file.Close()
		rd = file
	}

	fr := core.NewFrameReader(rd,
		core.WithBufferSize(cfg.Reader.BufferSize),
		core.WithMaxBufferSize(cfg.Reader.MaxBufferSize),
	)
	defer fr.Close()

	count := 0
	for {
		f, err := fr.Next()
		if err == io.EOF {
			logging.Infof("decoded %d frames from %s", count, name)
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "frame %d", count+1)
		}
		count++
		if err := printFrame(out, f); err != nil {
			return err
		}
	}
}

func printFrame(out io.Writer, f codec.Frame) error {
	var err error
	if f.Kind == codec.BulkString {
		// print bulk payloads verbatim, INFO replies are multi-line text
		_, err = fmt.Fprintf(out, "%s\n", f.Data)
	} else {
		_, err = fmt.Fprintln(out, f.String())
	}
	return err
}

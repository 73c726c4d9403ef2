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
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"rcresp/core/pkg/logging"
)

type Config struct {
	WebPort      int         `yaml:"web_port"`
	LogPath      string      `yaml:"log_path"`
	LogLevel     string      `yaml:"log_level"`
	LogExpireDay int         `yaml:"log_expire_day"`
	Command      string      `yaml:"command"`
	Reader       readerConfig   `yaml:"reader"`
	Redis        redisConfig `yaml:"redis"`
}

type redisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	ConnTimeout   int    `yaml:"conn_timeout"` // ms
	Timeout       int    `yaml:"timeout"`      // ms
	MaxBulkLength int    `yaml:"max_bulk_length"`
}

type readerConfig struct {
	BufferSize    int `yaml:"buffer_size"`
	MaxBufferSize int `yaml:"max_buffer_size"`
}

var defaultConfig = Config{
	LogPath:      "log",
	LogLevel:     logging.LevelInfo,
	LogExpireDay: 7,
	Command:      "INFO",
	Reader: readerConfig{
		BufferSize:    4096,
		MaxBufferSize: 512 * 1024 * 1024,
	},
	Redis: redisConfig{
		Addr:          "127.0.0.1:6379",
		ConnTimeout:   3000,
		Timeout:       3000,
		MaxBulkLength: 512 * 1024 * 1024,
	},
}

func LoadConfig(fileName string) (*Config, error) {
	file, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file from %s", fileName)
	}
	return ParseConfig(file)
}

// ParseConfig unmarshals YAML over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := defaultConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrapf(err, "config validate failed")
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, ok := logging.LevelMapperRev[c.LogLevel]; !ok {
		return errors.Errorf("unknown log level %s", c.LogLevel)
	}
	if len(c.Redis.Addr) < 1 {
		return errors.Errorf("unknown redis addr")
	}
	if len(strings.Fields(c.Command)) < 1 {
		return errors.Errorf("empty command")
	}
	if c.Redis.ConnTimeout < 0 || c.Redis.Timeout < 0 {
		return errors.Errorf("negative redis timeout")
	}
	if c.Reader.BufferSize < 1 || c.Reader.MaxBufferSize < c.Reader.BufferSize {
		return errors.Errorf("reader buffer size %d must be positive and not above max %d",
			c.Reader.BufferSize, c.Reader.MaxBufferSize)
	}
	return nil
}

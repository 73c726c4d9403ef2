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
	"io/ioutil"
	"path/filepath"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"rcresp/core/pkg/logging"
)

// AllowList restricts which client IPs may use the decode endpoint. The list
// is loaded from a YAML file and reloaded whenever the file changes.
type AllowList struct {
	name  string
	state atomic.Value // *ipSet
	watch *fsnotify.Watcher
}

type ipSet struct {
	enable bool
	ips    *hashmap.HashMap
	list   []string
}

type authIp struct {
	Enable bool     `yaml:"enable"`
	IpList []string `yaml:"ip_white_list"`
}

// New returns an allow list that admits everyone until Load succeeds.
func New(fileName string) *AllowList {
	a := &AllowList{name: fileName}
	a.state.Store(&ipSet{ips: hashmap.New(8)})
	return a
}

func (a *AllowList) Validate(ip string) bool {
	s := a.state.Load().(*ipSet)
	if !s.enable {
		return true
	}
	_, ok := s.ips.Get(ip)
	return ok
}

// Snapshot returns whether the list is enforced and the admitted addresses.
func (a *AllowList) Snapshot() (bool, []string) {
	s := a.state.Load().(*ipSet)
	return s.enable, append([]string(nil), s.list...)
}

// Load reads the file and replaces the current list.
func (a *AllowList) Load() error {
	file, err := ioutil.ReadFile(a.name)
	if err != nil {
		return errors.Wrapf(err, "failed to read file from %s", a.name)
	}
	var auth authIp
	if err := yaml.Unmarshal(file, &auth); err != nil {
		return errors.Wrapf(err, "failed to unmarshal config from %s", a.name)
	}

	s := &ipSet{enable: auth.Enable, ips: hashmap.New(uintptr(len(auth.IpList) + 1))}
	for _, ip := range auth.IpList {
		if _, loaded := s.ips.GetOrInsert(ip, struct{}{}); !loaded {
			s.list = append(s.list, ip)
			logging.Debugf("allow ip %s", ip)
		}
	}
	a.state.Store(s)
	logging.Infof("ip allow list loaded from %s, enable: %t, ips: %d", a.name, s.enable, len(s.list))
	return nil
}

// Watch loads the file once and then reloads it on every write or rename
// until Close is called.
func (a *AllowList) Watch() error {
	if err := a.Load(); err != nil {
		return err
	}
	watch, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	if err = watch.Add(filepath.Dir(a.name)); err != nil {
		watch.Close()
		return errors.Wrapf(err, "watch %s", filepath.Dir(a.name))
	}
	a.watch = watch

	go func() {
		for {
			select {
			case ev, ok := <-watch.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(a.name) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if err := a.Load(); err != nil {
						logging.Errorf("reload ip allow list err: %s", err)
					}
				}
			case err, ok := <-watch.Errors:
				if !ok {
					return
				}
				logging.Errorf("ip allow list watcher err: %s", err)
			}
		}
	}()
	return nil
}

func (a *AllowList) Close() error {
	if a.watch == nil {
		return nil
	}
	return a.watch.Close()
}

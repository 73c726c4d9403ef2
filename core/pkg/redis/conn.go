// Copyright (c) 2022 The rcproxy Authors
// Copyright (c) 2012 Gary Burd
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

package redis

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"

	"rcresp/core/codec"
)

var ErrInlineArgument = errors.New("inline command argument contains whitespace or line breaks")
var ErrClosed = errors.New("redis: closed")

// Conn is a blocking connection that speaks the inline command protocol and
// reads replies with codec.StreamReader. Only simple string, bulk string and
// null replies can be decoded; any other reply type fails with InvalidData.
//
// After any read failure the connection is closed: the reply stream cannot be
// resynchronized once a frame was partially consumed.
type Conn interface {
	Info() (*Info, error)
	Do(cmd string, args ...string) (codec.Frame, error)
	DoText(cmd string, args ...string) (codec.Frame, error)
	Send(cmd string, args ...string) error
	Flush() error
	Receive() (codec.Frame, error)
	ReceiveContext(ctx context.Context) (codec.Frame, error)
	Close() error
}

// conn is the low-level implementation of Conn
type conn struct {
	err  error
	conn net.Conn

	pending int

	// Read
	readTimeout time.Duration
	br          *bufio.Reader
	fr          *codec.StreamReader
	observe     func(f codec.Frame, err error, start time.Time)

	// Write
	writeTimeout time.Duration
	bw           *bufio.Writer
}

type Info struct {
	Version          string
	Loading          bool
	MasterLinkStatus string
	Raw              string
}

// DialOption specifies an option for dialing a Redis server.
type DialOption struct {
	f func(*dialOptions)
}

type dialOptions struct {
	readTimeout   time.Duration
	writeTimeout  time.Duration
	maxBulkLength int
	observe       func(f codec.Frame, err error, start time.Time)
	dialer        *net.Dialer
}

// DialReadTimeout specifies the timeout for reading a single command reply.
func DialReadTimeout(d time.Duration) DialOption {
	return DialOption{func(do *dialOptions) {
		do.readTimeout = d
	}}
}

// DialWriteTimeout specifies the timeout for writing a single command.
func DialWriteTimeout(d time.Duration) DialOption {
	return DialOption{func(do *dialOptions) {
		do.writeTimeout = d
	}}
}

// DialConnectTimeout specifies the timeout for connecting to the server.
func DialConnectTimeout(d time.Duration) DialOption {
	return DialOption{func(do *dialOptions) {
		do.dialer.Timeout = d
	}}
}

// DialMaxBulkLength rejects bulk replies announcing more than n bytes.
func DialMaxBulkLength(n int) DialOption {
	return DialOption{func(do *dialOptions) {
		do.maxBulkLength = n
	}}
}

// DialObserver is called after every reply read attempt.
func DialObserver(fn func(f codec.Frame, err error, start time.Time)) DialOption {
	return DialOption{func(do *dialOptions) {
		do.observe = fn
	}}
}

// Dial connects to the Redis server at the given address and authenticates
// when passwd is not empty.
func Dial(ctx context.Context, address, passwd string, options ...DialOption) (Conn, error) {
	do := dialOptions{
		dialer: &net.Dialer{
			Timeout:   time.Second * 30,
			KeepAlive: time.Minute * 5,
		},
		readTimeout:  3 * time.Second,
		writeTimeout: 3 * time.Second,
	}

	for _, option := range options {
		option.f(&do)
	}

	netConn, err := do.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", address)
	}

	c := newConn(netConn, do)
	if passwd != "" {
		if _, err := c.Do("AUTH", passwd); err != nil {
			c.Close()
			return nil, errors.Wrap(err, "auth")
		}
	}

	return c, nil
}

func newConn(netConn net.Conn, do dialOptions) *conn {
	br := bufio.NewReaderSize(netConn, 4096*10)
	return &conn{
		conn:         netConn,
		bw:           bufio.NewWriterSize(netConn, 4096*10),
		br:           br,
		fr:           codec.NewStreamReader(br, codec.WithMaxBulkLength(do.maxBulkLength)),
		observe:      do.observe,
		readTimeout:  do.readTimeout,
		writeTimeout: do.writeTimeout,
	}
}

func (c *conn) Close() error {
	err := c.err
	if c.err == nil {
		c.err = ErrClosed
		err = c.conn.Close()
	}
	return err
}

func (c *conn) fatal(err error) error {
	if c.err == nil {
		c.err = err
		// Close connection to force errors on subsequent calls and to unblock
		// other reader or writer.
		c.conn.Close()
	}
	return err
}

func (c *conn) Err() error {
	return c.err
}

// writeCommand writes cmd and args as one inline command line.
func (c *conn) writeCommand(cmd string, args []string) error {
	if cmd == "" || strings.ContainsAny(cmd, " \t\r\n") {
		return ErrInlineArgument
	}
	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t\r\n") {
			return ErrInlineArgument
		}
	}
	if _, err := c.bw.WriteString(cmd); err != nil {
		return err
	}
	for _, arg := range args {
		if err := c.bw.WriteByte(' '); err != nil {
			return err
		}
		if _, err := c.bw.WriteString(arg); err != nil {
			return err
		}
	}
	_, err := c.bw.Write(codec.LFCRByte)
	return err
}

func (c *conn) readReply(text bool) (f codec.Frame, err error) {
	start := time.Now()
	if text {
		f, err = c.fr.ReadText()
	} else {
		f, err = c.fr.ReadFrame()
	}
	if c.observe != nil {
		c.observe(f, err, start)
	}
	return f, err
}

func (c *conn) Info() (*Info, error) {
	f, err := c.DoText("INFO")
	if err != nil {
		return nil, err
	}
	if f.Kind != codec.BulkString {
		return nil, errors.Errorf("redis info: unexpected %s reply", f.Kind)
	}
	if len(f.Data) < 1 {
		return nil, errors.New("redis info empty")
	}

	info := &Info{Raw: string(f.Data)}
	for _, line := range bytes.Split(f.Data, codec.LFCRByte) {
		k, v, ok := cutField(string(line))
		if !ok {
			continue
		}
		switch k {
		case "loading":
			info.Loading = v != "0"
		case "master_link_status":
			info.MasterLinkStatus = v
		case "redis_version":
			info.Version = v
		}
	}
	return info, nil
}

func cutField(line string) (string, string, bool) {
	if strings.HasPrefix(line, "#") {
		return "", "", false
	}
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	return line[:i], strings.TrimSpace(line[i+1:]), true
}

func (c *conn) Do(cmd string, args ...string) (codec.Frame, error) {
	return c.do(false, cmd, args)
}

// DoText is Do for replies that must be valid UTF-8.
func (c *conn) DoText(cmd string, args ...string) (codec.Frame, error) {
	return c.do(true, cmd, args)
}

func (c *conn) Send(cmd string, args ...string) error {
	if c.err != nil {
		return c.err
	}
	if c.writeTimeout != 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return c.fatal(err)
		}
	}
	if err := c.writeCommand(cmd, args); err != nil {
		if err == ErrInlineArgument {
			return err
		}
		return c.fatal(err)
	}
	c.pending += 1
	return nil
}

func (c *conn) Flush() error {
	if c.err != nil {
		return c.err
	}
	if c.writeTimeout != 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return c.fatal(err)
		}
	}
	if err := c.bw.Flush(); err != nil {
		return c.fatal(err)
	}
	return nil
}

func (c *conn) Receive() (codec.Frame, error) {
	return c.receiveWithTimeout(c.readTimeout)
}

// ReceiveContext is Receive bounded by the earlier of ctx and the read
// timeout. Cancelling ctx closes the connection.
func (c *conn) ReceiveContext(ctx context.Context) (codec.Frame, error) {
	var realTimeout time.Duration
	if dl, ok := ctx.Deadline(); ok {
		timeout := time.Until(dl)
		if timeout >= c.readTimeout && c.readTimeout != 0 {
			realTimeout = c.readTimeout
		} else if timeout <= 0 {
			return codec.Frame{}, c.fatal(context.DeadlineExceeded)
		} else {
			realTimeout = timeout
		}
	} else {
		realTimeout = c.readTimeout
	}
	endch := make(chan struct{})
	var r codec.Frame
	var e error
	go func() {
		defer close(endch)

		r, e = c.receiveWithTimeout(realTimeout)
	}()
	select {
	case <-ctx.Done():
		return codec.Frame{}, c.fatal(ctx.Err())
	case <-endch:
		return r, e
	}
}

func (c *conn) receiveWithTimeout(timeout time.Duration) (codec.Frame, error) {
	if c.err != nil {
		return codec.Frame{}, c.err
	}
	var deadline time.Time
	if timeout != 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return codec.Frame{}, c.fatal(err)
	}

	f, err := c.readReply(false)
	if err != nil {
		return codec.Frame{}, c.fatal(err)
	}
	if c.pending > 0 {
		c.pending -= 1
	}
	return f, nil
}

// do writes the command, flushes, then reads the replies of all pending
// sends followed by its own reply, which it returns.
func (c *conn) do(text bool, cmd string, args []string) (codec.Frame, error) {
	if c.err != nil {
		return codec.Frame{}, c.err
	}
	pending := c.pending
	c.pending = 0

	if c.writeTimeout != 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return codec.Frame{}, c.fatal(err)
		}
	}
	if err := c.writeCommand(cmd, args); err != nil {
		if err == ErrInlineArgument {
			c.pending = pending
			return codec.Frame{}, err
		}
		return codec.Frame{}, c.fatal(err)
	}
	if err := c.bw.Flush(); err != nil {
		return codec.Frame{}, c.fatal(err)
	}

	var deadline time.Time
	if c.readTimeout != 0 {
		deadline = time.Now().Add(c.readTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return codec.Frame{}, c.fatal(err)
	}

	for i := 0; i < pending; i++ {
		if _, err := c.readReply(false); err != nil {
			return codec.Frame{}, c.fatal(err)
		}
	}
	f, err := c.readReply(text)
	if err != nil {
		return codec.Frame{}, c.fatal(err)
	}
	return f, nil
}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package porttest implements a fake serial port for testing UART device
// drivers.
package porttest

import (
	"bytes"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/conntest"
)

// IO registers the I/O that happened on a Playback.
//
// R is made available for reading once W was written.
type IO struct {
	W []byte
	R []byte
}

// Playback implements serial.Port and plays back a recorded I/O flow.
//
// Reads block until data is available, the read timeout expires (returning
// 0, nil like go.bug.st/serial does) or the port is closed.
//
// Set DontPanic to true to return an error instead of panicking, which is the
// default.
type Playback struct {
	sync.Mutex
	Ops       []IO
	Count     int
	DontPanic bool
	// Mode is the last mode set with SetMode.
	Mode *serial.Mode
	// Flushes counts the calls to ResetInputBuffer.
	Flushes int

	timeout    time.Duration
	hasTimeout bool
	pending    []byte
	closed     bool
	wake       chan struct{}
}

func (p *Playback) String() string {
	return "playback"
}

// Inject makes b available for reading without a preceding write, as an
// unsolicited message from the device.
func (p *Playback) Inject(b []byte) {
	p.Lock()
	defer p.Unlock()
	p.pending = append(p.pending, b...)
	p.signal()
}

// Close verifies that all the expected Ops have been consumed and unblocks
// pending reads.
func (p *Playback) Close() error {
	p.Lock()
	defer p.Unlock()
	p.closed = true
	p.signal()
	if len(p.Ops) != p.Count {
		return errorf(p.DontPanic, "porttest: expected playback to be empty: I/O count %d; expected %d", p.Count, len(p.Ops))
	}
	return nil
}

// Write implements io.Writer.
func (p *Playback) Write(b []byte) (int, error) {
	p.Lock()
	defer p.Unlock()
	if p.closed {
		return 0, errorf(true, "porttest: port closed")
	}
	if len(p.Ops) <= p.Count {
		return 0, errorf(p.DontPanic, "porttest: unexpected Write() (count #%d) %#v", p.Count, b)
	}
	if !bytes.Equal(p.Ops[p.Count].W, b) {
		return 0, errorf(p.DontPanic, "porttest: unexpected write (count #%d) %#v != %#v", p.Count, b, p.Ops[p.Count].W)
	}
	p.pending = append(p.pending, p.Ops[p.Count].R...)
	p.Count++
	p.signal()
	return len(b), nil
}

// Read implements io.Reader.
func (p *Playback) Read(b []byte) (int, error) {
	var deadline <-chan time.Time
	for {
		p.Lock()
		if len(p.pending) != 0 {
			n := copy(b, p.pending)
			p.pending = p.pending[n:]
			p.Unlock()
			return n, nil
		}
		if p.closed {
			p.Unlock()
			return 0, io.EOF
		}
		if deadline == nil && p.hasTimeout {
			deadline = time.After(p.timeout)
		}
		w := p.wakeChan()
		p.Unlock()
		select {
		case <-w:
		case <-deadline:
			return 0, nil
		}
	}
}

// SetMode implements serial.Port.
func (p *Playback) SetMode(m *serial.Mode) error {
	p.Lock()
	defer p.Unlock()
	c := *m
	p.Mode = &c
	return nil
}

// SetReadTimeout implements serial.Port.
func (p *Playback) SetReadTimeout(t time.Duration) error {
	p.Lock()
	defer p.Unlock()
	p.timeout = t
	p.hasTimeout = t >= 0
	return nil
}

// ResetInputBuffer implements serial.Port. It discards unread data.
func (p *Playback) ResetInputBuffer() error {
	p.Lock()
	defer p.Unlock()
	p.pending = nil
	p.Flushes++
	return nil
}

// ResetOutputBuffer implements serial.Port.
func (p *Playback) ResetOutputBuffer() error {
	return nil
}

// Drain implements serial.Port.
func (p *Playback) Drain() error {
	return nil
}

// SetDTR implements serial.Port.
func (p *Playback) SetDTR(dtr bool) error {
	return nil
}

// SetRTS implements serial.Port.
func (p *Playback) SetRTS(rts bool) error {
	return nil
}

// GetModemStatusBits implements serial.Port.
func (p *Playback) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

// Break implements serial.Port.
func (p *Playback) Break(time.Duration) error {
	return nil
}

func (p *Playback) wakeChan() chan struct{} {
	if p.wake == nil {
		p.wake = make(chan struct{}, 1)
	}
	return p.wake
}

func (p *Playback) signal() {
	select {
	case p.wakeChan() <- struct{}{}:
	default:
	}
}

// errorf is the internal implementation that optionally panic.
//
// If dontPanic is false, it panics instead.
func errorf(dontPanic bool, format string, a ...interface{}) error {
	err := conntest.Errorf(format, a...)
	if !dontPanic {
		panic(err)
	}
	return err
}

var _ serial.Port = &Playback{}

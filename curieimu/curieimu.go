// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package curieimu reads the IMU of an Arduino 101 (Intel Curie) running the
// CurieIMU Firmata sketch, over its serial port.
//
// Requests are serialized. A background goroutine reads the port and routes
// replies to the pending request while shock, tap and step events are queued
// on channels.
package curieimu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3"
	"periph.io/x/upm/v3/firmata"
)

// sysexCurieIMU is the Firmata sysex command of the sketch.
const sysexCurieIMU = 0x11

// Subcommands.
const (
	readAccel     = 0x00
	readGyro      = 0x01
	readTemp      = 0x02
	shockDetect   = 0x03
	stepCounter   = 0x04
	tapDetect     = 0x05
	readMotion    = 0x06
	eventCapacity = 64
)

// Axis is an IMU axis.
type Axis uint8

// Axes.
const (
	X Axis = 0
	Y Axis = 1
	Z Axis = 2
)

func (a Axis) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", uint8(a))
	}
}

// Event is a shock or tap detected on an axis.
type Event struct {
	Axis      Axis
	Direction int
}

// Motion is a combined accelerometer and gyroscope reading, in raw units.
type Motion struct {
	Accel [3]int16
	Gyro  [3]int16
}

var (
	// ErrClosed is returned once the device is closed or its port failed.
	ErrClosed = errors.New("curieimu: closed")
	// ErrTimeout is returned when a reply does not come in time.
	ErrTimeout = errors.New("curieimu: timeout waiting for reply")
)

// Opts holds the configuration options.
type Opts struct {
	// Baud defaults to 57600, the Firmata default.
	Baud int
	// Timeout bounds the wait for a reply. It defaults to 1s.
	Timeout time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Baud:    57600,
	Timeout: time.Second,
}

// New returns a handle to a Curie IMU on the serial port p and starts reading
// it. Call Close to stop.
func New(p serial.Port, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	baud := opts.Baud
	if baud == 0 {
		baud = DefaultOpts.Baud
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultOpts.Timeout
	}
	if err := p.SetMode(&serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}); err != nil {
		return nil, fmt.Errorf("curieimu: %w", err)
	}
	if err := p.SetReadTimeout(serial.NoTimeout); err != nil {
		return nil, fmt.Errorf("curieimu: %w", err)
	}
	d := &Dev{
		p:       p,
		timeout: timeout,
		replies: make(chan []byte, 1),
		shocks:  make(chan Event, eventCapacity),
		taps:    make(chan Event, eventCapacity),
		steps:   make(chan int, eventCapacity),
		done:    make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Dev is a handle to a Curie IMU.
type Dev struct {
	p       serial.Port
	timeout time.Duration
	mu      sync.Mutex
	replies chan []byte
	shocks  chan Event
	taps    chan Event
	steps   chan int
	done    chan struct{}
	once    sync.Once
}

func (d *Dev) String() string {
	return fmt.Sprintf("CurieIMU{%s}", d.p)
}

// Halt implements conn.Resource.
//
// It turns off the event detectors.
func (d *Dev) Halt() error {
	if err := d.EnableShockDetection(false); err != nil {
		return err
	}
	if err := d.EnableStepCounter(false); err != nil {
		return err
	}
	return d.EnableTapDetection(false)
}

// Close closes the port and stops the reader. The event channels are closed
// once it exits.
func (d *Dev) Close() error {
	var err error
	d.once.Do(func() {
		err = d.p.Close()
		<-d.done
	})
	return err
}

// ReadAccel returns the raw accelerometer axes.
func (d *Dev) ReadAccel() (x, y, z int16, err error) {
	v, err := d.request(readAccel, 3)
	if err != nil {
		return 0, 0, 0, err
	}
	return int16(v[0]), int16(v[1]), int16(v[2]), nil
}

// ReadGyro returns the raw gyroscope axes.
func (d *Dev) ReadGyro() (x, y, z int16, err error) {
	v, err := d.request(readGyro, 3)
	if err != nil {
		return 0, 0, 0, err
	}
	return int16(v[0]), int16(v[1]), int16(v[2]), nil
}

// ReadTemperature returns the raw temperature.
func (d *Dev) ReadTemperature() (int16, error) {
	v, err := d.request(readTemp, 2)
	if err != nil {
		return 0, err
	}
	return int16(v[0] + v[1]<<8), nil
}

// ReadMotion returns both the accelerometer and the gyroscope axes.
func (d *Dev) ReadMotion() (Motion, error) {
	var m Motion
	v, err := d.request(readMotion, 6)
	if err != nil {
		return m, err
	}
	for i := 0; i < 3; i++ {
		m.Accel[i] = int16(v[i])
		m.Gyro[i] = int16(v[3+i])
	}
	return m, nil
}

// EnableShockDetection turns shock events on or off.
func (d *Dev) EnableShockDetection(on bool) error {
	return d.enable(shockDetect, on)
}

// EnableStepCounter turns step count events on or off.
func (d *Dev) EnableStepCounter(on bool) error {
	return d.enable(stepCounter, on)
}

// EnableTapDetection turns tap events on or off.
func (d *Dev) EnableTapDetection(on bool) error {
	return d.enable(tapDetect, on)
}

// Shocks returns the queue of detected shocks.
func (d *Dev) Shocks() <-chan Event {
	return d.shocks
}

// Taps returns the queue of detected taps.
func (d *Dev) Taps() <-chan Event {
	return d.taps
}

// Steps returns the queue of step counts.
func (d *Dev) Steps() <-chan int {
	return d.steps
}

//

func (d *Dev) enable(sub byte, on bool) error {
	var b byte
	if on {
		b = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(firmata.Sysex(sysexCurieIMU, sub, b))
}

// request sends a read subcommand and decodes n 7 bits pairs from its reply.
func (d *Dev) request(sub byte, n int) ([]uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Drop a late reply to a previous request.
	select {
	case <-d.replies:
	default:
	}
	if err := d.write(firmata.Sysex(sysexCurieIMU, sub)); err != nil {
		return nil, err
	}
	t := time.NewTimer(d.timeout)
	defer t.Stop()
	for {
		select {
		case r := <-d.replies:
			if r[1] != sub {
				logf("curieimu: unexpected reply % X", r)
				continue
			}
			v := firmata.DecodeAll(r[2:])
			if len(v) < n {
				return nil, fmt.Errorf("curieimu: short reply to 0x%02X: % X", sub, r)
			}
			return v, nil
		case <-t.C:
			return nil, ErrTimeout
		case <-d.done:
			return nil, ErrClosed
		}
	}
}

func (d *Dev) write(b []byte) error {
	select {
	case <-d.done:
		return ErrClosed
	default:
	}
	logf("curieimu: write % X", b)
	if _, err := d.p.Write(b); err != nil {
		return fmt.Errorf("curieimu: %w", err)
	}
	return nil
}

// run reads messages until the port fails or is closed.
func (d *Dev) run() {
	defer func() {
		close(d.shocks)
		close(d.taps)
		close(d.steps)
		close(d.done)
	}()
	r := firmata.NewReader(d.p)
	for {
		m, err := r.Next()
		if err != nil {
			logf("curieimu: reader stopped: %v", err)
			return
		}
		if len(m) < 2 || m[0] != sysexCurieIMU {
			continue
		}
		d.dispatch(append([]byte(nil), m...))
	}
}

func (d *Dev) dispatch(m []byte) {
	switch m[1] {
	case shockDetect, tapDetect:
		if len(m) < 4 {
			return
		}
		e := Event{Axis: Axis(m[2]), Direction: int(m[3])}
		q := d.shocks
		if m[1] == tapDetect {
			q = d.taps
		}
		select {
		case q <- e:
		default:
			logf("curieimu: event queue full, dropped %v", e)
		}
	case stepCounter:
		if len(m) < 4 {
			return
		}
		select {
		case d.steps <- int(firmata.Decode(m[2], m[3])):
		default:
			logf("curieimu: step queue full")
		}
	default:
		select {
		case d.replies <- m:
		default:
			logf("curieimu: dropped reply % X", m)
		}
	}
}

var _ conn.Resource = &Dev{}

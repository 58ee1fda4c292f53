// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package am2315 controls an Aosong AM2315 temperature and humidity sensor
// over I²C.
//
// The sensor speaks a Modbus-like protocol on top of I²C: every transfer is a
// function code, a start register, a length and a CRC16. It sleeps between
// transfers and must be woken up first by a write, which it NACKs.
//
// Datasheet
//
// https://cdn-shop.adafruit.com/product-files/1293/AM2315.pdf
package am2315

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Registers.
const (
	RegHumidity    = 0x00
	RegTemperature = 0x02
	RegModel       = 0x08
	RegVersion     = 0x0A
	RegID          = 0x0B
	RegStatus      = 0x0F
	RegUserA       = 0x10
	RegUserB       = 0x12
)

const (
	funcRead  = 0x03
	funcWrite = 0x10

	wakeAttempts = 5
	wakeDelay    = 800 * time.Microsecond
	readDelay    = 5 * time.Millisecond
)

// MinSampleInterval is the minimum time between two conversions. Readings
// requested sooner are served from the previous sample.
const MinSampleInterval = 2 * time.Second

var (
	// ErrChecksum is returned when a reply fails its CRC or header check.
	ErrChecksum = errors.New("am2315: invalid reply")
	// ErrStuck is returned by SelfTest when successive readings never change.
	ErrStuck = errors.New("am2315: readings unchanged")
)

// Opts holds the configuration options.
type Opts struct {
	Addr uint16
	// Clock measures the sample interval. Defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Addr: 0x5C,
}

// New returns a handle to an AM2315.
//
// It reads the model, version and id registers to verify the device answers.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultOpts.Addr
	}
	c := opts.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, clock: c}
	var buf [4]byte
	if err := d.readReg(RegModel, buf[:2]); err != nil {
		return nil, err
	}
	d.info.Model = uint16(buf[0])<<8 | uint16(buf[1])
	if err := d.readReg(RegVersion, buf[:1]); err != nil {
		return nil, err
	}
	d.info.Version = buf[0]
	if err := d.readReg(RegID, buf[:]); err != nil {
		return nil, err
	}
	d.info.ID = uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return d, nil
}

// Info is the identification read at initialization.
type Info struct {
	Model   uint16
	Version uint8
	ID      uint32
}

// Dev is a handle to an AM2315.
type Dev struct {
	d     conn.Conn
	clock clockwork.Clock
	info  Info

	mu     sync.Mutex
	last   time.Time
	cached bool
	h      physic.RelativeHumidity
	t      physic.Temperature

	stopMu sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
}

func (d *Dev) String() string {
	return fmt.Sprintf("AM2315{%s}", d.d)
}

// Model returns the model register.
func (d *Dev) Model() uint16 {
	return d.info.Model
}

// Version returns the version register.
func (d *Dev) Version() uint8 {
	return d.info.Version
}

// ID returns the 32 bits device id.
func (d *Dev) ID() uint32 {
	return d.info.ID
}

// Sense returns the humidity and temperature.
//
// Pressure is not supported and is left untouched.
func (d *Dev) Sense(e *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.update(); err != nil {
		return err
	}
	e.Humidity = d.h
	e.Temperature = d.t
	return nil
}

// Humidity returns the relative humidity.
func (d *Dev) Humidity() (physic.RelativeHumidity, error) {
	var e physic.Env
	err := d.Sense(&e)
	return e.Humidity, err
}

// Temperature returns the temperature.
func (d *Dev) Temperature() (physic.Temperature, error) {
	var e physic.Env
	err := d.Sense(&e)
	return e.Temperature, err
}

// Status returns the status register.
func (d *Dev) Status() (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b [1]byte
	err := d.readReg(RegStatus, b[:])
	return b[0], err
}

// UserA returns the user register A.
func (d *Dev) UserA() (uint16, error) {
	return d.readUser(RegUserA)
}

// UserB returns the user register B.
func (d *Dev) UserB() (uint16, error) {
	return d.readUser(RegUserB)
}

// SetUserA writes the user register A.
func (d *Dev) SetUserA(v uint16) error {
	return d.writeUser(RegUserA, v)
}

// SetUserB writes the user register B.
func (d *Dev) SetUserB(v uint16) error {
	return d.writeUser(RegUserB, v)
}

// SelfTest samples the sensor 10 times, waiting MinSampleInterval between
// each, and returns ErrStuck if neither value ever changed.
func (d *Dev) SelfTest(ctx context.Context) error {
	var lo, hi physic.Env
	for i := 0; i < 10; i++ {
		if i != 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.clock.After(MinSampleInterval):
			}
		}
		d.mu.Lock()
		d.cached = false
		err := d.update()
		h, t := d.h, d.t
		d.mu.Unlock()
		if err != nil {
			return err
		}
		if i == 0 {
			lo.Humidity, hi.Humidity = h, h
			lo.Temperature, hi.Temperature = t, t
			continue
		}
		if h < lo.Humidity {
			lo.Humidity = h
		}
		if h > hi.Humidity {
			hi.Humidity = h
		}
		if t < lo.Temperature {
			lo.Temperature = t
		}
		if t > hi.Temperature {
			hi.Temperature = t
		}
	}
	if lo == hi {
		return ErrStuck
	}
	return nil
}

// SenseContinuous implements physic.SenseEnv.
//
// interval must be at least MinSampleInterval. Failed readings are skipped.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < MinSampleInterval {
		return nil, fmt.Errorf("am2315: interval %s is below %s", interval, MinSampleInterval)
	}
	d.stopContinuous()
	stop := make(chan struct{})
	d.stopMu.Lock()
	d.stop = stop
	d.stopMu.Unlock()
	env := make(chan physic.Env)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(env)
		t := d.clock.NewTicker(interval)
		defer t.Stop()
		for {
			var e physic.Env
			if err := d.Sense(&e); err == nil {
				select {
				case env <- e:
				case <-stop:
					return
				}
			}
			select {
			case <-stop:
				return
			case <-t.Chan():
			}
		}
	}()
	return env, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Humidity = physic.MilliRH
	e.Temperature = 100 * physic.MilliKelvin
}

// Halt stops a SenseContinuous loop. The sensor goes back to sleep on its
// own.
func (d *Dev) Halt() error {
	d.stopContinuous()
	return nil
}

func (d *Dev) stopContinuous() {
	d.stopMu.Lock()
	s := d.stop
	d.stop = nil
	d.stopMu.Unlock()
	if s != nil {
		close(s)
		d.wg.Wait()
	}
}

func (d *Dev) update() error {
	now := d.clock.Now()
	if d.cached && now.Sub(d.last) < MinSampleInterval && !now.Before(d.last) {
		return nil
	}
	var b [4]byte
	if err := d.readReg(RegHumidity, b[:]); err != nil {
		return err
	}
	d.h, d.t = decode(b)
	d.last = now
	d.cached = true
	return nil
}

// decode converts the humidity and temperature words.
func decode(b [4]byte) (physic.RelativeHumidity, physic.Temperature) {
	h := physic.RelativeHumidity(uint16(b[0])<<8|uint16(b[1])) * physic.MilliRH
	raw := uint16(b[2])<<8 | uint16(b[3])
	// Sign and magnitude.
	t := physic.Temperature(raw&0x7FFF) * 100 * physic.MilliKelvin
	if raw&0x8000 != 0 {
		t = -t
	}
	return h, physic.ZeroCelsius + t
}

func (d *Dev) readUser(reg uint8) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b [2]byte
	if err := d.readReg(reg, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (d *Dev) writeUser(reg uint8, v uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeReg(reg, []byte{byte(v >> 8), byte(v)})
}

// wake sends w until the sensor acknowledges it.
func (d *Dev) wake(w []byte) error {
	var err error
	for i := 0; i < wakeAttempts; i++ {
		if err = d.d.Tx(w, nil); err == nil {
			break
		}
		time.Sleep(wakeDelay)
	}
	if err != nil {
		return fmt.Errorf("am2315: sensor did not wake up: %w", err)
	}
	return nil
}

func (d *Dev) readReg(reg uint8, data []byte) error {
	n := len(data)
	if err := d.wake([]byte{funcRead, reg, byte(n)}); err != nil {
		return err
	}
	time.Sleep(readDelay)
	r := make([]byte, n+4)
	if err := d.d.Tx(nil, r); err != nil {
		return fmt.Errorf("am2315: %w", err)
	}
	if r[0] != funcRead || int(r[1]) != n || !checkCRC(r) {
		return fmt.Errorf("%w: register %#02x: %#v", ErrChecksum, reg, r)
	}
	copy(data, r[2:2+n])
	return nil
}

func (d *Dev) writeReg(reg uint8, data []byte) error {
	w := make([]byte, 0, len(data)+5)
	w = append(w, funcWrite, reg, byte(len(data)))
	w = append(w, data...)
	w = appendCRC(w)
	if err := d.wake(w); err != nil {
		return err
	}
	time.Sleep(readDelay)
	var r [5]byte
	if err := d.d.Tx(nil, r[:]); err != nil {
		return fmt.Errorf("am2315: %w", err)
	}
	if r[0] != funcWrite || r[1] != reg || int(r[2]) != len(data) || !checkCRC(r[:]) {
		return fmt.Errorf("%w: write %#02x: %#v", ErrChecksum, reg, r)
	}
	return nil
}

var _ physic.SenseEnv = &Dev{}

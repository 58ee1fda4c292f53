// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tmp006 controls a Texas Instruments TMP006 or TMP007 infrared
// thermopile over I²C.
//
// The object temperature is derived from the thermopile voltage and the die
// temperature; see section 5.1 of the user guide.
//
// Datasheet
//
// http://www.ti.com/lit/ds/symlink/tmp006.pdf
//
// http://www.ti.com/lit/ug/sbou107/sbou107.pdf
package tmp006

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Rate is the number of averaged conversions per sample.
type Rate uint16

// Conversion rates. AS1 is 4 conversions/s; AS16 is one every 4s.
const (
	AS1  Rate = 0
	AS2  Rate = 1
	AS4  Rate = 2
	AS8  Rate = 3
	AS16 Rate = 4
)

// duration returns the time taken by one averaged conversion.
func (r Rate) duration() time.Duration {
	return time.Duration(1<<r) * 250 * time.Millisecond
}

// Model selects the device variant.
type Model uint8

// Supported variants.
const (
	TMP006 Model = iota
	TMP007
)

const (
	regVoltage     = 0x00
	regLocalTemp   = 0x01
	regConfig      = 0x02
	regTMP007DevID = 0x1F
	regManufID     = 0xFE
	regDevID       = 0xFF

	manufID      = 0x5449
	tmp006DevID  = 0x0067
	tmp007DevID  = 0x0078
	cfgReset     = 1 << 15
	cfgModeOn    = 7 << 12
	cfgModeMask  = 7 << 12
	cfgRateShift = 9
	cfgDRDYEn    = 1 << 8
	cfgDRDY      = 1 << 7
)

// ErrNotReady is returned when no conversion completed since the last read.
var ErrNotReady = errors.New("tmp006: data not ready")

// ErrRange is returned when the sensor voltage has no valid object
// temperature, e.g. when it is saturated.
var ErrRange = errors.New("tmp006: sensor voltage out of range")

// Opts holds the configuration options.
type Opts struct {
	Model Model
	// Addr defaults to 0x41 on a TMP006 and 0x40 on a TMP007.
	Addr uint16
	Rate Rate
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Model: TMP006,
	Rate:  AS4,
}

// New returns a handle to a TMP006 or TMP007 and starts continuous conversion.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Rate > AS16 {
		return nil, fmt.Errorf("tmp006: invalid rate %d", opts.Rate)
	}
	addr := opts.Addr
	if addr == 0 {
		addr = 0x41
		if opts.Model == TMP007 {
			addr = 0x40
		}
	}
	d := &Dev{
		d:     &i2c.Dev{Bus: b, Addr: addr},
		model: opts.Model,
		cfg:   cfgModeOn | uint16(opts.Rate)<<cfgRateShift | cfgDRDYEn,
		rate:  opts.Rate,
	}
	if err := d.checkID(); err != nil {
		return nil, err
	}
	if err := d.writeReg(regConfig, d.cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a handle to a TMP006 or TMP007.
type Dev struct {
	d     conn.Conn
	model Model
	rate  Rate

	mu  sync.Mutex
	cfg uint16
}

func (d *Dev) String() string {
	if d.model == TMP007 {
		return fmt.Sprintf("TMP007{%s}", d.d)
	}
	return fmt.Sprintf("TMP006{%s}", d.d)
}

// Sample is one reading of the sensor.
type Sample struct {
	Object physic.Temperature
	Die    physic.Temperature
}

// Sense returns the object and die temperatures.
//
// It returns ErrNotReady when the averaging period has not completed yet.
func (d *Dev) Sense(s *Sample) error {
	vobj, tamb, err := d.Raw()
	if err != nil {
		return err
	}
	obj, err := ObjectTemperature(vobj, tamb)
	if err != nil {
		return err
	}
	s.Die = dieTemperature(tamb)
	s.Object = obj
	return nil
}

// ObjectTemperature returns the object temperature.
func (d *Dev) ObjectTemperature() (physic.Temperature, error) {
	var s Sample
	if err := d.Sense(&s); err != nil {
		return 0, err
	}
	return s.Object, nil
}

// DieTemperature reads the local die temperature, regardless of the data ready
// flag.
func (d *Dev) DieTemperature() (physic.Temperature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.readReg(regLocalTemp)
	if err != nil {
		return 0, err
	}
	return dieTemperature(int16(v)), nil
}

// Raw returns the raw sensor voltage and raw local temperature registers.
func (d *Dev) Raw() (vobj, tamb int16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg, err := d.readReg(regConfig)
	if err != nil {
		return 0, 0, err
	}
	if cfg&cfgDRDY == 0 {
		return 0, 0, ErrNotReady
	}
	v, err := d.readReg(regVoltage)
	if err != nil {
		return 0, 0, err
	}
	t, err := d.readReg(regLocalTemp)
	if err != nil {
		return 0, 0, err
	}
	return int16(v), int16(t), nil
}

// SampleInterval returns the time between two samples at the configured rate.
func (d *Dev) SampleInterval() time.Duration {
	return d.rate.duration()
}

// SetActive enables or disables conversions.
func (d *Dev) SetActive(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg := d.cfg &^ cfgModeMask
	if on {
		cfg |= cfgModeOn
	}
	if err := d.writeReg(regConfig, cfg); err != nil {
		return err
	}
	d.cfg = cfg
	return nil
}

// Reset issues a software reset then restores the configuration.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeReg(regConfig, cfgReset); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	return d.writeReg(regConfig, d.cfg)
}

// Halt stops conversions.
func (d *Dev) Halt() error {
	return d.SetActive(false)
}

func (d *Dev) checkID() error {
	m, err := d.readReg(regManufID)
	if err != nil {
		return err
	}
	if m != manufID {
		return fmt.Errorf("tmp006: unexpected manufacturer id %#04x", m)
	}
	reg, want := uint8(regDevID), uint16(tmp006DevID)
	if d.model == TMP007 {
		reg, want = regTMP007DevID, tmp007DevID
	}
	id, err := d.readReg(reg)
	if err != nil {
		return err
	}
	if id != want {
		return fmt.Errorf("tmp006: unexpected device id %#04x, want %#04x", id, want)
	}
	return nil
}

func (d *Dev) readReg(reg uint8) (uint16, error) {
	var b [2]byte
	if err := d.d.Tx([]byte{reg}, b[:]); err != nil {
		return 0, fmt.Errorf("tmp006: %w", err)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (d *Dev) writeReg(reg uint8, v uint16) error {
	if err := d.d.Tx([]byte{reg, byte(v >> 8), byte(v)}, nil); err != nil {
		return fmt.Errorf("tmp006: %w", err)
	}
	return nil
}

func dieTemperature(tamb int16) physic.Temperature {
	// 1/128°C per LSB, in the upper 14 bits.
	return physic.ZeroCelsius + physic.Temperature(tamb>>2)*physic.Celsius/32
}

// Calibration factor S0 for the thermopile.
const s0 = 6.4e-14

// ObjectTemperature computes the object temperature from the raw sensor
// voltage and the raw local temperature registers.
//
// It returns ErrRange when the voltage is too negative for the die
// temperature.
func ObjectTemperature(rawVobj, rawTamb int16) (physic.Temperature, error) {
	tdie := float64(rawTamb)/128 + 273.15
	vobj := float64(rawVobj) * 156.25e-9
	dt := tdie - 298.15
	s := s0 * (1 + 1.75e-3*dt - 1.678e-5*dt*dt)
	vos := -2.94e-5 - 5.7e-7*dt + 4.63e-9*dt*dt
	v := vobj - vos
	f := v + 13.4*v*v
	t4 := math.Pow(tdie, 4) + f/s
	if t4 <= 0 || math.IsNaN(t4) || math.IsInf(t4, 0) {
		return 0, fmt.Errorf("%w: %d", ErrRange, rawVobj)
	}
	tobj := math.Sqrt(math.Sqrt(t4))
	return physic.Temperature(tobj * float64(physic.Kelvin)), nil
}

var _ conn.Resource = &Dev{}

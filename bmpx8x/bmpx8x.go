// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bmpx8x

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

// Oversampling is the pressure oversampling setting (OSS).
type Oversampling uint8

// Possible oversampling values.
const (
	UltraLowPower Oversampling = 0
	Standard      Oversampling = 1
	HighRes       Oversampling = 2
	UltraHighRes  Oversampling = 3
)

func (o Oversampling) String() string {
	switch o {
	case UltraLowPower:
		return "UltraLowPower"
	case Standard:
		return "Standard"
	case HighRes:
		return "HighRes"
	case UltraHighRes:
		return "UltraHighRes"
	default:
		return fmt.Sprintf("Oversampling(%d)", uint8(o))
	}
}

// conversionTime is the maximum pressure conversion time per oversampling.
var conversionTime = [...]time.Duration{
	5 * time.Millisecond,
	8 * time.Millisecond,
	14 * time.Millisecond,
	26 * time.Millisecond,
}

const (
	regCalibration = 0xAA
	regChipID      = 0xD0
	regSoftReset   = 0xE0
	regControl     = 0xF4
	regData        = 0xF6

	cmdTemperature = 0x2E
	cmdPressure    = 0x34
	cmdSoftReset   = 0xB6

	chipID = 0x55

	// StandardSeaLevel is the ISA sea level pressure.
	StandardSeaLevel = 101325 * physic.Pascal
)

// Opts holds the configuration options.
type Opts struct {
	// Addr is the I²C address. The part is hard wired to 0x77.
	Addr uint16
	// Oversampling selects pressure resolution against conversion time.
	Oversampling Oversampling
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Addr:         0x77,
	Oversampling: UltraHighRes,
}

// New returns an object that communicates over I²C to a BMP085 or BMP180.
//
// It verifies the chip ID and loads the factory calibration.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Oversampling > UltraHighRes {
		return nil, fmt.Errorf("bmpx8x: invalid oversampling %d", opts.Oversampling)
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultOpts.Addr
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, os: opts.Oversampling}
	var id [1]byte
	if err := d.d.Tx([]byte{regChipID}, id[:]); err != nil {
		return nil, fmt.Errorf("bmpx8x: %w", err)
	}
	if id[0] != chipID {
		return nil, fmt.Errorf("bmpx8x: unexpected chip id %#x; is this a BMP085/BMP180?", id[0])
	}
	var raw [22]byte
	if err := d.d.Tx([]byte{regCalibration}, raw[:]); err != nil {
		return nil, fmt.Errorf("bmpx8x: %w", err)
	}
	d.cal = newCalibration(raw[:])
	if !d.cal.isValid() {
		return nil, errors.New("bmpx8x: calibration data is invalid")
	}
	return d, nil
}

// Dev is a handle to a BMP085 or BMP180.
type Dev struct {
	d   conn.Conn
	os  Oversampling
	cal Calibration

	mu sync.Mutex
}

func (d *Dev) String() string {
	return fmt.Sprintf("BMPx8x{%s}", d.d)
}

// Calibration returns the factory calibration loaded at construction.
func (d *Dev) Calibration() Calibration {
	return d.cal
}

// Sense reads the temperature and the pressure.
//
// Humidity is not supported and is left untouched.
func (d *Dev) Sense(e *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ut, err := d.readUT()
	if err != nil {
		return err
	}
	up, err := d.readUP()
	if err != nil {
		return err
	}
	b5, err := d.cal.b5(ut)
	if err != nil {
		return err
	}
	p, err := d.cal.pressure(up, b5, d.os)
	if err != nil {
		return err
	}
	e.Temperature = deciCelsius(temperatureFromB5(b5))
	e.Pressure = physic.Pressure(p) * physic.Pascal
	return nil
}

// Temperature returns the compensated temperature.
func (d *Dev) Temperature() (physic.Temperature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ut, err := d.readUT()
	if err != nil {
		return 0, err
	}
	t, err := d.cal.Temperature(ut)
	if err != nil {
		return 0, err
	}
	return deciCelsius(t), nil
}

// Pressure returns the compensated pressure.
func (d *Dev) Pressure() (physic.Pressure, error) {
	var e physic.Env
	if err := d.Sense(&e); err != nil {
		return 0, err
	}
	return e.Pressure, nil
}

// SeaLevelPressure returns the pressure reduced to sea level from the current
// reading, given the altitude of the sensor in meters.
func (d *Dev) SeaLevelPressure(altitude float64) (physic.Pressure, error) {
	p, err := d.Pressure()
	if err != nil {
		return 0, err
	}
	return SeaLevelPressure(p, altitude), nil
}

// Altitude returns the altitude in meters from the current reading, given the
// pressure at sea level. Zero or less selects StandardSeaLevel.
func (d *Dev) Altitude(seaLevel physic.Pressure) (float64, error) {
	p, err := d.Pressure()
	if err != nil {
		return 0, err
	}
	return Altitude(p, seaLevel), nil
}

// Reset issues a soft reset. The calibration is kept.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.d.Tx([]byte{regSoftReset, cmdSoftReset}, nil); err != nil {
		return fmt.Errorf("bmpx8x: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Halt is a noop; the device only converts on request.
func (d *Dev) Halt() error {
	return nil
}

func (d *Dev) readUT() (int32, error) {
	if err := d.d.Tx([]byte{regControl, cmdTemperature}, nil); err != nil {
		return 0, fmt.Errorf("bmpx8x: %w", err)
	}
	time.Sleep(5 * time.Millisecond)
	var b [2]byte
	if err := d.d.Tx([]byte{regData}, b[:]); err != nil {
		return 0, fmt.Errorf("bmpx8x: %w", err)
	}
	return int32(binary.BigEndian.Uint16(b[:])), nil
}

func (d *Dev) readUP() (int32, error) {
	if err := d.d.Tx([]byte{regControl, cmdPressure | byte(d.os)<<6}, nil); err != nil {
		return 0, fmt.Errorf("bmpx8x: %w", err)
	}
	time.Sleep(conversionTime[d.os])
	var b [3]byte
	if err := d.d.Tx([]byte{regData}, b[:]); err != nil {
		return 0, fmt.Errorf("bmpx8x: %w", err)
	}
	return (int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])) >> (8 - d.os), nil
}

// SeaLevelPressure reduces a pressure measured at altitude meters to sea level.
func SeaLevelPressure(p physic.Pressure, altitude float64) physic.Pressure {
	pa := float64(p) / float64(physic.Pascal)
	return physic.Pressure(pa/math.Pow(1-altitude/44330, 5.255)) * physic.Pascal
}

// Altitude computes the altitude in meters for pressure p against seaLevel.
func Altitude(p, seaLevel physic.Pressure) float64 {
	if seaLevel <= 0 {
		seaLevel = StandardSeaLevel
	}
	return 44307.69 * (1 - math.Pow(float64(p)/float64(seaLevel), 0.190284))
}

func deciCelsius(t int32) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(t)*100*physic.MilliKelvin
}

var _ conn.Resource = &Dev{}

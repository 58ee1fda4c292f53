// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package adis16448 controls an Analog Devices ADIS16448 10 degrees of
// freedom inertial sensor over SPI.
//
// Datasheet
//
// http://www.analog.com/media/en/technical-documentation/data-sheets/ADIS16448.pdf
package adis16448

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// productID is the value of the ProdID register.
const productID = 16448

// Minimum stall time between two SPI words.
const stall = 20 * time.Microsecond

// Scale factors per LSB.
const (
	accelScale = 0.000833  // g
	gyroScale  = 0.04      // °/s
	magScale   = 0.0001429 // gauss
	tempScale  = 0.07386   // °C, 0 is 31°C
	tempOffset = 31
)

// Vector is a 3 axis measurement.
type Vector struct {
	X, Y, Z float64
}

// Sample is a full reading of the sensor.
type Sample struct {
	Gyro        Vector // °/s
	Accel       Vector // g
	Mag         Vector // gauss
	Pressure    physic.Pressure
	Temperature physic.Temperature
}

// New connects to an ADIS16448 over SPI.
//
// rst is optional. When provided, the device is reset first. New then verifies
// the product id.
func New(p spi.Port, rst gpio.PinOut) (*Dev, error) {
	c, err := p.Connect(physic.MegaHertz, spi.Mode3, 8)
	if err != nil {
		return nil, fmt.Errorf("adis16448: %w", err)
	}
	d := &Dev{c: c, rst: rst}
	if rst != nil {
		if err := d.Reset(); err != nil {
			return nil, err
		}
	}
	id, err := d.ProductID()
	if err != nil {
		return nil, err
	}
	if id != productID {
		return nil, fmt.Errorf("adis16448: unexpected product id %d", id)
	}
	return d, nil
}

// Dev is a handle to an ADIS16448.
type Dev struct {
	c   conn.Conn
	rst gpio.PinOut

	mu sync.Mutex
}

func (d *Dev) String() string {
	return fmt.Sprintf("ADIS16448{%s}", d.c)
}

// Reset holds the reset line low for 100ms then waits 1s for the device to
// start up.
func (d *Dev) Reset() error {
	if d.rst == nil {
		return errors.New("adis16448: no reset pin")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("adis16448: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("adis16448: %w", err)
	}
	time.Sleep(time.Second)
	return nil
}

// RegRead reads one register.
//
// The register content comes out on the word following the request.
func (d *Dev) RegRead(reg uint8) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regRead(reg)
}

// RegWrite writes one register, low byte then high byte.
func (d *Dev) RegWrite(reg uint8, v uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	addr := uint16(reg&0x7F|0x80) << 8
	lo := addr | v&0xFF
	hi := addr | 0x100 | v>>8
	for _, w := range []uint16{lo, hi} {
		if err := d.c.Tx([]byte{byte(w >> 8), byte(w)}, nil); err != nil {
			return fmt.Errorf("adis16448: %w", err)
		}
		time.Sleep(stall)
	}
	return nil
}

// ProductID returns the product identifier, 16448.
func (d *Dev) ProductID() (uint16, error) {
	return d.RegRead(ProdID)
}

// SerialNumber returns the lot-specific serial number.
func (d *Dev) SerialNumber() (uint16, error) {
	return d.RegRead(SerialNum)
}

// Accel returns the acceleration in g.
func (d *Dev) Accel() (Vector, error) {
	return d.readVector(XAcclOut, accelScale)
}

// Gyro returns the angular rate in °/s.
func (d *Dev) Gyro() (Vector, error) {
	return d.readVector(XGyroOut, gyroScale)
}

// Mag returns the magnetic field in gauss.
func (d *Dev) Mag() (Vector, error) {
	return d.readVector(XMagnOut, magScale)
}

// Pressure returns the barometric pressure.
func (d *Dev) Pressure() (physic.Pressure, error) {
	v, err := d.RegRead(BaroOut)
	if err != nil {
		return 0, err
	}
	return baro(v), nil
}

// Baro returns the barometric pressure in mbar.
func (d *Dev) Baro() (float64, error) {
	v, err := d.RegRead(BaroOut)
	if err != nil {
		return 0, err
	}
	return float64(v) * 0.02, nil
}

// Temperature returns the internal temperature.
func (d *Dev) Temperature() (physic.Temperature, error) {
	v, err := d.RegRead(TempOut)
	if err != nil {
		return 0, err
	}
	return temperature(v), nil
}

// Sense reads all the outputs.
func (d *Dev) Sense(s *Sample) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var raw [11]uint16
	for i := range raw {
		v, err := d.regRead(uint8(XGyroOut + 2*i))
		if err != nil {
			return err
		}
		raw[i] = v
	}
	s.Gyro = vector(raw[0:3], gyroScale)
	s.Accel = vector(raw[3:6], accelScale)
	s.Mag = vector(raw[6:9], magScale)
	s.Pressure = baro(raw[9])
	s.Temperature = temperature(raw[10])
	return nil
}

// Halt is a noop.
func (d *Dev) Halt() error {
	return nil
}

func (d *Dev) regRead(reg uint8) (uint16, error) {
	if err := d.c.Tx([]byte{reg, 0}, nil); err != nil {
		return 0, fmt.Errorf("adis16448: %w", err)
	}
	time.Sleep(stall)
	var r [2]byte
	if err := d.c.Tx([]byte{0, 0}, r[:]); err != nil {
		return 0, fmt.Errorf("adis16448: %w", err)
	}
	time.Sleep(stall)
	return uint16(r[0])<<8 | uint16(r[1]), nil
}

func (d *Dev) readVector(reg uint8, scale float64) (Vector, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var raw [3]uint16
	for i := range raw {
		v, err := d.regRead(reg + uint8(2*i))
		if err != nil {
			return Vector{}, err
		}
		raw[i] = v
	}
	return vector(raw[:], scale), nil
}

func vector(raw []uint16, scale float64) Vector {
	return Vector{
		X: float64(int16(raw[0])) * scale,
		Y: float64(int16(raw[1])) * scale,
		Z: float64(int16(raw[2])) * scale,
	}
}

// baro converts the unsigned 0.02mbar per LSB reading.
func baro(v uint16) physic.Pressure {
	return physic.Pressure(v) * 2 * physic.Pascal
}

// temperature converts the 12 bits two's complement reading.
func temperature(v uint16) physic.Temperature {
	raw := int16(v<<4) >> 4
	c := float64(raw)*tempScale + tempOffset
	return physic.ZeroCelsius + physic.Temperature(c*float64(physic.Celsius))
}

var _ conn.Resource = &Dev{}

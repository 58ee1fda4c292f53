// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bmpx8x

import (
	"encoding/binary"
	"errors"
)

// ErrRange is returned when raw readings cannot be compensated, which only
// happens on corrupted data.
var ErrRange = errors.New("bmpx8x: raw reading out of range")

// Calibration is the factory calibration stored in the device EEPROM.
type Calibration struct {
	AC1, AC2, AC3 int16
	AC4, AC5, AC6 uint16
	B1, B2        int16
	MB, MC, MD    int16
}

func newCalibration(raw []byte) Calibration {
	s := func(i int) int16 { return int16(binary.BigEndian.Uint16(raw[i:])) }
	u := func(i int) uint16 { return binary.BigEndian.Uint16(raw[i:]) }
	return Calibration{
		AC1: s(0), AC2: s(2), AC3: s(4),
		AC4: u(6), AC5: u(8), AC6: u(10),
		B1: s(12), B2: s(14),
		MB: s(16), MC: s(18), MD: s(20),
	}
}

// isValid returns false if any word reads as 0x0000 or 0xFFFF, which means the
// EEPROM could not be read.
func (c *Calibration) isValid() bool {
	for _, v := range []uint16{
		uint16(c.AC1), uint16(c.AC2), uint16(c.AC3), c.AC4, c.AC5, c.AC6,
		uint16(c.B1), uint16(c.B2), uint16(c.MB), uint16(c.MC), uint16(c.MD),
	} {
		if v == 0 || v == 0xFFFF {
			return false
		}
	}
	return true
}

func (c *Calibration) b5(ut int32) (int32, error) {
	x1 := ((ut - int32(c.AC6)) * int32(c.AC5)) >> 15
	if x1+int32(c.MD) == 0 {
		return 0, ErrRange
	}
	x2 := (int32(c.MC) << 11) / (x1 + int32(c.MD))
	return x1 + x2, nil
}

// Temperature compensates the raw temperature ut and returns it in 0.1°C.
func (c *Calibration) Temperature(ut int32) (int32, error) {
	b5, err := c.b5(ut)
	if err != nil {
		return 0, err
	}
	return temperatureFromB5(b5), nil
}

func temperatureFromB5(b5 int32) int32 {
	return (b5 + 8) >> 4
}

// Pressure compensates the raw pressure up sampled at oversampling os, using
// the raw temperature ut sampled just before. It returns Pascals.
func (c *Calibration) Pressure(up, ut int32, os Oversampling) (int32, error) {
	b5, err := c.b5(ut)
	if err != nil {
		return 0, err
	}
	return c.pressure(up, b5, os)
}

func (c *Calibration) pressure(up, b5 int32, os Oversampling) (int32, error) {
	b6 := b5 - 4000
	x1 := (int32(c.B2) * ((b6 * b6) >> 12)) >> 11
	x2 := (int32(c.AC2) * b6) >> 11
	x3 := x1 + x2
	b3 := (((int32(c.AC1)*4 + x3) << os) + 2) / 4
	x1 = (int32(c.AC3) * b6) >> 13
	x2 = (int32(c.B1) * ((b6 * b6) >> 12)) >> 16
	x3 = ((x1 + x2) + 2) >> 2
	b4 := (uint32(c.AC4) * uint32(x3+32768)) >> 15
	if b4 == 0 {
		return 0, ErrRange
	}
	b7 := (uint32(up) - uint32(b3)) * (50000 >> os)
	var p int32
	if b7 < 0x80000000 {
		p = int32((b7 * 2) / b4)
	} else {
		p = int32((b7 / b4) * 2)
	}
	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	return p + ((x1 + x2 + 3791) >> 4), nil
}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bmpx8x

import (
	"errors"
	"math"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

// Example values from the datasheet.
var datasheetCalibration = []byte{
	0x01, 0x98, // AC1 408
	0xFF, 0xB8, // AC2 -72
	0xC7, 0xD1, // AC3 -14383
	0x7F, 0xE5, // AC4 32741
	0x7F, 0xF5, // AC5 32757
	0x5A, 0x71, // AC6 23153
	0x18, 0x2E, // B1 6190
	0x00, 0x04, // B2 4
	0x80, 0x00, // MB -32768
	0xDD, 0xF9, // MC -8711
	0x0B, 0x34, // MD 2868
}

func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: 0x77, W: []byte{regChipID}, R: []byte{chipID}},
		{Addr: 0x77, W: []byte{regCalibration}, R: datasheetCalibration},
	}
}

func TestCalibration(t *testing.T) {
	c := newCalibration(datasheetCalibration)
	want := Calibration{
		AC1: 408, AC2: -72, AC3: -14383, AC4: 32741, AC5: 32757, AC6: 23153,
		B1: 6190, B2: 4, MB: -32768, MC: -8711, MD: 2868,
	}
	if c != want {
		t.Fatalf("got %+v, want %+v", c, want)
	}
	if !c.isValid() {
		t.Fatal("expected valid calibration")
	}
	if v, err := c.Temperature(27898); err != nil || v != 150 {
		t.Fatalf("temperature: got %d, %v, want 150", v, err)
	}
	if v, err := c.Pressure(23843, 27898, UltraLowPower); err != nil || v != 69964 {
		t.Fatalf("pressure: got %d, %v, want 69964", v, err)
	}
}

func TestCalibration_range(t *testing.T) {
	c := newCalibration(datasheetCalibration)
	// X1 == -MD.
	if _, err := c.Temperature(20285); !errors.Is(err, ErrRange) {
		t.Fatal(err)
	}
	if _, err := c.Pressure(23843, 20285, UltraLowPower); !errors.Is(err, ErrRange) {
		t.Fatal(err)
	}
	// B4 == 0.
	c = Calibration{AC3: -8, AC4: 1}
	if _, err := c.pressure(23843, 8096, UltraLowPower); !errors.Is(err, ErrRange) {
		t.Fatal(err)
	}
}

func TestCalibration_invalid(t *testing.T) {
	raw := make([]byte, 22)
	copy(raw, datasheetCalibration)
	raw[20], raw[21] = 0xFF, 0xFF
	c := newCalibration(raw)
	if c.isValid() {
		t.Fatal("expected invalid calibration")
	}
}

func TestNew_badChipID(t *testing.T) {
	bus := i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x77, W: []byte{regChipID}, R: []byte{0x58}}},
		DontPanic: true,
	}
	if _, err := New(&bus, nil); err == nil {
		t.Fatal("expected chip id error")
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_badOversampling(t *testing.T) {
	bus := i2ctest.Playback{DontPanic: true}
	if _, err := New(&bus, &Opts{Oversampling: 4}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSense(t *testing.T) {
	ops := append(initOps(),
		i2ctest.IO{Addr: 0x77, W: []byte{regControl, cmdTemperature}},
		i2ctest.IO{Addr: 0x77, W: []byte{regData}, R: []byte{0x6C, 0xFA}},
		i2ctest.IO{Addr: 0x77, W: []byte{regControl, cmdPressure}},
		i2ctest.IO{Addr: 0x77, W: []byte{regData}, R: []byte{0x5D, 0x23, 0x00}},
	)
	bus := i2ctest.Playback{Ops: ops}
	d, err := New(&bus, &Opts{Oversampling: UltraLowPower})
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); s != "BMPx8x{playback(119)}" {
		t.Fatal(s)
	}
	var e physic.Env
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if want := physic.ZeroCelsius + 15*physic.Celsius; e.Temperature != want {
		t.Fatalf("temperature: got %s, want %s", e.Temperature, want)
	}
	if want := 69964 * physic.Pascal; e.Pressure != want {
		t.Fatalf("pressure: got %s, want %s", e.Pressure, want)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTemperature_ultraHighRes(t *testing.T) {
	ops := append(initOps(),
		i2ctest.IO{Addr: 0x77, W: []byte{regControl, cmdTemperature}},
		i2ctest.IO{Addr: 0x77, W: []byte{regData}, R: []byte{0x6C, 0xFA}},
		i2ctest.IO{Addr: 0x77, W: []byte{regSoftReset, cmdSoftReset}},
	)
	bus := i2ctest.Playback{Ops: ops}
	d, err := New(&bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	temp, err := d.Temperature()
	if err != nil {
		t.Fatal(err)
	}
	if want := physic.ZeroCelsius + 15*physic.Celsius; temp != want {
		t.Fatalf("got %s, want %s", temp, want)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAltitude(t *testing.T) {
	data := []struct {
		p, sl physic.Pressure
		want  float64
	}{
		{StandardSeaLevel, 0, 0},
		{StandardSeaLevel, StandardSeaLevel, 0},
		{89875 * physic.Pascal, 0, 1000},
	}
	for i, line := range data {
		if got := Altitude(line.p, line.sl); math.Abs(got-line.want) > 2 {
			t.Fatalf("#%d: got %f, want %f", i, got, line.want)
		}
	}
}

func TestSeaLevelPressure(t *testing.T) {
	if got := SeaLevelPressure(StandardSeaLevel, 0); got != StandardSeaLevel {
		t.Fatalf("got %s", got)
	}
	got := SeaLevelPressure(89875*physic.Pascal, 1000)
	if d := got - StandardSeaLevel; d > 200*physic.Pascal || d < -200*physic.Pascal {
		t.Fatalf("got %s", got)
	}
}

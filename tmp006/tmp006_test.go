// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tmp006

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func initOps(addr uint16) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{regManufID}, R: []byte{0x54, 0x49}},
		{Addr: addr, W: []byte{regDevID}, R: []byte{0x00, 0x67}},
		{Addr: addr, W: []byte{regConfig, 0x75, 0x00}},
	}
}

func TestNew(t *testing.T) {
	bus := i2ctest.Playback{Ops: initOps(0x41)}
	d, err := New(&bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); s != "TMP006{playback(65)}" {
		t.Fatal(s)
	}
	if i := d.SampleInterval(); i != time.Second {
		t.Fatal(i)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_tmp007(t *testing.T) {
	bus := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{regManufID}, R: []byte{0x54, 0x49}},
			{Addr: 0x40, W: []byte{regTMP007DevID}, R: []byte{0x00, 0x78}},
			{Addr: 0x40, W: []byte{regConfig, 0x71, 0x00}},
		},
	}
	d, err := New(&bus, &Opts{Model: TMP007, Rate: AS1})
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); s != "TMP007{playback(64)}" {
		t.Fatal(s)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_errors(t *testing.T) {
	data := []struct {
		name string
		ops  []i2ctest.IO
	}{
		{"manufacturer", []i2ctest.IO{{Addr: 0x41, W: []byte{regManufID}, R: []byte{0x12, 0x34}}}},
		{"device", []i2ctest.IO{
			{Addr: 0x41, W: []byte{regManufID}, R: []byte{0x54, 0x49}},
			{Addr: 0x41, W: []byte{regDevID}, R: []byte{0x00, 0x78}},
		}},
		{"bus", nil},
	}
	for _, line := range data {
		bus := i2ctest.Playback{Ops: line.ops, DontPanic: true}
		if _, err := New(&bus, nil); err == nil {
			t.Fatalf("%s: expected error", line.name)
		}
	}
	if _, err := New(&i2ctest.Playback{DontPanic: true}, &Opts{Rate: 5}); err == nil {
		t.Fatal("expected rate error")
	}
}

func TestSense(t *testing.T) {
	ops := append(initOps(0x41),
		i2ctest.IO{Addr: 0x41, W: []byte{regConfig}, R: []byte{0x75, 0x00}},
		i2ctest.IO{Addr: 0x41, W: []byte{regConfig}, R: []byte{0x75, 0x80}},
		// -188 * 156.25nV is close to the offset voltage at 25°C.
		i2ctest.IO{Addr: 0x41, W: []byte{regVoltage}, R: []byte{0xFF, 0x44}},
		// 25°C
		i2ctest.IO{Addr: 0x41, W: []byte{regLocalTemp}, R: []byte{0x0C, 0x80}},
	)
	bus := i2ctest.Playback{Ops: ops}
	d, err := New(&bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	var s Sample
	if err := d.Sense(&s); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if err := d.Sense(&s); err != nil {
		t.Fatal(err)
	}
	if want := physic.ZeroCelsius + 25*physic.Celsius; s.Die != want {
		t.Fatalf("die: got %s, want %s", s.Die, want)
	}
	if c := s.Object.Celsius(); c < 24.99 || c > 25.01 {
		t.Fatalf("object: got %s", s.Object)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestObjectTemperature(t *testing.T) {
	// A hotter object produces a larger thermopile voltage.
	prev, err := ObjectTemperature(-1000, 3200)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []int16{-188, 0, 500, 2000} {
		cur, err := ObjectTemperature(v, 3200)
		if err != nil {
			t.Fatal(err)
		}
		if cur <= prev {
			t.Fatalf("%d: %s <= %s", v, cur, prev)
		}
		prev = cur
	}
}

func TestObjectTemperature_range(t *testing.T) {
	data := []struct {
		vobj, tamb int16
	}{
		{-32768, 25 * 128},
		{-32768, -40 * 128},
		{-20000, 0},
	}
	for _, line := range data {
		if got, err := ObjectTemperature(line.vobj, line.tamb); !errors.Is(err, ErrRange) {
			t.Fatalf("%d, %d: got %s, %v", line.vobj, line.tamb, got, err)
		}
	}
}

func TestSense_range(t *testing.T) {
	ops := append(initOps(0x41),
		i2ctest.IO{Addr: 0x41, W: []byte{regConfig}, R: []byte{0x75, 0x80}},
		i2ctest.IO{Addr: 0x41, W: []byte{regVoltage}, R: []byte{0x80, 0x00}},
		i2ctest.IO{Addr: 0x41, W: []byte{regLocalTemp}, R: []byte{0x0C, 0x80}},
	)
	bus := i2ctest.Playback{Ops: ops}
	d, err := New(&bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.ObjectTemperature(); !errors.Is(err, ErrRange) {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDieTemperature(t *testing.T) {
	data := []struct {
		raw  uint16
		want physic.Temperature
	}{
		{0x0C80, physic.ZeroCelsius + 25*physic.Celsius},
		{0x0000, physic.ZeroCelsius},
		{0xF380, physic.ZeroCelsius - 25*physic.Celsius},
		{0x0020, physic.ZeroCelsius + 250*physic.MilliCelsius},
	}
	for _, line := range data {
		bus := i2ctest.Playback{
			Ops: []i2ctest.IO{{Addr: 0x41, W: []byte{regLocalTemp}, R: []byte{byte(line.raw >> 8), byte(line.raw)}}},
		}
		d := &Dev{d: &i2c.Dev{Bus: &bus, Addr: 0x41}}
		got, err := d.DieTemperature()
		if err != nil {
			t.Fatal(err)
		}
		if got != line.want {
			t.Fatalf("%#04x: got %s, want %s", line.raw, got, line.want)
		}
	}
}

func TestSetActive_Reset_Halt(t *testing.T) {
	ops := append(initOps(0x41),
		i2ctest.IO{Addr: 0x41, W: []byte{regConfig, 0x05, 0x00}},
		i2ctest.IO{Addr: 0x41, W: []byte{regConfig, 0x75, 0x00}},
		i2ctest.IO{Addr: 0x41, W: []byte{regConfig, 0x80, 0x00}},
		i2ctest.IO{Addr: 0x41, W: []byte{regConfig, 0x75, 0x00}},
		i2ctest.IO{Addr: 0x41, W: []byte{regConfig, 0x05, 0x00}},
	)
	bus := i2ctest.Playback{Ops: ops}
	d, err := New(&bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetActive(false); err != nil {
		t.Fatal(err)
	}
	if err := d.SetActive(true); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

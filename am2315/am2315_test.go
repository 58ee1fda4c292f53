// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package am2315

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func TestCRC16(t *testing.T) {
	if c := crc16([]byte("123456789")); c != 0x4B37 {
		t.Fatalf("%#04x", c)
	}
	b := appendCRC([]byte("123456789"))
	if b[9] != 0x37 || b[10] != 0x4B {
		t.Fatalf("%#v", b)
	}
	if !checkCRC(b) {
		t.Fatal("expected valid")
	}
	b[0] ^= 1
	if checkCRC(b) {
		t.Fatal("expected invalid")
	}
	if checkCRC([]byte{1}) {
		t.Fatal("expected invalid")
	}
}

func TestDecode(t *testing.T) {
	data := []struct {
		in [4]byte
		h  physic.RelativeHumidity
		t  physic.Temperature
	}{
		{[4]byte{0x01, 0xF4, 0x00, 0xFA}, 50 * physic.PercentRH, physic.ZeroCelsius + 25*physic.Celsius},
		{[4]byte{0x03, 0xE8, 0x80, 0x65}, 100 * physic.PercentRH, physic.ZeroCelsius - 10100*physic.MilliCelsius},
		{[4]byte{0x00, 0x00, 0x80, 0x00}, 0, physic.ZeroCelsius},
	}
	for i, line := range data {
		h, temp := decode(line.in)
		if h != line.h || temp != line.t {
			t.Fatalf("#%d: got %s %s, want %s %s", i, h, temp, line.h, line.t)
		}
	}
}

// readOps returns the transcript for a read of register reg returning data.
func readOps(reg uint8, data ...byte) []i2ctest.IO {
	r := appendCRC(append([]byte{funcRead, byte(len(data))}, data...))
	return []i2ctest.IO{
		{Addr: 0x5C, W: []byte{funcRead, reg, byte(len(data))}},
		{Addr: 0x5C, R: r},
	}
}

func initOps() []i2ctest.IO {
	var ops []i2ctest.IO
	ops = append(ops, readOps(RegModel, 0x03, 0x15)...)
	ops = append(ops, readOps(RegVersion, 0x01)...)
	ops = append(ops, readOps(RegID, 0xDE, 0xAD, 0xBE, 0xEF)...)
	return ops
}

func TestNew(t *testing.T) {
	bus := i2ctest.Playback{Ops: initOps()}
	d, err := New(&bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Model() != 0x0315 || d.Version() != 1 || d.ID() != 0xDEADBEEF {
		t.Fatalf("%#x %#x %#x", d.Model(), d.Version(), d.ID())
	}
	if s := d.String(); s != "AM2315{playback(92)}" {
		t.Fatal(s)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_badCRC(t *testing.T) {
	ops := readOps(RegModel, 0x03, 0x15)
	ops[1].R[4] ^= 0xFF
	bus := i2ctest.Playback{Ops: ops}
	if _, err := New(&bus, nil); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

// sleepyBus refuses the first naks transactions, like a sleeping AM2315.
type sleepyBus struct {
	i2c.Bus
	naks int
}

func (s *sleepyBus) Tx(addr uint16, w, r []byte) error {
	if s.naks > 0 {
		s.naks--
		return errors.New("nack")
	}
	return s.Bus.Tx(addr, w, r)
}

func TestWake(t *testing.T) {
	bus := i2ctest.Playback{Ops: initOps()}
	if _, err := New(&sleepyBus{Bus: &bus, naks: 4}, nil); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := New(&sleepyBus{Bus: &bus, naks: 5}, nil); err == nil {
		t.Fatal("expected wake up failure")
	}
}

func TestSense_cached(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ops := initOps()
	ops = append(ops, readOps(RegHumidity, 0x01, 0xF4, 0x00, 0xFA)...)
	ops = append(ops, readOps(RegHumidity, 0x01, 0xF5, 0x80, 0x05)...)
	bus := i2ctest.Playback{Ops: ops}
	d, err := New(&bus, &Opts{Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	var e physic.Env
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if e.Humidity != 50*physic.PercentRH || e.Temperature != physic.ZeroCelsius+25*physic.Celsius {
		t.Fatalf("%s %s", e.Humidity, e.Temperature)
	}
	clk.Advance(time.Second)
	h, err := d.Humidity()
	if err != nil {
		t.Fatal(err)
	}
	if h != 50*physic.PercentRH {
		t.Fatal(h)
	}
	clk.Advance(time.Second)
	temp, err := d.Temperature()
	if err != nil {
		t.Fatal(err)
	}
	if want := physic.ZeroCelsius - 500*physic.MilliCelsius; temp != want {
		t.Fatalf("got %s, want %s", temp, want)
	}
	if f := temp.Fahrenheit(); f < 31.0 || f > 31.2 {
		t.Fatal(f)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestUserRegisters(t *testing.T) {
	ops := initOps()
	w := appendCRC([]byte{funcWrite, RegUserA, 2, 0x12, 0x34})
	ops = append(ops,
		i2ctest.IO{Addr: 0x5C, W: w},
		i2ctest.IO{Addr: 0x5C, R: appendCRC([]byte{funcWrite, RegUserA, 2})},
	)
	ops = append(ops, readOps(RegUserA, 0x12, 0x34)...)
	ops = append(ops, readOps(RegUserB, 0x00, 0x07)...)
	ops = append(ops, readOps(RegStatus, 0x00)...)
	w = appendCRC([]byte{funcWrite, RegUserB, 2, 0xAB, 0xCD})
	ops = append(ops,
		i2ctest.IO{Addr: 0x5C, W: w},
		i2ctest.IO{Addr: 0x5C, R: []byte{funcWrite, RegUserB, 2, 0, 0}},
	)
	bus := i2ctest.Playback{Ops: ops}
	d, err := New(&bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetUserA(0x1234); err != nil {
		t.Fatal(err)
	}
	if v, err := d.UserA(); err != nil || v != 0x1234 {
		t.Fatal(v, err)
	}
	if v, err := d.UserB(); err != nil || v != 7 {
		t.Fatal(v, err)
	}
	if v, err := d.Status(); err != nil || v != 0 {
		t.Fatal(v, err)
	}
	if err := d.SetUserB(0xABCD); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func selfTestOps(samples [][4]byte) []i2ctest.IO {
	ops := initOps()
	for _, s := range samples {
		ops = append(ops, readOps(RegHumidity, s[:]...)...)
	}
	return ops
}

func runSelfTest(t *testing.T, samples [][4]byte) error {
	clk := clockwork.NewFakeClock()
	bus := i2ctest.Playback{Ops: selfTestOps(samples)}
	d, err := New(&bus, &Opts{Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error)
	go func() {
		done <- d.SelfTest(context.Background())
	}()
	for i := 0; i < len(samples)-1; i++ {
		clk.BlockUntil(1)
		clk.Advance(MinSampleInterval)
	}
	err = <-done
	if err2 := bus.Close(); err2 != nil {
		t.Fatal(err2)
	}
	return err
}

func TestSelfTest(t *testing.T) {
	samples := make([][4]byte, 10)
	for i := range samples {
		samples[i] = [4]byte{0x01, 0xF4, 0x00, 0xFA}
	}
	if err := runSelfTest(t, samples); !errors.Is(err, ErrStuck) {
		t.Fatalf("expected ErrStuck, got %v", err)
	}
	samples[7][3] = 0xFB
	if err := runSelfTest(t, samples); err != nil {
		t.Fatal(err)
	}
}

func TestSelfTest_cancel(t *testing.T) {
	bus := i2ctest.Playback{Ops: selfTestOps([][4]byte{{0x01, 0xF4, 0x00, 0xFA}})}
	d, err := New(&bus, &Opts{Clock: clockwork.NewFakeClock()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.SelfTest(ctx); !errors.Is(err, context.Canceled) {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSenseContinuous(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ops := initOps()
	ops = append(ops, readOps(RegHumidity, 0x01, 0xF4, 0x00, 0xFA)...)
	ops = append(ops, readOps(RegHumidity, 0x02, 0x58, 0x00, 0xFA)...)
	bus := i2ctest.Playback{Ops: ops}
	d, err := New(&bus, &Opts{Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.SenseContinuous(time.Second); err == nil {
		t.Fatal("expected interval error")
	}
	c, err := d.SenseContinuous(MinSampleInterval)
	if err != nil {
		t.Fatal(err)
	}
	if e := <-c; e.Humidity != 50*physic.PercentRH {
		t.Fatal(e.Humidity)
	}
	clk.BlockUntil(1)
	clk.Advance(MinSampleInterval)
	if e := <-c; e.Humidity != 60*physic.PercentRH {
		t.Fatal(e.Humidity)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-c; ok {
		t.Fatal("expected closed channel")
	}
	var e physic.Env
	d.Precision(&e)
	if e.Humidity != physic.MilliRH {
		t.Fatal(e.Humidity)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package uln200xa

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newDev(t *testing.T, c clockwork.Clock) (*Dev, []*gpiotest.Pin) {
	pins := []*gpiotest.Pin{{N: "I1"}, {N: "I2"}, {N: "I3"}, {N: "I4"}}
	d, err := New(&Opts{StepsPerRev: 4096, Clock: c}, pins[0], pins[1], pins[2], pins[3])
	if err != nil {
		t.Fatal(err)
	}
	return d, pins
}

func coils(pins []*gpiotest.Pin) uint8 {
	var b uint8
	for _, p := range pins {
		b <<= 1
		if p.L {
			b |= 1
		}
	}
	return b
}

// stepOnce runs a single step on the fake clock.
func stepOnce(t *testing.T, d *Dev, clk clockwork.FakeClock, delay time.Duration) {
	done := make(chan error)
	go func() {
		done <- d.Step(context.Background(), 1)
	}()
	clk.BlockUntil(1)
	clk.Advance(delay)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestSequence(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d, pins := newDev(t, clk)
	if s := d.String(); s != "ULN200XA{I1(0), I2(0), I3(0), I4(0)}" {
		t.Fatal(s)
	}
	if err := d.SetSpeed(5); err != nil {
		t.Fatal(err)
	}
	// 60s / 4096 / 5
	delay := 2929687 * time.Nanosecond
	want := []uint8{0b0011, 0b0010, 0b0110, 0b0100, 0b1100, 0b1000, 0b1001, 0b0001, 0b0011}
	for i, w := range want {
		stepOnce(t, d, clk, delay)
		if got := coils(pins); got != w {
			t.Fatalf("step %d: got %04b, want %04b", i, got, w)
		}
	}
	d.SetDirection(CCW)
	for i, w := range []uint8{0b0001, 0b1001, 0b1000} {
		stepOnce(t, d, clk, delay)
		if got := coils(pins); got != w {
			t.Fatalf("reverse step %d: got %04b, want %04b", i, got, w)
		}
	}
	if p := d.Position(); p != 6 {
		t.Fatal(p)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if coils(pins) != 0 {
		t.Fatal("expected released")
	}
}

func TestNew_errors(t *testing.T) {
	p := &gpiotest.Pin{}
	if _, err := New(&Opts{}, p, p, p, p); err == nil {
		t.Fatal("expected error")
	}
	d, _ := newDev(t, nil)
	if err := d.SetSpeed(-1); err == nil {
		t.Fatal("expected error")
	}
}

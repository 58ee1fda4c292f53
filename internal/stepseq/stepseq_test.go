// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package stepseq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestPosition(t *testing.T) {
	p := Position{StepsPerRev: 4}
	var got []int
	for i := 0; i < 5; i++ {
		p.Forward()
		got = append(got, p.Step)
	}
	for i := 0; i < 5; i++ {
		p.Move(-1)
		got = append(got, p.Step)
	}
	want := []int{1, 2, 3, 0, 1, 4, 3, 2, 1, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPhase(t *testing.T) {
	p := Position{Step: 9, StepsPerRev: 200}
	if b := p.Phase(FullStep); b != 0b0110 {
		t.Fatalf("%04b", b)
	}
	if b := p.Phase(HalfStep); b != 0b0011 {
		t.Fatalf("%04b", b)
	}
}

func TestDelay(t *testing.T) {
	data := []struct {
		steps, rpm int
		want       time.Duration
		err        bool
	}{
		{200, 60, 5 * time.Millisecond, false},
		{4096, 1, 14648437 * time.Nanosecond, false},
		{200, 0, 0, true},
		{0, 10, 0, true},
	}
	for _, line := range data {
		d, err := Delay(line.steps, line.rpm)
		if (err != nil) != line.err {
			t.Fatalf("%d %d: %v", line.steps, line.rpm, err)
		}
		if d != line.want {
			t.Fatalf("%d %d: got %s, want %s", line.steps, line.rpm, d, line.want)
		}
	}
}

func TestRun(t *testing.T) {
	clk := clockwork.NewFakeClock()
	start := clk.Now()
	var ticks []time.Duration
	done := make(chan error)
	go func() {
		done <- Run(context.Background(), clk, 3, 10*time.Millisecond, func() error {
			ticks = append(ticks, clk.Since(start))
			return nil
		})
	}()
	for i := 0; i < 3; i++ {
		clk.BlockUntil(1)
		clk.Advance(10 * time.Millisecond)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	if len(ticks) != len(want) {
		t.Fatal(ticks)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("got %v, want %v", ticks, want)
		}
	}
}

func TestRun_errors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := 0
	if err := Run(ctx, clockwork.NewFakeClock(), 3, time.Second, func() error { n++; return nil }); !errors.Is(err, context.Canceled) || n != 0 {
		t.Fatal(err, n)
	}
	want := errors.New("stall")
	err := Run(context.Background(), clockwork.NewRealClock(), 3, 0, func() error {
		n++
		return want
	})
	if err != want || n != 1 {
		t.Fatal(err, n)
	}
}

func TestWrite(t *testing.T) {
	pins := []*gpiotest.Pin{{N: "I1"}, {N: "I2"}, {N: "I3"}, {N: "I4"}}
	out := make([]gpio.PinOut, len(pins))
	for i := range pins {
		out[i] = pins[i]
	}
	if err := Write(out, 0b1001); err != nil {
		t.Fatal(err)
	}
	want := []gpio.Level{gpio.High, gpio.Low, gpio.Low, gpio.High}
	for i := range pins {
		if pins[i].L != want[i] {
			t.Fatalf("%s: %s", pins[i], pins[i].L)
		}
	}
}

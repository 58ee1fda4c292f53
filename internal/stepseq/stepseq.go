// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package stepseq implements the stepper motor bookkeeping shared by the
// stepper drivers: position tracking, coil phase tables and paced stepping.
package stepseq

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
)

// FullStep is the two-phase-on full step sequence for a bipolar motor, coils
// I1 to I4 from the most significant bit.
var FullStep = []uint8{0b1010, 0b0110, 0b0101, 0b1001}

// HalfStep is the eight step sequence for a unipolar motor such as the
// 28BYJ-48, coils I1 to I4 from the most significant bit.
var HalfStep = []uint8{0b0001, 0b0011, 0b0010, 0b0110, 0b0100, 0b1100, 0b1000, 0b1001}

// Position tracks the current step within one revolution.
type Position struct {
	Step        int
	StepsPerRev int
}

// Forward advances by one step, wrapping to 0 at StepsPerRev.
func (p *Position) Forward() {
	p.Step++
	if p.Step >= p.StepsPerRev {
		p.Step = 0
	}
}

// Backward moves back by one step, wrapping to StepsPerRev at 0.
func (p *Position) Backward() {
	p.Step--
	if p.Step <= 0 {
		p.Step = p.StepsPerRev
	}
}

// Move advances one step in the direction of dir's sign.
func (p *Position) Move(dir int) {
	if dir < 0 {
		p.Backward()
	} else {
		p.Forward()
	}
}

// Phase returns the entry of table to output at the current step.
func (p *Position) Phase(table []uint8) uint8 {
	return table[p.Step%len(table)]
}

// Delay returns the time between two steps to turn at rpm.
func Delay(stepsPerRev, rpm int) (time.Duration, error) {
	if stepsPerRev <= 0 {
		return 0, errors.New("stepseq: steps per revolution must be positive")
	}
	if rpm <= 0 {
		return 0, errors.New("stepseq: speed must be positive")
	}
	return time.Minute / time.Duration(stepsPerRev) / time.Duration(rpm), nil
}

// Run calls tick steps times, waiting delay on clk before each call.
//
// It returns early with ctx.Err() if ctx is canceled, or with the first error
// returned by tick.
func Run(ctx context.Context, clk clockwork.Clock, steps int, delay time.Duration, tick func() error) error {
	for ; steps > 0; steps-- {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(delay):
		}
		if err := tick(); err != nil {
			return err
		}
	}
	return nil
}

// Write drives pins from bits, pins[0] taking the most significant of
// len(pins) bits.
func Write(pins []gpio.PinOut, bits uint8) error {
	n := len(pins)
	for i, p := range pins {
		l := gpio.Level(bits&(1<<(n-1-i)) != 0)
		if err := p.Out(l); err != nil {
			return err
		}
	}
	return nil
}

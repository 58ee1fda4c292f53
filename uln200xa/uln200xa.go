// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package uln200xa drives a unipolar stepper motor, such as the 28BYJ-48,
// through a ULN2003A or ULN2004A Darlington array.
//
// The coils are energized in half steps.
//
// Datasheet
//
// http://www.ti.com/lit/ds/symlink/uln2003a.pdf
package uln200xa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/upm/v3/internal/stepseq"
)

// Direction is the rotation direction.
type Direction int8

// Possible directions.
const (
	CW  Direction = 0
	CCW Direction = 1
)

// Opts holds the configuration options.
type Opts struct {
	// StepsPerRev is the number of half steps per revolution; 4096 for a
	// 28BYJ-48.
	StepsPerRev int
	// Clock paces the steps. Defaults to the real clock.
	Clock clockwork.Clock
}

// New returns a driver for the motor wired to i1 to i4.
//
// The speed defaults to 1 rpm.
func New(opts *Opts, i1, i2, i3, i4 gpio.PinOut) (*Dev, error) {
	if opts == nil || opts.StepsPerRev <= 0 {
		return nil, errors.New("uln200xa: StepsPerRev is required")
	}
	c := opts.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	d := &Dev{
		coils: []gpio.PinOut{i1, i2, i3, i4},
		clock: c,
		pos:   stepseq.Position{StepsPerRev: opts.StepsPerRev},
		dir:   1,
	}
	if err := d.SetSpeed(1); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a stepper motor behind a ULN200xA.
type Dev struct {
	coils []gpio.PinOut
	clock clockwork.Clock

	mu    sync.Mutex
	pos   stepseq.Position
	dir   int
	delay time.Duration
}

func (d *Dev) String() string {
	return fmt.Sprintf("ULN200XA{%s, %s, %s, %s}", d.coils[0], d.coils[1], d.coils[2], d.coils[3])
}

// SetSpeed sets the speed in revolutions per minute.
func (d *Dev) SetSpeed(rpm int) error {
	delay, err := stepseq.Delay(d.pos.StepsPerRev, rpm)
	if err != nil {
		return fmt.Errorf("uln200xa: %w", err)
	}
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
	return nil
}

// SetDirection sets the direction of the next steps.
func (d *Dev) SetDirection(dir Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dir == CCW {
		d.dir = -1
	} else {
		d.dir = 1
	}
}

// Step moves the motor by steps half steps and blocks until done or ctx is
// canceled. The coils stay energized; see Release.
func (d *Dev) Step(ctx context.Context, steps int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return stepseq.Run(ctx, d.clock, steps, d.delay, func() error {
		d.pos.Move(d.dir)
		if err := stepseq.Write(d.coils, d.pos.Phase(stepseq.HalfStep)); err != nil {
			return fmt.Errorf("uln200xa: %w", err)
		}
		return nil
	})
}

// Position returns the current step within the revolution.
func (d *Dev) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos.Step
}

// Release de-energizes all the coils so the shaft turns freely.
func (d *Dev) Release() error {
	if err := stepseq.Write(d.coils, 0); err != nil {
		return fmt.Errorf("uln200xa: %w", err)
	}
	return nil
}

// Halt releases the motor.
func (d *Dev) Halt() error {
	return d.Release()
}

var _ conn.Resource = &Dev{}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package stepmotor drives a stepper motor through a step and direction
// controller such as the Allegro A4988 or an EasyDriver.
//
// Datasheet
//
// https://www.pololu.com/file/0J450/a4988_DMOS_microstepping_driver_with_translator.pdf
package stepmotor

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

const (
	// MinPulse is the time the step line is held high.
	MinPulse = 5 * time.Microsecond
	// overhead is the measured cost of toggling the pins, deducted from the
	// low time of each step.
	overhead = 6 * time.Microsecond
)

// Opts holds the configuration options.
type Opts struct {
	// StepsPerRev is the number of steps per revolution.
	StepsPerRev int
	// Enable is the optional enable line.
	Enable gpio.PinOut
	// Clock paces the steps. Defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	StepsPerRev: 200,
}

// New returns a driver for the controller wired to dir and step.
//
// The speed defaults to 60 rpm.
func New(dir, step gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	steps := opts.StepsPerRev
	if steps == 0 {
		steps = DefaultOpts.StepsPerRev
	}
	if steps < 0 {
		return nil, errors.New("stepmotor: invalid StepsPerRev")
	}
	c := opts.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	d := &Dev{dir: dir, step: step, en: opts.Enable, clock: c, steps: steps}
	if err := d.step.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("stepmotor: %w", err)
	}
	if err := d.SetSpeed(60); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a stepper motor behind a step and direction controller.
type Dev struct {
	dir, step, en gpio.PinOut
	clock         clockwork.Clock
	steps         int

	mu       sync.Mutex
	delay    time.Duration
	position int
}

func (d *Dev) String() string {
	return fmt.Sprintf("StepMotor{%s, %s}", d.dir, d.step)
}

// Enable drives the enable line, if any.
func (d *Dev) Enable(on bool) error {
	if d.en == nil {
		return nil
	}
	if err := d.en.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("stepmotor: %w", err)
	}
	return nil
}

// SetSpeed sets the speed in revolutions per minute.
func (d *Dev) SetSpeed(rpm int) error {
	delay, err := stepseq.Delay(d.steps, rpm)
	if err != nil {
		return fmt.Errorf("stepmotor: %w", err)
	}
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
	return nil
}

// Step moves by ticks steps, forward when positive and backward when
// negative. It blocks until done or ctx is canceled.
func (d *Dev) Step(ctx context.Context, ticks int) error {
	if ticks < 0 {
		return d.move(ctx, gpio.Low, -ticks, -1)
	}
	return d.move(ctx, gpio.High, ticks, 1)
}

// Position returns the absolute position in steps since the last
// SetPosition.
func (d *Dev) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// SetPosition redefines the current absolute position.
func (d *Dev) SetPosition(p int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = p
}

// StepInRev returns the position within one revolution, in [0, StepsPerRev).
func (d *Dev) StepInRev() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.position % d.steps
	if s < 0 {
		s += d.steps
	}
	return s
}

// Halt disables the controller.
func (d *Dev) Halt() error {
	return d.Enable(false)
}

func (d *Dev) move(ctx context.Context, l gpio.Level, ticks, inc int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dir.Out(l); err != nil {
		return fmt.Errorf("stepmotor: %w", err)
	}
	low := d.delay - MinPulse - overhead
	if low < 0 {
		low = 0
	}
	return stepseq.Run(ctx, d.clock, ticks, low, func() error {
		if err := d.step.Out(gpio.High); err != nil {
			return fmt.Errorf("stepmotor: %w", err)
		}
		time.Sleep(MinPulse)
		if err := d.step.Out(gpio.Low); err != nil {
			return fmt.Errorf("stepmotor: %w", err)
		}
		d.position += inc
		return nil
	})
}

var _ conn.Resource = &Dev{}

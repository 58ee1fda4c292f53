// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package l298 controls an ST L298 dual full bridge, either as a PWM speed
// controlled DC motor driver or as a bipolar stepper driver.
//
// Datasheet
//
// https://www.st.com/resource/en/datasheet/l298.pdf
package l298

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/upm/v3/internal/stepseq"
)

// Direction is the rotation direction.
type Direction uint8

// Possible directions. In DC mode, bit 0 drives dir1 and bit 1 drives dir2;
// None and Brake stop the motor.
const (
	None  Direction = 0
	CW    Direction = 1
	CCW   Direction = 2
	Brake Direction = 3
)

func (d Direction) String() string {
	switch d {
	case None:
		return "None"
	case CW:
		return "CW"
	case CCW:
		return "CCW"
	case Brake:
		return "Brake"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// DefaultPeriod is the default PWM period of the DC motor driver.
const DefaultPeriod = 4 * time.Millisecond

// NewDC returns a DC motor driver. pwm drives the enable input, dir1 and dir2
// the two bridge inputs.
//
// The motor is left stopped with a speed of 0.
func NewDC(pwm, dir1, dir2 gpio.PinOut) (*DC, error) {
	d := &DC{pwm: pwm, dir1: dir1, dir2: dir2, freq: physic.PeriodToFrequency(DefaultPeriod)}
	if err := d.SetDirection(None); err != nil {
		return nil, err
	}
	if err := d.SetSpeed(0); err != nil {
		return nil, err
	}
	return d, nil
}

// DC is a DC motor on one bridge of an L298.
type DC struct {
	pwm, dir1, dir2 gpio.PinOut

	mu      sync.Mutex
	freq    physic.Frequency
	duty    gpio.Duty
	enabled bool
}

func (d *DC) String() string {
	return fmt.Sprintf("L298{%s, %s, %s}", d.pwm, d.dir1, d.dir2)
}

// SetPeriod changes the PWM period.
func (d *DC) SetPeriod(p time.Duration) error {
	if p <= 0 {
		return errors.New("l298: invalid period")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freq = physic.PeriodToFrequency(p)
	return d.apply()
}

// SetSpeed sets the speed as a percentage, clamped to [0, 100].
func (d *DC) SetSpeed(percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.duty = gpio.Duty(int64(gpio.DutyMax) * int64(percent) / 100)
	return d.apply()
}

// SetDirection drives the bridge inputs.
func (d *DC) SetDirection(dir Direction) error {
	if err := d.dir1.Out(dir&1 != 0); err != nil {
		return fmt.Errorf("l298: %w", err)
	}
	if err := d.dir2.Out(dir&2 != 0); err != nil {
		return fmt.Errorf("l298: %w", err)
	}
	return nil
}

// Enable starts or stops the PWM output.
func (d *DC) Enable(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = on
	if !on {
		if err := d.pwm.Out(gpio.Low); err != nil {
			return fmt.Errorf("l298: %w", err)
		}
		return nil
	}
	return d.apply()
}

// Halt stops the motor.
func (d *DC) Halt() error {
	if err := d.SetDirection(None); err != nil {
		return err
	}
	if err := d.SetSpeed(0); err != nil {
		return err
	}
	return d.Enable(false)
}

func (d *DC) apply() error {
	if !d.enabled {
		return nil
	}
	if err := d.pwm.PWM(d.duty, d.freq); err != nil {
		return fmt.Errorf("l298: %w", err)
	}
	return nil
}

// StepperOpts holds the stepper configuration.
type StepperOpts struct {
	// StepsPerRev is the number of full steps per revolution, commonly 200.
	StepsPerRev int
	// Clock paces the steps. Defaults to the real clock.
	Clock clockwork.Clock
}

// NewStepper returns a bipolar stepper driver using both bridges. en drives
// both enable inputs; i1 to i4 the four bridge inputs.
func NewStepper(opts *StepperOpts, en, i1, i2, i3, i4 gpio.PinOut) (*Stepper, error) {
	if opts == nil || opts.StepsPerRev <= 0 {
		return nil, errors.New("l298: StepsPerRev is required")
	}
	c := opts.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	s := &Stepper{
		en:    en,
		coils: []gpio.PinOut{i1, i2, i3, i4},
		clock: c,
		pos:   stepseq.Position{StepsPerRev: opts.StepsPerRev},
		dir:   1,
	}
	if err := s.SetSpeed(1); err != nil {
		return nil, err
	}
	return s, nil
}

// Stepper is a bipolar stepper motor driven by both bridges of an L298.
type Stepper struct {
	en    gpio.PinOut
	coils []gpio.PinOut
	clock clockwork.Clock

	mu    sync.Mutex
	pos   stepseq.Position
	dir   int
	delay time.Duration
}

func (s *Stepper) String() string {
	return fmt.Sprintf("L298{%s, %s, %s, %s, %s}", s.en, s.coils[0], s.coils[1], s.coils[2], s.coils[3])
}

// SetSpeed sets the rotation speed in revolutions per minute.
func (s *Stepper) SetSpeed(rpm int) error {
	delay, err := stepseq.Delay(s.pos.StepsPerRev, rpm)
	if err != nil {
		return fmt.Errorf("l298: %w", err)
	}
	s.mu.Lock()
	s.delay = delay
	s.mu.Unlock()
	return nil
}

// SetDirection sets the direction of the next steps. None selects CW.
func (s *Stepper) SetDirection(dir Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir == CCW {
		s.dir = -1
	} else {
		s.dir = 1
	}
}

// Enable drives the enable line of both bridges.
func (s *Stepper) Enable(on bool) error {
	if err := s.en.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("l298: %w", err)
	}
	return nil
}

// Step moves the motor by steps at the configured speed and direction.
//
// It blocks until done or ctx is canceled.
func (s *Stepper) Step(ctx context.Context, steps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stepseq.Run(ctx, s.clock, steps, s.delay, func() error {
		s.pos.Move(s.dir)
		if err := stepseq.Write(s.coils, s.pos.Phase(stepseq.FullStep)); err != nil {
			return fmt.Errorf("l298: %w", err)
		}
		return nil
	})
}

// Position returns the current step within the revolution.
func (s *Stepper) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos.Step
}

// Halt disables the bridges.
func (s *Stepper) Halt() error {
	return s.Enable(false)
}

var _ conn.Resource = &DC{}
var _ conn.Resource = &Stepper{}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package grovemd controls a Seeed Grove I²C motor driver (L298 behind a
// microcontroller), driving either two DC motors or one stepper motor.
//
// Every command is a 3 bytes packet: a register then two data bytes, unused
// data bytes being padded with a no-op value.
//
// Documentation
//
// http://wiki.seeedstudio.com/Grove-I2C_Motor_Driver_V1.3/
package grovemd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/upm/v3/internal/stepseq"
)

// Registers.
const (
	RegSetSpeed        = 0x82
	RegSetPWMFreq      = 0x84
	RegSetDirection    = 0xAA
	RegSetMotorA       = 0xA1
	RegSetMotorB       = 0xA5
	RegStepperEnable   = 0x1A
	RegStepperDisable  = 0x1B
	RegStepperNumSteps = 0x1C
)

const noop = 0x01

// DCDirection is the direction of a DC motor.
type DCDirection uint8

// DC motor directions.
const (
	CW  DCDirection = 0x01
	CCW DCDirection = 0x02
)

// StepDirection is the direction of the stepper motor.
type StepDirection uint8

// Stepper directions.
const (
	StepCW  StepDirection = 0x00
	StepCCW StepDirection = 0x01
)

// StepMode selects how the stepper is driven.
type StepMode uint8

const (
	// Mode1 steps the motor from this driver by sequencing the bridge
	// directions. It works with the stock firmware.
	Mode1 StepMode = 0x00
	// Mode2 delegates stepping to the firmware; it requires the updated
	// firmware.
	Mode2 StepMode = 0x01
)

// stepPhases are the SET_DIRECTION values sequenced in Mode1.
var stepPhases = []uint8{0b0101, 0b0110, 0b1010, 0b1001}

// DefaultPrescale is the PWM frequency prescaler set by the firmware at boot.
const DefaultPrescale = 0x03

// Opts holds the configuration options.
type Opts struct {
	Addr uint16
	// Clock paces Mode1 stepping. Defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Addr: 0x0F,
}

// New returns a handle to a Grove I²C motor driver.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultOpts.Addr
	}
	c := opts.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	d := &Dev{
		d:     &i2c.Dev{Bus: b, Addr: addr},
		clock: c,
		pos:   stepseq.Position{StepsPerRev: 200},
		dir:   1,
	}
	return d, nil
}

// Dev is a handle to a Grove I²C motor driver.
type Dev struct {
	d     conn.Conn
	clock clockwork.Clock

	mu    sync.Mutex
	mode  StepMode
	pos   stepseq.Position
	dir   int
	delay time.Duration
	total int
}

func (d *Dev) String() string {
	return fmt.Sprintf("GroveMD{%s}", d.d)
}

// WritePacket sends one command.
func (d *Dev) WritePacket(reg, d1, d2 uint8) error {
	if err := d.d.Tx([]byte{reg, d1, d2}, nil); err != nil {
		return fmt.Errorf("grovemd: %w", err)
	}
	return nil
}

// SetMotorSpeeds sets the speed of both DC motors, 0 to 255.
func (d *Dev) SetMotorSpeeds(a, b uint8) error {
	return d.WritePacket(RegSetSpeed, a, b)
}

// SetPWMFrequencyPrescale sets the PWM frequency prescaler.
func (d *Dev) SetPWMFrequencyPrescale(p uint8) error {
	return d.WritePacket(RegSetPWMFreq, p, noop)
}

// SetMotorDirections sets the direction of both DC motors.
func (d *Dev) SetMotorDirections(a, b DCDirection) error {
	return d.WritePacket(RegSetDirection, uint8(b&3)<<2|uint8(a&3), noop)
}

// ConfigStepper selects the stepper geometry and driving mode.
func (d *Dev) ConfigStepper(stepsPerRev int, mode StepMode) error {
	if stepsPerRev <= 0 {
		return errors.New("grovemd: invalid steps per revolution")
	}
	if mode != Mode1 && mode != Mode2 {
		return fmt.Errorf("grovemd: invalid step mode %d", mode)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pos = stepseq.Position{StepsPerRev: stepsPerRev}
	d.mode = mode
	d.dir = 1
	d.total = 0
	return nil
}

// SetStepperSteps sets the number of steps run by the next EnableStepper.
//
// In Mode2 the firmware only accepts 1 to 255 steps and the value is clamped.
func (d *Dev) SetStepperSteps(steps int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == Mode1 {
		if steps < 0 {
			return errors.New("grovemd: invalid step count")
		}
		d.total = steps
		return nil
	}
	if steps < 1 {
		steps = 1
	}
	if steps > 255 {
		steps = 255
	}
	return d.WritePacket(RegStepperNumSteps, uint8(steps), noop)
}

// EnableStepper starts the stepper in dir at rpm.
//
// In Mode1 it blocks until the steps set with SetStepperSteps are done or ctx
// is canceled, then stops the motor. In Mode2 the firmware runs the steps and
// it returns immediately.
func (d *Dev) EnableStepper(ctx context.Context, dir StepDirection, rpm uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == Mode2 {
		return d.WritePacket(RegStepperEnable, uint8(dir), rpm)
	}
	delay, err := stepseq.Delay(d.pos.StepsPerRev, int(rpm))
	if err != nil {
		return fmt.Errorf("grovemd: %w", err)
	}
	d.delay = delay
	d.dir = 1
	if dir == StepCCW {
		d.dir = -1
	}
	if err := d.SetMotorSpeeds(255, 255); err != nil {
		return err
	}
	err = stepseq.Run(ctx, d.clock, d.total, d.delay, func() error {
		d.pos.Move(d.dir)
		return d.WritePacket(RegSetDirection, d.pos.Phase(stepPhases), noop)
	})
	if err2 := d.stop(); err == nil {
		err = err2
	}
	return err
}

// DisableStepper stops the stepper.
func (d *Dev) DisableStepper() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == Mode2 {
		return d.WritePacket(RegStepperDisable, noop, noop)
	}
	return d.stop()
}

// Position returns the current step within the revolution in Mode1.
func (d *Dev) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos.Step
}

// Halt stops all the motors.
func (d *Dev) Halt() error {
	return d.SetMotorSpeeds(0, 0)
}

func (d *Dev) stop() error {
	if err := d.SetMotorSpeeds(0, 0); err != nil {
		return err
	}
	return d.WritePacket(RegSetDirection, 0, noop)
}

var _ conn.Resource = &Dev{}

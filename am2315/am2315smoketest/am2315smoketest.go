// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package am2315smoketest is leveraged by upm-smoketest to verify that an
// AM2315 is working as expected.
package am2315smoketest

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/upm/v3/am2315"
)

// SmokeTest is imported by upm-smoketest.
type SmokeTest struct {
}

// Name implements the SmokeTest interface.
func (s *SmokeTest) Name() string {
	return "am2315"
}

// Description implements the SmokeTest interface.
func (s *SmokeTest) Description() string {
	return "Tests AM2315 humidity and temperature sensor"
}

// Run implements the SmokeTest interface.
func (s *SmokeTest) Run(f *flag.FlagSet, args []string) (err error) {
	busName := f.String("i2c", "", "I²C bus to use")
	if err := f.Parse(args); err != nil {
		return err
	}
	if f.NArg() != 0 {
		f.Usage()
		return errors.New("unrecognized arguments")
	}

	b, err := i2creg.Open(*busName)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := b.Close(); err == nil {
			err = err2
		}
	}()

	d, err := am2315.New(b, nil)
	if err != nil {
		return err
	}
	fmt.Printf("  %s: model %#04x version %#02x id %#08x\n", d, d.Model(), d.Version(), d.ID())
	var e physic.Env
	if err = d.Sense(&e); err != nil {
		return err
	}
	fmt.Printf("  %s %s (%.1fF)\n", e.Humidity, e.Temperature, e.Temperature.Fahrenheit())
	if e.Humidity > 100*physic.PercentRH {
		return fmt.Errorf("humidity %s out of range", e.Humidity)
	}
	if c := e.Temperature.Celsius(); c < -40 || c > 125 {
		return fmt.Errorf("temperature %s out of range", e.Temperature)
	}

	fmt.Printf("  Self test (takes about 20s):\n")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err = d.SelfTest(ctx); err != nil {
		if errors.Is(err, am2315.ErrStuck) {
			// A stable room can legitimately produce identical readings.
			fmt.Printf("    warning: %v\n", err)
			return nil
		}
		return err
	}
	fmt.Printf("    OK\n")
	return d.Halt()
}

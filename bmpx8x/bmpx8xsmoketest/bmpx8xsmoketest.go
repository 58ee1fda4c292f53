// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bmpx8xsmoketest is leveraged by upm-smoketest to verify that a
// BMP085/BMP180 (or a GY-65 board) is working as expected.
package bmpx8xsmoketest

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/upm/v3/bmpx8x"
)

// SmokeTest is imported by upm-smoketest.
type SmokeTest struct {
}

// Name implements the SmokeTest interface.
func (s *SmokeTest) Name() string {
	return "bmpx8x"
}

// Description implements the SmokeTest interface.
func (s *SmokeTest) Description() string {
	return "Tests BMP085/BMP180 pressure sensor (GY-65)"
}

// Run implements the SmokeTest interface.
func (s *SmokeTest) Run(f *flag.FlagSet, args []string) (err error) {
	busName := f.String("i2c", "", "I²C bus to use")
	alt := f.Float64("alt", 0, "altitude of the sensor in meters")
	verbose := f.Bool("v", false, "log every I²C transaction")
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
	var bus i2c.Bus = b
	if *verbose {
		bus = &loggingBus{b}
	}

	for _, os := range []bmpx8x.Oversampling{bmpx8x.UltraLowPower, bmpx8x.Standard, bmpx8x.HighRes, bmpx8x.UltraHighRes} {
		if err = senseTest(bus, os, *alt); err != nil {
			return err
		}
	}
	return nil
}

func senseTest(bus i2c.Bus, os bmpx8x.Oversampling, alt float64) error {
	fmt.Printf("  %s:\n", os)
	d, err := bmpx8x.New(bus, &bmpx8x.Opts{Oversampling: os})
	if err != nil {
		return err
	}
	var e physic.Env
	start := time.Now()
	if err := d.Sense(&e); err != nil {
		return err
	}
	fmt.Printf("    %s %s %s\n", time.Since(start), e.Temperature, e.Pressure)
	if e.Pressure < 30*physic.KiloPascal || e.Pressure > 110*physic.KiloPascal {
		return fmt.Errorf("pressure %s out of range", e.Pressure)
	}
	if c := e.Temperature.Celsius(); c < -20 || c > 60 {
		return fmt.Errorf("temperature %s out of range", e.Temperature)
	}
	sl := bmpx8x.SeaLevelPressure(e.Pressure, alt)
	fmt.Printf("    sea level %s; altitude %.1fm\n", sl, bmpx8x.Altitude(e.Pressure, sl))
	return d.Halt()
}

// loggingBus logs every transaction.
type loggingBus struct {
	i2c.Bus
}

func (l *loggingBus) Tx(addr uint16, w, r []byte) error {
	start := time.Now()
	err := l.Bus.Tx(addr, w, r)
	fmt.Printf("    %s Tx(%#x, %#v, %#v) = %v\n", time.Since(start), addr, w, r, err)
	return err
}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sm130smoketest is leveraged by upm-smoketest to verify that a SM130
// RFID reader is working as expected.
package sm130smoketest

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/upm/v3/sm130"
)

// SmokeTest is imported by upm-smoketest.
type SmokeTest struct {
}

// Name implements the SmokeTest interface.
func (s *SmokeTest) Name() string {
	return "sm130"
}

// Description implements the SmokeTest interface.
func (s *SmokeTest) Description() string {
	return "Tests SM130 RFID reader, optionally reading a tag"
}

// Run implements the SmokeTest interface.
func (s *SmokeTest) Run(f *flag.FlagSet, args []string) (err error) {
	portName := f.String("port", "/dev/ttyMFD1", "serial port to use")
	baud := f.Int("baud", sm130.DefaultOpts.Baud, "reader baud rate")
	rstName := f.String("rst", "", "reset pin")
	wait := f.Duration("wait", 0, "wait this long for a tag to be presented")
	if err := f.Parse(args); err != nil {
		return err
	}
	if f.NArg() != 0 {
		f.Usage()
		return errors.New("unrecognized arguments")
	}

	p, err := serial.Open(*portName, &serial.Mode{BaudRate: *baud})
	if err != nil {
		return err
	}
	defer func() {
		if err2 := p.Close(); err == nil {
			err = err2
		}
	}()

	opts := sm130.Opts{Baud: *baud}
	if *rstName != "" {
		rst := gpioreg.ByName(*rstName)
		if rst == nil {
			return fmt.Errorf("invalid pin %q", *rstName)
		}
		opts.Reset = rst
	}
	d, err := sm130.New(p, &opts)
	if err != nil {
		return err
	}
	if opts.Reset != nil {
		if err = d.HardwareReset(); err != nil {
			return err
		}
		time.Sleep(500 * time.Millisecond)
	}
	v, err := d.FirmwareVersion()
	if err != nil {
		return err
	}
	fmt.Printf("  %s: firmware %q\n", d, v)
	if *wait == 0 {
		return nil
	}

	fmt.Printf("  Present a tag within %s\n", *wait)
	tag, err := d.WaitForTag(context.Background(), *wait)
	if err != nil {
		return err
	}
	fmt.Printf("  %s\n", tag)
	return d.HaltTag()
}

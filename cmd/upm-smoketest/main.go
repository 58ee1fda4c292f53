// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// upm-smoketest runs the smoke test of a driver against real hardware.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"periph.io/x/upm/v3"
	"periph.io/x/upm/v3/am2315/am2315smoketest"
	"periph.io/x/upm/v3/bmpx8x/bmpx8xsmoketest"
	"periph.io/x/upm/v3/sm130/sm130smoketest"
)

// SmokeTest must be implemented by a smoke test. It will be run by this
// executable.
type SmokeTest interface {
	// Name is the name of the smoke test, it is the name used on the command
	// line.
	Name() string
	// Description returns a short description to print when listing the tests.
	Description() string
	// Run runs the test and return an error in case of failure.
	Run(f *flag.FlagSet, args []string) error
}

// tests is the list of registered smoke tests.
var tests = []SmokeTest{
	&am2315smoketest.SmokeTest{},
	&bmpx8xsmoketest.SmokeTest{},
	&sm130smoketest.SmokeTest{},
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: upm-smoketest <args> <name> <test args>\n\n")
	flag.CommandLine.SetOutput(w)
	flag.PrintDefaults()
	fmt.Fprintf(w, "\nTests available:\n")
	names := make([]string, 0, len(tests))
	desc := map[string]string{}
	for _, t := range tests {
		names = append(names, t.Name())
		desc[t.Name()] = t.Description()
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %s\n", n, desc[n])
	}
}

func mainImpl() error {
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() == 0 {
		usage(os.Stderr)
		return errors.New("specify the test to run")
	}

	state, err := upm.Init()
	if err != nil {
		return err
	}
	for _, f := range state.Failed {
		log.Printf("driver %s failed: %v", f.D, f.Err)
	}

	name := flag.Arg(0)
	for _, t := range tests {
		if t.Name() != name {
			continue
		}
		f := flag.NewFlagSet(name, flag.ExitOnError)
		if err := t.Run(f, flag.Args()[1:]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Printf("Test %s successful\n", name)
		return nil
	}
	return fmt.Errorf("test %q not found", name)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "upm-smoketest: %s.\n", err)
		os.Exit(1)
	}
}

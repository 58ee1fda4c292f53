// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package upm is a collection of sensor and actuator drivers built on the
// periph.io conn interfaces.
//
// Each driver lives in its own package and takes an already opened bus,
// port or pin. Call Init first to load the host and board drivers that
// provide them.
package upm

import (
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/host/v3"
)

// Init calls host.Init() and returns it as-is.
//
// The only difference is that by calling upm.Init(), you are guaranteed to
// have the board drivers of this module implicitly loaded too.
func Init() (*driverreg.State, error) {
	return host.Init()
}

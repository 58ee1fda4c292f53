// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package edison

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/pin"
	"periph.io/x/conn/v3/pin/pinreg"
)

const (
	boardNameFile = "sys/devices/virtual/dmi/id/board_name"
	boardName     = "BODEGA BAY"
)

// ArduinoGPIO maps the Arduino breakout digital pins to the SoC GPIO numbers
// exposed through sysfs.
var ArduinoGPIO = [...]int{130, 131, 128, 12, 129, 13, 182, 48, 49, 183, 41, 43, 42, 40}

// Present returns true if an Intel Edison board is detected.
func Present() bool {
	if isX86 {
		return isEdison("/")
	}
	return false
}

func isEdison(root string) bool {
	b, err := os.ReadFile(path.Join(root, boardNameFile))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(b)) == boardName
}

// registerAliases names IO0 to IO13.
func registerAliases() error {
	for i, n := range ArduinoGPIO {
		if err := gpioreg.RegisterAlias(fmt.Sprintf("IO%d", i), fmt.Sprintf("GPIO%d", n)); err != nil {
			return err
		}
	}
	return nil
}

// registerHeaders registers the Arduino breakout digital header.
func registerHeaders() error {
	rows := make([][]pin.Pin, 0, len(ArduinoGPIO))
	for _, n := range ArduinoGPIO {
		var p pin.Pin = gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if p == nil {
			p = gpio.INVALID
		}
		rows = append(rows, []pin.Pin{p})
	}
	return pinreg.Register("ARDUINO", rows)
}

// driver implements periph.Driver.
type driver struct {
}

// String is the text representation of the board.
func (d *driver) String() string {
	return "edison"
}

// Prerequisites load drivers before the actual driver is loaded.
func (d *driver) Prerequisites() []string {
	return nil
}

// After lets the sysfs GPIO driver register the pins first.
func (d *driver) After() []string {
	return []string{"sysfs-gpio"}
}

// Init initializes the driver by checking its presence and if found, the
// aliases and the header are registered.
func (d *driver) Init() (bool, error) {
	if !Present() {
		return false, errors.New("Intel Edison board not detected")
	}
	if err := registerAliases(); err != nil {
		return true, fmt.Errorf("edison: %w", err)
	}
	if err := registerHeaders(); err != nil {
		return true, fmt.Errorf("edison: %w", err)
	}
	return true, nil
}

func init() {
	if isX86 {
		driverreg.MustRegister(&drv)
	}
}

var drv driver

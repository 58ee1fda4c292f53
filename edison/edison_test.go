// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package edison

import (
	"fmt"
	"os"
	"path"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/pin/pinreg"
)

func writeBoardName(t *testing.T, root, name string) string {
	if err := os.MkdirAll(path.Join(root, path.Dir(boardNameFile)), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path.Join(root, boardNameFile), []byte(name), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestIsEdison(t *testing.T) {
	if isEdison(t.TempDir()) {
		t.Fatal("missing file")
	}
	if !isEdison(writeBoardName(t, t.TempDir(), "BODEGA BAY\n")) {
		t.Fatal("expected Edison")
	}
	if isEdison(writeBoardName(t, t.TempDir(), "Galileo\n")) {
		t.Fatal("not an Edison")
	}
}

func TestRegister(t *testing.T) {
	// Only IO7 and IO8 exist.
	p48 := &gpiotest.Pin{N: "GPIO48", Num: 48}
	p49 := &gpiotest.Pin{N: "GPIO49", Num: 49}
	for _, p := range []gpio.PinIO{p48, p49} {
		if err := gpioreg.Register(p); err != nil {
			t.Fatal(err)
		}
	}
	defer func() {
		for i := range ArduinoGPIO {
			_ = gpioreg.Unregister(fmt.Sprintf("IO%d", i))
		}
		_ = pinreg.Unregister("ARDUINO")
		_ = gpioreg.Unregister("GPIO48")
		_ = gpioreg.Unregister("GPIO49")
	}()

	if err := registerAliases(); err != nil {
		t.Fatal(err)
	}
	p := gpioreg.ByName("IO7")
	if p == nil {
		t.Fatal("IO7 not found")
	}
	if r, ok := p.(gpio.RealPin); !ok || r.Real() != p48 {
		t.Fatalf("%s", p)
	}
	if gpioreg.ByName("IO0") != nil {
		t.Fatal("GPIO130 is not registered")
	}

	if err := registerHeaders(); err != nil {
		t.Fatal(err)
	}
	h := pinreg.All()["ARDUINO"]
	if len(h) != len(ArduinoGPIO) {
		t.Fatal(len(h))
	}
	if h[8][0] != p49 || h[0][0] != gpio.INVALID {
		t.Fatal(h[8][0], h[0][0])
	}
	if err := registerHeaders(); err == nil {
		t.Fatal("header registered twice")
	}
}

func TestDriver(t *testing.T) {
	if s := drv.String(); s != "edison" {
		t.Fatal(s)
	}
	if a := drv.After(); len(a) != 1 || a[0] != "sysfs-gpio" {
		t.Fatal(a)
	}
	if drv.Prerequisites() != nil {
		t.Fatal("unexpected prerequisites")
	}
}

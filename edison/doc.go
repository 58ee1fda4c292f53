// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package edison contains Intel Edison board logic.
//
// It names the Arduino breakout header pins IO0 to IO13 on top of the sysfs
// GPIO driver, so that drivers can be wired with gpioreg.ByName("IO7").
//
// # Physical
//
// https://www.intel.com/content/dam/support/us/en/documents/edison/sb/edisonarduino_hg_331191007.pdf
package edison

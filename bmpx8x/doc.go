// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bmpx8x controls a Bosch BMP085 or BMP180 barometric pressure sensor
// over I²C.
//
// The GY-65 breakout board carries a BMP085 and is supported as-is.
//
// Datasheet
//
// https://cdn-shop.adafruit.com/datasheets/BST-BMP180-DS000-09.pdf
package bmpx8x

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sm130 controls a SonMicro SM130 13.56MHz Mifare RFID reader over a
// serial port.
//
// Frames are 0xFF 0x00, a length covering the command and its data, the
// command, the data then an 8 bits sum of everything after the header.
//
// Build with the upm_sm130_debug tag to log every frame.
//
// Datasheet
//
// http://www.sonmicro.com/en/downloads/Mifare/um_sm130_a3.pdf
package sm130

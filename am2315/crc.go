// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package am2315

// crc16 is the Modbus CRC: initial value 0xFFFF, reflected polynomial 0xA001.
func crc16(b []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, c := range b {
		crc ^= uint16(c)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// appendCRC appends the CRC of b, low byte first.
func appendCRC(b []byte) []byte {
	c := crc16(b)
	return append(b, byte(c), byte(c>>8))
}

// checkCRC verifies the trailing two bytes of b.
func checkCRC(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	n := len(b) - 2
	c := crc16(b[:n])
	return b[n] == byte(c) && b[n+1] == byte(c>>8)
}

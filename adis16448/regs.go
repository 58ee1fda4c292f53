// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package adis16448

// Register map. Every register is a 16 bits word.
const (
	FlashCnt  = 0x00 // Flash memory write count
	XGyroOut  = 0x04 // X-axis gyroscope output
	YGyroOut  = 0x06 // Y-axis gyroscope output
	ZGyroOut  = 0x08 // Z-axis gyroscope output
	XAcclOut  = 0x0A // X-axis accelerometer output
	YAcclOut  = 0x0C // Y-axis accelerometer output
	ZAcclOut  = 0x0E // Z-axis accelerometer output
	XMagnOut  = 0x10 // X-axis magnetometer output
	YMagnOut  = 0x12 // Y-axis magnetometer output
	ZMagnOut  = 0x14 // Z-axis magnetometer output
	BaroOut   = 0x16 // Barometer pressure measurement, high word
	TempOut   = 0x18 // Internal temperature measurement
	XGyroOff  = 0x1A // X-axis gyroscope bias offset factor
	YGyroOff  = 0x1C // Y-axis gyroscope bias offset factor
	ZGyroOff  = 0x1E // Z-axis gyroscope bias offset factor
	XAcclOff  = 0x20 // X-axis acceleration bias offset factor
	YAcclOff  = 0x22 // Y-axis acceleration bias offset factor
	ZAcclOff  = 0x24 // Z-axis acceleration bias offset factor
	XMagnHIC  = 0x26 // X-axis magnetometer, hard iron factor
	YMagnHIC  = 0x28 // Y-axis magnetometer, hard iron factor
	ZMagnHIC  = 0x2A // Z-axis magnetometer, hard iron factor
	XMagnSIC  = 0x2C // X-axis magnetometer, soft iron factor
	YMagnSIC  = 0x2E // Y-axis magnetometer, soft iron factor
	ZMagnSIC  = 0x30 // Z-axis magnetometer, soft iron factor
	GPIOCtrl  = 0x32 // GPIO control
	MscCtrl   = 0x34 // Miscellaneous control
	SmplPrd   = 0x36 // Sample clock/decimation filter control
	SensAvg   = 0x38 // Digital filter control
	SeqCnt    = 0x3A // MSC_CTRL[11] sequential mode counter
	DiagStat  = 0x3C // System status
	GlobCmd   = 0x3E // System command
	AlmMag1   = 0x40 // Alarm 1 amplitude threshold
	AlmMag2   = 0x42 // Alarm 2 amplitude threshold
	AlmSmpl1  = 0x44 // Alarm 1 sample size
	AlmSmpl2  = 0x46 // Alarm 2 sample size
	AlmCtrl   = 0x48 // Alarm control
	LotID1    = 0x52 // Lot identification number
	LotID2    = 0x54 // Lot identification number
	ProdID    = 0x56 // Product identifier
	SerialNum = 0x58 // Lot-specific serial number
)

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package zfm20

import "fmt"

// Error is a confirmation code returned by the module.
type Error byte

// Confirmation codes.
const (
	ErrPacketRx        Error = 0x01
	ErrNoFinger        Error = 0x02
	ErrImageFailed     Error = 0x03
	ErrTooMessy        Error = 0x06
	ErrFewFeatures     Error = 0x07
	ErrNoMatch         Error = 0x08
	ErrNotFound        Error = 0x09
	ErrEnrollMismatch  Error = 0x0a
	ErrBadLocation     Error = 0x0b
	ErrDB              Error = 0x0c
	ErrUploadFeature   Error = 0x0d
	ErrNoMorePackets   Error = 0x0e
	ErrUploadImage     Error = 0x0f
	ErrDeleteTemplate  Error = 0x10
	ErrEmptyDB         Error = 0x11
	ErrInvalidPassword Error = 0x13
	ErrInvalidImage    Error = 0x15
	ErrFlash           Error = 0x18
	ErrInvalidRegister Error = 0x1a
	ErrInvalidAddress  Error = 0x20
	ErrNeedsPassword   Error = 0x21
	ErrInternal        Error = 0xff
)

var errorNames = map[Error]string{
	ErrPacketRx:        "packet receive error",
	ErrNoFinger:        "no finger on the sensor",
	ErrImageFailed:     "failed to enroll the finger",
	ErrTooMessy:        "image too messy",
	ErrFewFeatures:     "image has too few feature points",
	ErrNoMatch:         "fingerprints do not match",
	ErrNotFound:        "fingerprint not found",
	ErrEnrollMismatch:  "failed to combine character files",
	ErrBadLocation:     "page id beyond the library",
	ErrDB:              "error reading template from library",
	ErrUploadFeature:   "error uploading template",
	ErrNoMorePackets:   "can not receive following data packets",
	ErrUploadImage:     "error uploading image",
	ErrDeleteTemplate:  "failed to delete the template",
	ErrEmptyDB:         "failed to clear the library",
	ErrInvalidPassword: "wrong password",
	ErrInvalidImage:    "no valid primary image",
	ErrFlash:           "error writing flash",
	ErrInvalidRegister: "invalid register number",
	ErrInvalidAddress:  "wrong address",
	ErrNeedsPassword:   "password must be verified",
	ErrInternal:        "internal error",
}

func (e Error) Error() string {
	if s, ok := errorNames[e]; ok {
		return "zfm20: " + s
	}
	return fmt.Sprintf("zfm20: confirmation code 0x%02x", byte(e))
}

// codeErr converts a confirmation code into an error, nil for success.
func codeErr(c byte) error {
	if c == 0 {
		return nil
	}
	return Error(c)
}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sm130

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the reader does not answer in time.
	ErrTimeout = errors.New("sm130: timeout waiting for response")
	// ErrFrame is returned on a malformed response.
	ErrFrame = errors.New("sm130: invalid response frame")
)

// Error is an error code reported by the reader for a command.
type Error struct {
	Cmd  Cmd
	Code byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("sm130: %s: %s", e.Cmd, e.Message())
}

// Message describes the code in the context of the command.
func (e *Error) Message() string {
	if m, ok := errorMessages[e.Cmd][e.Code]; ok {
		return m
	}
	return fmt.Sprintf("unknown error code %q", e.Code)
}

// NoTag returns true when the error means no tag is in the field.
func (e *Error) NoTag() bool {
	return e.Code == 'N'
}

var errorMessages = map[Cmd]map[byte]string{
	CmdSelectTag: {
		'N': "no tag present",
		'U': "access failed, RF field is off",
	},
	CmdAuthenticate: {
		'N': "no tag present, or login failed",
		'U': "login failed",
		'E': "invalid key format in EEPROM",
	},
	CmdRead16: {
		'N': "no tag present",
		'F': "read failed",
	},
	CmdReadValue: {
		'N': "no tag present",
		'F': "read failed",
		'I': "invalid value block",
	},
	CmdWrite16: {
		'F': "write failed",
		'N': "no tag present",
		'U': "read after write failed",
		'X': "unable to read after write",
	},
	CmdWriteValue: {
		'F': "read failed during verification",
		'N': "no tag present",
		'I': "invalid value block",
	},
	CmdWrite4: {
		'F': "write failed",
		'N': "no tag present",
		'U': "read after write failed",
		'X': "unable to read after write",
	},
	CmdWriteKey: {
		'N': "write master key failed",
	},
	CmdIncValue: {
		'F': "read failed during verification",
		'N': "no tag present",
		'I': "invalid value block",
	},
	CmdDecValue: {
		'F': "read failed during verification",
		'N': "no tag present",
		'I': "invalid value block",
	},
	CmdHaltTag: {
		'U': "can not halt, RF field is off",
	},
}

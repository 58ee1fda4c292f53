// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package firmata implements the sysex framing of the Firmata protocol.
//
// A sysex message is StartSysex, a command byte, 7 bits data bytes then
// EndSysex. Values wider than 7 bits are sent as pairs, least significant
// 7 bits first.
//
// Protocol
//
// https://github.com/firmata/protocol/blob/master/protocol.md
package firmata

import (
	"bufio"
	"fmt"
	"io"
)

// Framing bytes.
const (
	StartSysex = 0xF0
	EndSysex   = 0xF7
)

// MaxSysex is the longest sysex message accepted by Reader. Longer messages
// are dropped.
const MaxSysex = 1024

// Sysex returns a framed sysex message.
//
// It panics if cmd or a data byte has its high bit set.
func Sysex(cmd byte, data ...byte) []byte {
	b := make([]byte, 0, len(data)+3)
	b = append(b, StartSysex, check7(cmd))
	for _, v := range data {
		b = append(b, check7(v))
	}
	return append(b, EndSysex)
}

// Encode appends v as a 7 bits pair.
func Encode(b []byte, v uint16) []byte {
	return append(b, byte(v&0x7F), byte((v>>7)&0x7F))
}

// Decode returns the 14 bits value of a 7 bits pair.
func Decode(lsb, msb byte) uint16 {
	return uint16(lsb&0x7F) | uint16(msb&0x7F)<<7
}

// DecodeAll decodes consecutive 7 bits pairs. A trailing odd byte is ignored.
func DecodeAll(b []byte) []uint16 {
	out := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		out = append(out, Decode(b[i], b[i+1]))
	}
	return out
}

// Reader splits a byte stream into sysex messages.
type Reader struct {
	r   *bufio.Reader
	buf []byte
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next sysex message, without the framing bytes.
//
// Bytes outside of a sysex message are skipped. A StartSysex in the middle of
// a message restarts it and a message longer than MaxSysex is dropped. Only
// errors from the underlying reader are returned. The returned slice is valid
// until the next call.
func (r *Reader) Next() ([]byte, error) {
	in := false
	r.buf = r.buf[:0]
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch {
		case c == StartSysex:
			if in && len(r.buf) != 0 {
				logf("firmata: dropped truncated sysex % X", r.buf)
			}
			in = true
			r.buf = r.buf[:0]
		case !in:
		case c == EndSysex:
			if len(r.buf) == 0 {
				in = false
				continue
			}
			return r.buf, nil
		case len(r.buf) == MaxSysex:
			logf("firmata: dropped sysex longer than %d bytes", MaxSysex)
			in = false
			r.buf = r.buf[:0]
		default:
			r.buf = append(r.buf, c)
		}
	}
}

func check7(b byte) byte {
	if b&0x80 != 0 {
		panic(fmt.Sprintf("firmata: byte 0x%02X is not 7 bits", b))
	}
	return b
}

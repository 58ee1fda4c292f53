// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package zfm20 controls a ZFM-20 class optical fingerprint module over a
// serial port.
//
// Enrolling a finger is GenerateImage, Image2TZ(1), GenerateImage again,
// Image2TZ(2), CreateModel then StoreModel(1, id).
//
// Build with the upm_zfm20_debug tag to log every packet.
package zfm20

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3"
)

// Packet types.
const (
	pktCommand = 0x01
	pktData    = 0x02
	pktAck     = 0x07
	pktEndData = 0x08
)

// Commands.
const (
	cmdGenImage       = 0x01
	cmdImg2TZ         = 0x02
	cmdMatch          = 0x03
	cmdSearch         = 0x04
	cmdRegModel       = 0x05
	cmdStore          = 0x06
	cmdDeleteTemplate = 0x0c
	cmdEmptyDB        = 0x0d
	cmdSetPassword    = 0x12
	cmdVerifyPassword = 0x13
	cmdSetAddress     = 0x15
	cmdTemplateCount  = 0x1d
)

const (
	start1 = 0xEF
	start2 = 0x01

	maxPacket = 256
	timeout   = 5 * time.Second

	ackLen      = 12
	ackCountLen = 14
	ackSearch   = 16

	// searchPages is the last library page searched.
	searchPages = 0x00a3
)

// ErrTimeout is returned when the module does not answer in time.
var ErrTimeout = errors.New("zfm20: timed out waiting for packet")

// Opts holds the configuration options.
type Opts struct {
	// Baud defaults to 57600.
	Baud int
	// Password is the 32 bits module password.
	Password uint32
	// Address is the 32 bits module address.
	Address uint32
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Baud:     57600,
	Password: 0x00000000,
	Address:  0xFFFFFFFF,
}

// New returns a handle to a ZFM-20 fingerprint module on the serial port p.
func New(p serial.Port, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	baud := opts.Baud
	if baud == 0 {
		baud = DefaultOpts.Baud
	}
	if err := p.SetMode(&serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}); err != nil {
		return nil, fmt.Errorf("zfm20: %w", err)
	}
	return &Dev{p: p, password: opts.Password, address: opts.Address}, nil
}

// Dev is a handle to a ZFM-20 fingerprint module.
type Dev struct {
	p        serial.Port
	mu       sync.Mutex
	password uint32
	address  uint32
}

func (d *Dev) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("ZFM20{%s, 0x%08X}", d.p, d.address)
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// VerifyPassword sends the configured password to the module.
func (d *Dev) VerifyPassword() error {
	d.mu.Lock()
	pwd := d.password
	d.mu.Unlock()
	r, err := d.command(ackLen, with32(cmdVerifyPassword, pwd)...)
	if err != nil {
		return err
	}
	return codeErr(r[9])
}

// SetPassword changes the module password.
func (d *Dev) SetPassword(pwd uint32) error {
	r, err := d.command(ackLen, with32(cmdSetPassword, pwd)...)
	if err != nil {
		return err
	}
	if err := codeErr(r[9]); err != nil {
		return err
	}
	d.mu.Lock()
	d.password = pwd
	d.mu.Unlock()
	return nil
}

// SetAddress changes the module address. Following packets use the new
// address.
func (d *Dev) SetAddress(addr uint32) error {
	r, err := d.command(ackLen, with32(cmdSetAddress, addr)...)
	if err != nil {
		return err
	}
	if err := codeErr(r[9]); err != nil {
		return err
	}
	d.mu.Lock()
	d.address = addr
	d.mu.Unlock()
	return nil
}

// TemplateCount returns the number of templates stored in the library.
func (d *Dev) TemplateCount() (int, error) {
	r, err := d.command(ackCountLen, cmdTemplateCount)
	if err != nil {
		return 0, err
	}
	if err := codeErr(r[9]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(r[10:])), nil
}

// GenerateImage captures a fingerprint image. It returns ErrNoFinger when no
// finger is on the sensor.
func (d *Dev) GenerateImage() error {
	return d.simple(ackLen, cmdGenImage)
}

// Image2TZ converts the captured image into a character file in slot 1 or 2.
func (d *Dev) Image2TZ(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return d.simple(ackLen, cmdImg2TZ, byte(slot))
}

// CreateModel combines the character files in slots 1 and 2 into a model.
func (d *Dev) CreateModel() error {
	return d.simple(ackLen, cmdRegModel)
}

// StoreModel stores the model in slot into the library at id.
func (d *Dev) StoreModel(slot int, id uint16) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return d.simple(ackLen, cmdStore, byte(slot), byte(id>>8), byte(id))
}

// DeleteModel deletes the model stored at id.
func (d *Dev) DeleteModel(id uint16) error {
	return d.simple(ackLen, cmdDeleteTemplate, byte(id>>8), byte(id), 0x00, 0x01)
}

// DeleteDB clears the whole library.
func (d *Dev) DeleteDB() error {
	return d.simple(ackLen, cmdEmptyDB)
}

// Search looks for the character file in slot in the library. It returns the
// matching id and score, or ErrNotFound.
func (d *Dev) Search(slot int) (id, score uint16, err error) {
	if err := checkSlot(slot); err != nil {
		return 0, 0, err
	}
	r, err := d.command(ackSearch, cmdSearch, byte(slot), 0x00, 0x00, byte(searchPages>>8), byte(searchPages))
	if err != nil {
		return 0, 0, err
	}
	if err := codeErr(r[9]); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint16(r[10:]), binary.BigEndian.Uint16(r[12:]), nil
}

// Match compares the character files in slots 1 and 2 and returns the score.
// It returns ErrNoMatch when they differ.
func (d *Dev) Match() (uint16, error) {
	r, err := d.command(ackCountLen, cmdMatch)
	if err != nil {
		return 0, err
	}
	if err := codeErr(r[9]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r[10:]), nil
}

//

func checkSlot(slot int) error {
	if slot != 1 && slot != 2 {
		return fmt.Errorf("zfm20: slot must be 1 or 2, got %d", slot)
	}
	return nil
}

func with32(cmd byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32([]byte{cmd}, v)
}

func (d *Dev) simple(n int, payload ...byte) error {
	r, err := d.command(n, payload...)
	if err != nil {
		return err
	}
	return codeErr(r[9])
}

// command sends a command packet and reads an acknowledge packet of n bytes.
func (d *Dev) command(n int, payload ...byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writePacket(pktCommand, payload); err != nil {
		return nil, err
	}
	return d.readAck(n)
}

func (d *Dev) writePacket(typ byte, payload []byte) error {
	if len(payload)+11 > maxPacket {
		return fmt.Errorf("zfm20: payload of %d bytes is too long", len(payload))
	}
	b := make([]byte, 0, len(payload)+11)
	b = append(b, start1, start2)
	b = binary.BigEndian.AppendUint32(b, d.address)
	b = append(b, typ)
	b = binary.BigEndian.AppendUint16(b, uint16(len(payload)+2))
	b = append(b, payload...)
	b = binary.BigEndian.AppendUint16(b, checksum(b[6:]))
	logf("zfm20: write % X", b)
	// Drop anything stale before the command.
	if err := d.p.ResetInputBuffer(); err != nil {
		return fmt.Errorf("zfm20: %w", err)
	}
	if _, err := d.p.Write(b); err != nil {
		return fmt.Errorf("zfm20: %w", err)
	}
	if err := d.p.Drain(); err != nil {
		return fmt.Errorf("zfm20: %w", err)
	}
	return nil
}

func (d *Dev) readAck(n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	tmp := make([]byte, n)
	deadline := time.Now().Add(timeout)
	for len(buf) < n {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, ErrTimeout
		}
		if err := d.p.SetReadTimeout(left); err != nil {
			return nil, fmt.Errorf("zfm20: %w", err)
		}
		c, err := d.p.Read(tmp[:n-len(buf)])
		if err != nil {
			return nil, fmt.Errorf("zfm20: %w", err)
		}
		buf = append(buf, tmp[:c]...)
	}
	logf("zfm20: read % X", buf)
	if buf[0] != start1 || buf[1] != start2 {
		return nil, fmt.Errorf("zfm20: invalid packet header % X", buf[:2])
	}
	if buf[6] != pktAck {
		return nil, fmt.Errorf("zfm20: invalid ack code 0x%02x", buf[6])
	}
	if l := int(binary.BigEndian.Uint16(buf[7:])); l+9 != n {
		return nil, fmt.Errorf("zfm20: ack length %d, expected %d", l, n-9)
	}
	if got, want := binary.BigEndian.Uint16(buf[n-2:]), checksum(buf[6:n-2]); got != want {
		return nil, fmt.Errorf("zfm20: ack checksum 0x%04X, expected 0x%04X", got, want)
	}
	return buf, nil
}

// checksum sums the packet type, length and payload.
func checksum(b []byte) uint16 {
	var s uint16
	for _, v := range b {
		s += uint16(v)
	}
	return s
}

var _ conn.Resource = &Dev{}

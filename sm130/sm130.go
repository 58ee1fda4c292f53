// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sm130

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.bug.st/serial"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// Cmd is a reader command code.
type Cmd byte

// Commands supported by the reader.
const (
	CmdReset        Cmd = 0x80
	CmdVersion      Cmd = 0x81
	CmdSeekTag      Cmd = 0x82
	CmdSelectTag    Cmd = 0x83
	CmdAuthenticate Cmd = 0x85
	CmdRead16       Cmd = 0x86
	CmdReadValue    Cmd = 0x87
	CmdWrite16      Cmd = 0x89
	CmdWriteValue   Cmd = 0x8a
	CmdWrite4       Cmd = 0x8b
	CmdWriteKey     Cmd = 0x8c
	CmdIncValue     Cmd = 0x8d
	CmdDecValue     Cmd = 0x8e
	CmdAntennaPower Cmd = 0x90
	CmdReadPort     Cmd = 0x91
	CmdWritePort    Cmd = 0x92
	CmdHaltTag      Cmd = 0x93
	CmdSetBaud      Cmd = 0x94
	CmdSleep        Cmd = 0x96
)

var cmdNames = map[Cmd]string{
	CmdReset:        "reset",
	CmdVersion:      "firmware version",
	CmdSeekTag:      "seek tag",
	CmdSelectTag:    "select tag",
	CmdAuthenticate: "authenticate",
	CmdRead16:       "read block",
	CmdReadValue:    "read value block",
	CmdWrite16:      "write block",
	CmdWriteValue:   "write value block",
	CmdWrite4:       "write 4 byte block",
	CmdWriteKey:     "write key",
	CmdIncValue:     "increment value",
	CmdDecValue:     "decrement value",
	CmdAntennaPower: "antenna power",
	CmdReadPort:     "read port",
	CmdWritePort:    "write port",
	CmdHaltTag:      "halt tag",
	CmdSetBaud:      "set baud rate",
	CmdSleep:        "sleep",
}

func (c Cmd) String() string {
	if s, ok := cmdNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Cmd(0x%02x)", byte(c))
}

// TagType is the kind of Mifare tag in the field.
type TagType byte

// Tag types reported by select.
const (
	TagNone       TagType = 0x00
	TagUltralight TagType = 0x01
	Tag1K         TagType = 0x02
	Tag4K         TagType = 0x03
	TagUnknown    TagType = 0xff
)

func (t TagType) String() string {
	switch t {
	case TagUltralight:
		return "MiFare Ultralight"
	case Tag1K:
		return "MiFare 1K"
	case Tag4K:
		return "MiFare 4K"
	case TagUnknown:
		return "Unknown Tag Type"
	default:
		return "Invalid Tag Type"
	}
}

// KeyType selects the key used to authenticate a block.
type KeyType byte

// Key types. KeyEEPROMA0 + n selects key A number n stored in the reader and
// KeyEEPROMB0 + n key B number n.
const (
	KeyEEPROMA0       KeyType = 0x10
	KeyEEPROMB0       KeyType = 0x20
	KeyA              KeyType = 0xaa
	KeyB              KeyType = 0xbb
	KeyTransportAndFF KeyType = 0xff
)

// Tag is the result of a successful select.
type Tag struct {
	Type TagType
	UID  []byte
}

func (t *Tag) String() string {
	return fmt.Sprintf("%s %X", t.Type, t.UID)
}

const (
	maxFrame        = 64
	responseTimeout = time.Second
	baudSwitchDelay = 100 * time.Millisecond
	resetPulse      = 100 * time.Millisecond
	pollInterval    = 100 * time.Millisecond
)

var baudCodes = map[int]byte{
	9600:   0x00,
	19200:  0x01,
	38400:  0x02,
	57600:  0x03,
	115200: 0x04,
}

// Opts holds the configuration options.
type Opts struct {
	// Baud is the current baud rate of the reader. It defaults to 19200.
	Baud int
	// Reset is the optional hardware reset pin.
	Reset gpio.PinOut
	// Clock paces WaitForTag. It defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Baud: 19200,
}

// New returns a handle to a SM130 reader on the serial port p.
//
// The port is configured in 8N1 at opts.Baud.
func New(p serial.Port, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{p: p, rst: opts.Reset, baud: opts.Baud, clk: opts.Clock}
	if d.baud == 0 {
		d.baud = DefaultOpts.Baud
	}
	if _, ok := baudCodes[d.baud]; !ok {
		return nil, fmt.Errorf("sm130: unsupported baud rate %d", d.baud)
	}
	if d.clk == nil {
		d.clk = clockwork.NewRealClock()
	}
	if err := d.setBaud(d.baud); err != nil {
		return nil, err
	}
	if d.rst != nil {
		if err := d.rst.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("sm130: %w", err)
		}
	}
	return d, nil
}

// Dev is a handle to a SM130 RFID reader.
type Dev struct {
	p    serial.Port
	rst  gpio.PinOut
	clk  clockwork.Clock
	mu   sync.Mutex
	baud int
}

func (d *Dev) String() string {
	return fmt.Sprintf("SM130{%s}", d.p)
}

// Halt implements conn.Resource.
//
// It puts the RF field to sleep.
func (d *Dev) Halt() error {
	return d.Sleep()
}

// Baud returns the baud rate currently used on the port.
func (d *Dev) Baud() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baud
}

// Reset performs a software reset.
func (d *Dev) Reset() error {
	_, err := d.command(CmdReset, nil)
	return err
}

// HardwareReset pulses the reset pin high.
func (d *Dev) HardwareReset() error {
	if d.rst == nil {
		return errors.New("sm130: no reset pin")
	}
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("sm130: %w", err)
	}
	time.Sleep(resetPulse)
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("sm130: %w", err)
	}
	return nil
}

// FirmwareVersion returns the firmware version string.
func (d *Dev) FirmwareVersion() (string, error) {
	r, err := d.command(CmdVersion, nil)
	if err != nil {
		return "", err
	}
	return string(r[2:]), nil
}

// Seek asks the reader to look for a tag. The reader answers once a tag is
// found, use WaitForTag to poll instead.
func (d *Dev) Seek() error {
	_, err := d.command(CmdSeekTag, nil)
	return err
}

// Select selects the tag in the field and returns its type and UID.
func (d *Dev) Select() (*Tag, error) {
	r, err := d.commandStatus(CmdSelectTag, nil)
	if err != nil {
		return nil, err
	}
	if r[0] == 2 {
		return nil, &Error{Cmd: CmdSelectTag, Code: r[2]}
	}
	n := 7
	if r[0] == 6 {
		n = 4
	}
	if len(r) < 3+n {
		return nil, fmt.Errorf("sm130: select tag: short response %d bytes", len(r))
	}
	return &Tag{Type: TagType(r[2]), UID: append([]byte(nil), r[3:3+n]...)}, nil
}

// Authenticate logs into the sector containing block.
//
// key must be 6 bytes for KeyA and KeyB and is ignored otherwise.
func (d *Dev) Authenticate(block uint8, kt KeyType, key []byte) error {
	data := []byte{block, byte(kt)}
	if kt == KeyA || kt == KeyB {
		if len(key) != 6 {
			return fmt.Errorf("sm130: authenticate: key must be 6 bytes, got %d", len(key))
		}
		data = append(data, key...)
	}
	return d.expectL(CmdAuthenticate, data)
}

// ReadBlock16 reads a 16 bytes block.
func (d *Dev) ReadBlock16(block uint8) ([]byte, error) {
	r, err := d.commandStatus(CmdRead16, []byte{block})
	if err != nil {
		return nil, err
	}
	if r[0] == 2 {
		return nil, &Error{Cmd: CmdRead16, Code: r[2]}
	}
	return append([]byte(nil), r[3:]...), nil
}

// ReadValueBlock reads a value block.
func (d *Dev) ReadValueBlock(block uint8) (int32, error) {
	return d.valueCommand(CmdReadValue, []byte{block})
}

// WriteBlock16 writes a 16 bytes block.
func (d *Dev) WriteBlock16(block uint8, data []byte) error {
	if len(data) != 16 {
		return fmt.Errorf("sm130: write block: data must be 16 bytes, got %d", len(data))
	}
	return d.expectBlock(CmdWrite16, append([]byte{block}, data...))
}

// WriteValueBlock writes a value block.
func (d *Dev) WriteValueBlock(block uint8, v int32) error {
	_, err := d.valueCommand(CmdWriteValue, binary.LittleEndian.AppendUint32([]byte{block}, uint32(v)))
	return err
}

// WriteBlock4 writes a 4 bytes block of an Ultralight tag.
func (d *Dev) WriteBlock4(block uint8, data []byte) error {
	if len(data) != 4 {
		return fmt.Errorf("sm130: write 4 byte block: data must be 4 bytes, got %d", len(data))
	}
	return d.expectBlock(CmdWrite4, append([]byte{block}, data...))
}

// WriteKey stores a 6 bytes key A or B in the reader EEPROM slot sector.
func (d *Dev) WriteKey(sector uint8, kt KeyType, key []byte) error {
	if kt != KeyA && kt != KeyB {
		return fmt.Errorf("sm130: write key: key type must be A or B, got 0x%02x", byte(kt))
	}
	if len(key) != 6 {
		return fmt.Errorf("sm130: write key: key must be 6 bytes, got %d", len(key))
	}
	return d.expectL(CmdWriteKey, append([]byte{sector & 0x0f, byte(kt)}, key...))
}

// AdjustValueBlock adds v to a value block when incr is true, subtracts it
// otherwise. It returns the new value.
func (d *Dev) AdjustValueBlock(block uint8, v int32, incr bool) (int32, error) {
	c := CmdDecValue
	if incr {
		c = CmdIncValue
	}
	return d.valueCommand(c, binary.LittleEndian.AppendUint32([]byte{block}, uint32(v)))
}

// SetAntennaPower turns the RF field on or off.
func (d *Dev) SetAntennaPower(on bool) error {
	var b byte
	if on {
		b = 1
	}
	_, err := d.command(CmdAntennaPower, []byte{b})
	return err
}

// ReadPorts returns the state of the two output ports.
func (d *Dev) ReadPorts() (uint8, error) {
	r, err := d.commandStatus(CmdReadPort, nil)
	if err != nil {
		return 0, err
	}
	return r[2] & 3, nil
}

// WritePorts sets the two output ports.
func (d *Dev) WritePorts(v uint8) error {
	_, err := d.command(CmdWritePort, []byte{v & 3})
	return err
}

// HaltTag halts the selected tag.
func (d *Dev) HaltTag() error {
	return d.expectL(CmdHaltTag, nil)
}

// SetBaudRate changes the reader baud rate then the port's.
//
// The previous rate is restored on the port when the reader does not answer
// at the new one.
func (d *Dev) SetBaudRate(baud int) error {
	code, ok := baudCodes[baud]
	if !ok {
		return fmt.Errorf("sm130: unsupported baud rate %d", baud)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.baud
	if err := d.write(CmdSetBaud, []byte{code}); err != nil {
		return err
	}
	time.Sleep(baudSwitchDelay)
	if err := d.setBaud(baud); err != nil {
		return err
	}
	if _, err := d.read(CmdSetBaud); err != nil {
		if err2 := d.setBaud(old); err2 != nil {
			return err2
		}
		return err
	}
	return nil
}

// Sleep puts the reader in sleep mode.
func (d *Dev) Sleep() error {
	_, err := d.command(CmdSleep, nil)
	return err
}

// WaitForTag polls Select until a tag shows up, ctx is canceled or timeout
// expires.
func (d *Dev) WaitForTag(ctx context.Context, timeout time.Duration) (*Tag, error) {
	end := d.clk.After(timeout)
	for {
		t, err := d.Select()
		if err == nil {
			return t, nil
		}
		var e *Error
		if !errors.As(err, &e) || !e.NoTag() {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-end:
			return nil, err
		case <-d.clk.After(pollInterval):
		}
	}
}

//

func (d *Dev) expectL(c Cmd, data []byte) error {
	r, err := d.commandStatus(c, data)
	if err != nil {
		return err
	}
	if r[2] != 'L' {
		return &Error{Cmd: c, Code: r[2]}
	}
	return nil
}

func (d *Dev) expectBlock(c Cmd, data []byte) error {
	r, err := d.commandStatus(c, data)
	if err != nil {
		return err
	}
	if r[0] == 2 {
		return &Error{Cmd: c, Code: r[2]}
	}
	return nil
}

func (d *Dev) valueCommand(c Cmd, data []byte) (int32, error) {
	r, err := d.commandStatus(c, data)
	if err != nil {
		return 0, err
	}
	if r[0] == 2 {
		return 0, &Error{Cmd: c, Code: r[2]}
	}
	if len(r) < 7 {
		return 0, fmt.Errorf("sm130: %s: short response %d bytes", c, len(r))
	}
	return int32(binary.LittleEndian.Uint32(r[3:7])), nil
}

// command sends a command and returns the response payload: length, command
// then data.
func (d *Dev) command(c Cmd, data []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(c, data); err != nil {
		return nil, err
	}
	return d.read(c)
}

// commandStatus is command for replies that carry at least a status byte.
func (d *Dev) commandStatus(c Cmd, data []byte) ([]byte, error) {
	r, err := d.command(c, data)
	if err != nil {
		return nil, err
	}
	if len(r) < 3 {
		return nil, fmt.Errorf("%w: %s: no status byte", ErrFrame, c)
	}
	return r, nil
}

func (d *Dev) write(c Cmd, data []byte) error {
	if len(data)+5 > maxFrame {
		return fmt.Errorf("sm130: %s: %d bytes of data is too long", c, len(data))
	}
	b := make([]byte, 0, len(data)+5)
	b = append(b, 0xFF, 0x00, byte(len(data)+1), byte(c))
	b = append(b, data...)
	b = append(b, checksum(b[2:]))
	logf("sm130: write % X", b)
	if _, err := d.p.Write(b); err != nil {
		return fmt.Errorf("sm130: %s: %w", c, err)
	}
	return nil
}

func (d *Dev) read(c Cmd) ([]byte, error) {
	buf := make([]byte, 0, maxFrame)
	tmp := make([]byte, maxFrame)
	deadline := time.Now().Add(responseTimeout)
	for len(buf) < 3 || len(buf) < int(buf[2])+4 {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("%w (%s)", ErrTimeout, c)
		}
		if err := d.p.SetReadTimeout(left); err != nil {
			return nil, fmt.Errorf("sm130: %w", err)
		}
		n, err := d.p.Read(tmp[:maxFrame-len(buf)])
		if err != nil {
			return nil, fmt.Errorf("sm130: %s: %w", c, err)
		}
		buf = append(buf, tmp[:n]...)
		if len(buf) >= 2 && (buf[0] != 0xFF || buf[1] != 0x00) {
			logf("sm130: bad header % X", buf)
			return nil, fmt.Errorf("%w: header % X", ErrFrame, buf[:2])
		}
		if len(buf) == maxFrame {
			break
		}
	}
	logf("sm130: read % X", buf)
	size := int(buf[2]) + 4
	if len(buf) != size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrFrame, len(buf), size)
	}
	if buf[2] == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrFrame)
	}
	if sum := checksum(buf[2 : size-1]); sum != buf[size-1] {
		return nil, fmt.Errorf("%w: checksum 0x%02x, expected 0x%02x", ErrFrame, buf[size-1], sum)
	}
	if Cmd(buf[3]) != c {
		return nil, fmt.Errorf("%w: reply to %s while waiting for %s", ErrFrame, Cmd(buf[3]), c)
	}
	return buf[2 : size-1], nil
}

func (d *Dev) setBaud(baud int) error {
	if err := d.p.SetMode(&serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}); err != nil {
		return fmt.Errorf("sm130: %w", err)
	}
	d.baud = baud
	return nil
}

func checksum(b []byte) byte {
	var s byte
	for _, v := range b {
		s += v
	}
	return s
}

var _ conn.Resource = &Dev{}

// SUBGHZ - A decoder for sub-1GHz remote control protocols.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package niceflors implements the Nice FloR-S rolling code and its 72 bit
// Nice One extension. The hop is scrambled through a 32 byte lookup table
// that has to be supplied by the environment.
package niceflors

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const (
	Name        = "Nice FloR-S"
	NiceOneName = "Nice One"
)

var Const = protocol.Const{TeShort: 500, TeLong: 1000, TeDelta: 300, MinCountBit: 52}

// NiceOneBits is the length of a frame carrying the button hold counter and
// checksum after the FloR-S part.
const NiceOneBits = 72

const (
	parcels       = 16
	defaultRepeat = 10

	encMask = 1<<44 - 1
)

const (
	stepReset uint8 = iota
	stepCheckHeader
	stepFoundHeader
	stepSaveDuration
	stepCheckDuration
)

// lookup reads single bytes from the table and keeps the first error.
type lookup struct {
	table io.ReaderAt
	err   error
}

func (l *lookup) at(off byte) byte {
	if l.err != nil {
		return 0
	}
	if l.table == nil {
		l.err = protocol.ErrNoTable
		return 0
	}

	var b [1]byte
	if n, err := l.table.ReadAt(b[:], int64(off)); n < 1 {
		l.err = errors.Wrapf(err, "niceflors: table offset %d", off)
		return 0
	}
	return b[0]
}

func xor(p *[8]byte, k byte) {
	for i := 1; i < 6; i++ {
		p[i] ^= k
	}
}

// Encrypt scrambles the 44 bit serial<<16|cnt into the encrypted part of a
// frame.
func Encrypt(data uint64, table io.ReaderAt) (uint64, error) {
	l := lookup{table: table}

	var p [8]byte
	binary.LittleEndian.PutUint64(p[:], data)

	for y := 0; y < 2; y++ {
		k := l.at(p[0] & 0x1F)
		xor(&p, k)
		p[5] &= 0x0F
		p[0] ^= k & 0xE0

		k = l.at(p[0]>>3) + 0x25
		xor(&p, k)
		p[5] &= 0x0F
		p[0] ^= k & 0x07

		if y == 0 {
			p[0], p[1] = p[1], p[0]
		}
	}

	p[5] = ^p[5] & 0x0F
	p[0], p[2], p[4] = ^p[2], ^p[4], ^p[0]
	p[1], p[3] = ^p[3], ^p[1]

	return binary.LittleEndian.Uint64(p[:]), l.err
}

// Decrypt reverses Encrypt. The button nibble at bits 48 to 51 passes
// through untouched.
func Decrypt(data uint64, table io.ReaderAt) (uint64, error) {
	l := lookup{table: table}

	var p [8]byte
	binary.LittleEndian.PutUint64(p[:], data)

	p[5] = ^p[5]
	p[0], p[2], p[4] = ^p[4], ^p[0], ^p[2]
	p[1], p[3] = ^p[3], ^p[1]

	for y := 0; y < 2; y++ {
		k := l.at(p[0]>>3) + 0x25
		xor(&p, k)
		p[5] &= 0x0F
		p[0] ^= k & 0x07

		k = l.at(p[0] & 0x1F)
		xor(&p, k)
		p[5] &= 0x0F
		p[0] ^= k & 0xE0

		if y == 0 {
			p[0], p[1] = p[1], p[0]
		}
	}

	return binary.LittleEndian.Uint64(p[:]), l.err
}

// Frame prefixes the encrypted part with the button and the parcel number
// folded into the repetition nibble.
func Frame(enc uint64, btn, parcel uint8) uint64 {
	btn &= 0x0F
	b := btn<<4 | (0x0F^btn^parcel)&0x0F
	return uint64(b)<<44 | enc&encMask
}

// NiceOne returns the 20 bit extension sent after a FloR-S frame: the
// parcel counter, the hold flag and a checksum over both.
func NiceOne(data uint64, parcel uint8, hold bool) uint32 {
	var p [10]byte
	for i := range p[:7] {
		p[i] = byte(data >> (48 - 8*i))
	}
	p[1] = p[1]&0x0F | (0x0F^p[0]&0x0F^parcel)<<4

	k := byte(0x80)
	if parcel < 4 {
		k = 0x8F
	}
	k ^= parcel

	var h byte
	if hold {
		h = 0x10
	}
	p[7] = k
	p[8] = h ^ k<<4

	sum := niceOneCRC(p[:])
	p[8] |= sum >> 4
	p[9] = sum << 4

	ext := uint32(p[7])<<16 | uint32(p[8])<<8 | uint32(p[9])
	return ext >> 4 & 0xFFFFF
}

// Reflected CRC-8, poly 0x97, over bits 4 through 67.
func niceOneCRC(p []byte) byte {
	crc := byte(0xFF)
	for i := 4; i < 68; i++ {
		bit := p[i>>3] >> (7 - i&7) & 1
		fb := crc ^ bit
		crc >>= 1
		if fb&1 == 1 {
			crc ^= 0x97
		}
	}

	var out byte
	for i := 0; i < 8; i++ {
		out = out<<1 | crc>>i&1
	}
	return out
}

type Fields struct {
	Serial uint32
	Btn    uint8
	Cnt    uint32
}

// Decode recovers serial, button and counter. Without a table every field
// is zero.
func Decode(data uint64, table io.ReaderAt) (f Fields, err error) {
	if table == nil {
		return f, protocol.ErrNoTable
	}
	plain, err := Decrypt(data, table)
	if err != nil {
		return f, err
	}
	f.Cnt = uint32(plain & 0xFFFF)
	f.Serial = uint32(plain>>16) & 0x0FFFFFFF
	f.Btn = uint8(plain>>48) & 0x0F
	return f, nil
}

type Decoder struct {
	protocol.Base
	env *protocol.Environment

	// FloR-S part of a frame still being extended to Nice One length.
	first uint64
}

func NewDecoder(env *protocol.Environment) *Decoder {
	return &Decoder{Base: protocol.NewBase(Name, protocol.TypeDynamic), env: env}
}

func (d *Decoder) Reset() {
	d.ResetBase()
	d.first = 0
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if !level && pulse.Within(duration, Const.TeShort*38, Const.TeDelta*38) {
			d.Step = stepCheckHeader
		}
	case stepCheckHeader:
		if level && pulse.Within(duration, Const.TeShort*3, Const.TeDelta*3) {
			d.Step = stepFoundHeader
			return
		}
		d.Step = stepReset
	case stepFoundHeader:
		if !level && pulse.Within(duration, Const.TeShort*3, Const.TeDelta*3) {
			d.Step = stepSaveDuration
			d.Clear()
			d.first = 0
			return
		}
		d.Step = stepReset
	case stepSaveDuration:
		if !level {
			return
		}
		if pulse.Within(duration, Const.TeShort*3, Const.TeDelta) {
			d.Step = stepReset
			switch d.DecodeCountBit {
			case Const.MinCountBit:
				d.Data2 = 0
				d.Publish(d.first, Const.MinCountBit)
				d.Notify(d)
			case NiceOneBits:
				d.Data2 = d.DecodeData
				d.Publish(d.first, NiceOneBits)
				d.Notify(d)
			}
			return
		}
		d.TeLast = duration
		d.Step = stepCheckDuration
	case stepCheckDuration:
		if level {
			d.Step = stepReset
			return
		}
		switch {
		case Const.Short(d.TeLast) && Const.Long(duration):
			d.AddBit(0)
			d.Step = stepSaveDuration
		case Const.Long(d.TeLast) && Const.Short(duration):
			d.AddBit(1)
			d.Step = stepSaveDuration
		default:
			d.Step = stepReset
			return
		}

		// The Nice One extension accumulates separately.
		if d.DecodeCountBit == Const.MinCountBit {
			d.first = d.DecodeData
			d.DecodeData = 0
		}
	}
}

func (d *Decoder) fields() Fields {
	var table io.ReaderAt
	if d.env != nil {
		table = d.env.NiceFlorSTable
	}
	f, _ := Decode(d.Data, table)
	return f
}

func (d *Decoder) Command() protocol.Command {
	f := d.fields()

	cmd := d.NewCommand()
	cmd.Serial = f.Serial
	cmd.Btn = f.Btn
	cmd.Cnt = f.Cnt
	if d.DataCountBit == NiceOneBits {
		cmd.Note = NiceOneName
	}
	return cmd
}

func (d *Decoder) String() string {
	f := d.fields()
	if d.DataCountBit == NiceOneBits {
		return fmt.Sprintf("%s %dbit\r\nKey:0x%013X%X\r\nSn:%05X\r\nCnt:%04X Btn:%02X\r\n",
			NiceOneName, d.DataCountBit, d.Data, d.Data2, f.Serial, f.Cnt, f.Btn,
		)
	}
	return fmt.Sprintf("%s %dbit\r\nKey:0x%013X\r\nSn:%05X\r\nCnt:%04X Btn:%02X\r\n",
		Name, d.DataCountBit, d.Data, f.Serial, f.Cnt, f.Btn,
	)
}

func (d *Decoder) Serialize(f *fff.File) error {
	d.Base.Serialize(f)
	if d.DataCountBit == NiceOneBits {
		f.SetUint32("Data", uint32(d.Data2))
	}
	return nil
}

func (d *Decoder) Deserialize(f *fff.File) error {
	if err := d.Base.Deserialize(f); err != nil {
		return err
	}
	if err := protocol.CheckBits(d.DataCountBit, Const.MinCountBit, NiceOneBits); err != nil {
		return err
	}

	d.Data2 = 0
	if d.DataCountBit == NiceOneBits {
		ext, err := f.Uint32("Data")
		if err != nil {
			return err
		}
		d.Data2 = uint64(ext)
	}
	return nil
}

type Encoder struct {
	protocol.Transmitter
	env *protocol.Environment
}

func NewEncoder(env *protocol.Environment) *Encoder {
	return &Encoder{Transmitter: protocol.NewTransmitter(Name, defaultRepeat), env: env}
}

func (e *Encoder) table() io.ReaderAt {
	if e.env == nil {
		return nil
	}
	return e.env.NiceFlorSTable
}

// Load sends sixteen parcels that differ only in their repetition nibble.
// A job carrying a frame and no serial replays the frame's encrypted part,
// otherwise the part is built from serial and counter through the table.
func (e *Encoder) Load(job protocol.Job) error {
	if job.Bits == 0 {
		job.Bits = Const.MinCountBit
	}
	if err := protocol.CheckBits(job.Bits, Const.MinCountBit, NiceOneBits); err != nil {
		return err
	}

	var enc uint64
	btn := job.Btn
	if job.Data != 0 && job.Serial == 0 {
		enc = job.Data & encMask
		if btn == 0 {
			btn = uint8(job.Data>>48) & 0x0F
		}
	} else {
		var err error
		plain := uint64(job.Serial&0x0FFFFFFF)<<16 | uint64(job.Cnt&0xFFFF)
		if enc, err = Encrypt(plain, e.table()); err != nil {
			return err
		}
	}

	var upload []pulse.Sample
	one := [2]uint32{Const.TeLong, Const.TeShort}
	zero := [2]uint32{Const.TeShort, Const.TeLong}
	for i := uint8(0); i < parcels; i++ {
		data := Frame(enc, btn, i)

		upload = append(upload,
			pulse.Low(Const.TeShort*37),
			pulse.High(Const.TeShort*3),
			pulse.Low(Const.TeShort*3),
		)
		upload = protocol.AppendPWM(upload, data, Const.MinCountBit, one, zero)
		if job.Bits == NiceOneBits {
			upload = protocol.AppendPWM(upload, uint64(NiceOne(data, i, i != 0)), 20, one, zero)
		}
		upload = append(upload, pulse.High(Const.TeShort*3))
	}

	e.Start(upload, job.Repeat)
	return nil
}

// Deserialize decrypts the saved frame and transmits the next press. With no
// table loaded the saved frame is replayed.
func (e *Encoder) Deserialize(f *fff.File) error {
	job, err := protocol.JobFromFile(f)
	if err != nil {
		return err
	}

	if e.table() != nil {
		fields, err := Decode(job.Data, e.table())
		if err != nil {
			return err
		}
		job.Data = 0
		job.Serial = fields.Serial
		job.Btn = fields.Btn
		job.Cnt = fields.Cnt + 1
		if job.Cnt > 0xFFFF {
			job.Cnt = 0
		}
	}

	return e.Load(job)
}

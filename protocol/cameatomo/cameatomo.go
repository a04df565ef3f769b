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

// Package cameatomo implements CAME Atomo. Frames are Manchester coded and
// scrambled twice: a keystream seeded by the parcel number, then an XOR with
// one of 32 words from a lookup table supplied by the environment.
package cameatomo

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/manchester"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "CAME Atomo"

var Const = protocol.Const{TeShort: 600, TeLong: 1200, TeDelta: 250, MinCountBit: 62}

const (
	parcels       = 8
	defaultRepeat = 1

	tableWords = 32
	parcelMask = 0x1F
	lowMask    = 1<<48 - 1
)

const (
	stepReset uint8 = iota
	stepDecoderData
)

// Word returns table word idx.
func Word(table io.ReaderAt, idx int) (uint64, error) {
	if table == nil {
		return 0, protocol.ErrNoTable
	}

	var b [8]byte
	if n, err := table.ReadAt(b[:], int64(idx%tableWords)*8); n < len(b) {
		return 0, errors.Wrapf(err, "cameatomo: table word %d", idx)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// index selects the table word from the two clear bytes of a frame.
func index(h uint16) int {
	return int((h^0x185F)>>4+1) % tableWords
}

// keystream flips bits 8 through 58 of p with a stream seeded by the clear
// parcel byte. Applying it twice is the identity.
func keystream(p *[8]byte, seed byte) {
	tmp := -seed & 0x7F
	for bit := 8; bit < 59; bit++ {
		if tmp&0x18 != 0 && tmp>>3&3 != 3 {
			tmp = tmp<<1 | 1
		} else {
			tmp <<= 1
		}
		if tmp&0x80 != 0 {
			p[bit/8] ^= 0x80 >> (bit & 7)
		}
	}
}

type Fields struct {
	Parcel uint8
	Serial uint32
	Btn    uint8
	Cnt    uint32
}

// Encode builds the frame of one parcel. Parcel numbers wrap at 32, keeping
// the top three bits of the frame clear.
func Encode(f Fields, table io.ReaderAt) (uint64, error) {
	var p [8]byte
	p[0] = f.Parcel & parcelMask
	binary.BigEndian.PutUint16(p[1:3], uint16(f.Cnt))
	binary.BigEndian.PutUint32(p[3:7], f.Serial)
	p[7] = f.Btn << 4

	keystream(&p, p[0])
	p[0] ^= 5

	h := binary.BigEndian.Uint16(p[:2])
	w, err := Word(table, index(h))
	if err != nil {
		return 0, err
	}

	low := binary.BigEndian.Uint64(p[:]) & lowMask
	return uint64(h)<<48 | (protocol.ReverseKey(low, 48) ^ w&lowMask), nil
}

// Decode reverses Encode.
func Decode(data uint64, table io.ReaderAt) (f Fields, err error) {
	h := uint16(data >> 48)
	w, err := Word(table, index(h))
	if err != nil {
		return f, err
	}

	var p [8]byte
	binary.BigEndian.PutUint64(p[:], uint64(h)<<48|protocol.ReverseKey(data&lowMask^w&lowMask, 48))

	p[0] = (p[0] ^ 5) & parcelMask
	keystream(&p, p[0])

	f.Parcel = p[0]
	f.Cnt = uint32(binary.BigEndian.Uint16(p[1:3]))
	f.Serial = binary.BigEndian.Uint32(p[3:7])
	f.Btn = p[7] >> 4
	return f, nil
}

type Decoder struct {
	protocol.Base
	env        *protocol.Environment
	manchester manchester.Decoder
}

func NewDecoder(env *protocol.Environment) *Decoder {
	d := &Decoder{Base: protocol.NewBase(Name, protocol.TypeDynamic), env: env}
	d.manchester.Reset()
	return d
}

func (d *Decoder) Reset() {
	d.ResetBase()
	d.manchester.Reset()
}

// prime starts a parcel. The header low is the first half of a leading one
// that decodes to a zero and is counted without being shifted in.
func (d *Decoder) prime() {
	d.Clear()
	d.DecodeCountBit = 1
	d.manchester.Reset()
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if !level && pulse.WithinGap(duration, Const.TeLong*60, Const.TeDelta*40) {
			d.Step = stepDecoderData
			d.prime()
		}
	case stepDecoderData:
		if !level && duration >= Const.TeLong*2+Const.TeDelta {
			if d.DecodeCountBit == Const.MinCountBit {
				d.Publish(d.DecodeData, d.DecodeCountBit)
				d.Notify(d)
			}
			d.prime()
			return
		}

		event, ok := manchester.Classify(level, duration, Const.TeShort, Const.TeLong, Const.TeDelta)
		if !ok || !d.manchester.Allowed(event) {
			d.Step = stepReset
			return
		}
		if bit, ok := d.manchester.Advance(event); ok {
			if bit {
				d.AddBit(0)
			} else {
				d.AddBit(1)
			}
		}
	}
}

func (d *Decoder) table() io.ReaderAt {
	if d.env == nil {
		return nil
	}
	return d.env.CameAtomoTable
}

func (d *Decoder) Command() protocol.Command {
	cmd := d.NewCommand()
	f, err := Decode(d.Data, d.table())
	if err != nil {
		return cmd
	}
	cmd.Serial = f.Serial
	cmd.Btn = f.Btn
	cmd.Cnt = f.Cnt
	cmd.Note = fmt.Sprintf("Parcel:%02X", f.Parcel)
	return cmd
}

func (d *Decoder) String() string {
	cmd := d.Command()
	return fmt.Sprintf("%s %dbit\r\nKey:0x%08X%08X\r\nSn:0x%08X Btn:%X\r\nCnt:%04X\r\n",
		Name, d.DataCountBit,
		uint32(d.Data>>32), uint32(d.Data),
		cmd.Serial, cmd.Btn, cmd.Cnt,
	)
}

func (d *Decoder) Deserialize(f *fff.File) error {
	if err := d.Base.Deserialize(f); err != nil {
		return err
	}
	return protocol.CheckBits(d.DataCountBit, Const.MinCountBit)
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
	return e.env.CameAtomoTable
}

// Load sends eight parcels numbered from zero. A job carrying a frame and
// no serial replays that frame in every parcel.
func (e *Encoder) Load(job protocol.Job) error {
	if job.Bits == 0 {
		job.Bits = Const.MinCountBit
	}
	if err := protocol.CheckBits(job.Bits, Const.MinCountBit); err != nil {
		return err
	}

	upload := []pulse.Sample{pulse.Low(Const.TeLong * 60)}
	for i := uint8(0); i < parcels; i++ {
		data := job.Data
		if job.Data == 0 || job.Serial != 0 {
			var err error
			f := Fields{Parcel: i, Serial: job.Serial, Btn: job.Btn, Cnt: job.Cnt}
			if data, err = Encode(f, e.table()); err != nil {
				return err
			}
		}

		// Leading one whose low half joins the header.
		upload = manchester.AppendBit(upload, true, Const.TeShort)
		for b := job.Bits - 1; b > 0; b-- {
			upload = manchester.AppendBit(upload, data>>(b-1)&1 == 0, Const.TeShort)
		}
		upload = pulse.Append(upload, pulse.Low(Const.TeLong*60))
	}

	e.Start(upload, job.Repeat)
	return nil
}

// Deserialize decodes the saved frame and transmits the next press. With no
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

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

// Package cametwee implements CAME TWEE: a 10 bit DIP switch code spread
// over 15 Manchester coded parcels, each XORed with its own constant.
package cametwee

import (
	"fmt"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/manchester"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "CAME TWEE"

var Const = protocol.Const{TeShort: 500, TeLong: 1000, TeDelta: 250, MinCountBit: 54}

const defaultRepeat = 10

// Upper bits common to every parcel.
const parcelMask = 0x003FFF7200000000

// Parcel n is XORed with xor[n]; the low nibble of each parcel carries n.
var xor = [15]uint32{
	0x0E0E0E00, 0x1D1D1D11, 0x2C2C2C22, 0x3B3B3B33, 0x4A4A4A44,
	0x59595955, 0x68686866, 0x77777777, 0x86868688, 0x95959599,
	0xA4A4A4AA, 0xB3B3B3BB, 0xC2C2C2CC, 0xD1D1D1DD, 0xE0E0E0EE,
}

const (
	stepReset uint8 = iota
	stepDecoderData
)

type Decoder struct {
	protocol.Base
	manchester manchester.Decoder
}

func NewDecoder(env *protocol.Environment) *Decoder {
	d := &Decoder{Base: protocol.NewBase(Name, protocol.TypeStatic)}
	d.manchester.Reset()
	return d
}

func (d *Decoder) Reset() {
	d.ResetBase()
	d.manchester.Reset()
}

// prime positions the Manchester state at the first bit of a parcel, which
// always follows the long header low.
func (d *Decoder) prime() {
	d.manchester.Reset()
	d.manchester.Advance(manchester.LongLow)
	d.manchester.Advance(manchester.LongHigh)
	d.manchester.Advance(manchester.ShortLow)
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if !level && pulse.WithinGap(duration, Const.TeLong*51, Const.TeDelta*20) {
			d.Step = stepDecoderData
			d.Clear()
			d.prime()
		}
	case stepDecoderData:
		if !level && duration >= Const.TeLong*2+Const.TeDelta {
			if d.DecodeCountBit == Const.MinCountBit {
				d.Publish(d.DecodeData, d.DecodeCountBit)
				d.Notify(d)
			}
			d.Clear()
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

// Fields recovers the parcel index and the DIP switch code. Serial is the
// parcel with its XOR removed.
func Fields(data uint64) (serial uint32, btn uint8, dip uint32) {
	parcel := data & 0xF
	d32 := uint32(data) ^ xor[parcel%15]
	serial = d32
	d32 /= 4
	btn = uint8(d32 >> 4 & 0x0F)
	d32 >>= 16
	dip = uint32(uint16(protocol.ReverseKey(uint64(d32), 16))) >> 6
	return serial, btn, dip
}

// DIP renders the code as the switch positions printed on the remote.
func DIP(cnt uint32) (s string) {
	for i := 9; i >= 0; i-- {
		if cnt>>uint(i)&1 == 1 {
			s += "ON "
		} else {
			s += "OFF "
		}
	}
	return s[:len(s)-1]
}

func (d *Decoder) Command() protocol.Command {
	cmd := d.NewCommand()
	cmd.Serial, cmd.Btn, cmd.Cnt = Fields(d.Data)
	cmd.Note = "DIP:" + DIP(cmd.Cnt)
	return cmd
}

func (d *Decoder) String() string {
	cmd := d.Command()
	return fmt.Sprintf("%s %dbit\r\nKey:0x%016X\r\nBtn:%X\r\nDIP:%s\r\n",
		Name, d.DataCountBit, d.Data, cmd.Btn, DIP(cmd.Cnt),
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
}

func NewEncoder(env *protocol.Environment) *Encoder {
	return &Encoder{protocol.NewTransmitter(Name, defaultRepeat)}
}

// Load sends all 15 parcels. Serial is taken from Data when it is set.
func (e *Encoder) Load(job protocol.Job) error {
	if job.Bits == 0 {
		job.Bits = Const.MinCountBit
	}
	if err := protocol.CheckBits(job.Bits, Const.MinCountBit); err != nil {
		return err
	}
	serial := job.Serial
	if job.Data != 0 {
		serial, _, _ = Fields(job.Data)
	}

	var upload []pulse.Sample
	for i := len(xor) - 1; i >= 0; i-- {
		parcel := parcelMask | uint64(serial^xor[i])
		for b := job.Bits; b > 0; b-- {
			upload = manchester.AppendBit(upload, parcel>>(b-1)&1 == 0, Const.TeShort)
		}
		upload = pulse.Append(upload, pulse.Low(Const.TeLong*51))
	}

	e.Start(upload, job.Repeat)
	return nil
}

func (e *Encoder) Deserialize(f *fff.File) error {
	job, err := protocol.JobFromFile(f)
	if err != nil {
		return err
	}
	return e.Load(job)
}

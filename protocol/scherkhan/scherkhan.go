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

// Package scherkhan receives Scher-Khan car alarm remotes. Several
// generations share the same line code and are told apart by frame length.
// Only the dynamic MAGIC CODE layout has known fields.
package scherkhan

import (
	"fmt"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "Scher-Khan"

var Const = protocol.Const{TeShort: 750, TeLong: 1100, TeDelta: 160, MinCountBit: 35}

// DynamicBits is the length of a MAGIC CODE dynamic frame.
const DynamicBits = 51

const MinHeaderCount = 2

const (
	stepReset uint8 = iota
	stepCheckPreambula
	stepSaveDuration
	stepCheckDuration
)

// Variant names the remote generation a frame length belongs to.
func Variant(bits uint8) string {
	switch bits {
	case 35:
		return "MAGIC CODE, Static"
	case 51:
		return "MAGIC CODE, Dynamic"
	case 57:
		return "MAGIC CODE PRO/PRO2"
	case 63:
		return "MAGIC CODE, Response"
	case 64:
		return "MAGICAR, Response"
	case 81, 82:
		return "TOMAHAWK Z, X 3-5"
	}
	return "Unknown"
}

type Fields struct {
	Serial uint32
	Btn    uint8
	Cnt    uint32
}

// Decode extracts the fields of a dynamic frame. Other lengths yield zero
// fields.
func Decode(data uint64, bits uint8) (f Fields) {
	if bits != DynamicBits {
		return f
	}
	f.Serial = uint32(data>>24)&0xFFFFFF0 | uint32(data>>20)&0x0F
	f.Btn = uint8(data>>24) & 0x0F
	f.Cnt = uint32(data & 0xFFFF)
	return f
}

type Decoder struct {
	protocol.Base
}

func NewDecoder(env *protocol.Environment) *Decoder {
	return &Decoder{Base: protocol.NewBase(Name, protocol.TypeDynamic)}
}

func (d *Decoder) Reset() {
	d.ResetBase()
}

func (d *Decoder) short(duration uint32) bool {
	return pulse.Within(duration, Const.TeShort, Const.TeDelta)
}

func (d *Decoder) header(duration uint32) bool {
	return pulse.Within(duration, Const.TeShort*2, Const.TeDelta)
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if level && d.header(duration) {
			d.Step = stepCheckPreambula
			d.TeLast = duration
			d.HeaderCount = 0
		}
	case stepCheckPreambula:
		if level {
			if d.header(duration) || d.short(duration) {
				d.TeLast = duration
			} else {
				d.Step = stepReset
			}
			return
		}
		if !d.header(duration) && !d.short(duration) {
			d.Step = stepReset
			return
		}

		switch {
		case d.header(d.TeLast):
			d.HeaderCount++
		case d.short(d.TeLast) && d.HeaderCount >= MinHeaderCount:
			// The start bit counts towards the frame length.
			d.Step = stepSaveDuration
			d.Clear()
			d.DecodeCountBit = 1
		default:
			d.Step = stepReset
		}
	case stepSaveDuration:
		if !level {
			d.Step = stepReset
			return
		}
		if duration >= Const.TeDelta*2+Const.TeLong {
			d.Step = stepReset
			if d.DecodeCountBit >= Const.MinCountBit {
				d.Publish(d.DecodeData, d.DecodeCountBit)
				d.Notify(d)
			}
			d.Clear()
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
		case Const.Short(d.TeLast) && Const.Short(duration):
			d.AddBit(0)
			d.Step = stepSaveDuration
		case Const.Long(d.TeLast) && Const.Long(duration):
			d.AddBit(1)
			d.Step = stepSaveDuration
		default:
			d.Step = stepReset
		}
	}
}

func (d *Decoder) Command() protocol.Command {
	f := Decode(d.Data, d.DataCountBit)

	cmd := d.NewCommand()
	cmd.Serial = f.Serial
	cmd.Btn = f.Btn
	cmd.Cnt = f.Cnt
	cmd.Note = Variant(d.DataCountBit)
	return cmd
}

func (d *Decoder) String() string {
	f := Decode(d.Data, d.DataCountBit)
	return fmt.Sprintf("%s %dbit\r\nKey:0x%X%08X\r\nSn:%07X Btn:%X\r\nCnt:%04X\r\nPt: %s\r\n",
		Name, d.DataCountBit,
		uint32(d.Data>>32), uint32(d.Data),
		f.Serial, f.Btn, f.Cnt, Variant(d.DataCountBit),
	)
}

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

// Package kia receives KIA Seed remotes. Frames carry a counter, serial
// and button protected by a CRC-8; the counter is sent in the clear.
package kia

import (
	"fmt"

	"github.com/bemasher/subghz/crc"
	"github.com/bemasher/subghz/protocol"
)

const Name = "KIA Seed"

// The start bit is counted twice, so 60 transmitted bits read as 61.
var Const = protocol.Const{TeShort: 250, TeLong: 500, TeDelta: 100, MinCountBit: 61}

const MinHeaderCount = 15

const (
	stepReset uint8 = iota
	stepCheckPreambula
	stepSaveDuration
	stepCheckDuration
)

var checksum = crc.NewCRC("KIA", 0x08, 0x7F, 0)

// CRC computes the checksum of the seven bytes above the low byte.
func CRC(data uint64) uint8 {
	var buf [7]byte
	for i := range buf {
		buf[i] = byte(data >> (56 - 8*i))
	}
	return checksum.Checksum(buf[:])
}

// Valid reports whether the low byte of data is its checksum.
func Valid(data uint64) bool {
	return CRC(data) == uint8(data)
}

type Fields struct {
	Serial uint32
	Btn    uint8
	Cnt    uint32
}

func Decode(data uint64) Fields {
	return Fields{
		Serial: uint32(data>>12) & 0x0FFFFFFF,
		Btn:    uint8(data>>8) & 0x0F,
		Cnt:    uint32(data>>40) & 0xFFFF,
	}
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

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if level && Const.Short(duration) {
			d.Step = stepCheckPreambula
			d.TeLast = duration
			d.HeaderCount = 0
		}
	case stepCheckPreambula:
		if level {
			if Const.Short(duration) || Const.Long(duration) {
				d.TeLast = duration
			} else {
				d.Step = stepReset
			}
			return
		}

		switch {
		case Const.Short(duration) && Const.Short(d.TeLast):
			d.HeaderCount++
		case Const.Long(duration) && Const.Long(d.TeLast):
			if d.HeaderCount <= MinHeaderCount {
				d.Step = stepReset
				return
			}
			d.Step = stepSaveDuration
			d.Clear()
			d.DecodeCountBit = 1
			d.AddBit(1)
		default:
			d.Step = stepReset
		}
	case stepSaveDuration:
		if !level {
			d.Step = stepReset
			return
		}
		if duration >= Const.TeLong+Const.TeDelta*2 {
			d.Step = stepReset
			if d.DecodeCountBit == Const.MinCountBit {
				d.Publish(d.DecodeData, Const.MinCountBit)
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
	f := Decode(d.Data)

	cmd := d.NewCommand()
	cmd.Serial = f.Serial
	cmd.Btn = f.Btn
	cmd.Cnt = f.Cnt
	cmd.Note = "CRC OK"
	if !Valid(d.Data) {
		cmd.Note = "CRC mismatch"
	}
	return cmd
}

func (d *Decoder) String() string {
	f := Decode(d.Data)
	return fmt.Sprintf("%s %dbit\r\nKey:%08X%08X\r\nSn:%07X Btn:%X Cnt:%04X\r\nCRC:%02X %s\r\n",
		Name, d.DataCountBit,
		uint32(d.Data>>32), uint32(d.Data),
		f.Serial, f.Btn, f.Cnt,
		uint8(d.Data), d.Command().Note,
	)
}

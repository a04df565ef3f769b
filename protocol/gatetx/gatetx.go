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

// Package gatetx implements the GateTX 24 bit fixed code, transmitted least
// significant bit first.
package gatetx

import (
	"fmt"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "GateTX"

var Const = protocol.Const{TeShort: 350, TeLong: 700, TeDelta: 100, MinCountBit: 24}

const defaultRepeat = 10

const (
	stepReset uint8 = iota
	stepFoundStartBit
	stepSaveDuration
	stepCheckDuration
)

type Decoder struct {
	protocol.Base
}

func NewDecoder(env *protocol.Environment) *Decoder {
	return &Decoder{Base: protocol.NewBase(Name, protocol.TypeStatic)}
}

func (d *Decoder) Reset() {
	d.ResetBase()
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if !level && pulse.Within(duration, Const.TeShort*47, Const.TeDelta*47) {
			d.Step = stepFoundStartBit
		}
	case stepFoundStartBit:
		if level && pulse.Within(duration, Const.TeLong, Const.TeDelta*3) {
			d.Step = stepSaveDuration
			d.Clear()
			return
		}
		d.Step = stepReset
	case stepSaveDuration:
		if level {
			d.Step = stepReset
			return
		}
		if duration >= Const.TeShort*10+Const.TeDelta {
			d.Step = stepFoundStartBit
			if d.DecodeCountBit == Const.MinCountBit {
				d.Publish(d.DecodeData, d.DecodeCountBit)
				d.Notify(d)
			}
			d.Clear()
			return
		}
		d.TeLast = duration
		d.Step = stepCheckDuration
	case stepCheckDuration:
		if !level {
			d.Step = stepReset
			return
		}
		switch {
		case Const.Short(d.TeLast) && pulse.Within(duration, Const.TeLong, Const.TeDelta*3):
			d.AddBit(0)
			d.Step = stepSaveDuration
		case pulse.Within(d.TeLast, Const.TeLong, Const.TeDelta*3) && Const.Short(duration):
			d.AddBit(1)
			d.Step = stepSaveDuration
		default:
			d.Step = stepReset
		}
	}
}

// Fields recovers serial and button from the mirrored code.
func Fields(data uint64) (serial uint32, btn uint8) {
	rev := protocol.ReverseKey(data, Const.MinCountBit)
	serial = uint32(rev&0xFF)<<12 | uint32(rev>>8&0xFF)<<4 | uint32(rev>>20&0x0F)
	btn = uint8(rev >> 16 & 0x0F)
	return serial, btn
}

// Code is the inverse of Fields.
func Code(serial uint32, btn uint8) uint64 {
	rev := uint64(serial>>12&0xFF) |
		uint64(serial>>4&0xFF)<<8 |
		uint64(btn&0x0F)<<16 |
		uint64(serial&0x0F)<<20
	return protocol.ReverseKey(rev, Const.MinCountBit)
}

func (d *Decoder) Command() protocol.Command {
	cmd := d.NewCommand()
	cmd.Serial, cmd.Btn = Fields(d.Data)
	return cmd
}

func (d *Decoder) String() string {
	cmd := d.Command()
	return fmt.Sprintf("%s %dbit\r\nKey:%06X\r\nSn:%05X  Btn:%X\r\n",
		Name, d.DataCountBit, uint32(d.Data), cmd.Serial, cmd.Btn,
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

func (e *Encoder) Load(job protocol.Job) error {
	if job.Bits == 0 {
		job.Bits = Const.MinCountBit
	}
	if err := protocol.CheckBits(job.Bits, Const.MinCountBit); err != nil {
		return err
	}
	if job.Data == 0 {
		job.Data = Code(job.Serial, job.Btn)
	}

	upload := []pulse.Sample{
		pulse.Low(Const.TeShort * 49),
		pulse.High(Const.TeLong),
	}
	for i := job.Bits; i > 0; i-- {
		if job.Data>>(i-1)&1 == 1 {
			upload = append(upload, pulse.Low(Const.TeLong), pulse.High(Const.TeShort))
		} else {
			upload = append(upload, pulse.Low(Const.TeShort), pulse.High(Const.TeLong))
		}
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

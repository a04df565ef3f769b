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

// Package hormann implements the Hormann HSM 44 bit fixed code.
package hormann

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "Hormann HSM"

var Const = protocol.Const{TeShort: 500, TeLong: 1000, TeDelta: 200, MinCountBit: 44}

// Every valid code opens with 0xFF and ends with two set bits.
const Pattern = 0xFF000000003

const defaultRepeat = 20

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
		if level && pulse.Within(duration, Const.TeShort*24, Const.TeDelta*24) {
			d.Step = stepFoundStartBit
		}
	case stepFoundStartBit:
		if !level && Const.Short(duration) {
			d.Step = stepSaveDuration
			d.Clear()
			return
		}
		d.Step = stepReset
	case stepSaveDuration:
		if !level {
			d.Step = stepReset
			return
		}
		if duration >= Const.TeShort*5 && d.DecodeData&Pattern == Pattern {
			d.Step = stepFoundStartBit
			if d.DecodeCountBit == Const.MinCountBit {
				d.Publish(d.DecodeData, d.DecodeCountBit)
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
		}
	}
}

func (d *Decoder) Command() protocol.Command {
	cmd := d.NewCommand()
	cmd.Btn = uint8(d.Data >> 8 & 0xF)
	return cmd
}

func (d *Decoder) String() string {
	return fmt.Sprintf("%s %dbit\r\nKey:0x%03X%08X\r\nBtn:0x%01X\r\n",
		Name, d.DataCountBit, uint32(d.Data>>32), uint32(d.Data), d.Command().Btn,
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
	if job.Data&Pattern != Pattern {
		return errors.Wrapf(protocol.ErrKey, "%011X lacks the HSM pattern", job.Data)
	}

	upload := []pulse.Sample{
		pulse.High(Const.TeShort * 24),
		pulse.Low(Const.TeShort),
	}
	upload = protocol.AppendPWM(upload, job.Data, job.Bits,
		[2]uint32{Const.TeLong, Const.TeShort},
		[2]uint32{Const.TeShort, Const.TeLong},
	)
	upload = append(upload, pulse.High(Const.TeShort*24), pulse.Low(Const.TeShort*24))

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

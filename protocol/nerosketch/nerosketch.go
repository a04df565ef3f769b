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

// Package nerosketch implements the Nero Sketch 40 bit code. Only the raw
// code is reported; the field layout is not known.
package nerosketch

import (
	"fmt"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "Nero Sketch"

var Const = protocol.Const{TeShort: 330, TeLong: 660, TeDelta: 150, MinCountBit: 40}

// Preamble pairs required before the start bit is accepted.
const MinHeaderCount = 40

const (
	headerCount   = 47
	defaultRepeat = 10
)

const (
	stepReset uint8 = iota
	stepCheckPreambula
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
		if level && Const.Short(duration) {
			d.Step = stepCheckPreambula
			d.TeLast = duration
			d.HeaderCount = 0
		}
	case stepCheckPreambula:
		if level {
			if Const.Short(duration) || pulse.Within(duration, Const.TeShort*4, Const.TeDelta) {
				d.TeLast = duration
			} else {
				d.Step = stepReset
			}
			return
		}
		if !Const.Short(duration) {
			d.Step = stepReset
			return
		}
		switch {
		case Const.Short(d.TeLast):
			d.HeaderCount++
		case pulse.Within(d.TeLast, Const.TeShort*4, Const.TeDelta) && d.HeaderCount > MinHeaderCount:
			d.Step = stepSaveDuration
			d.Clear()
		default:
			d.Step = stepReset
		}
	case stepSaveDuration:
		if !level {
			d.Step = stepReset
			return
		}
		if duration >= Const.TeShort*2+Const.TeDelta*2 {
			d.Step = stepReset
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

func (d *Decoder) String() string {
	rev := protocol.ReverseKey(d.Data, d.DataCountBit)
	return fmt.Sprintf("%s %dbit\r\nKey:0x%08X%08X\r\nYek:0x%08X%08X\r\n",
		Name, d.DataCountBit,
		uint32(d.Data>>32), uint32(d.Data),
		uint32(rev>>32), uint32(rev),
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

	var upload []pulse.Sample
	for i := 0; i < headerCount; i++ {
		upload = append(upload, pulse.High(Const.TeShort), pulse.Low(Const.TeShort))
	}
	upload = append(upload, pulse.High(Const.TeShort*4), pulse.Low(Const.TeShort))
	upload = protocol.AppendPWM(upload, job.Data, job.Bits,
		[2]uint32{Const.TeLong, Const.TeShort},
		[2]uint32{Const.TeShort, Const.TeLong},
	)
	upload = append(upload, pulse.High(Const.TeShort*3), pulse.Low(Const.TeShort))

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

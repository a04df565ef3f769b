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

// Package niceflo implements the Nice FLO 12 and 24 bit fixed code.
package niceflo

import (
	"fmt"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "Nice FLO"

var Const = protocol.Const{TeShort: 700, TeLong: 1400, TeDelta: 200, MinCountBit: 12}

// DIP switch codes come in 12 bit and, on the FLO2 remotes, 24 bit.
var Bits = []uint8{12, 24}

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
		if !level && pulse.Within(duration, Const.TeShort*36, Const.TeDelta*36) {
			d.Step = stepFoundStartBit
		}
	case stepFoundStartBit:
		if !level {
			return
		}
		if Const.Short(duration) {
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
		if duration >= Const.TeShort*4 {
			d.Step = stepFoundStartBit
			if protocol.CheckBits(d.DecodeCountBit, Bits...) == nil {
				d.Publish(d.DecodeData, d.DecodeCountBit)
				d.Notify(d)
			}
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
	cmd.Serial = uint32(d.Data)
	return cmd
}

func (d *Decoder) String() string {
	return fmt.Sprintf("%s %dbit\r\nKey:0x%08X\r\nYek:0x%08X\r\n",
		Name, d.DataCountBit, uint32(d.Data),
		uint32(protocol.ReverseKey(d.Data, d.DataCountBit)),
	)
}

func (d *Decoder) Deserialize(f *fff.File) error {
	if err := d.Base.Deserialize(f); err != nil {
		return err
	}
	return protocol.CheckBits(d.DataCountBit, Bits...)
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
	if err := protocol.CheckBits(job.Bits, Bits...); err != nil {
		return err
	}
	if job.Data == 0 {
		job.Data = uint64(job.Serial)
	}

	upload := []pulse.Sample{
		pulse.Low(Const.TeShort * 36),
		pulse.High(Const.TeShort),
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

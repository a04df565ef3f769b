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

// Package princeton implements the PT2262 style fixed code used by a large
// share of cheap 433 MHz remotes.
package princeton

import (
	"fmt"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "Princeton"

var Const = protocol.Const{TeShort: 400, TeLong: 1200, TeDelta: 250, MinCountBit: 24}

const defaultRepeat = 10

const (
	stepReset uint8 = iota
	stepSaveDuration
	stepCheckDuration
)

type Decoder struct {
	protocol.Base

	// Running sum of every pulse in the frame, used to estimate te.
	sum uint32
	te  uint32
}

func NewDecoder(env *protocol.Environment) *Decoder {
	return &Decoder{Base: protocol.NewBase(Name, protocol.TypeStatic)}
}

func (d *Decoder) Reset() {
	d.ResetBase()
	d.sum = 0
	d.te = 0
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if !level && pulse.Within(duration, Const.TeShort*36, Const.TeDelta*36) {
			d.Step = stepSaveDuration
			d.Clear()
			d.sum = 0
		}
	case stepSaveDuration:
		if level {
			d.TeLast = duration
			d.sum += duration
			d.Step = stepCheckDuration
		}
	case stepCheckDuration:
		if level {
			d.Step = stepReset
			return
		}

		if duration >= Const.TeShort*10+Const.TeDelta {
			d.Step = stepSaveDuration
			if d.DecodeCountBit == Const.MinCountBit {
				d.Publish(d.DecodeData, d.DecodeCountBit)
				d.te = d.sum / (uint32(d.DecodeCountBit)*4 + 1)
				d.Notify(d)
			}
			d.Clear()
			d.sum = 0
			return
		}

		d.sum += duration
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

// Fields splits a code into its serial and button.
func Fields(data uint64) (serial uint32, btn uint8) {
	return uint32(data >> 4), uint8(data & 0xF)
}

func (d *Decoder) Command() protocol.Command {
	cmd := d.NewCommand()
	cmd.Serial, cmd.Btn = Fields(d.Data)
	cmd.Note = fmt.Sprintf("Te:%dus", d.te)
	return cmd
}

func (d *Decoder) String() string {
	cmd := d.Command()
	return fmt.Sprintf("%s %dbit\r\nKey:0x%08X\r\nYek:0x%08X\r\nSn:0x%05X Btn:%01X\r\nTe:%dus\r\n",
		Name, d.DataCountBit, uint32(d.Data),
		uint32(protocol.ReverseKey(d.Data, d.DataCountBit)),
		cmd.Serial, cmd.Btn, d.te,
	)
}

func (d *Decoder) Serialize(f *fff.File) error {
	d.Base.Serialize(f)
	f.SetUint32("TE", d.te)
	return nil
}

func (d *Decoder) Deserialize(f *fff.File) error {
	if err := d.Base.Deserialize(f); err != nil {
		return err
	}
	if err := protocol.CheckBits(d.DataCountBit, Const.MinCountBit); err != nil {
		return err
	}
	d.te, _ = f.Uint32("TE")
	return nil
}

type Encoder struct {
	protocol.Transmitter
	te uint32
}

func NewEncoder(env *protocol.Environment) *Encoder {
	return &Encoder{Transmitter: protocol.NewTransmitter(Name, defaultRepeat)}
}

// Load builds the upload from Data, or from Serial and Btn when Data is
// zero.
func (e *Encoder) Load(job protocol.Job) error {
	if job.Bits == 0 {
		job.Bits = Const.MinCountBit
	}
	if err := protocol.CheckBits(job.Bits, Const.MinCountBit); err != nil {
		return err
	}
	if job.Data == 0 {
		job.Data = uint64(job.Serial)<<4 | uint64(job.Btn&0xF)
	}

	te := e.te
	if te == 0 {
		te = Const.TeShort
	}

	upload := protocol.AppendPWM(nil, job.Data, job.Bits,
		[2]uint32{te * 3, te},
		[2]uint32{te, te * 3},
	)
	upload = append(upload, pulse.High(te), pulse.Low(te*30))

	e.Start(upload, job.Repeat)
	return nil
}

func (e *Encoder) Deserialize(f *fff.File) error {
	job, err := protocol.JobFromFile(f)
	if err != nil {
		return err
	}
	e.te, _ = f.Uint32("TE")
	return e.Load(job)
}

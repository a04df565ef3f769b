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

// Package starline implements the Star Line car alarm rolling code, a
// KeeLoq variant with an 8 bit button and a 24 bit serial.
package starline

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	kl "github.com/bemasher/subghz/keeloq"
	"github.com/bemasher/subghz/keystore"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "Star Line"

var Const = protocol.Const{TeShort: 250, TeLong: 500, TeDelta: 120, MinCountBit: 64}

// Preamble pairs required before data is accepted.
const MinHeaderCount = 4

const (
	headerCount   = 6
	defaultRepeat = 10
)

const ManufacturerUnknown = "Unknown"

const (
	stepReset uint8 = iota
	stepCheckPreambula
	stepSaveDuration
	stepCheckDuration
)

// Variants lists the derivations Star Line receivers support. Secure and
// magic learning are not among them.
func Variants(t keystore.LearningType) []kl.Variant {
	switch t {
	case keystore.LearningSimple:
		return []kl.Variant{kl.VariantSimple}
	case keystore.LearningNormal:
		return []kl.Variant{kl.VariantNormal}
	case keystore.LearningUnknown:
		return []kl.Variant{
			kl.VariantSimple, kl.VariantSimpleMirrored,
			kl.VariantNormal, kl.VariantNormalMirrored,
		}
	}
	return nil
}

func Split(data uint64) (fix, hop uint32) {
	key := protocol.ReverseKey(data, Const.MinCountBit)
	return uint32(key >> 32), uint32(key)
}

func Join(fix, hop uint32) uint64 {
	return protocol.ReverseKey(uint64(fix)<<32|uint64(hop), Const.MinCountBit)
}

// Valid checks a decrypted hop repeats the button and the low serial byte.
func Valid(fix uint32) func(decrypt uint32) bool {
	btn := fix >> 24
	end := fix & 0xFF
	return func(decrypt uint32) bool {
		return decrypt>>24 == btn && decrypt>>16&0xFF == end
	}
}

type Fields struct {
	Fix, Hop     uint32
	Serial       uint32
	Btn          uint8
	Cnt          uint32
	Manufacturer string
	Variant      kl.Variant
	Resolved     bool
}

func Decode(data uint64, entries []keystore.Entry) (f Fields) {
	f.Fix, f.Hop = Split(data)
	f.Serial = f.Fix & 0x00FFFFFF
	f.Btn = uint8(f.Fix >> 24)
	f.Manufacturer = ManufacturerUnknown

	if m, ok := kl.ResolveFunc(f.Fix, f.Hop, 0, entries, Variants, Valid(f.Fix)); ok {
		f.Manufacturer = m.Manufacturer
		f.Cnt = m.Decrypt & 0xFFFF
		f.Variant = m.Variant
		f.Resolved = true
	}
	return f
}

type Decoder struct {
	protocol.Base
	env *protocol.Environment
}

func NewDecoder(env *protocol.Environment) *Decoder {
	return &Decoder{Base: protocol.NewBase(Name, protocol.TypeDynamic), env: env}
}

func (d *Decoder) Reset() {
	d.ResetBase()
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if !level {
			d.HeaderCount = 0
			return
		}
		if pulse.Within(duration, Const.TeLong*2, Const.TeDelta*2) {
			d.Step = stepCheckPreambula
			d.HeaderCount++
		} else if d.HeaderCount > MinHeaderCount {
			d.Clear()
			d.TeLast = duration
			d.Step = stepCheckDuration
		}
	case stepCheckPreambula:
		if level || !pulse.Within(duration, Const.TeLong*2, Const.TeDelta*2) {
			d.HeaderCount = 0
		}
		d.Step = stepReset
	case stepSaveDuration:
		if !level {
			d.Step = stepReset
			return
		}
		if duration >= Const.TeLong+Const.TeDelta {
			d.Step = stepReset
			if d.DecodeCountBit >= Const.MinCountBit && d.DecodeCountBit <= Const.MinCountBit+2 {
				if d.DataCountBit == 0 || d.Data != d.DecodeData {
					d.Publish(d.DecodeData, Const.MinCountBit)
					d.Notify(d)
				}
			}
			d.Clear()
			d.HeaderCount = 0
			return
		}
		d.TeLast = duration
		d.Step = stepCheckDuration
	case stepCheckDuration:
		if level {
			d.Step = stepReset
			return
		}

		var bit uint8
		switch {
		case Const.Short(d.TeLast) && Const.Short(duration):
			bit = 0
		case Const.Long(d.TeLast) && Const.Long(duration):
			bit = 1
		default:
			d.Step = stepReset
			return
		}
		if d.DecodeCountBit < Const.MinCountBit {
			d.AddBit(bit)
		} else {
			d.DecodeCountBit++
		}
		d.Step = stepSaveDuration
	}
}

func (d *Decoder) fields() Fields {
	return Decode(d.Data, d.env.Entries())
}

func (d *Decoder) Command() protocol.Command {
	f := d.fields()

	cmd := d.NewCommand()
	cmd.Serial = f.Serial
	cmd.Btn = f.Btn
	cmd.Cnt = f.Cnt
	cmd.Manufacturer = f.Manufacturer
	if f.Resolved {
		cmd.Note = f.Variant.String()
	}
	return cmd
}

func (d *Decoder) String() string {
	f := d.fields()
	return fmt.Sprintf("%s %dbit\r\nKey:%08X%08X\r\nFix:0x%08X    Cnt:%04X\r\nHop:0x%08X    Btn:%02X\r\nMF:%s\r\nSn:0x%07X \r\n",
		Name, d.DataCountBit,
		uint32(d.Data>>32), uint32(d.Data),
		f.Fix, f.Cnt, f.Hop, f.Btn, f.Manufacturer, f.Serial,
	)
}

func (d *Decoder) Serialize(f *fff.File) error {
	d.Base.Serialize(f)
	f.Set("Manufacture", d.fields().Manufacturer)
	return nil
}

func (d *Decoder) Deserialize(f *fff.File) error {
	if err := d.Base.Deserialize(f); err != nil {
		return err
	}
	return protocol.CheckBits(d.DataCountBit, Const.MinCountBit)
}

type Encoder struct {
	protocol.Transmitter
	env     *protocol.Environment
	variant kl.Variant
}

func NewEncoder(env *protocol.Environment) *Encoder {
	return &Encoder{Transmitter: protocol.NewTransmitter(Name, defaultRepeat), env: env}
}

func (e *Encoder) Load(job protocol.Job) error {
	if job.Bits == 0 {
		job.Bits = Const.MinCountBit
	}
	if err := protocol.CheckBits(job.Bits, Const.MinCountBit); err != nil {
		return err
	}

	data := job.Data
	if job.Manufacturer != "" && job.Manufacturer != ManufacturerUnknown {
		if e.env == nil || e.env.Keystore == nil {
			return errors.Wrap(protocol.ErrNoKey, "no keystore loaded")
		}
		entry, ok := e.env.Keystore.Lookup(job.Manufacturer)
		if !ok {
			return errors.Wrapf(protocol.ErrNoKey, "%q", job.Manufacturer)
		}
		v := e.variant
		if entry.Type != keystore.LearningUnknown {
			vs := Variants(entry.Type)
			if len(vs) == 0 {
				return errors.Wrapf(protocol.ErrNoKey, "%q: %s learning not supported", entry.Name, entry.Type)
			}
			v = vs[0]
		}

		fix := uint32(job.Btn)<<24 | job.Serial&0x00FFFFFF
		plain := uint32(job.Btn)<<24 | (job.Serial&0xFF)<<16 | job.Cnt&0xFFFF
		data = Join(fix, kl.Seal(plain, fix, 0, entry.Key, v))
	} else if data == 0 {
		return errors.Wrap(protocol.ErrNoKey, "no manufacturer and no code to replay")
	}

	var upload []pulse.Sample
	for i := 0; i < headerCount; i++ {
		upload = append(upload, pulse.High(Const.TeLong*2), pulse.Low(Const.TeLong*2))
	}
	upload = protocol.AppendPWM(upload, data, Const.MinCountBit,
		[2]uint32{Const.TeLong, Const.TeLong},
		[2]uint32{Const.TeShort, Const.TeShort},
	)

	// A long high closes the frame.
	upload = append(upload, pulse.High(Const.TeLong*2), pulse.Low(Const.TeLong*2))

	e.Start(upload, job.Repeat)
	return nil
}

// Deserialize decrypts the saved frame and transmits the next press.
func (e *Encoder) Deserialize(f *fff.File) error {
	job, err := protocol.JobFromFile(f)
	if err != nil {
		return err
	}

	fields := Decode(job.Data, e.env.Entries())
	job.Serial = fields.Serial
	job.Btn = fields.Btn
	job.Manufacturer = fields.Manufacturer
	if fields.Resolved {
		job.Cnt = fields.Cnt + 1
		if job.Cnt >= 0xFFFF {
			job.Cnt = 0
		}
	}
	e.variant = fields.Variant

	return e.Load(job)
}

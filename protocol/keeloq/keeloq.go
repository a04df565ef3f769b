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

// Package keeloq implements the 66 bit KeeLoq rolling code frame: a 32 bit
// encrypted hop, a 28 bit serial, a 4 bit button and two status bits, all
// sent least significant bit first.
package keeloq

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	kl "github.com/bemasher/subghz/keeloq"
	"github.com/bemasher/subghz/keystore"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "KeeLoq"

var Const = protocol.Const{TeShort: 400, TeLong: 800, TeDelta: 140, MinCountBit: 64}

// Preamble pulses required before the header gap is accepted.
const MinHeaderCount = 2

const (
	headerCount   = 11
	defaultRepeat = 100
)

// Manufacturers recognised from the hop alone, and the name reported when
// no keystore entry decrypts the hop.
const (
	ManufacturerUnknown  = "Unknown"
	ManufacturerANMotors = "AN-Motors"
	ManufacturerHCS101   = "HCS101"
)

const (
	stepReset uint8 = iota
	stepCheckPreambula
	stepSaveDuration
	stepCheckDuration
)

// Split returns the fixed and hopping halves of a frame as transmitted.
func Split(data uint64) (fix, hop uint32) {
	key := protocol.ReverseKey(data, Const.MinCountBit)
	return uint32(key >> 32), uint32(key)
}

// Join is the inverse of Split.
func Join(fix, hop uint32) uint64 {
	return protocol.ReverseKey(uint64(fix)<<32|uint64(hop), Const.MinCountBit)
}

// Valid returns the check a decrypted hop must pass for the given fixed
// part: the button must repeat and the discriminator must match the low
// byte of the serial, or be zero.
func Valid(fix uint32) func(decrypt uint32) bool {
	btn := fix >> 28
	end := fix & 0xFF
	return func(decrypt uint32) bool {
		disc := decrypt >> 16 & 0xFF
		return decrypt>>28 == btn && (disc == end || disc == 0)
	}
}

// Fields are what a KeeLoq frame carries once decrypted.
type Fields struct {
	Fix, Hop     uint32
	Serial       uint32
	Btn          uint8
	Cnt          uint32
	Manufacturer string

	// Variant used to decrypt, meaningful only when Resolved is set.
	Variant  kl.Variant
	Resolved bool
}

// Decode splits data and recovers the counter, trying the AN-Motors and
// HCS101 layouts before searching entries.
func Decode(data uint64, seed uint32, entries []keystore.Entry) (f Fields) {
	f.Fix, f.Hop = Split(data)
	f.Serial = f.Fix & 0x0FFFFFFF
	f.Btn = uint8(f.Fix >> 28)
	f.Manufacturer = ManufacturerUnknown

	fix, hop := f.Fix, f.Hop
	switch {
	case hop>>24 == hop>>16&0xFF && fix>>28 == hop>>12&0xF && hop&0xFFF == 0x404:
		f.Manufacturer = ManufacturerANMotors
		f.Cnt = hop >> 16
	case hop&0xFFF == 0 && fix>>28 == hop>>12&0xF:
		f.Manufacturer = ManufacturerHCS101
		f.Cnt = hop >> 16
	default:
		if m, ok := kl.Resolve(fix, hop, seed, entries, Valid(fix)); ok {
			f.Manufacturer = m.Manufacturer
			f.Cnt = m.Decrypt & 0xFFFF
			f.Variant = m.Variant
			f.Resolved = true
		}
	}
	return f
}

// NextCount advances a 16 bit counter the way a remote does on each press.
func NextCount(cnt uint32) uint32 {
	if cnt+1 >= 0xFFFF {
		return 0
	}
	return cnt + 1
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
		if level && Const.Short(duration) {
			d.Step = stepCheckPreambula
			d.HeaderCount++
		}
	case stepCheckPreambula:
		if !level && Const.Short(duration) {
			d.Step = stepReset
			return
		}
		if d.HeaderCount > MinHeaderCount && pulse.Within(duration, Const.TeShort*10, Const.TeDelta*10) {
			d.Step = stepSaveDuration
			d.Clear()
			return
		}
		d.Step = stepReset
		d.HeaderCount = 0
	case stepSaveDuration:
		if level {
			d.TeLast = duration
			d.Step = stepCheckDuration
		}
	case stepCheckDuration:
		if level {
			d.Step = stepReset
			d.HeaderCount = 0
			return
		}

		if duration >= Const.TeShort*2+Const.TeDelta {
			d.Step = stepReset
			if d.DecodeCountBit >= Const.MinCountBit && d.DecodeCountBit <= Const.MinCountBit+2 {
				// A held button repeats the same frame; announce it once.
				if d.DataCountBit == 0 || d.Data != d.DecodeData {
					d.Publish(d.DecodeData, Const.MinCountBit)
					d.Notify(d)
				}
				d.Clear()
				d.HeaderCount = 0
			}
			return
		}

		var bit uint8
		switch {
		case Const.Short(d.TeLast) && pulse.Within(duration, Const.TeLong, Const.TeDelta*2):
			bit = 1
		case pulse.Within(d.TeLast, Const.TeLong, Const.TeDelta*2) && Const.Short(duration):
			bit = 0
		default:
			d.Step = stepReset
			d.HeaderCount = 0
			return
		}

		// The status bits are counted but not kept.
		if d.DecodeCountBit < Const.MinCountBit {
			d.AddBit(bit)
		} else {
			d.DecodeCountBit++
		}
		d.Step = stepSaveDuration
	}
}

func (d *Decoder) fields() Fields {
	return Decode(d.Data, d.Seed, d.env.Entries())
}

func (d *Decoder) Command() protocol.Command {
	f := d.fields()

	cmd := d.NewCommand()
	cmd.Serial = f.Serial
	cmd.Btn = f.Btn
	cmd.Cnt = f.Cnt
	cmd.Seed = d.Seed
	cmd.Manufacturer = f.Manufacturer
	if f.Resolved {
		cmd.Note = f.Variant.String()
	}
	return cmd
}

func (d *Decoder) String() string {
	f := d.fields()
	return fmt.Sprintf("%s %dbit\r\nKey:%08X%08X\r\nFix:0x%08X    Cnt:%04X\r\nHop:0x%08X    Btn:%01X\r\nMF:%s",
		Name, d.DataCountBit,
		uint32(d.Data>>32), uint32(d.Data),
		f.Fix, f.Cnt, f.Hop, f.Btn, f.Manufacturer,
	)
}

func (d *Decoder) Serialize(f *fff.File) error {
	d.Base.Serialize(f)
	if d.Seed != 0 {
		f.Set("Seed", fmt.Sprintf("%02X %02X %02X %02X",
			uint8(d.Seed>>24), uint8(d.Seed>>16), uint8(d.Seed>>8), uint8(d.Seed),
		))
	}
	f.Set("Manufacture", d.fields().Manufacturer)
	return nil
}

func (d *Decoder) Deserialize(f *fff.File) error {
	job, err := protocol.JobFromFile(f)
	if err != nil {
		return err
	}
	if err := protocol.CheckBits(job.Bits, Const.MinCountBit); err != nil {
		return err
	}
	d.Publish(job.Data, job.Bits)
	d.Seed = job.Seed
	return nil
}

type Encoder struct {
	protocol.Transmitter
	env *protocol.Environment

	// Derivation used for keystore entries of unknown learning type.
	variant kl.Variant
}

func NewEncoder(env *protocol.Environment) *Encoder {
	return &Encoder{Transmitter: protocol.NewTransmitter(Name, defaultRepeat), env: env}
}

// Load builds a frame from Serial, Btn and Cnt encrypted with the
// manufacturer's key. With no manufacturer, or an unknown one, Data is sent
// unchanged.
func (e *Encoder) Load(job protocol.Job) error {
	if job.Bits == 0 {
		job.Bits = Const.MinCountBit
	}
	if err := protocol.CheckBits(job.Bits, Const.MinCountBit); err != nil {
		return err
	}

	data := job.Data
	if job.Manufacturer != "" && job.Manufacturer != ManufacturerUnknown {
		hop, err := e.hop(job)
		if err != nil {
			return err
		}
		data = Join(uint32(job.Btn)<<28|job.Serial&0x0FFFFFFF, hop)
	} else if data == 0 {
		return errors.Wrap(protocol.ErrNoKey, "no manufacturer and no code to replay")
	}

	e.Start(e.upload(data), job.Repeat)
	return nil
}

func (e *Encoder) hop(job protocol.Job) (uint32, error) {
	btn := uint32(job.Btn & 0xF)
	cnt := job.Cnt & 0xFFFF

	switch job.Manufacturer {
	case ManufacturerANMotors:
		return (cnt&0xFF)<<24 | (cnt&0xFF)<<16 | btn<<12 | 0x404, nil
	case ManufacturerHCS101:
		return cnt<<16 | btn<<12, nil
	}

	if e.env == nil || e.env.Keystore == nil {
		return 0, errors.Wrap(protocol.ErrNoKey, "no keystore loaded")
	}
	entry, ok := e.env.Keystore.Lookup(job.Manufacturer)
	if !ok {
		return 0, errors.Wrapf(protocol.ErrNoKey, "%q", job.Manufacturer)
	}

	v := e.variant
	if entry.Type != keystore.LearningUnknown {
		v = kl.Variants(entry.Type)[0]
	}

	fix := btn<<28 | job.Serial&0x0FFFFFFF
	plain := btn<<28 | (job.Serial&0x3FF)<<16 | cnt
	return kl.Seal(plain, fix, job.Seed, entry.Key, v), nil
}

func (e *Encoder) upload(data uint64) (upload []pulse.Sample) {
	for i := 0; i < headerCount; i++ {
		upload = append(upload, pulse.High(Const.TeShort), pulse.Low(Const.TeShort))
	}
	upload = append(upload, pulse.High(Const.TeShort), pulse.Low(Const.TeShort*10))

	upload = protocol.AppendPWM(upload, data, Const.MinCountBit,
		[2]uint32{Const.TeShort, Const.TeLong},
		[2]uint32{Const.TeLong, Const.TeShort},
	)

	// Two status bits, then the end of transmission.
	return append(upload,
		pulse.High(Const.TeShort), pulse.Low(Const.TeLong),
		pulse.High(Const.TeShort), pulse.Low(Const.TeShort*40),
	)
}

// Deserialize decrypts the saved frame and transmits the next press of the
// same remote. Frames that cannot be decrypted are replayed as saved.
func (e *Encoder) Deserialize(f *fff.File) error {
	job, err := protocol.JobFromFile(f)
	if err != nil {
		return err
	}

	fields := Decode(job.Data, job.Seed, e.env.Entries())
	job.Serial = fields.Serial
	job.Btn = fields.Btn
	job.Manufacturer = fields.Manufacturer
	if fields.Manufacturer != ManufacturerUnknown {
		job.Cnt = NextCount(fields.Cnt)
	}
	e.variant = fields.Variant

	return e.Load(job)
}

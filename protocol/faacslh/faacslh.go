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

// Package faacslh implements the FAAC SLH rolling code. The device key is
// derived from a seed the remote only transmits while being paired, so a
// received frame can be decrypted once the seed is known.
package faacslh

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	kl "github.com/bemasher/subghz/keeloq"
	"github.com/bemasher/subghz/keystore"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "Faac SLH"

var Const = protocol.Const{TeShort: 255, TeLong: 595, TeDelta: 100, MinCountBit: 64}

const defaultRepeat = 10

const ManufacturerUnknown = "Unknown"

const (
	stepReset uint8 = iota
	stepFoundPreambula
	stepSaveDuration
	stepCheckDuration
)

// Variants only accepts keystore entries marked for FAAC learning.
func Variants(t keystore.LearningType) []kl.Variant {
	if t == keystore.LearningFAAC {
		return []kl.Variant{kl.VariantFAAC}
	}
	return nil
}

func Split(data uint64) (fix, hop uint32) {
	return uint32(data >> 32), uint32(data)
}

func Join(fix, hop uint32) uint64 {
	return uint64(fix)<<32 | uint64(hop)
}

// Valid checks a decrypted hop repeats the button and the low serial byte.
func Valid(fix uint32) func(decrypt uint32) bool {
	btn := fix & 0x0F
	end := fix >> 4 & 0xFF
	return func(decrypt uint32) bool {
		return decrypt>>28 == btn && decrypt>>20&0xFF == end
	}
}

// Plain is the hop before encryption.
func Plain(serial uint32, btn uint8, cnt uint32) uint32 {
	return uint32(btn&0x0F)<<28 | (serial&0xFF)<<20 | cnt&0xFFFFF
}

type Fields struct {
	Fix, Hop     uint32
	Serial       uint32
	Btn          uint8
	Cnt          uint32
	Manufacturer string
	Resolved     bool
}

func Decode(data uint64, seed uint32, entries []keystore.Entry) (f Fields) {
	f.Fix, f.Hop = Split(data)
	f.Serial = f.Fix >> 4
	f.Btn = uint8(f.Fix & 0x0F)
	f.Manufacturer = ManufacturerUnknown

	if m, ok := kl.ResolveFunc(f.Fix, f.Hop, seed, entries, Variants, Valid(f.Fix)); ok {
		f.Manufacturer = m.Manufacturer
		f.Cnt = m.Decrypt & 0xFFFFF
		f.Resolved = true
	}
	return f
}

type Decoder struct {
	protocol.Base
	env *protocol.Environment

	// Survives Reset, it belongs to the remote not the frame.
	seed uint32
}

func NewDecoder(env *protocol.Environment) *Decoder {
	return &Decoder{Base: protocol.NewBase(Name, protocol.TypeDynamic), env: env}
}

// SetSeed supplies the pairing seed of the remote being received.
func (d *Decoder) SetSeed(seed uint32) {
	d.seed = seed
}

func (d *Decoder) Reset() {
	d.ResetBase()
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if level && pulse.Within(duration, Const.TeLong*2, Const.TeDelta*3) {
			d.Step = stepFoundPreambula
		}
	case stepFoundPreambula:
		if !level && pulse.Within(duration, Const.TeLong*2, Const.TeDelta*3) {
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
		d.TeLast = duration
		d.Step = stepCheckDuration
	case stepCheckDuration:
		if level {
			d.Step = stepReset
			return
		}
		if duration >= Const.TeShort*3+Const.TeDelta {
			d.Step = stepReset
			if d.DecodeCountBit == Const.MinCountBit {
				d.Publish(d.DecodeData, Const.MinCountBit)
				d.Seed = d.seed
				d.Notify(d)
			}
			d.Clear()
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

func (d *Decoder) fields() Fields {
	return Decode(d.Data, d.seed, d.env.Entries())
}

func (d *Decoder) Command() protocol.Command {
	f := d.fields()

	cmd := d.NewCommand()
	cmd.Serial = f.Serial
	cmd.Btn = f.Btn
	cmd.Cnt = f.Cnt
	cmd.Seed = d.seed
	cmd.Manufacturer = f.Manufacturer
	return cmd
}

func (d *Decoder) String() string {
	f := d.fields()
	return fmt.Sprintf("%s %dbit\r\nKey:%08X%08X\r\nFix:%08X\r\nHop:%08X    Btn:%X\r\nSn:%07X    Sd:%08X\r\nCnt:%05X    MF:%s\r\n",
		Name, d.DataCountBit,
		f.Fix, f.Hop,
		f.Fix, f.Hop, f.Btn,
		f.Serial, d.seed,
		f.Cnt, f.Manufacturer,
	)
}

func (d *Decoder) Serialize(f *fff.File) error {
	d.Base.Serialize(f)

	var seed [4]byte
	binary.BigEndian.PutUint32(seed[:], d.seed)
	f.SetHex("Seed", seed[:])
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
	d.seed = job.Seed
	d.Seed = job.Seed
	return nil
}

type Encoder struct {
	protocol.Transmitter
	env *protocol.Environment
}

func NewEncoder(env *protocol.Environment) *Encoder {
	return &Encoder{Transmitter: protocol.NewTransmitter(Name, defaultRepeat), env: env}
}

// Load encrypts a hop for the job's counter under the named manufacturer,
// or replays the job's frame when no manufacturer is given.
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
		if entry.Type != keystore.LearningFAAC {
			return errors.Wrapf(protocol.ErrNoKey, "%q: %s learning not supported", entry.Name, entry.Type)
		}

		fix := job.Serial<<4 | uint32(job.Btn&0x0F)
		hop := kl.Seal(Plain(job.Serial, job.Btn, job.Cnt), fix, job.Seed, entry.Key, kl.VariantFAAC)
		data = Join(fix, hop)
	} else if data == 0 {
		return errors.Wrap(protocol.ErrNoKey, "no manufacturer and no code to replay")
	}

	upload := []pulse.Sample{
		pulse.High(Const.TeLong * 2),
		pulse.Low(Const.TeLong * 2),
	}
	upload = protocol.AppendPWM(upload, data, Const.MinCountBit,
		[2]uint32{Const.TeLong, Const.TeShort},
		[2]uint32{Const.TeShort, Const.TeLong},
	)
	upload = append(upload, pulse.High(Const.TeShort), pulse.Low(Const.TeShort*8))

	e.Start(upload, job.Repeat)
	return nil
}

// Deserialize decrypts the saved frame with its seed and transmits the next
// press.
func (e *Encoder) Deserialize(f *fff.File) error {
	job, err := protocol.JobFromFile(f)
	if err != nil {
		return err
	}

	fields := Decode(job.Data, job.Seed, e.env.Entries())
	job.Serial = fields.Serial
	job.Btn = fields.Btn
	job.Manufacturer = fields.Manufacturer
	if fields.Resolved {
		job.Cnt = (fields.Cnt + 1) & 0xFFFFF
	}

	return e.Load(job)
}

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

// Package somfy implements the Somfy RTS rolling code as sent by Telis
// (56 bit) and Keytis (80 bit) remotes. Frames are Manchester coded and
// obfuscated by chaining each byte with the one before it; there is no key.
package somfy

import (
	"fmt"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/manchester"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const (
	TelisName  = "Somfy Telis"
	KeytisName = "Somfy Keytis"
)

var Const = protocol.Const{TeShort: 640, TeLong: 1280, TeDelta: 250, MinCountBit: 56}

// KeytisBits adds the 24 bit press duration counter to a frame.
const KeytisBits = 80

const (
	wakeHigh = 9415
	wakeLow  = 89565
	syncHigh = 4550
	gap      = 30415

	frames        = 3
	defaultRepeat = 10
)

const (
	stepReset uint8 = iota
	stepFoundPreambula
	stepCheckPreambula
	stepDecoderData
)

// Checksum xors every nibble of a plain frame, skipping the checksum
// nibble itself.
func Checksum(plain uint64) uint8 {
	plain &= 0xFFF0FFFFFFFFFF

	var sum uint64
	for i := 0; i < 56; i += 8 {
		sum ^= plain>>i ^ plain>>(i+4)
	}
	return uint8(sum & 0x0F)
}

// Obfuscate chains each byte with the obfuscated byte before it.
func Obfuscate(plain uint64) (data uint64) {
	var prev byte
	for i := 6; i >= 0; i-- {
		b := byte(plain>>(8*i)) ^ prev
		data = data<<8 | uint64(b)
		prev = b
	}
	return data
}

func Deobfuscate(data uint64) uint64 {
	return (data ^ data>>8) & 0x00FFFFFFFFFFFFFF
}

// Valid reports whether an obfuscated frame carries a correct checksum.
func Valid(data uint64) bool {
	plain := Deobfuscate(data)
	return uint8(plain>>40&0x0F) == Checksum(plain)
}

func seal(plain uint64) uint64 {
	plain = plain&^(0x0F<<40) | uint64(Checksum(plain))<<40
	return Obfuscate(plain)
}

// TelisFrame builds an obfuscated frame: key, button, checksum, counter and
// serial.
func TelisFrame(key, btn uint8, cnt, serial uint32) uint64 {
	return seal(uint64(key)<<48 | uint64(btn&0x0F)<<44 | uint64(cnt&0xFFFF)<<24 | uint64(serial&0xFFFFFF))
}

// KeytisFrame builds an obfuscated frame. Keytis remotes carry the button
// in the low key nibble and a constant 0xF where Telis has the button.
func KeytisFrame(btn uint8, cnt, serial uint32) uint64 {
	return seal(uint64(0xA0|btn&0x0F)<<48 | 0xF<<44 | uint64(cnt&0xFFFF)<<24 | uint64(serial&0xFFFFFF))
}

// PressDuration builds the counter a Keytis remote sends on its n'th
// parcel while a button is held.
func PressDuration(n uint8) uint32 {
	short := n
	if short > 0x0F {
		short = 0x0F
	}
	pdc := 0x3<<22 | uint32(short)<<18 | uint32(n)<<4

	var sum uint32
	for i := 4; i < 24; i += 4 {
		sum ^= pdc >> i
	}
	return pdc | sum&0x0F
}

type Fields struct {
	Key    uint8
	Btn    uint8
	Cnt    uint32
	Serial uint32
}

func TelisFields(data uint64) Fields {
	plain := Deobfuscate(data)
	return Fields{
		Key:    uint8(plain >> 48),
		Btn:    uint8(plain>>44) & 0x0F,
		Cnt:    uint32(plain>>24) & 0xFFFF,
		Serial: uint32(plain) & 0xFFFFFF,
	}
}

func KeytisFields(data uint64) Fields {
	plain := Deobfuscate(data)
	return Fields{
		Key:    uint8(plain >> 52),
		Btn:    uint8(plain>>48) & 0x0F,
		Cnt:    uint32(plain>>24) & 0xFFFF,
		Serial: uint32(plain) & 0xFFFFFF,
	}
}

var telisButtons = map[uint8]string{
	0x1: "My",
	0x2: "Up",
	0x3: "My+Up",
	0x4: "Down",
	0x5: "My+Down",
	0x6: "Up+Down",
	0x8: "Prog",
	0x9: "Sun+Flag",
	0xA: "Flag",
}

func TelisButton(btn uint8) string {
	if name, ok := telisButtons[btn]; ok {
		return name
	}
	return "Unknown"
}

func KeytisButton(btn uint8) string {
	switch btn {
	case 0x0:
		return "Unknown"
	case 0x3:
		return "Prog"
	case 0x4:
		return "Key_1"
	}
	return fmt.Sprintf("0x%02X", btn&0x0F)
}

type Decoder struct {
	protocol.Base
	bits       uint8
	manchester manchester.Decoder

	// Press duration counter bits after the first 56.
	pdc uint64
}

func NewTelisDecoder(env *protocol.Environment) *Decoder {
	return newDecoder(TelisName, Const.MinCountBit)
}

func NewKeytisDecoder(env *protocol.Environment) *Decoder {
	return newDecoder(KeytisName, KeytisBits)
}

func newDecoder(name string, bits uint8) *Decoder {
	d := &Decoder{Base: protocol.NewBase(name, protocol.TypeDynamic), bits: bits}
	d.manchester.Reset()
	return d
}

func (d *Decoder) keytis() bool {
	return d.bits == KeytisBits
}

func (d *Decoder) Reset() {
	d.ResetBase()
	d.manchester.Reset()
	d.pdc = 0
}

func (d *Decoder) Parse(level bool, duration uint32) {
	switch d.Step {
	case stepReset:
		if level && pulse.Within(duration, Const.TeShort*4, Const.TeDelta*4) {
			d.Step = stepFoundPreambula
			d.HeaderCount++
		}
	case stepFoundPreambula:
		if !level && pulse.Within(duration, Const.TeShort*4, Const.TeDelta*4) {
			d.Step = stepCheckPreambula
			return
		}
		d.HeaderCount = 0
		d.Step = stepReset
	case stepCheckPreambula:
		if !level {
			return
		}
		if pulse.Within(duration, Const.TeShort*4, Const.TeDelta*4) {
			d.Step = stepFoundPreambula
			d.HeaderCount++
		} else if d.HeaderCount > 1 && pulse.Within(duration, Const.TeShort*7, Const.TeDelta*4) {
			d.Step = stepDecoderData
			d.Clear()
			d.pdc = 0

			// The software sync reads as the second half of a zero.
			d.manchester.Reset()
			d.manchester.Advance(manchester.LongHigh)
		}
	case stepDecoderData:
		event, ok := manchester.Classify(level, duration, Const.TeShort, Const.TeLong, Const.TeDelta)
		if !ok {
			if !level && duration >= Const.TeLong+Const.TeDelta {
				d.finish()
			}
			d.Step = stepReset
			d.HeaderCount = 0
			return
		}
		if !d.manchester.Allowed(event) {
			d.Step = stepReset
			d.HeaderCount = 0
			return
		}

		bit, ok := d.manchester.Advance(event)
		if !ok {
			return
		}
		var b uint8
		if bit {
			b = 1
		}
		if d.DecodeCountBit < Const.MinCountBit {
			d.AddBit(b)
		} else {
			d.pdc = d.pdc<<1 | uint64(b)
			d.DecodeCountBit++
		}
	}
}

func (d *Decoder) finish() {
	if d.DecodeCountBit == d.bits && Valid(d.DecodeData) {
		d.Data2 = 0
		if d.keytis() {
			d.Data2 = d.pdc & 0xFFFFFF
		}
		d.Publish(d.DecodeData, d.bits)
		d.Notify(d)
	}
	d.Clear()
	d.pdc = 0
}

func (d *Decoder) fields() Fields {
	if d.keytis() {
		return KeytisFields(d.Data)
	}
	return TelisFields(d.Data)
}

func (d *Decoder) button(btn uint8) string {
	if d.keytis() {
		return KeytisButton(btn)
	}
	return TelisButton(btn)
}

func (d *Decoder) Command() protocol.Command {
	f := d.fields()

	cmd := d.NewCommand()
	cmd.Serial = f.Serial
	cmd.Btn = f.Btn
	cmd.Cnt = f.Cnt
	cmd.Note = d.button(f.Btn)
	return cmd
}

func (d *Decoder) String() string {
	f := d.fields()
	if d.keytis() {
		return fmt.Sprintf("%s %db\r\n%X%08X%06X\r\nSn:0x%06X \r\nCnt:0x%04X\r\nBtn:%s\r\n",
			d.Name(), d.DataCountBit,
			uint32(d.Data>>32), uint32(d.Data), uint32(d.Data2),
			f.Serial, f.Cnt, d.button(f.Btn),
		)
	}
	return fmt.Sprintf("%s %db\r\nKey:0x%X%08X\r\nSn:0x%06X \r\nCnt:0x%04X\r\nBtn:%s\r\n",
		d.Name(), d.DataCountBit,
		uint32(d.Data>>32), uint32(d.Data),
		f.Serial, f.Cnt, d.button(f.Btn),
	)
}

func (d *Decoder) Serialize(f *fff.File) error {
	d.Base.Serialize(f)
	if d.keytis() {
		f.SetUint32("Duration_Counter", uint32(d.Data2))
	}
	return nil
}

func (d *Decoder) Deserialize(f *fff.File) error {
	if err := d.Base.Deserialize(f); err != nil {
		return err
	}
	if err := protocol.CheckBits(d.DataCountBit, d.bits); err != nil {
		return err
	}

	d.Data2 = 0
	if d.keytis() {
		pdc, err := f.Uint32("Duration_Counter")
		if err != nil {
			return err
		}
		d.Data2 = uint64(pdc)
	}
	return nil
}

type Encoder struct {
	protocol.Transmitter
	bits uint8
}

func NewTelisEncoder(env *protocol.Environment) *Encoder {
	return &Encoder{Transmitter: protocol.NewTransmitter(TelisName, defaultRepeat), bits: Const.MinCountBit}
}

func NewKeytisEncoder(env *protocol.Environment) *Encoder {
	return &Encoder{Transmitter: protocol.NewTransmitter(KeytisName, defaultRepeat), bits: KeytisBits}
}

func (e *Encoder) keytis() bool {
	return e.bits == KeytisBits
}

// Load builds a frame from serial, button and counter, or replays the job's
// frame when it has no serial. One upload is a wake up pulse and three
// frames.
func (e *Encoder) Load(job protocol.Job) error {
	if job.Bits == 0 {
		job.Bits = e.bits
	}
	if err := protocol.CheckBits(job.Bits, e.bits); err != nil {
		return err
	}

	data := job.Data
	if data == 0 || job.Serial != 0 {
		if e.keytis() {
			data = KeytisFrame(job.Btn, job.Cnt, job.Serial)
		} else {
			data = TelisFrame(0xA0|uint8(job.Cnt&0x0F), job.Btn, job.Cnt, job.Serial)
		}
	}

	// Hardware sync pairs on the first and on the following frames.
	first, rest := 2, 7
	if e.keytis() {
		first, rest = 12, 6
	}

	upload := []pulse.Sample{pulse.High(wakeHigh), pulse.Low(wakeLow)}
	for i := 0; i < frames; i++ {
		n := rest
		if i == 0 {
			n = first
		}
		for j := 0; j < n; j++ {
			upload = append(upload, pulse.High(Const.TeShort*4), pulse.Low(Const.TeShort*4))
		}
		upload = append(upload, pulse.High(syncHigh), pulse.Low(Const.TeShort))

		upload = manchester.AppendBits(upload, data, Const.MinCountBit, Const.TeShort)
		if e.keytis() {
			upload = manchester.AppendBits(upload, uint64(PressDuration(uint8(i+1))), 24, Const.TeShort)
		}
		upload = pulse.Append(upload, pulse.Low(Const.TeShort*3))
	}
	upload[len(upload)-1].Duration += gap - Const.TeShort*3

	e.Start(upload, job.Repeat)
	return nil
}

// Deserialize transmits the press following the saved frame.
func (e *Encoder) Deserialize(f *fff.File) error {
	job, err := protocol.JobFromFile(f)
	if err != nil {
		return err
	}

	fields := TelisFields(job.Data)
	if e.keytis() {
		fields = KeytisFields(job.Data)
	}
	job.Data = 0
	job.Serial = fields.Serial
	job.Btn = fields.Btn
	job.Cnt = fields.Cnt + 1
	if job.Cnt > 0xFFFF {
		job.Cnt = 0
	}

	return e.Load(job)
}

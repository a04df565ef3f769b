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

// Package protocol defines what every remote control protocol shares: its
// timing table, the in-progress decoder state, the last decoded frame, the
// decoder and encoder contracts, and the registry that fans samples out to
// every decoder.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/pulse"
)

var (
	ErrNotFound  = errors.New("protocol: not found")
	ErrDuplicate = errors.New("protocol: already registered")
	ErrBitCount  = errors.New("protocol: wrong number of bits")
	ErrKey       = errors.New("protocol: malformed key")
	ErrNoKey     = errors.New("protocol: manufacturer key unavailable")
	ErrNoTable   = errors.New("protocol: lookup table unavailable")
)

// Saved signal file header.
const (
	KeyFileType    = "Flipper SubGhz Key File"
	KeyFileVersion = 1
	RawFileType    = "Flipper SubGhz RAW File"
)

type Type uint8

const (
	TypeUnknown Type = iota
	TypeStatic
	TypeDynamic
	TypeRAW
)

func (t Type) String() string {
	switch t {
	case TypeStatic:
		return "Static"
	case TypeDynamic:
		return "Dynamic"
	case TypeRAW:
		return "RAW"
	}
	return "Unknown"
}

// Const is a protocol's timing table, durations in microseconds.
type Const struct {
	TeShort     uint32
	TeLong      uint32
	TeDelta     uint32
	MinCountBit uint8
}

func (c Const) Short(duration uint32) bool {
	return pulse.Within(duration, c.TeShort, c.TeDelta)
}

func (c Const) Long(duration uint32) bool {
	return pulse.Within(duration, c.TeLong, c.TeDelta)
}

// Block is the state a decoder mutates while a frame is in progress.
type Block struct {
	Step           uint8
	DecodeData     uint64
	DecodeCountBit uint8
	TeLast         uint32
	HeaderCount    uint16
}

// AddBit shifts bit into the accumulator.
func (b *Block) AddBit(bit uint8) {
	b.DecodeData = b.DecodeData<<1 | uint64(bit&1)
	b.DecodeCountBit++
}

// Clear empties the accumulator.
func (b *Block) Clear() {
	b.DecodeData = 0
	b.DecodeCountBit = 0
}

// Generic is the last fully decoded frame plus the fields recovered from it.
type Generic struct {
	Data         uint64
	DataCountBit uint8
	Data2        uint64

	Serial       uint32
	Btn          uint8
	Cnt          uint32
	Seed         uint32
	Manufacturer string
}

// Publish replaces the last found code. Code and bit count always change
// together.
func (g *Generic) Publish(data uint64, bits uint8) {
	g.Data = data
	g.DataCountBit = bits
}

// Serialize writes the common key fields.
func (g *Generic) Serialize(f *fff.File, name string) {
	f.Set("Protocol", name)
	f.SetUint32("Bit", uint32(g.DataCountBit))

	var key [8]byte
	binary.BigEndian.PutUint64(key[:], g.Data)
	f.SetHex("Key", key[:])
}

// Deserialize reads the common key fields.
func (g *Generic) Deserialize(f *fff.File) error {
	bits, err := f.Uint32("Bit")
	if err != nil {
		return err
	}
	if bits == 0 || bits > 128 {
		return errors.Wrapf(ErrBitCount, "%d", bits)
	}

	key, err := f.Hex("Key")
	if err != nil {
		return err
	}
	data, err := KeyToUint64(key)
	if err != nil {
		return err
	}

	g.Data = data
	g.DataCountBit = uint8(bits)
	return nil
}

// KeyToUint64 folds a big endian byte array of at most 8 bytes.
func KeyToUint64(key []byte) (data uint64, err error) {
	if len(key) == 0 || len(key) > 8 {
		return 0, errors.Wrapf(ErrKey, "%d bytes", len(key))
	}
	for _, b := range key {
		data = data<<8 | uint64(b)
	}
	return data, nil
}

// ReverseKey mirrors the low bits of key.
func ReverseKey(key uint64, bits uint8) (out uint64) {
	for i := uint8(0); i < bits; i++ {
		out = out<<1 | key>>i&1
	}
	return out
}

// NewKeyFile starts a saved signal file for a frame received on frequency.
func NewKeyFile(frequency uint32, preset string) *fff.File {
	f := fff.New()
	f.Set("Filetype", KeyFileType)
	f.SetUint32("Version", KeyFileVersion)
	f.SetUint32("Frequency", frequency)
	f.Set("Preset", preset)
	return f
}

// CheckBits returns ErrBitCount unless bits is one of allowed.
func CheckBits(bits uint8, allowed ...uint8) error {
	for _, a := range allowed {
		if bits == a {
			return nil
		}
	}
	return errors.Wrapf(ErrBitCount, "%d not in %v", bits, allowed)
}

func formatKey(data uint64, bits uint8) string {
	if bits > 32 {
		return fmt.Sprintf("%08X%08X", uint32(data>>32), uint32(data))
	}
	return fmt.Sprintf("%08X", uint32(data))
}

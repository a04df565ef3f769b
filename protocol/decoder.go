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

package protocol

import (
	"fmt"
	"strconv"

	"github.com/bemasher/subghz/fff"
)

// Callback is invoked from Parse, on the dispatching goroutine, whenever a
// decoder publishes a complete frame.
type Callback func(Decoder)

// A Decoder is one protocol's state machine.
//
// Parse consumes exactly one sample, never blocks and never panics on any
// input. Malformed timing silently returns the decoder to its initial step.
// Reset returns the decoder to the state of a freshly constructed one,
// keeping its callback.
type Decoder interface {
	Name() string
	Type() Type
	Reset()
	Parse(level bool, duration uint32)
	SetCallback(Callback)

	// Command derives the human meaningful fields of the last found frame,
	// resolving rolling codes where the protocol has them.
	Command() Command
	String() string

	Serialize(f *fff.File) error
	Deserialize(f *fff.File) error
}

// Base carries what every decoder has in common. Protocol decoders embed it
// and implement Parse, Reset and Command.
type Base struct {
	Block
	Generic

	name     string
	typ      Type
	callback Callback
}

func NewBase(name string, typ Type) Base {
	return Base{name: name, typ: typ}
}

func (b *Base) Name() string { return b.name }
func (b *Base) Type() Type   { return b.typ }

func (b *Base) SetCallback(cb Callback) {
	b.callback = cb
}

// Notify invokes the callback with self.
func (b *Base) Notify(self Decoder) {
	if b.callback != nil {
		b.callback(self)
	}
}

// ResetBase clears the in-progress and last found state.
func (b *Base) ResetBase() {
	b.Block = Block{}
	b.Generic = Generic{}
}

// Command returns the raw frame with no fields derived.
func (b *Base) Command() Command {
	return b.NewCommand()
}

// NewCommand fills in the fields every command has.
func (b *Base) NewCommand() Command {
	return Command{
		Protocol: b.name,
		Type:     b.typ,
		Data:     b.Data,
		Bits:     b.DataCountBit,
		Data2:    b.Data2,
	}
}

func (b *Base) Serialize(f *fff.File) error {
	b.Generic.Serialize(f, b.name)
	return nil
}

func (b *Base) Deserialize(f *fff.File) error {
	return b.Generic.Deserialize(f)
}

// Command is a decoded frame. It is built on demand and not retained by the
// decoder.
type Command struct {
	Protocol string
	Type     Type
	Data     uint64
	Bits     uint8
	Data2    uint64

	Serial       uint32
	Btn          uint8
	Cnt          uint32
	Seed         uint32
	Manufacturer string

	// Protocol specific remarks such as a checksum result.
	Note string
}

// Key returns the frame as it is written to a saved signal file.
func (c Command) Key() string {
	return formatKey(c.Data, c.Bits)
}

func (c Command) String() string {
	s := fmt.Sprintf("{Protocol:%s Bits:%d Key:0x%s Serial:0x%07X Btn:0x%X",
		c.Protocol, c.Bits, c.Key(), c.Serial, c.Btn,
	)
	if c.Type == TypeDynamic {
		s += fmt.Sprintf(" Cnt:0x%04X", c.Cnt)
	}
	if c.Manufacturer != "" {
		s += " Manufacturer:" + c.Manufacturer
	}
	if c.Note != "" {
		s += " Note:" + c.Note
	}
	return s + "}"
}

func (c Command) Record() (r []string) {
	r = append(r, c.Protocol)
	r = append(r, c.Type.String())
	r = append(r, strconv.FormatUint(uint64(c.Bits), 10))
	r = append(r, c.Key())
	r = append(r, "0x"+strconv.FormatUint(uint64(c.Serial), 16))
	r = append(r, strconv.FormatUint(uint64(c.Btn), 10))
	r = append(r, strconv.FormatUint(uint64(c.Cnt), 10))
	r = append(r, c.Manufacturer)
	r = append(r, c.Note)
	return r
}

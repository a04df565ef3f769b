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
	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/pulse"
)

// A Job is what an encoder transmits: either a raw frame (Data, Bits) or the
// fields a rolling code encoder builds a fresh frame from.
type Job struct {
	Data  uint64
	Bits  uint8
	Data2 uint64

	Serial       uint32
	Btn          uint8
	Cnt          uint32
	Seed         uint32
	Manufacturer string

	// Number of times the upload is sent; zero selects the protocol default.
	Repeat int
}

// JobFromFile reads the common key fields plus the optional Repeat, Seed
// and Manufacture fields.
func JobFromFile(f *fff.File) (job Job, err error) {
	var g Generic
	if err = g.Deserialize(f); err != nil {
		return job, err
	}
	job.Data = g.Data
	job.Bits = g.DataCountBit

	if _, ok := f.Get("Repeat"); ok {
		repeat, err := f.Uint32("Repeat")
		if err != nil {
			return job, err
		}
		job.Repeat = int(repeat)
	}

	if _, ok := f.Get("Seed"); ok {
		seed, err := f.Hex("Seed")
		if err != nil {
			return job, err
		}
		s, err := KeyToUint64(seed)
		if err != nil {
			return job, errors.Wrap(err, "seed")
		}
		job.Seed = uint32(s)
	}

	job.Manufacturer, _ = f.Get("Manufacture")

	return job, nil
}

// An Encoder turns a job into a restartable sequence of samples.
type Encoder interface {
	Name() string
	Load(Job) error
	Deserialize(f *fff.File) error

	// Yield returns the next sample, or the zero Sample once every repeat
	// has been sent or the encoder was stopped.
	Yield() pulse.Sample
	Stop()
	Restart()
	Running() bool
}

// Transmitter walks a prepared upload a number of times. Protocol encoders
// embed it and call Start from Load.
type Transmitter struct {
	name          string
	defaultRepeat int

	upload    []pulse.Sample
	repeat    int
	remaining int
	front     int
	running   bool
}

func NewTransmitter(name string, defaultRepeat int) Transmitter {
	return Transmitter{name: name, defaultRepeat: defaultRepeat}
}

func (t *Transmitter) Name() string { return t.name }

// Start installs upload and begins transmission.
func (t *Transmitter) Start(upload []pulse.Sample, repeat int) {
	if repeat <= 0 {
		repeat = t.defaultRepeat
	}
	t.upload = upload
	t.repeat = repeat
	t.Restart()
}

// Restart rewinds to the first sample of the first repeat.
func (t *Transmitter) Restart() {
	t.front = 0
	t.remaining = t.repeat
	t.running = len(t.upload) > 0 && t.repeat > 0
}

func (t *Transmitter) Stop() {
	t.running = false
}

func (t *Transmitter) Running() bool {
	return t.running
}

func (t *Transmitter) Yield() pulse.Sample {
	if !t.running || t.remaining == 0 {
		t.running = false
		return pulse.Sample{}
	}

	s := t.upload[t.front]
	t.front++
	if t.front == len(t.upload) {
		t.front = 0
		t.remaining--
	}
	return s
}

// Upload returns a copy of one repeat of the prepared sequence.
func (t *Transmitter) Upload() []pulse.Sample {
	return append([]pulse.Sample(nil), t.upload...)
}

// Drain collects every sample e yields.
func Drain(e Encoder) (samples []pulse.Sample) {
	for {
		s := e.Yield()
		if s.IsReset() {
			return samples
		}
		samples = append(samples, s)
	}
}

// AppendPWM appends the low n bits of data, most significant first, with
// one and zero each given as a high then low pair.
func AppendPWM(samples []pulse.Sample, data uint64, n uint8, one, zero [2]uint32) []pulse.Sample {
	for i := n; i > 0; i-- {
		pair := zero
		if data>>(i-1)&1 == 1 {
			pair = one
		}
		samples = append(samples, pulse.High(pair[0]), pulse.Low(pair[1]))
	}
	return samples
}

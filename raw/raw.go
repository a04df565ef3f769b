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

// Package raw records and replays signals without interpreting them. A
// recording is kept as signed durations, positive for high and negative for
// low, and saved as RAW_Data lines of a saved signal file.
package raw

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

const Name = "RAW"

const (
	// BufferSize is the number of samples handed to the flush function at
	// once.
	BufferSize = 512

	// MaxDuration is the longest duration recorded; longer ones are clamped.
	MaxDuration = pulse.MaxDuration

	defaultRepeat = 1
)

var (
	ErrEmpty   = errors.New("raw: no samples")
	ErrSamples = errors.New("raw: malformed RAW_Data")
)

// FlushFunc receives a full or final batch of samples. The batch belongs to
// the callee.
type FlushFunc func(batch []int32)

// Decoder records every sample it is fed.
type Decoder struct {
	protocol.Base

	flush FlushFunc
	buf   [BufferSize]int32
	n     int
	total int
}

func NewDecoder(flush FlushFunc) *Decoder {
	return &Decoder{Base: protocol.NewBase(Name, protocol.TypeRAW), flush: flush}
}

// Reset discards buffered samples without flushing them.
func (d *Decoder) Reset() {
	d.ResetBase()
	d.n = 0
	d.total = 0
}

func (d *Decoder) Parse(level bool, duration uint32) {
	if duration == 0 {
		return
	}
	if duration > MaxDuration {
		duration = MaxDuration
	}

	d.buf[d.n] = pulse.Make(level, duration).Signed()
	d.n++
	d.total++

	if d.n == BufferSize {
		d.Finalize()
	}
}

// Finalize hands the buffered samples, if any, to the flush function.
func (d *Decoder) Finalize() {
	if d.n == 0 {
		return
	}

	batch := make([]int32, d.n)
	copy(batch, d.buf[:d.n])
	d.n = 0

	if d.flush != nil {
		d.flush(batch)
	}
}

// Total is the number of samples recorded since the last reset.
func (d *Decoder) Total() int {
	return d.total
}

func (d *Decoder) Command() protocol.Command {
	cmd := d.NewCommand()
	cmd.Note = strconv.Itoa(d.total) + " samples"
	return cmd
}

func (d *Decoder) String() string {
	return Name + " " + strconv.Itoa(d.total) + " samples\r\n"
}

// Serialize writes the file header fields. Samples are added by a Writer.
func (d *Decoder) Serialize(f *fff.File) error {
	f.Set("Filetype", protocol.RawFileType)
	f.Set("Protocol", Name)
	return nil
}

func (d *Decoder) Deserialize(f *fff.File) error {
	if name, _ := f.Get("Protocol"); name != Name {
		return errors.Wrapf(protocol.ErrNotFound, "raw: protocol %q", name)
	}
	return nil
}

// Encode formats samples as one RAW_Data value.
func Encode(samples []int32) string {
	var b strings.Builder
	for i, s := range samples {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(int64(s), 10))
	}
	return b.String()
}

// Decode parses a RAW_Data value. Values may be separated by spaces or
// commas.
func Decode(line string) (samples []int32, err error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	for _, field := range fields {
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return nil, errors.Wrap(ErrSamples, err.Error())
		}
		if v == 0 {
			return nil, errors.Wrap(ErrSamples, "zero duration")
		}
		samples = append(samples, int32(v))
	}
	return samples, nil
}

// NewFile starts a RAW saved signal file.
func NewFile(frequency uint32, preset string) *fff.File {
	f := fff.New()
	f.Set("Filetype", protocol.RawFileType)
	f.SetUint32("Version", protocol.KeyFileVersion)
	f.SetUint32("Frequency", frequency)
	f.Set("Preset", preset)
	f.Set("Protocol", Name)
	return f
}

// Writer collects flushed batches as RAW_Data lines. Its Flush method is a
// FlushFunc.
type Writer struct {
	File *fff.File
}

func (w Writer) Flush(batch []int32) {
	w.File.Add("RAW_Data", Encode(batch))
}

// Samples reads every RAW_Data line of f.
func Samples(f *fff.File) (samples []pulse.Sample, err error) {
	for _, line := range f.All("RAW_Data") {
		values, err := Decode(line)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			samples = append(samples, pulse.FromSigned(v))
		}
	}
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	return samples, nil
}

// Encoder replays a recording.
type Encoder struct {
	protocol.Transmitter
	samples []pulse.Sample
}

func NewEncoder() *Encoder {
	return &Encoder{Transmitter: protocol.NewTransmitter(Name, defaultRepeat)}
}

// Load replays the samples loaded by Deserialize or SetSamples Repeat times.
func (e *Encoder) Load(job protocol.Job) error {
	if len(e.samples) == 0 {
		return ErrEmpty
	}
	e.Start(e.samples, job.Repeat)
	return nil
}

// SetSamples replaces the recording and starts it once.
func (e *Encoder) SetSamples(samples []pulse.Sample) error {
	e.samples = samples
	return e.Load(protocol.Job{})
}

func (e *Encoder) Deserialize(f *fff.File) error {
	samples, err := Samples(f)
	if err != nil {
		return err
	}

	var job protocol.Job
	if _, ok := f.Get("Repeat"); ok {
		repeat, err := f.Uint32("Repeat")
		if err != nil {
			return err
		}
		job.Repeat = int(repeat)
	}

	e.samples = samples
	return e.Load(job)
}

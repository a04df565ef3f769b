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

package pulse

import (
	"fmt"
	"math"
)

// A Demodulator knows how to demodulate an array of uint8 IQ samples into an
// array of float64 samples.
type Demodulator interface {
	Execute([]byte, []float64)
}

// Default Magnitude Lookup Table
type MagLUT []float64

// Pre-computes normalized squares with most common DC offset for rtl-sdr dongles.
func NewMagLUT() (lut MagLUT) {
	lut = make([]float64, 0x100)
	for idx := range lut {
		lut[idx] = (127.5 - float64(idx)) / 127.5
		lut[idx] *= lut[idx]
	}
	return
}

// Calculates complex magnitude on given IQ stream writing result to output.
func (lut MagLUT) Execute(input []byte, output []float64) {
	i := 0
	for idx := range output {
		output[idx] = lut[input[i]] + lut[input[i+1]]
		i += 2
	}
}

// Power returns the mean magnitude of an IQ block in dB relative to full
// scale.
func (lut MagLUT) Power(input []byte) float64 {
	if len(input) < 2 {
		return math.Inf(-1)
	}

	var sum float64
	for i := 0; i+1 < len(input); i += 2 {
		sum += lut[input[i]] + lut[input[i+1]]
	}
	mean := sum / float64(len(input)>>1)

	return 10 * math.Log10(mean/2)
}

// A Slicer turns a stream of IQ blocks into duration/level samples by
// thresholding the signal magnitude. Runs are carried across blocks so a
// pulse split by a block boundary is reported once.
type Slicer struct {
	SampleRate uint32
	Threshold  float64

	demod Demodulator
	mag   []float64
	level bool
	run   uint64
}

// NewSlicer returns a slicer for the given sample rate. Threshold is
// compared against the squared magnitude produced by MagLUT; the falling
// edge uses three quarters of it for hysteresis.
func NewSlicer(sampleRate uint32, threshold float64) *Slicer {
	return &Slicer{
		SampleRate: sampleRate,
		Threshold:  threshold,
		demod:      NewMagLUT(),
	}
}

func (s *Slicer) String() string {
	return fmt.Sprintf("{SampleRate:%d Threshold:%0.3f}", s.SampleRate, s.Threshold)
}

// Slice demodulates block and appends every completed run to out.
func (s *Slicer) Slice(block []byte, out []Sample) []Sample {
	n := len(block) >> 1
	if cap(s.mag) < n {
		s.mag = make([]float64, n)
	}
	mag := s.mag[:n]
	s.demod.Execute(block, mag)

	rise := s.Threshold
	fall := s.Threshold * 0.75

	for _, m := range mag {
		level := s.level
		if s.level {
			level = m >= fall
		} else {
			level = m > rise
		}

		if level != s.level {
			out = s.emit(out)
			s.level = level
		}
		s.run++
	}

	return out
}

// Flush appends the run in progress, if any.
func (s *Slicer) Flush(out []Sample) []Sample {
	return s.emit(out)
}

func (s *Slicer) emit(out []Sample) []Sample {
	if s.run == 0 || s.SampleRate == 0 {
		return out
	}

	us := (s.run*1000000 + uint64(s.SampleRate)/2) / uint64(s.SampleRate)
	if us > math.MaxUint32 {
		us = math.MaxUint32
	}
	s.run = 0

	if us == 0 {
		return out
	}
	return append(out, Sample{s.level, uint32(us)})
}

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

// Package pulse holds the duration/level sample every decoder consumes and
// the OOK front-end that produces them from rtl-sdr IQ blocks.
package pulse

import (
	"math"
	"strconv"
)

// A Sample is the signal held at Level for Duration microseconds.
//
// The zero Sample has no duration and is used by encoders to signal the end
// of their output.
type Sample struct {
	Level    bool
	Duration uint32
}

func Make(level bool, duration uint32) Sample {
	return Sample{level, duration}
}

func High(duration uint32) Sample { return Sample{true, duration} }
func Low(duration uint32) Sample  { return Sample{false, duration} }

// IsReset reports whether s is the end-of-sequence marker.
func (s Sample) IsReset() bool {
	return s.Duration == 0
}

// Signed returns the RAW_Data form of s: positive for high, negative for low.
func (s Sample) Signed() int32 {
	d := s.Duration
	if d > math.MaxInt32 {
		d = math.MaxInt32
	}
	if s.Level {
		return int32(d)
	}
	return -int32(d)
}

// FromSigned is the inverse of Signed.
func FromSigned(v int32) Sample {
	if v < 0 {
		return Sample{false, uint32(-int64(v))}
	}
	return Sample{true, uint32(v)}
}

func (s Sample) String() string {
	if s.Level {
		return "+" + strconv.FormatUint(uint64(s.Duration), 10)
	}
	return "-" + strconv.FormatUint(uint64(s.Duration), 10)
}

// A Sink consumes samples in arrival order.
type Sink interface {
	Parse(level bool, duration uint32)
}

// Feed delivers each sample in samples to sink.
func Feed(sink Sink, samples []Sample) {
	for _, s := range samples {
		sink.Parse(s.Level, s.Duration)
	}
}

// Append adds s to samples, extending the last sample instead when both
// have the same level.
func Append(samples []Sample, s Sample) []Sample {
	if n := len(samples); n > 0 && samples[n-1].Level == s.Level {
		samples[n-1].Duration += s.Duration
		return samples
	}
	return append(samples, s)
}

// DurationDiff is the absolute difference between two durations.
func DurationDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// Within reports whether duration is no more than delta away from nominal.
// This is the single tolerance rule every decoder applies.
func Within(duration, nominal, delta uint32) bool {
	return DurationDiff(duration, nominal) <= delta
}

// MaxDuration is the longest duration a RAW recording holds. Longer
// durations are stored as MaxDuration.
const MaxDuration = 32700

// WithinGap is Within for gaps that may be longer than MaxDuration. A
// recorded gap clamped to MaxDuration matches any nominal whose tolerance
// window reaches past it.
func WithinGap(duration, nominal, delta uint32) bool {
	if duration == MaxDuration && nominal+delta > MaxDuration {
		return true
	}
	return Within(duration, nominal, delta)
}

// Package manchester decodes and encodes Manchester line coding expressed as
// pulse durations.
//
// A one is sent low then high, a zero high then low. Adjacent half bits of
// the same level merge into a single long pulse, so the decoder works on
// short and long pulse events rather than on half bits.
package manchester

import "github.com/bemasher/subghz/pulse"

type State uint8

const (
	Start1 State = iota
	Mid1
	Mid0
	Start0
)

type Event uint8

const (
	ShortLow  Event = 0
	ShortHigh Event = 2
	LongLow   Event = 4
	LongHigh  Event = 6
	Reset     Event = 8
)

func (e Event) String() string {
	switch e {
	case ShortLow:
		return "ShortLow"
	case ShortHigh:
		return "ShortHigh"
	case LongLow:
		return "LongLow"
	case LongHigh:
		return "LongHigh"
	}
	return "Reset"
}

// Next state for each state, two bits per event.
var transitions = [4]uint8{
	0x01, // Start1
	0x91, // Mid1
	0x9B, // Mid0
	0xFB, // Start0
}

// Advance returns the state following event. Entering Mid1 yields a one and
// entering Mid0 a zero. An event that is not allowed from state, or Reset,
// returns to Mid1 without yielding a bit.
func Advance(state State, event Event) (next State, bit, ok bool) {
	if event >= Reset {
		return Mid1, false, false
	}

	next = State(transitions[state&3]>>event) & 3
	switch {
	case next == state:
		return Mid1, false, false
	case next == Mid0:
		return next, false, true
	case next == Mid1:
		return next, true, true
	}
	return next, false, false
}

// Allowed reports whether event is a legal continuation from state. Any
// other event means the signal was lost.
func Allowed(state State, event Event) bool {
	if event >= Reset {
		return false
	}
	return State(transitions[state&3]>>event)&3 != state
}

// A Decoder tracks the state between pulses. Call Reset before first use.
type Decoder struct {
	state State
}

func (d *Decoder) Reset() {
	d.state = Mid1
}

func (d *Decoder) State() State {
	return d.state
}

func (d *Decoder) Allowed(event Event) bool {
	return Allowed(d.state, event)
}

// Advance feeds one event and reports the decoded bit, if any.
func (d *Decoder) Advance(event Event) (bit, ok bool) {
	d.state, bit, ok = Advance(d.state, event)
	return bit, ok
}

// Classify maps a pulse to its event. It reports false when the duration is
// neither short nor long.
func Classify(level bool, duration, short, long, delta uint32) (Event, bool) {
	switch {
	case pulse.Within(duration, short, delta) && level:
		return ShortHigh, true
	case pulse.Within(duration, short, delta):
		return ShortLow, true
	case pulse.Within(duration, long, delta) && level:
		return LongHigh, true
	case pulse.Within(duration, long, delta):
		return LongLow, true
	}
	return Reset, false
}

// AppendBit encodes bit as two half bits of te each.
func AppendBit(samples []pulse.Sample, bit bool, te uint32) []pulse.Sample {
	samples = pulse.Append(samples, pulse.Make(!bit, te))
	return pulse.Append(samples, pulse.Make(bit, te))
}

// AppendBits encodes the low n bits of data, most significant first.
func AppendBits(samples []pulse.Sample, data uint64, n uint8, te uint32) []pulse.Sample {
	for i := n; i > 0; i-- {
		samples = AppendBit(samples, data>>(i-1)&1 == 1, te)
	}
	return samples
}

// Package prototest holds the helpers protocol package tests share.
package prototest

import (
	"testing"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

// Idle is the silence a receiver sees after a transmission ends.
const Idle = 100000

// Capture feeds samples to d and returns the command of every frame d
// published along the way.
func Capture(d protocol.Decoder, samples []pulse.Sample) (cmds []protocol.Command) {
	d.SetCallback(func(d protocol.Decoder) {
		cmds = append(cmds, d.Command())
	})
	pulse.Feed(d, samples)
	return cmds
}

// Transmit loads job into e and returns every sample it yields, followed by
// idle low time.
func Transmit(t testing.TB, e protocol.Encoder, job protocol.Job) []pulse.Sample {
	t.Helper()
	if err := e.Load(job); err != nil {
		t.Fatalf("%+v\n", err)
	}
	return pulse.Append(protocol.Drain(e), pulse.Low(Idle))
}

// Replace returns a copy of samples with the duration at idx changed.
func Replace(samples []pulse.Sample, idx int, duration uint32) []pulse.Sample {
	out := append([]pulse.Sample(nil), samples...)
	out[idx].Duration = duration
	return out
}

// Index returns the position of the n'th sample (from zero) with the given
// level and duration, or -1.
func Index(samples []pulse.Sample, level bool, duration uint32, n int) int {
	for idx, s := range samples {
		if s.Level == level && s.Duration == duration {
			if n == 0 {
				return idx
			}
			n--
		}
	}
	return -1
}

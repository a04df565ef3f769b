package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/protocols"
	"github.com/bemasher/subghz/pulse"
)

func TestSettle(t *testing.T) {
	enc, err := protocols.NewEncoder("Princeton", nil)
	require.NoError(t, err)
	require.NoError(t, enc.Load(protocol.Job{Serial: 0x5A5A5, Btn: 0x4, Repeat: 3}))

	// Recording stops right after the stop bit of the last press.
	samples := protocol.Drain(enc)
	samples = samples[:len(samples)-1]
	require.True(t, samples[len(samples)-1].Level)

	decode := func(samples []pulse.Sample) int {
		d, err := protocols.NewDecoder("Princeton", nil)
		require.NoError(t, err)
		return len(prototest.Capture(d, samples))
	}

	assert.Equal(t, 1, decode(samples))
	assert.Equal(t, 2, decode(settle(samples)))

	// A recording ending in silence only has it extended.
	settled := settle(append(samples, pulse.Low(100)))
	assert.Equal(t, len(samples)+1, len(settled))
	assert.Equal(t, pulse.Low(100+pulse.MaxDuration), settled[len(settled)-1])
}

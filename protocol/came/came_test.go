package came

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
)

func TestRoundTrip(t *testing.T) {
	for _, job := range []protocol.Job{
		{Data: 0xA5C, Bits: 12, Repeat: 3},
		{Data: 0x123456, Bits: 24, Repeat: 3},
	} {
		samples := prototest.Transmit(t, NewEncoder(nil), job)

		cmds := prototest.Capture(NewDecoder(nil), samples)
		require.Len(t, cmds, job.Repeat)
		for _, cmd := range cmds {
			assert.Equal(t, job.Data, cmd.Data)
			assert.Equal(t, job.Bits, cmd.Bits)
			assert.Equal(t, uint32(job.Data), cmd.Serial)
		}
	}
}

func TestTolerance(t *testing.T) {
	enc := NewEncoder(nil)
	samples := prototest.Transmit(t, enc, protocol.Job{Data: 0x800, Bits: 12, Repeat: 1})

	// Header, start bit, then a one: long low.
	require.Equal(t, Const.TeLong, samples[2].Duration)

	edge := prototest.Replace(samples, 2, Const.TeLong+Const.TeDelta)
	assert.Len(t, prototest.Capture(NewDecoder(nil), edge), 1)

	over := prototest.Replace(samples, 2, Const.TeLong+Const.TeDelta+1)
	assert.Empty(t, prototest.Capture(NewDecoder(nil), over))
}

func TestBadBitCount(t *testing.T) {
	assert.Error(t, NewEncoder(nil).Load(protocol.Job{Data: 1, Bits: 13}))
}

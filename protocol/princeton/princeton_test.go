package princeton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/pulse"
)

func TestRoundTrip(t *testing.T) {
	samples := prototest.Transmit(t, NewEncoder(nil), protocol.Job{Serial: 0x5A5A5, Btn: 0x4, Bits: 24, Repeat: 3})

	cmds := prototest.Capture(NewDecoder(nil), samples)
	require.Len(t, cmds, 2)
	for _, cmd := range cmds {
		assert.Equal(t, uint64(0x5A5A54), cmd.Data)
		assert.Equal(t, uint8(24), cmd.Bits)
		assert.Equal(t, uint32(0x5A5A5), cmd.Serial)
		assert.Equal(t, uint8(0x4), cmd.Btn)
		assert.Equal(t, "Te:400us", cmd.Note)
	}
}

func TestTolerance(t *testing.T) {
	enc := NewEncoder(nil)
	samples := prototest.Transmit(t, enc, protocol.Job{Data: 0x5A5A54, Bits: 24, Repeat: 2})

	// The first data bit of the second frame is a zero: short high, long low.
	idx := len(enc.Upload())
	require.Equal(t, pulse.High(Const.TeShort), samples[idx])

	edge := prototest.Replace(samples, idx, Const.TeShort+Const.TeDelta)
	assert.Len(t, prototest.Capture(NewDecoder(nil), edge), 1)

	over := prototest.Replace(samples, idx, Const.TeShort+Const.TeDelta+1)
	assert.Empty(t, prototest.Capture(NewDecoder(nil), over))
}

func TestShortFrame(t *testing.T) {
	enc := NewEncoder(nil)
	require.NoError(t, enc.Load(protocol.Job{Data: 0x5A5A54, Bits: 24, Repeat: 2}))
	upload := enc.Upload()

	// Drop the first data bit of every frame.
	var samples []pulse.Sample
	samples = append(samples, upload...)
	samples = append(samples, upload[2:]...)
	samples = pulse.Append(samples, pulse.Low(prototest.Idle))

	assert.Empty(t, prototest.Capture(NewDecoder(nil), samples))
}

func TestSerialize(t *testing.T) {
	dec := NewDecoder(nil)
	samples := prototest.Transmit(t, NewEncoder(nil), protocol.Job{Data: 0x123456, Bits: 24, Repeat: 2})
	require.Len(t, prototest.Capture(dec, samples), 1)

	f := protocol.NewKeyFile(433920000, "FuriHalSubGhzPresetOok650Async")
	require.NoError(t, dec.Serialize(f))
	te, err := f.Uint32("TE")
	require.NoError(t, err)
	assert.Equal(t, uint32(400), te)

	enc := NewEncoder(nil)
	require.NoError(t, enc.Deserialize(f))
	assert.Len(t, prototest.Capture(NewDecoder(nil), pulse.Append(protocol.Drain(enc), pulse.Low(prototest.Idle))), defaultRepeat-1)

	out := NewDecoder(nil)
	require.NoError(t, out.Deserialize(f))
	assert.Equal(t, dec.Command(), out.Command())
}

func TestBadBitCount(t *testing.T) {
	assert.Error(t, NewEncoder(nil).Load(protocol.Job{Data: 1, Bits: 12}))
}

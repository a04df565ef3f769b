package scherkhan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/pulse"
)

// burst builds a transmission with n bits following the start bit.
func burst(headers int, data uint64, n uint8) (samples []pulse.Sample) {
	for i := 0; i < headers; i++ {
		samples = append(samples, pulse.High(Const.TeShort*2), pulse.Low(Const.TeShort*2))
	}
	samples = append(samples, pulse.High(Const.TeShort), pulse.Low(Const.TeShort))
	samples = protocol.AppendPWM(samples, data, n,
		[2]uint32{Const.TeLong, Const.TeLong},
		[2]uint32{Const.TeShort, Const.TeShort},
	)
	return append(samples, pulse.High(Const.TeShort*2), pulse.Low(prototest.Idle))
}

func TestDynamic(t *testing.T) {
	cmds := prototest.Capture(NewDecoder(nil), burst(3, 0x2345678ABCDEF, DynamicBits-1))
	require.Len(t, cmds, 1)

	cmd := cmds[0]
	assert.Equal(t, uint64(0x2345678ABCDEF), cmd.Data)
	assert.Equal(t, uint8(DynamicBits), cmd.Bits)
	assert.Equal(t, uint32(0x234567A), cmd.Serial)
	assert.Equal(t, uint8(0x8), cmd.Btn)
	assert.Equal(t, uint32(0xCDEF), cmd.Cnt)
	assert.Equal(t, "MAGIC CODE, Dynamic", cmd.Note)
}

func TestStatic(t *testing.T) {
	cmds := prototest.Capture(NewDecoder(nil), burst(3, 0x2A5A5A5A5, 34))
	require.Len(t, cmds, 1)

	// Known length, unknown layout.
	assert.Equal(t, uint8(35), cmds[0].Bits)
	assert.Zero(t, cmds[0].Serial)
	assert.Equal(t, "MAGIC CODE, Static", cmds[0].Note)
}

func TestTooShort(t *testing.T) {
	assert.Empty(t, prototest.Capture(NewDecoder(nil), burst(3, 0x2A5A5A5A5, 33)))
}

func TestHeaderThreshold(t *testing.T) {
	assert.Empty(t, prototest.Capture(NewDecoder(nil), burst(MinHeaderCount-1, 0x2345678ABCDEF, DynamicBits-1)))
	assert.Len(t, prototest.Capture(NewDecoder(nil), burst(MinHeaderCount, 0x2345678ABCDEF, DynamicBits-1)), 1)
}

func TestTolerance(t *testing.T) {
	samples := burst(3, 0x2345678ABCDEF, DynamicBits-1)

	// Start bit high.
	edge := prototest.Replace(samples, 6, Const.TeShort+Const.TeDelta)
	assert.Len(t, prototest.Capture(NewDecoder(nil), edge), 1)

	over := prototest.Replace(samples, 6, Const.TeShort+Const.TeDelta+1)
	assert.Empty(t, prototest.Capture(NewDecoder(nil), over))
}

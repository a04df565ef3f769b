package kia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/pulse"
)

// Cnt 0x1234, Serial 0xABCDEF, Btn 3.
const frame = 0x0812340ABCDEF3DE

func burst(headers int, data uint64) (samples []pulse.Sample) {
	for i := 0; i < headers; i++ {
		samples = append(samples, pulse.High(Const.TeShort), pulse.Low(Const.TeShort))
	}
	samples = append(samples, pulse.High(Const.TeLong), pulse.Low(Const.TeLong))
	samples = protocol.AppendPWM(samples, data, Const.MinCountBit-2,
		[2]uint32{Const.TeLong, Const.TeLong},
		[2]uint32{Const.TeShort, Const.TeShort},
	)
	return append(samples, pulse.High(Const.TeLong+Const.TeDelta*2), pulse.Low(prototest.Idle))
}

func TestCRC(t *testing.T) {
	assert.Equal(t, uint8(0xDE), CRC(frame))
	assert.True(t, Valid(frame))
	assert.False(t, Valid(frame^0x100))
}

func TestDecode(t *testing.T) {
	cmds := prototest.Capture(NewDecoder(nil), burst(MinHeaderCount+1, frame))
	require.Len(t, cmds, 1)

	cmd := cmds[0]
	assert.Equal(t, uint64(frame), cmd.Data)
	assert.Equal(t, Const.MinCountBit, cmd.Bits)
	assert.Equal(t, uint32(0xABCDEF), cmd.Serial)
	assert.Equal(t, uint8(0x3), cmd.Btn)
	assert.Equal(t, uint32(0x1234), cmd.Cnt)
	assert.Equal(t, "CRC OK", cmd.Note)
}

func TestCRCMismatch(t *testing.T) {
	cmds := prototest.Capture(NewDecoder(nil), burst(MinHeaderCount+1, frame^0x01))
	require.Len(t, cmds, 1)
	assert.Equal(t, "CRC mismatch", cmds[0].Note)
}

func TestHeaderThreshold(t *testing.T) {
	assert.Empty(t, prototest.Capture(NewDecoder(nil), burst(MinHeaderCount, frame)))
}

func TestFields(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		serial := rapid.Uint32Range(0, 0x0FFFFFFF).Draw(t, "serial")
		btn := rapid.Uint8Range(0, 0xF).Draw(t, "btn")
		cnt := rapid.Uint32Range(0, 0xFFFF).Draw(t, "cnt")

		body := uint64(1)<<59 | uint64(cnt)<<40 | uint64(serial)<<12 | uint64(btn)<<8
		data := body | uint64(CRC(body))

		if !Valid(data) {
			t.Fatalf("checksum rejected: %016X\n", data)
		}
		if f := Decode(data); f != (Fields{serial, btn, cnt}) {
			t.Fatalf("%+v\n", f)
		}
	})
}

func TestTolerance(t *testing.T) {
	samples := burst(MinHeaderCount+1, frame)

	// First header low.
	edge := prototest.Replace(samples, 1, Const.TeShort+Const.TeDelta)
	assert.Len(t, prototest.Capture(NewDecoder(nil), edge), 1)

	over := prototest.Replace(samples, 1, Const.TeShort+Const.TeDelta+1)
	assert.Empty(t, prototest.Capture(NewDecoder(nil), over))
}

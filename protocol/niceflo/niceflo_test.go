package niceflo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/pulse"
)

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bits := rapid.SampledFrom(Bits).Draw(t, "bits")
		data := rapid.Uint64Range(1, 1<<bits-1).Draw(t, "data")

		enc := NewEncoder(nil)
		if err := enc.Load(protocol.Job{Data: data, Bits: bits, Repeat: 2}); err != nil {
			t.Fatalf("%+v\n", err)
		}
		samples := pulse.Append(protocol.Drain(enc), pulse.Low(prototest.Idle))

		cmds := prototest.Capture(NewDecoder(nil), samples)
		if len(cmds) != 2 {
			t.Fatalf("expected 2 frames, got %d\n", len(cmds))
		}
		if cmds[1].Data != data || cmds[1].Bits != bits {
			t.Fatalf("expected %X/%d got %X/%d\n", data, bits, cmds[1].Data, cmds[1].Bits)
		}
	})
}

func TestTolerance(t *testing.T) {
	samples := prototest.Transmit(t, NewEncoder(nil), protocol.Job{Data: 0x800, Bits: 12, Repeat: 1})
	assert.Equal(t, Const.TeShort, samples[1].Duration)

	edge := prototest.Replace(samples, 1, Const.TeShort+Const.TeDelta)
	assert.Len(t, prototest.Capture(NewDecoder(nil), edge), 1)

	over := prototest.Replace(samples, 1, Const.TeShort+Const.TeDelta+1)
	assert.Empty(t, prototest.Capture(NewDecoder(nil), over))
}

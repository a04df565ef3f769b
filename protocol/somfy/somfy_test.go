package somfy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/pulse"
)

const (
	// Captured from a Keytis remote.
	keytisFrame = 0xA453537C4B9855

	telisFrame = 0xA28D9FADBF8BDD
)

func TestKeytisFields(t *testing.T) {
	assert.True(t, Valid(keytisFrame))
	assert.Equal(t, Fields{Key: 0xA, Btn: 0x4, Cnt: 0x2F, Serial: 0x37D3CD}, KeytisFields(keytisFrame))
	assert.Equal(t, uint64(keytisFrame), KeytisFrame(0x4, 0x2F, 0x37D3CD))
	assert.Equal(t, "Key_1", KeytisButton(0x4))
}

func TestTelisFields(t *testing.T) {
	assert.True(t, Valid(telisFrame))
	assert.Equal(t, Fields{Key: 0xA2, Btn: 0x2, Cnt: 0x1232, Serial: 0x123456}, TelisFields(telisFrame))
	assert.Equal(t, uint64(telisFrame), TelisFrame(0xA2, 0x2, 0x1232, 0x123456))
	assert.Equal(t, "Up", TelisButton(0x2))
	assert.Equal(t, "Unknown", TelisButton(0x7))
}

func TestPressDuration(t *testing.T) {
	for n, pdc := range map[uint8]uint32{
		1:  0xC40019,
		2:  0xC80026,
		15: 0xFC00FC,
		16: 0xFC0102,
		72: 0xFC048F,
	} {
		assert.Equal(t, pdc, PressDuration(n), "%d", n)
	}
}

func TestObfuscate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plain := rapid.Uint64Range(0, 1<<56-1).Draw(t, "plain")
		if got := Deobfuscate(Obfuscate(plain)); got != plain {
			t.Fatalf("expected %014X got %014X\n", plain, got)
		}
	})
}

func TestTelisRoundTrip(t *testing.T) {
	job := protocol.Job{Serial: 0x123456, Btn: 0x2, Cnt: 0x1232, Repeat: 1}
	cmds := prototest.Capture(NewTelisDecoder(nil), prototest.Transmit(t, NewTelisEncoder(nil), job))
	require.Len(t, cmds, frames)

	for _, cmd := range cmds {
		assert.Equal(t, uint64(telisFrame), cmd.Data)
		assert.Equal(t, uint8(56), cmd.Bits)
		assert.Equal(t, uint32(0x123456), cmd.Serial)
		assert.Equal(t, uint8(0x2), cmd.Btn)
		assert.Equal(t, uint32(0x1232), cmd.Cnt)
		assert.Equal(t, "Up", cmd.Note)
	}
}

func TestKeytisRoundTrip(t *testing.T) {
	job := protocol.Job{Serial: 0x37D3CD, Btn: 0x4, Cnt: 0x2F, Repeat: 1}
	cmds := prototest.Capture(NewKeytisDecoder(nil), prototest.Transmit(t, NewKeytisEncoder(nil), job))
	require.Len(t, cmds, frames)

	for i, cmd := range cmds {
		assert.Equal(t, uint64(keytisFrame), cmd.Data)
		assert.Equal(t, uint8(KeytisBits), cmd.Bits)
		assert.Equal(t, uint64(PressDuration(uint8(i+1))), cmd.Data2)
		assert.Equal(t, "Key_1", cmd.Note)
	}
}

func TestTelisIgnoresKeytis(t *testing.T) {
	job := protocol.Job{Serial: 0x37D3CD, Btn: 0x4, Cnt: 0x2F, Repeat: 1}
	samples := prototest.Transmit(t, NewKeytisEncoder(nil), job)
	assert.Empty(t, prototest.Capture(NewTelisDecoder(nil), samples))
}

func TestBadChecksum(t *testing.T) {
	bad := uint64(telisFrame ^ 1)
	require.False(t, Valid(bad))

	samples := prototest.Transmit(t, NewTelisEncoder(nil), protocol.Job{Data: bad, Repeat: 1})
	assert.Empty(t, prototest.Capture(NewTelisDecoder(nil), samples))
}

func TestSerialize(t *testing.T) {
	job := protocol.Job{Serial: 0x37D3CD, Btn: 0x4, Cnt: 0x2F, Repeat: 1}

	dec := NewKeytisDecoder(nil)
	require.NotEmpty(t, prototest.Capture(dec, prototest.Transmit(t, NewKeytisEncoder(nil), job)))

	f := protocol.NewKeyFile(433420000, "AM650")
	require.NoError(t, dec.Serialize(f))

	restored := NewKeytisDecoder(nil)
	require.NoError(t, restored.Deserialize(f))
	assert.Equal(t, dec.Command(), restored.Command())

	// Wrong length for Telis.
	assert.Error(t, NewTelisDecoder(nil).Deserialize(f))
}

func TestDeserializeAdvancesCounter(t *testing.T) {
	job := protocol.Job{Serial: 0x123456, Btn: 0x2, Cnt: 0x1232, Repeat: 1}

	dec := NewTelisDecoder(nil)
	require.NotEmpty(t, prototest.Capture(dec, prototest.Transmit(t, NewTelisEncoder(nil), job)))

	f := protocol.NewKeyFile(433420000, "AM650")
	require.NoError(t, dec.Serialize(f))

	e := NewTelisEncoder(nil)
	require.NoError(t, e.Deserialize(f))

	cmds := prototest.Capture(NewTelisDecoder(nil), pulse.Append(protocol.Drain(e), pulse.Low(prototest.Idle)))
	require.Len(t, cmds, frames*defaultRepeat)
	assert.Equal(t, uint32(0x123456), cmds[0].Serial)
	assert.Equal(t, uint8(0x2), cmds[0].Btn)
	assert.Equal(t, uint32(0x1233), cmds[0].Cnt)
}

func TestTolerance(t *testing.T) {
	job := protocol.Job{Serial: 0x123456, Btn: 0x2, Cnt: 0x1232, Repeat: 1}
	samples := prototest.Transmit(t, NewTelisEncoder(nil), job)

	// Software sync of the first frame.
	idx := prototest.Index(samples, true, syncHigh, 0)
	require.Greater(t, idx, 0)

	edge := prototest.Replace(samples, idx, Const.TeShort*7+Const.TeDelta*4)
	assert.Len(t, prototest.Capture(NewTelisDecoder(nil), edge), frames)

	over := prototest.Replace(samples, idx, Const.TeShort*7+Const.TeDelta*4+1)
	assert.Len(t, prototest.Capture(NewTelisDecoder(nil), over), frames-1)
}

package starline

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/subghz/keystore"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/pulse"
)

const (
	serial = 0x00ABCD
	btn    = 0x22
	cnt    = 0x42

	frame     = 0xAD72AFBDB3D50044
	nextFrame = 0x2698C21CB3D50044
)

func testEnv() *protocol.Environment {
	return &protocol.Environment{Keystore: &keystore.Keystore{Entries: []keystore.Entry{
		{Name: "Beta", Key: 0x1111222233334444, Type: keystore.LearningUnknown},
		{Name: "Alpha", Key: 0x0123456789ABCDEF, Type: keystore.LearningNormal},
		{Name: "Gamma", Key: 0x0123456789ABCDEF, Type: keystore.LearningSecure},
	}}}
}

func TestRoundTrip(t *testing.T) {
	env := testEnv()
	job := protocol.Job{Serial: serial, Btn: btn, Cnt: cnt, Manufacturer: "Alpha", Repeat: 4}

	cmds := prototest.Capture(NewDecoder(env), prototest.Transmit(t, NewEncoder(env), job))
	require.Len(t, cmds, 1)
	assert.Equal(t, uint64(frame), cmds[0].Data)
	assert.Equal(t, uint32(serial), cmds[0].Serial)
	assert.Equal(t, uint8(btn), cmds[0].Btn)
	assert.Equal(t, uint32(cnt), cmds[0].Cnt)
	assert.Equal(t, "Alpha", cmds[0].Manufacturer)
}

func TestUnsupportedLearning(t *testing.T) {
	err := NewEncoder(testEnv()).Load(protocol.Job{Serial: serial, Manufacturer: "Gamma"})
	assert.True(t, errors.Is(err, protocol.ErrNoKey), "%+v", err)
}

func TestDeserializeAdvancesCounter(t *testing.T) {
	env := testEnv()

	dec := NewDecoder(env)
	require.Len(t, prototest.Capture(dec, prototest.Transmit(t, NewEncoder(nil), protocol.Job{Data: frame, Repeat: 2})), 1)

	f := protocol.NewKeyFile(433920000, "FuriHalSubGhzPresetOok650Async")
	require.NoError(t, dec.Serialize(f))

	enc := NewEncoder(env)
	require.NoError(t, enc.Deserialize(f))

	cmds := prototest.Capture(NewDecoder(env), pulse.Append(protocol.Drain(enc), pulse.Low(prototest.Idle)))
	require.Len(t, cmds, 1)
	assert.Equal(t, uint64(nextFrame), cmds[0].Data)
	assert.Equal(t, uint32(cnt+1), cmds[0].Cnt)
}

func TestHeaderThreshold(t *testing.T) {
	enc := NewEncoder(nil)
	require.NoError(t, enc.Load(protocol.Job{Data: frame}))
	upload := enc.Upload()

	for _, tc := range []struct {
		pairs  int
		frames int
	}{
		{MinHeaderCount, 0},
		{MinHeaderCount + 1, 1},
	} {
		samples := upload[2*(headerCount-tc.pairs):]
		assert.Len(t, prototest.Capture(NewDecoder(nil), samples), tc.frames, "%d header pairs", tc.pairs)
	}
}

func TestTolerance(t *testing.T) {
	enc := NewEncoder(nil)
	require.NoError(t, enc.Load(protocol.Job{Data: frame}))
	upload := enc.Upload()

	// The first data bit is a one: long high, long low.
	idx := 2*headerCount + 1
	require.Equal(t, pulse.Low(Const.TeLong), upload[idx])

	edge := prototest.Replace(upload, idx, Const.TeLong+Const.TeDelta)
	assert.Len(t, prototest.Capture(NewDecoder(nil), edge), 1)

	over := prototest.Replace(upload, idx, Const.TeLong+Const.TeDelta+1)
	assert.Empty(t, prototest.Capture(NewDecoder(nil), over))
}
